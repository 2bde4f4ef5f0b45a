package localfs

import (
	"context"
	"os"
	"testing"

	"xdao.co/trustchain/cidutil"
	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/testkit"
)

func TestLocalFSConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return cas
	})
}

func TestLocalFSRejectsOverwriteAfterCorruption(t *testing.T) {
	ctx := context.Background()
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	orig := []byte(`{"evidence":"shipment photos"}`)
	id, err := cas.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := cas.Get(ctx, id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get after tamper: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := cas.Put(ctx, orig); err != storage.ErrImmutable {
		t.Fatalf("Put after tamper: got %v want %v", err, storage.ErrImmutable)
	}
	if !cidutil.Matches(id, orig) {
		t.Fatalf("CID no longer matches original bytes")
	}
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
