package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"xdao.co/trustchain/journal"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(t *testing.T, action, target string, at time.Time) journal.Entry {
	t.Helper()
	e, err := journal.NewEntry(action, "0xactor", target, map[string]uint64{"amount": 100}, at)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return e
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestAppendListRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	at := time.Date(2026, time.February, 22, 16, 40, 0, 0, time.UTC)

	want := entry(t, journal.ActionCreateProduct, "P1", at)
	if err := s.Append(ctx, want); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Same timestamp: ordering falls back to append sequence.
	if err := s.Append(ctx, entry(t, journal.ActionJoinDistributor, "P1", at)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, entry(t, journal.ActionCreateProduct, "P2", at.Add(time.Second))); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.List(ctx, journal.Filter{Target: "P1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != want.ID || got[0].Action != want.Action || !got[0].At.Equal(at) {
		t.Fatalf("first = %+v, want %+v", got[0], want)
	}
	if string(got[0].Detail) != `{"amount":100}` {
		t.Fatalf("detail = %s", got[0].Detail)
	}
	if got[1].Action != journal.ActionJoinDistributor {
		t.Fatalf("second action = %s", got[1].Action)
	}

	all, err := s.List(ctx, journal.Filter{Action: journal.ActionCreateProduct, Limit: 1})
	if err != nil || len(all) != 1 || all[0].Target != "P1" {
		t.Fatalf("filtered list = %+v (%v)", all, err)
	}
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	e := entry(t, journal.ActionSettle, "P1", time.Now())
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, e); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("err = %v, want ErrDuplicateEntry", err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Append(ctx, entry(t, journal.ActionFundPool, "", time.Now())); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.List(ctx, journal.Filter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("list after reopen = %d (%v)", len(got), err)
	}
}
