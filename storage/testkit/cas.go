// Package testkit holds a conformance suite every storage.CAS backend runs.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/trustchain/cidutil"
	"xdao.co/trustchain/storage"
)

// NewCAS returns a fresh, empty CAS isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte(`{"report":{"productId":"SKU-1"}}`)

		id, err := cas.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		wantID, err := cidutil.Of(want)
		if err != nil {
			t.Fatalf("cidutil.Of: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}
		got, err := cas.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same evidence")
		id1, err := cas.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1): %v", err)
		}
		id2, err := cas.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2): %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, _ := cidutil.Of(b)

		if ok, err := cas.Has(ctx, id); err != nil || ok {
			t.Fatalf("Has on missing CID: ok=%v err=%v", ok, err)
		}
		if _, err := cas.Get(ctx, id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got %v want ErrNotFound", err)
		}
		if _, err := cas.Put(ctx, b); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if ok, err := cas.Has(ctx, id); err != nil || !ok {
			t.Fatalf("Has after Put: ok=%v err=%v", ok, err)
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if ok, _ := cas.Has(ctx, undef); ok {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})
}
