// Package storage archives the records the settlement core keeps outside its
// state: signed trust-report envelopes and dispute evidence.
//
// Blobs are immutable and keyed by the CIDv1 (raw, sha2-256) of their bytes,
// so an evidence digest handed to OpenDispute can be checked by anyone
// holding the bytes.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a content-addressable blob store.
//
// Contract:
//   - Put is idempotent and returns the CID of the bytes written.
//   - Stored blobs never change.
//   - Get returns ErrNotFound when the CID is absent and ErrCIDMismatch when
//     stored bytes no longer hash to it.
type CAS interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}
