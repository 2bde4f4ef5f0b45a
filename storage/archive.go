package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Archive is a CAS addressed by CID strings, the form digests take on the
// wire and in dispute records.
type Archive struct {
	cas CAS
}

func NewArchive(cas CAS) *Archive { return &Archive{cas: cas} }

// CAS returns the underlying store.
func (a *Archive) CAS() CAS { return a.cas }

// Put stores data and returns its CID string. Empty blobs are rejected.
func (a *Archive) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	id, err := a.cas.Put(ctx, data)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Get loads the blob named by a CID string.
func (a *Archive) Get(ctx context.Context, ref string) ([]byte, error) {
	id, err := ParseCID(ref)
	if err != nil {
		return nil, err
	}
	return a.cas.Get(ctx, id)
}

// Has reports whether the blob named by ref is stored.
func (a *Archive) Has(ctx context.Context, ref string) (bool, error) {
	id, err := ParseCID(ref)
	if err != nil {
		return false, err
	}
	return a.cas.Has(ctx, id)
}

// ParseCID decodes a CID string, mapping failures to ErrInvalidCID.
func ParseCID(ref string) (cid.Cid, error) {
	id, err := cid.Decode(ref)
	if err != nil || !id.Defined() {
		return cid.Undef, fmt.Errorf("%w: %q", ErrInvalidCID, ref)
	}
	return id, nil
}
