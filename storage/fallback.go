package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// Fallback reads from its backends in slice order and writes only to the
// first. A shared evidence daemon placed after a local cache is the usual
// layout.
type Fallback []CAS

var _ CAS = Fallback(nil)

func (f Fallback) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(f) == 0 {
		return cid.Undef, errors.New("storage: fallback has no backends")
	}
	return f[0].Put(ctx, data)
}

func (f Fallback) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, cas := range f {
		b, err := cas.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (f Fallback) Has(ctx context.Context, id cid.Cid) (bool, error) {
	for _, cas := range f {
		ok, err := cas.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
