package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/trustchain/cidutil"
)

// Replica names one backend of a Replicating store.
type Replica struct {
	Name string
	CAS  CAS
}

// Replicating writes every blob to all replicas and requires each to return
// the CID computed locally. Reads fall back in order.
type Replicating []Replica

var _ CAS = Replicating(nil)

// PutAll writes data to every replica and returns the CID each reported.
func (r Replicating) PutAll(ctx context.Context, data []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.Of(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: no replicas")
	}
	out := make(map[string]cid.Cid, len(r))
	for _, rep := range r {
		if rep.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for replica %q", rep.Name)
		}
		got, err := rep.CAS.Put(ctx, data)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: replica %q: %w", rep.Name, err)
		}
		out[rep.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r Replicating) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, data)
	return id, err
}

func (r Replicating) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	backends := make(Fallback, 0, len(r))
	for _, rep := range r {
		if rep.CAS != nil {
			backends = append(backends, rep.CAS)
		}
	}
	return backends.Get(ctx, id)
}

func (r Replicating) Has(ctx context.Context, id cid.Cid) (bool, error) {
	for _, rep := range r {
		if rep.CAS == nil {
			continue
		}
		ok, err := rep.CAS.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
