// Package memcas is an in-process CAS for tests and the simulator.
package memcas

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/trustchain/cidutil"
	"xdao.co/trustchain/storage"
)

type CAS struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *CAS { return &CAS{blobs: make(map[string][]byte)} }

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.Of(data)
	if err != nil {
		return cid.Undef, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.blobs[id.KeyString()]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.blobs[id.KeyString()] = bytes.Clone(data)
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.blobs[id.KeyString()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(b), nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Defined() {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blobs[id.KeyString()]
	return ok, nil
}

// Len returns the number of stored blobs.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blobs)
}
