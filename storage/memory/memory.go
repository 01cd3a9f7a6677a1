// Package memory provides an in-process archive backend, used by the
// daemon's default configuration and by tests.
package memory

import (
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/anuraag-khare/prompt-fence/cidutil"
	"github.com/anuraag-khare/prompt-fence/storage"
)

// CAS is an in-memory content-addressable store. Safe for concurrent use.
type CAS struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

func New() *CAS {
	return &CAS{objects: make(map[cid.Cid][]byte)}
}

func (c *CAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.objects[id]; ok {
		if string(existing) != string(bytes) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	stored := make([]byte, len(bytes))
	copy(stored, bytes)
	c.objects[id] = stored
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.objects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[id]
	return ok
}
