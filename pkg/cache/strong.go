package cache

import (
	"sync"

	"github.com/google/uuid"

	"github.com/immagent/immagent/pkg/asset"
)

// StrongCache holds entries until explicitly removed. It backs the
// in-memory store, where there is no secondary store to recover an
// evicted value from — losing an entry here would lose the value.
type StrongCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]asset.Asset
}

// NewStrongCache constructs an empty strong cache.
func NewStrongCache() *StrongCache {
	return &StrongCache{entries: make(map[uuid.UUID]asset.Asset)}
}

func (c *StrongCache) Get(id uuid.UUID) (asset.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	return a, ok
}

func (c *StrongCache) Put(a asset.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[a.AssetID()]; ok {
		if !sameValue(existing, a) {
			mismatchPanic(a.AssetID())
		}
		return
	}
	c.entries[a.AssetID()] = a
}

func (c *StrongCache) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *StrongCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]asset.Asset)
}
