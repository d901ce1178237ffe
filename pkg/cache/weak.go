package cache

import (
	"runtime"
	"sync"
	"weak"

	"github.com/google/uuid"

	"github.com/immagent/immagent/pkg/asset"
)

// WeakCache backs the persistent (Postgres) store. It never extends an
// asset's lifetime: once no client holds the pointer a Put or Get
// returned, the entry is reclaimed by the garbage collector and the map
// slot is cleaned up behind it. A miss always falls through to the
// backend, which is the authoritative source.
type WeakCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]weak.Pointer[asset.Asset]
}

// NewWeakCache constructs an empty weak cache.
func NewWeakCache() *WeakCache {
	return &WeakCache{entries: make(map[uuid.UUID]weak.Pointer[asset.Asset])}
}

func (c *WeakCache) Get(id uuid.UUID) (asset.Asset, bool) {
	c.mu.Lock()
	wp, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	boxed := wp.Value()
	if boxed == nil {
		return nil, false
	}
	return *boxed, true
}

func (c *WeakCache) Put(a asset.Asset) {
	id := a.AssetID()

	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.entries[id]; ok {
		if boxed := wp.Value(); boxed != nil {
			if !sameValue(*boxed, a) {
				mismatchPanic(id)
			}
			return
		}
	}

	// Box the interface value so weak.Make has a stable pointer to track;
	// the box, not a, is what the GC is allowed to reclaim.
	boxed := new(asset.Asset)
	*boxed = a
	c.entries[id] = weak.Make(boxed)
	runtime.AddCleanup(boxed, c.cleanup, id)
}

// cleanup drops a reclaimed entry's map slot. It must not be a closure
// over boxed itself — AddCleanup forbids the cleanup function from
// keeping its own target alive — so it only captures the id and the
// cache, both of which are expected to outlive any individual entry.
func (c *WeakCache) cleanup(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.entries[id]; ok && wp.Value() == nil {
		delete(c.entries, id)
	}
}

func (c *WeakCache) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *WeakCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]weak.Pointer[asset.Asset])
}
