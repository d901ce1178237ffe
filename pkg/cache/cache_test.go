package cache

import (
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immagent/immagent/pkg/asset"
)

func TestStrongCache_GetPutForgetClear(t *testing.T) {
	c := NewStrongCache()
	text := asset.NewTextAsset("hello")

	_, ok := c.Get(text.ID)
	assert.False(t, ok)

	c.Put(text)
	got, ok := c.Get(text.ID)
	require.True(t, ok)
	assert.Same(t, text, got)

	c.Forget(text.ID)
	_, ok = c.Get(text.ID)
	assert.False(t, ok)

	c.Put(text)
	c.Clear()
	_, ok = c.Get(text.ID)
	assert.False(t, ok)
}

func TestStrongCache_IdempotentPut(t *testing.T) {
	c := NewStrongCache()
	text := asset.NewTextAsset("hello")
	c.Put(text)
	assert.NotPanics(t, func() { c.Put(text) })
}

func TestStrongCache_MismatchedPutPanics(t *testing.T) {
	c := NewStrongCache()
	a := asset.NewTextAsset("a")
	b := asset.NewTextAsset("b")
	b.ID = a.ID // force a collision between two distinct instances

	c.Put(a)
	assert.Panics(t, func() { c.Put(b) })
}

func TestWeakCache_CoherentWhileHeld(t *testing.T) {
	c := NewWeakCache()
	text := asset.NewTextAsset("hello")
	c.Put(text)

	got, ok := c.Get(text.ID)
	require.True(t, ok)
	assert.Same(t, text, got)
	runtime.KeepAlive(text)
}

func TestWeakCache_ReclaimedOnceUnreferenced(t *testing.T) {
	c := NewWeakCache()

	var id uuid.UUID
	func() {
		text := asset.NewTextAsset("ephemeral")
		id = text.ID
		c.Put(text)
	}()

	// Force GC cycles so the now-unreferenced text asset, and with it the
	// weak pointer's target, is reclaimed and the cleanup runs.
	deadline := 20
	for i := 0; i < deadline; i++ {
		runtime.GC()
		if _, ok := c.Get(id); !ok {
			return
		}
	}
	t.Fatal("expected weak cache entry to be reclaimed after the asset became unreferenced")
}
