// Package cache implements ImmAgent's process-local identity cache: a
// thread-safe UUID-to-asset mapping that sits in front of the persistence
// layer. It is an accelerator, never a consistency boundary — a miss
// always falls through to the backend.
package cache

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/immagent/immagent/pkg/asset"
)

// Cache is satisfied by both the weak (persistent-backend) and strong
// (in-memory-backend) implementations. Get is expected to run in O(1) and
// never suspend; Put is idempotent — putting a second, distinct value
// under an id already present is a programmer error (assets are
// immutable), and implementations may panic in that case.
type Cache interface {
	Get(id uuid.UUID) (asset.Asset, bool)
	Put(a asset.Asset)
	Forget(id uuid.UUID)
	Clear()
}

// PutAll puts every asset into c, in the order given. Callers building a
// bundle should pass dependencies before the things that reference them
// (text before messages, messages before the conversation, conversation
// before the agent) so a subsequent persistence pass can resolve
// references through the cache alone.
func PutAll(c Cache, assets ...asset.Asset) {
	for _, a := range assets {
		c.Put(a)
	}
}

// sameValue compares two asset pointers structurally rather than by
// pointer identity: two concurrent cache-miss reads of the same row
// legitimately construct two distinct, equal-content instances, and that
// race must not be mistaken for a genuine mutation attempt.
func sameValue(existing, incoming asset.Asset) bool {
	if existing == incoming {
		return true
	}
	ev := reflect.ValueOf(existing)
	iv := reflect.ValueOf(incoming)
	if ev.Type() != iv.Type() || ev.Kind() != reflect.Ptr || iv.Kind() != reflect.Ptr {
		return false
	}
	return reflect.DeepEqual(ev.Elem().Interface(), iv.Elem().Interface())
}

// mismatchPanic is raised by Put implementations when an id already maps
// to a genuinely different value — assets are immutable, so this can only
// mean a caller minted a duplicate UUID or is trying to "update" a frozen
// value.
func mismatchPanic(id uuid.UUID) {
	panic("cache: put of id " + id.String() + " conflicts with an existing, distinct cached value")
}
