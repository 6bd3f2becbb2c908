// Package syncclient is the client half of the realtime channel: a websocket
// client, typed last-write-wins caches, and an advisory conflict detector.
// Server events always carry full records, so applying them in any order
// converges on the committed state.
package syncclient

import "sync"

// Keyed is a cacheable record with a stable id.
type Keyed interface {
	Key() string
}

// Cache is a last-write-wins map of records by id. Remote events and
// optimistic local mutations both write through it; whichever applies last
// wins, and the next full-record event from the server re-converges the
// entry either way.
type Cache[T Keyed] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewCache returns an empty cache.
func NewCache[T Keyed]() *Cache[T] {
	return &Cache[T]{items: make(map[string]T)}
}

// ApplyRemoteUpsert stores the full record from a server event.
func (c *Cache[T]) ApplyRemoteUpsert(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[v.Key()] = v
}

// ApplyRemoteDelete removes the record. Unknown ids are a no-op, so a delete
// arriving before (or after) the create it follows is safe.
func (c *Cache[T]) ApplyRemoteDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

// Get returns the cached record.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

// List returns all cached records in unspecified order.
func (c *Cache[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out
}

// Len returns the number of cached records.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Snapshot returns a copy of the cache contents, e.g. to save before a batch
// of optimistic changes.
func (c *Cache[T]) Snapshot() map[string]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]T, len(c.items))
	for id, v := range c.items {
		out[id] = v
	}
	return out
}

// Restore replaces the cache contents with a snapshot.
func (c *Cache[T]) Restore(snapshot map[string]T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T, len(snapshot))
	for id, v := range snapshot {
		c.items[id] = v
	}
}

// OptimisticUpsert applies a local write before the server confirms it and
// returns a rollback that restores the prior entry (or its absence). Calling
// rollback after the server has re-sent the record is harmless: the stale
// restore is overwritten by the next full-record event.
func (c *Cache[T]) OptimisticUpsert(v T) (rollback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := v.Key()
	prev, existed := c.items[id]
	c.items[id] = v
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existed {
			c.items[id] = prev
		} else {
			delete(c.items, id)
		}
	}
}

// OptimisticMutate applies fn to the cached record and returns a rollback.
// Returns ok false (and a no-op rollback) when the record is not cached.
func (c *Cache[T]) OptimisticMutate(id string, fn func(T) T) (rollback func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed := c.items[id]
	if !existed {
		return func() {}, false
	}
	c.items[id] = fn(prev)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.items[id] = prev
	}, true
}

// OptimisticDelete removes the record locally and returns a rollback that
// puts it back.
func (c *Cache[T]) OptimisticDelete(id string) (rollback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed := c.items[id]
	delete(c.items, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existed {
			c.items[id] = prev
		}
	}
}
