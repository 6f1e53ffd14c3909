package pager

import (
	"context"
	"errors"

	"github.com/mmynk/partyledger/internal/docstore"
)

// ErrExhausted is returned by Next once every chunk is loaded.
var ErrExhausted = errors.New("no more chunks to load")

// Cursor walks a party's chunk ids strictly contiguously from the newest
// chunk backward. A chunk at position i only counts as loaded when every
// chunk before it is loaded, so the scan stops at the first gap and Next
// always fetches exactly that gap.
type Cursor struct {
	cache *Cache
	ids   []string // newest-first, as stored on the party
}

// NewCursor builds a cursor over the party's chunk ids in stored
// (newest-first) order.
func NewCursor(cache *Cache, chunkIDs []string) *Cursor {
	ids := make([]string, len(chunkIDs))
	copy(ids, chunkIDs)
	return &Cursor{cache: cache, ids: ids}
}

// loadedPrefix returns how many leading chunks are loaded.
func (c *Cursor) loadedPrefix() int {
	for i, id := range c.ids {
		if !c.cache.Loaded(id) {
			return i
		}
	}
	return len(c.ids)
}

// HasNext reports whether any chunk id is still outside the loaded set.
func (c *Cursor) HasNext() bool {
	return c.loadedPrefix() < len(c.ids)
}

// Next loads exactly the next contiguous unloaded chunk and returns its
// handle. ErrExhausted once everything is loaded.
func (c *Cursor) Next(ctx context.Context) (docstore.Handle, error) {
	i := c.loadedPrefix()
	if i >= len(c.ids) {
		return nil, ErrExhausted
	}
	return c.cache.Get(ctx, c.ids[i])
}

// Prefetch kicks off a background load of the next gap without blocking.
func (c *Cursor) Prefetch() {
	if i := c.loadedPrefix(); i < len(c.ids) {
		c.cache.Prefetch(c.ids[i])
	}
}
