// Package pager streams a party's chunk history into memory on demand: a
// read-through document cache plus a cursor that loads chunks newest-first
// and never leaves a gap.
package pager

import (
	"context"
	"sync"

	"github.com/mmynk/partyledger/internal/docstore"
	"github.com/mmynk/partyledger/internal/metrics"
)

// Cache maps a document id to a settled handle or a pending load. A read
// of an unresolved id suspends the caller until the underlying load
// settles and resolves synchronously afterwards. Every cached document is
// subscribed to the engine's change/delete events: a delete drops the
// entry, a change fires the invalidation hook and keeps the live handle.
type Cache struct {
	engine docstore.Engine

	mu      sync.Mutex
	entries map[string]*entry

	// onChange, when set, is called with the id of any cached document
	// that changed under us.
	onChange func(id string)
}

type entry struct {
	ready  chan struct{}
	handle docstore.Handle
	err    error
	unsub  func()
}

// NewCache builds a cache over the given engine.
func NewCache(engine docstore.Engine) *Cache {
	return &Cache{engine: engine, entries: make(map[string]*entry)}
}

// OnChange registers the change-invalidation hook. Set once at startup.
func (c *Cache) OnChange(fn func(id string)) { c.onChange = fn }

// Get returns the handle for id, loading it through the engine on first
// use. It blocks while the load is pending and honors ctx cancellation;
// the abandoned load itself keeps running and settles the entry for later
// readers.
func (c *Cache) Get(ctx context.Context, id string) (docstore.Handle, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		c.entries[id] = e
		c.mu.Unlock()
		metrics.CacheMisses.Inc()
		go c.load(id, e)
	} else {
		c.mu.Unlock()
		select {
		case <-e.ready:
			metrics.CacheHits.Inc()
		default:
			metrics.CacheSuspensions.Inc()
		}
	}

	select {
	case <-e.ready:
		return e.handle, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch starts a non-blocking background load for id.
func (c *Cache) Prefetch(id string) {
	c.mu.Lock()
	if _, ok := c.entries[id]; ok {
		c.mu.Unlock()
		return
	}
	e := &entry{ready: make(chan struct{})}
	c.entries[id] = e
	c.mu.Unlock()
	metrics.CacheMisses.Inc()
	go c.load(id, e)
}

// Loaded reports whether id has settled successfully.
func (c *Cache) Loaded(id string) bool {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

// Drop removes id from the cache, unsubscribing its event watcher.
func (c *Cache) Drop(id string) {
	c.mu.Lock()
	e, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()
	if ok && e.unsub != nil {
		e.unsub()
	}
}

func (c *Cache) load(id string, e *entry) {
	// Loads are detached from any one caller's context: whoever asked
	// first may have gone away, but the settled entry serves everyone.
	h, err := c.engine.Find(context.Background(), id)
	if err != nil {
		metrics.DocumentLoads.WithLabelValues("error").Inc()
		e.err = err
		close(e.ready)
		// Failed loads are not cached; the next read retries.
		c.mu.Lock()
		if c.entries[id] == e {
			delete(c.entries, id)
		}
		c.mu.Unlock()
		return
	}

	metrics.DocumentLoads.WithLabelValues("ok").Inc()
	e.handle = h
	e.unsub = h.Subscribe(func(ev docstore.Event) {
		switch ev.Kind {
		case docstore.EventDelete:
			metrics.CacheInvalidations.Inc()
			c.Drop(id)
		case docstore.EventChange:
			if c.onChange != nil {
				c.onChange(id)
			}
		}
	})
	close(e.ready)
}
