package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryEngine keeps all documents in process memory. It serializes
// mutations per document and fans events out to subscribers, matching the
// contract the replicated store provides.
type MemoryEngine struct {
	mu   sync.RWMutex
	docs map[string]*memDoc
}

// NewMemoryEngine returns an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{docs: make(map[string]*memDoc)}
}

// Create stores a copy of initial under a fresh id. When the tree carries
// an "id" field it is kept in sync with the document id so models can embed
// their own identifier.
func (e *MemoryEngine) Create(_ context.Context, initial Doc) (Handle, error) {
	id := uuid.NewString()
	doc := Clone(initial)
	if _, ok := doc["id"]; ok {
		doc["id"] = id
	}
	d := &memDoc{id: id, doc: doc, subs: make(map[int]func(Event))}

	e.mu.Lock()
	e.docs[id] = d
	e.mu.Unlock()
	return d, nil
}

// Find returns the handle for id, or ErrNotFound.
func (e *MemoryEngine) Find(_ context.Context, id string) (Handle, error) {
	e.mu.RLock()
	d, ok := e.docs[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// Delete marks the document deleted and notifies subscribers.
func (e *MemoryEngine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	d, ok := e.docs[id]
	delete(e.docs, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	d.mu.Lock()
	d.deleted = true
	subs := d.snapshotSubs()
	d.mu.Unlock()
	notify(subs, Event{Kind: EventDelete, DocID: id})
	return nil
}

type memDoc struct {
	id string

	mu      sync.Mutex
	doc     Doc
	deleted bool
	subs    map[int]func(Event)
	nextSub int
}

func (d *memDoc) ID() string { return d.id }

func (d *memDoc) Doc() (Doc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleted {
		return nil, false
	}
	return d.doc, true
}

func (d *memDoc) Change(mutate func(Doc) error) error {
	d.mu.Lock()
	if d.deleted {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, d.id)
	}
	// Mutate a clone so a failing mutator leaves no partial state behind.
	next := Clone(d.doc)
	if err := mutate(next); err != nil {
		d.mu.Unlock()
		return err
	}
	d.doc = next
	subs := d.snapshotSubs()
	d.mu.Unlock()

	// Notify outside the lock so a subscriber may read the handle back.
	notify(subs, Event{Kind: EventChange, DocID: d.id})
	return nil
}

func (d *memDoc) Subscribe(fn func(Event)) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *memDoc) IsDeleted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted
}

func (d *memDoc) Broadcast(msg any) {
	d.mu.Lock()
	subs := d.snapshotSubs()
	d.mu.Unlock()
	notify(subs, Event{Kind: EventBroadcast, DocID: d.id, Message: msg})
}

func (d *memDoc) snapshotSubs() []func(Event) {
	out := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
