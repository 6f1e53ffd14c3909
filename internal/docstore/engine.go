// Package docstore is the seam to the replicated document engine.
//
// The ledger core consumes exactly this capability surface: create a
// document, find one by id, read its current tree, mutate it through a
// callback, and subscribe to change/delete/broadcast events. Field-level
// merge of concurrent remote edits is the engine's job, not ours; the
// core's only obligation toward merge-friendliness is keeping each write's
// footprint minimal.
//
// Two engines ship here: an in-memory one for tests and single-process use,
// and a SQLite-backed one that persists a latest snapshot plus an
// append-only change log per document.
package docstore

import (
	"context"
	"errors"
)

// Doc is the JSON-like document tree: map[string]any, []any, strings,
// float64 numbers, bools.
type Doc = map[string]any

// ErrNotFound is returned by Find for an unknown or deleted document id.
var ErrNotFound = errors.New("document not found")

// EventKind discriminates handle notifications.
type EventKind uint8

const (
	// EventChange fires after a local mutation commits.
	EventChange EventKind = iota
	// EventDelete fires when the document is deleted.
	EventDelete
	// EventBroadcast carries an ephemeral message; nothing is persisted.
	EventBroadcast
)

// Event is a handle notification.
type Event struct {
	Kind    EventKind
	DocID   string
	Message any
}

// Engine creates and locates document handles. Find blocks until the
// document is available or ctx is done; this is the Go rendition of the
// promise-returning find the replicated store exposes.
type Engine interface {
	Create(ctx context.Context, initial Doc) (Handle, error)
	Find(ctx context.Context, id string) (Handle, error)
	Delete(ctx context.Context, id string) error
}

// Handle is a live reference to one document.
type Handle interface {
	ID() string

	// Doc returns the current tree, or false if the document is deleted.
	// The returned tree must be treated as read-only; all writes go
	// through Change.
	Doc() (Doc, bool)

	// Change runs the mutator against the tree and commits the result.
	// The engine serializes concurrent local mutations to one document.
	Change(mutate func(Doc) error) error

	// Subscribe registers a callback for this document's events and
	// returns an unsubscribe func.
	Subscribe(fn func(Event)) (unsubscribe func())

	IsDeleted() bool

	// Broadcast sends an ephemeral message to subscribers.
	Broadcast(msg any)
}

// Clone deep-copies a document tree.
func Clone(d Doc) Doc {
	return cloneValue(d).(Doc)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}
