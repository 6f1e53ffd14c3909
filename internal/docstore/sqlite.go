package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/partyledger/internal/diff"
)

// Ensure SQLiteEngine implements Engine.
var _ Engine = (*SQLiteEngine)(nil)

// schema sets up the document tables. Each document keeps a latest
// snapshot; every commit also appends the structural ops to a change log,
// so the incremental history stays available without reloading full
// snapshots.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    change_count INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS document_changes (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id TEXT NOT NULL,
    ops TEXT NOT NULL,
    applied_at INTEGER NOT NULL,
    FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_document_changes_doc_id ON document_changes(doc_id);
`

// SQLiteEngine persists documents in a local SQLite database. Subscribers
// are in-process only; cross-device propagation belongs to the replication
// layer above this file.
type SQLiteEngine struct {
	db *sql.DB

	mu   sync.Mutex
	open map[string]*sqlDoc
}

// NewSQLite opens (or creates) the database at dbPath and bootstraps the
// schema.
func NewSQLite(dbPath string) (*SQLiteEngine, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run schema setup: %w", err)
	}

	return &SQLiteEngine{db: db, open: make(map[string]*sqlDoc)}, nil
}

// Close closes the database connection.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

// Create persists a new document and returns its handle.
func (e *SQLiteEngine) Create(ctx context.Context, initial Doc) (Handle, error) {
	id := uuid.NewString()
	doc := Clone(initial)
	if _, ok := doc["id"]; ok {
		doc["id"] = id
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	now := time.Now().Unix()
	_, err = e.db.ExecContext(ctx,
		"INSERT INTO documents (id, body, created_at, updated_at) VALUES (?, ?, ?, ?)",
		id, string(body), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	d := &sqlDoc{engine: e, id: id, doc: doc, subs: make(map[int]func(Event))}
	e.mu.Lock()
	e.open[id] = d
	e.mu.Unlock()
	return d, nil
}

// Find loads the document with the given id. Repeated finds share one
// handle so subscribers observe each other's commits.
func (e *SQLiteEngine) Find(ctx context.Context, id string) (Handle, error) {
	e.mu.Lock()
	if d, ok := e.open[id]; ok {
		e.mu.Unlock()
		if d.IsDeleted() {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return d, nil
	}
	e.mu.Unlock()

	var body string
	var deleted int
	err := e.db.QueryRowContext(ctx,
		"SELECT body, deleted FROM documents WHERE id = ?", id,
	).Scan(&body, &deleted)
	if err == sql.ErrNoRows || deleted == 1 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var doc Doc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}

	d := &sqlDoc{engine: e, id: id, doc: doc, subs: make(map[int]func(Event))}
	e.mu.Lock()
	// Another Find may have raced us; keep the first handle.
	if existing, ok := e.open[id]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	e.open[id] = d
	e.mu.Unlock()
	return d, nil
}

// Delete marks the document deleted and notifies any open handle.
func (e *SQLiteEngine) Delete(ctx context.Context, id string) error {
	res, err := e.db.ExecContext(ctx,
		"UPDATE documents SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0",
		time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	d := e.open[id]
	delete(e.open, id)
	e.mu.Unlock()

	if d != nil {
		d.mu.Lock()
		d.deleted = true
		subs := d.snapshotSubs()
		d.mu.Unlock()
		notify(subs, Event{Kind: EventDelete, DocID: id})
	}
	return nil
}

type sqlDoc struct {
	engine *SQLiteEngine
	id     string

	mu      sync.Mutex
	doc     Doc
	deleted bool
	subs    map[int]func(Event)
	nextSub int
}

func (d *sqlDoc) ID() string { return d.id }

func (d *sqlDoc) Doc() (Doc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleted {
		return nil, false
	}
	return d.doc, true
}

// Change commits the mutation transactionally: new snapshot plus the
// structural ops that produced it.
func (d *sqlDoc) Change(mutate func(Doc) error) error {
	d.mu.Lock()
	if d.deleted {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, d.id)
	}

	before := Clone(d.doc)
	next := Clone(d.doc)
	if err := mutate(next); err != nil {
		d.mu.Unlock()
		return err
	}
	ops := diff.Compute(before, next)
	if len(ops) == 0 {
		d.mu.Unlock()
		return nil
	}

	if err := d.persist(next, ops); err != nil {
		d.mu.Unlock()
		return err
	}
	d.doc = next
	subs := d.snapshotSubs()
	d.mu.Unlock()

	notify(subs, Event{Kind: EventChange, DocID: d.id})
	return nil
}

func (d *sqlDoc) persist(next Doc, ops []diff.Op) error {
	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	opsJSON, err := json.Marshal(changeRecords(ops))
	if err != nil {
		return fmt.Errorf("failed to encode change ops: %w", err)
	}

	tx, err := d.engine.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.Exec(
		"UPDATE documents SET body = ?, change_count = change_count + 1, updated_at = ? WHERE id = ?",
		string(body), now, d.id,
	); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO document_changes (doc_id, ops, applied_at) VALUES (?, ?, ?)",
		d.id, string(opsJSON), now,
	); err != nil {
		return fmt.Errorf("failed to append change log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *sqlDoc) Subscribe(fn func(Event)) func() {
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

func (d *sqlDoc) IsDeleted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted
}

func (d *sqlDoc) Broadcast(msg any) {
	d.mu.Lock()
	subs := d.snapshotSubs()
	d.mu.Unlock()
	notify(subs, Event{Kind: EventBroadcast, DocID: d.id, Message: msg})
}

func (d *sqlDoc) snapshotSubs() []func(Event) {
	out := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		out = append(out, fn)
	}
	return out
}

// changeRecord is the serialized form of one op in the change log.
type changeRecord struct {
	Path  []string `json:"path"`
	Kind  string   `json:"kind"`
	Value any      `json:"value,omitempty"`
}

func changeRecords(ops []diff.Op) []changeRecord {
	out := make([]changeRecord, len(ops))
	for i, op := range ops {
		out[i] = changeRecord{Path: op.Path, Kind: op.Kind.String(), Value: op.Value}
	}
	return out
}
