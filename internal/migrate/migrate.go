// Package migrate moves persisted documents between schema versions.
//
// The registry is an explicit object populated at startup and read-only
// afterwards; there is no process-wide mutable state. Transforms are pure
// functions over document trees, registered per model type with contiguous
// from/to version pairs. The runner resolves a chain from a document's
// version to the current one and applies it in order, or fails with a
// typed error when the document is newer than this build or no contiguous
// chain exists.
package migrate

import (
	"fmt"
	"sort"

	"github.com/mmynk/partyledger/internal/diff"
	"github.com/mmynk/partyledger/internal/docstore"
	"github.com/mmynk/partyledger/internal/metrics"
)

// Model names used to key registered migrations.
const (
	ModelParty     = "party"
	ModelChunk     = "expenseChunk"
	ModelBalances  = "expenseChunkBalances"
	ModelPartyList = "partyList"
)

// Transform is one pure migration step. It must return a new or updated
// tree and must not keep references into its input.
type Transform func(docstore.Doc) (docstore.Doc, error)

// Migration is a registered step.
type Migration struct {
	Model string
	From  int
	To    int
	Apply Transform
}

// Registry holds registered migrations keyed by model type.
type Registry struct {
	byModel map[string][]Migration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byModel: make(map[string][]Migration)}
}

// Register adds a step. Steps must advance exactly to a higher version and
// at most one step may leave any given version.
func (r *Registry) Register(model string, from, to int, fn Transform) error {
	if to <= from {
		return fmt.Errorf("migration %s %d->%d does not move forward", model, from, to)
	}
	if fn == nil {
		return fmt.Errorf("migration %s %d->%d has no transform", model, from, to)
	}
	for _, m := range r.byModel[model] {
		if m.From == from {
			return fmt.Errorf("migration %s already has a step from version %d", model, from)
		}
	}
	r.byModel[model] = append(r.byModel[model], Migration{Model: model, From: from, To: to, Apply: fn})
	sort.Slice(r.byModel[model], func(i, j int) bool {
		return r.byModel[model][i].From < r.byModel[model][j].From
	})
	return nil
}

// Chain resolves the ordered steps connecting from to to, contiguously.
func (r *Registry) Chain(model string, from, to int) ([]Migration, error) {
	var chain []Migration
	v := from
	for v < to {
		next, ok := r.stepFrom(model, v)
		if !ok || next.To > to {
			return nil, &NoPathError{Model: model, From: from, To: to, StuckAt: v}
		}
		chain = append(chain, next)
		v = next.To
	}
	return chain, nil
}

func (r *Registry) stepFrom(model string, v int) (Migration, bool) {
	for _, m := range r.byModel[model] {
		if m.From == v {
			return m, true
		}
	}
	return Migration{}, false
}

// Version reads a document's schema version; absent means 0.
func Version(doc docstore.Doc) int {
	switch v := doc["schemaVersion"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// SetSchemaVersion stamps a document tree. Versions never regress; callers
// only move them forward.
func SetSchemaVersion(doc docstore.Doc, v int) {
	doc["schemaVersion"] = float64(v)
}

// Runner applies registered chains against the current version per model.
type Runner struct {
	reg     *Registry
	current map[string]int
}

// NewRunner builds a runner over a populated registry. current maps model
// type to the schema version this build writes.
func NewRunner(reg *Registry, current map[string]int) *Runner {
	return &Runner{reg: reg, current: current}
}

// CurrentVersion returns the version this build writes for model.
func (r *Runner) CurrentVersion(model string) int {
	return r.current[model]
}

// MigrateDocument migrates a document tree to the current version for its
// model. It returns the migrated tree and the number of steps applied; the
// input tree is never mutated. A document newer than this build fails with
// VersionMismatchError rather than being silently coerced.
func (r *Runner) MigrateDocument(model string, doc docstore.Doc) (docstore.Doc, int, error) {
	current := r.current[model]
	v := Version(doc)

	if v > current {
		return nil, 0, &VersionMismatchError{Model: model, DocVersion: v, CurrentVersion: current}
	}
	if v == current {
		return doc, 0, nil
	}

	chain, err := r.reg.Chain(model, v, current)
	if err != nil {
		return nil, 0, err
	}

	out := docstore.Clone(doc)
	steps := 0
	for _, m := range chain {
		next, err := m.Apply(out)
		if err != nil {
			return nil, steps, &StepError{Model: model, From: m.From, To: m.To, Err: err}
		}
		out = next
		SetSchemaVersion(out, m.To)
		steps++
		metrics.MigrationSteps.WithLabelValues(model).Inc()
	}
	return out, steps, nil
}

// MigrateIfNeeded migrates the handle's document in place when it is
// stale, writing only the structural delta. Returns the number of steps
// applied (0 when already current).
func (r *Runner) MigrateIfNeeded(h docstore.Handle, model string) (int, error) {
	doc, ok := h.Doc()
	if !ok {
		return 0, fmt.Errorf("%w: %s", docstore.ErrNotFound, h.ID())
	}
	migrated, steps, err := r.MigrateDocument(model, doc)
	if err != nil || steps == 0 {
		return steps, err
	}

	err = h.Change(func(d docstore.Doc) error {
		return diff.Apply(d, diff.Compute(d, migrated))
	})
	if err != nil {
		return steps, fmt.Errorf("failed to write migrated %s: %w", model, err)
	}
	return steps, nil
}
