// Package ledger owns expense placement: which chunk an expense lands in,
// when a chunk rolls over, and how mutations are written back as minimal
// structural patches. Every mutation ends by resynchronizing the affected
// chunk's balances document; a failed resync fails the whole operation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mmynk/partyledger/internal/diff"
	"github.com/mmynk/partyledger/internal/docstore"
	"github.com/mmynk/partyledger/internal/metrics"
	"github.com/mmynk/partyledger/internal/models"
	"github.com/mmynk/partyledger/internal/pager"
	"github.com/mmynk/partyledger/internal/validate"
)

// Manager is the only writer of chunk and chunk-balances documents.
type Manager struct {
	engine docstore.Engine
	cache  *pager.Cache
	log    *slog.Logger
}

// NewManager wires a chunk manager over the engine and read cache.
func NewManager(engine docstore.Engine, cache *pager.Cache, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{engine: engine, cache: cache, log: log}
}

// CreateExpense validates the input, places the expense at the head of the
// party's open chunk (allocating a fresh chunk and paired balances document
// when none is open or the open one is full), and resynchronizes balances.
func (m *Manager) CreateExpense(ctx context.Context, partyID string, in models.ExpenseInput) (*models.Expense, error) {
	partyH, party, err := m.party(ctx, partyID)
	if err != nil {
		return nil, err
	}

	// Fail fast: nothing below runs against an invalid input.
	if err := validate.ExpenseInput(in, party.Participants); err != nil {
		return nil, err
	}

	chunkH, ref, err := m.openChunk(ctx, partyH, party)
	if err != nil {
		return nil, err
	}

	id, err := MintExpenseID(chunkH.ID())
	if err != nil {
		return nil, err
	}
	expense := expenseFromInput(in, id)
	expense.Hash = ContentHash(expense)

	tree, err := models.ToDoc(expense)
	if err != nil {
		return nil, err
	}
	err = chunkH.Change(func(d docstore.Doc) error {
		existing, _ := d["expenses"].([]any)
		d["expenses"] = append([]any{any(tree)}, existing...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := m.SyncChunkBalances(ctx, party, chunkH, ref.BalancesID); err != nil {
		return nil, err
	}

	metrics.ExpensesCreated.Inc()
	m.log.Debug("expense created", "party", partyID, "chunk", chunkH.ID(), "expense", expense.ID)
	return &expense, nil
}

// UpdateExpense locates the owning chunk from the identifier and applies
// only the structural delta between the stored and incoming expense. Any
// pending edit state is cleared on success.
func (m *Manager) UpdateExpense(ctx context.Context, partyID string, e models.Expense) (*models.Expense, error) {
	_, party, err := m.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	_, chunkID, err := validate.ExpenseID(e.ID)
	if err != nil {
		return nil, err
	}
	ref, ok := findRef(party, chunkID)
	if !ok {
		return nil, &NotFoundError{Kind: "chunk", ID: chunkID}
	}

	chunkH, chunk, err := m.chunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	stored, idx, ok := FindExpenseByID(chunk.Expenses, e.ID)
	if !ok {
		return nil, &NotFoundError{Kind: "expense", ID: e.ID}
	}

	incoming := e
	incoming.Edit = nil
	incoming.Hash = ContentHash(incoming)

	baseTree, err := models.ToDoc(stored)
	if err != nil {
		return nil, err
	}
	targetTree, err := models.ToDoc(incoming)
	if err != nil {
		return nil, err
	}
	ops := diff.Prefix([]string{"expenses", strconv.Itoa(idx)}, diff.Compute(baseTree, targetTree))
	if len(ops) > 0 {
		err = chunkH.Change(func(d docstore.Doc) error {
			return diff.Apply(d, ops)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to patch expense: %w", err)
		}
	}

	if err := m.SyncChunkBalances(ctx, party, chunkH, ref.BalancesID); err != nil {
		return nil, err
	}
	m.log.Debug("expense updated", "party", partyID, "expense", e.ID, "ops", len(ops))
	return &incoming, nil
}

// DeleteExpense removes the entry matching the identifier and
// resynchronizes the chunk's balances.
func (m *Manager) DeleteExpense(ctx context.Context, partyID, expenseID string) error {
	_, party, err := m.party(ctx, partyID)
	if err != nil {
		return err
	}
	_, chunkID, err := validate.ExpenseID(expenseID)
	if err != nil {
		return err
	}
	ref, ok := findRef(party, chunkID)
	if !ok {
		return &NotFoundError{Kind: "chunk", ID: chunkID}
	}

	chunkH, chunk, err := m.chunk(ctx, chunkID)
	if err != nil {
		return err
	}
	_, idx, ok := FindExpenseByID(chunk.Expenses, expenseID)
	if !ok {
		return &NotFoundError{Kind: "expense", ID: expenseID}
	}

	err = chunkH.Change(func(d docstore.Doc) error {
		existing, _ := d["expenses"].([]any)
		if idx >= len(existing) {
			return fmt.Errorf("expense slot %d out of range", idx)
		}
		d["expenses"] = append(existing[:idx], existing[idx+1:]...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove expense: %w", err)
	}

	if err := m.SyncChunkBalances(ctx, party, chunkH, ref.BalancesID); err != nil {
		return err
	}
	m.log.Debug("expense deleted", "party", partyID, "expense", expenseID)
	return nil
}

// OpenChunkID returns the id of the chunk currently accepting inserts, or
// "" when the next expense will allocate a fresh chunk. The pagination
// cursor starts from the same position: chunk refs are stored newest-first
// and the open chunk, when there is one, is refs[0].
func (m *Manager) OpenChunkID(ctx context.Context, partyID string) (string, error) {
	_, party, err := m.party(ctx, partyID)
	if err != nil {
		return "", err
	}
	if len(party.ChunkRefs) == 0 {
		return "", nil
	}
	_, chunk, err := m.chunk(ctx, party.ChunkRefs[0].ChunkID)
	if err != nil {
		return "", err
	}
	if chunk.Full() {
		return "", nil
	}
	return party.ChunkRefs[0].ChunkID, nil
}

// openChunk selects the party's open chunk, allocating a new chunk plus
// its paired balances document when there is none or the current one has
// reached capacity. Once closed, a chunk is never reopened for insertion.
func (m *Manager) openChunk(ctx context.Context, partyH docstore.Handle, party *models.Party) (docstore.Handle, models.ChunkRef, error) {
	if len(party.ChunkRefs) > 0 {
		ref := party.ChunkRefs[0]
		chunkH, chunk, err := m.chunk(ctx, ref.ChunkID)
		if err != nil {
			return nil, models.ChunkRef{}, err
		}
		if !chunk.Full() {
			return chunkH, ref, nil
		}
	}

	balTree, err := models.ToDoc(models.ExpenseChunkBalances{
		PartyID:  party.ID,
		Balances: map[string]models.Balance{},
	})
	if err != nil {
		return nil, models.ChunkRef{}, err
	}
	balH, err := m.engine.Create(ctx, balTree)
	if err != nil {
		return nil, models.ChunkRef{}, fmt.Errorf("failed to create balances document: %w", err)
	}

	chunkTree, err := models.ToDoc(models.ExpenseChunk{
		PartyID:  party.ID,
		Capacity: models.ChunkCapacity,
		Expenses: []models.Expense{},
	})
	if err != nil {
		return nil, models.ChunkRef{}, err
	}
	chunkH, err := m.engine.Create(ctx, chunkTree)
	if err != nil {
		return nil, models.ChunkRef{}, fmt.Errorf("failed to create chunk document: %w", err)
	}

	ref := models.ChunkRef{
		ChunkID:    chunkH.ID(),
		CreatedAt:  time.Now().UnixMilli(),
		BalancesID: balH.ID(),
	}
	refTree, err := models.ToDoc(ref)
	if err != nil {
		return nil, models.ChunkRef{}, err
	}
	err = partyH.Change(func(d docstore.Doc) error {
		existing, _ := d["chunkRefs"].([]any)
		d["chunkRefs"] = append([]any{any(refTree)}, existing...)
		return nil
	})
	if err != nil {
		return nil, models.ChunkRef{}, fmt.Errorf("failed to register chunk ref: %w", err)
	}
	party.ChunkRefs = append([]models.ChunkRef{ref}, party.ChunkRefs...)

	m.log.Info("chunk allocated", "party", party.ID, "chunk", ref.ChunkID, "balances", ref.BalancesID)
	return chunkH, ref, nil
}

// party loads and decodes a party document through the cache.
func (m *Manager) party(ctx context.Context, partyID string) (docstore.Handle, *models.Party, error) {
	h, err := m.cache.Get(ctx, partyID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, &NotFoundError{Kind: "party", ID: partyID}
		}
		return nil, nil, err
	}
	doc, ok := h.Doc()
	if !ok {
		return nil, nil, &NotFoundError{Kind: "party", ID: partyID}
	}
	party, err := models.FromDoc[models.Party](doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode party %s: %w", partyID, err)
	}
	return h, party, nil
}

// chunk loads and decodes a chunk document through the cache.
func (m *Manager) chunk(ctx context.Context, chunkID string) (docstore.Handle, *models.ExpenseChunk, error) {
	h, err := m.cache.Get(ctx, chunkID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, &NotFoundError{Kind: "chunk", ID: chunkID}
		}
		return nil, nil, err
	}
	doc, ok := h.Doc()
	if !ok {
		return nil, nil, &NotFoundError{Kind: "chunk", ID: chunkID}
	}
	chunk, err := models.FromDoc[models.ExpenseChunk](doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode chunk %s: %w", chunkID, err)
	}
	return h, chunk, nil
}

func findRef(party *models.Party, chunkID string) (models.ChunkRef, bool) {
	for _, ref := range party.ChunkRefs {
		if ref.ChunkID == chunkID {
			return ref, true
		}
	}
	return models.ChunkRef{}, false
}

func expenseFromInput(in models.ExpenseInput, id string) models.Expense {
	paidBy := make(map[string]int64, len(in.PaidBy))
	for pid, cents := range in.PaidBy {
		paidBy[pid] = int64(cents)
	}
	shares := make(map[string]models.Share, len(in.Shares))
	for pid, s := range in.Shares {
		switch s.Kind {
		case models.ShareExact:
			shares[pid] = models.Exact(int64(s.Value))
		case models.ShareDivide:
			shares[pid] = models.Divide(int64(s.Value))
		}
	}
	return models.Expense{
		ID:       id,
		Name:     in.Name,
		PaidAt:   in.PaidAt,
		PaidBy:   paidBy,
		Shares:   shares,
		Transfer: in.Transfer,
		MediaIDs: in.MediaIDs,
	}
}
