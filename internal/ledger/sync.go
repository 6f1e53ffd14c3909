package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/partyledger/internal/balance"
	"github.com/mmynk/partyledger/internal/diff"
	"github.com/mmynk/partyledger/internal/docstore"
	"github.com/mmynk/partyledger/internal/metrics"
	"github.com/mmynk/partyledger/internal/models"
	"github.com/mmynk/partyledger/internal/pager"
)

// SyncChunkBalances recomputes the chunk's balances from its current
// expense list and merges only the changed leaves into the stored balances
// document. The whole balances object is never overwritten, so a
// concurrent edit from another device only ever competes on the leaves
// that actually changed.
func (m *Manager) SyncChunkBalances(ctx context.Context, party *models.Party, chunkH docstore.Handle, balancesID string) error {
	chunkDoc, ok := chunkH.Doc()
	if !ok {
		return &NotFoundError{Kind: "chunk", ID: chunkH.ID()}
	}
	chunk, err := models.FromDoc[models.ExpenseChunk](chunkDoc)
	if err != nil {
		return fmt.Errorf("failed to decode chunk %s: %w", chunkH.ID(), err)
	}

	fresh := balance.BalancesForChunk(chunk.Expenses, party.ParticipantIDs())

	balH, err := m.cache.Get(ctx, balancesID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return &NotFoundError{Kind: "balances", ID: balancesID}
		}
		return err
	}
	stored, ok := balH.Doc()
	if !ok {
		return &NotFoundError{Kind: "balances", ID: balancesID}
	}

	freshTree, err := models.ToDoc(models.ExpenseChunkBalances{
		PartyID:  chunk.PartyID,
		Balances: fresh,
	})
	if err != nil {
		return err
	}
	target := docstore.Clone(stored)
	target["partyId"] = freshTree["partyId"]
	target["balances"] = freshTree["balances"]

	ops := diff.Compute(stored, target)
	if len(ops) > 0 {
		err = balH.Change(func(d docstore.Doc) error {
			return diff.Apply(d, ops)
		})
		if err != nil {
			return fmt.Errorf("failed to patch balances %s: %w", balancesID, err)
		}
	}

	metrics.BalanceRecomputes.Inc()
	m.log.Debug("chunk balances synchronized", "chunk", chunkH.ID(), "balances", balancesID, "ops", len(ops))
	return nil
}

// RecalculateAllBalances walks every chunk of the party newest-first and
// resynchronizes each paired balances document. Used after participant
// changes and as a repair tool.
func (m *Manager) RecalculateAllBalances(ctx context.Context, partyID string) error {
	_, party, err := m.party(ctx, partyID)
	if err != nil {
		return err
	}

	byChunk := make(map[string]string, len(party.ChunkRefs))
	ids := make([]string, len(party.ChunkRefs))
	for i, ref := range party.ChunkRefs {
		ids[i] = ref.ChunkID
		byChunk[ref.ChunkID] = ref.BalancesID
	}

	cursor := pager.NewCursor(m.cache, ids)
	for cursor.HasNext() {
		chunkH, err := cursor.Next(ctx)
		if err != nil {
			return err
		}
		if err := m.SyncChunkBalances(ctx, party, chunkH, byChunk[chunkH.ID()]); err != nil {
			return err
		}
	}
	return nil
}

// TotalBalances merges every chunk's stored balances into the party-wide
// view. Chunks already loaded are not refetched; the merge is what keeps
// total-balance cost proportional to the number of chunks, not the number
// of expenses.
func (m *Manager) TotalBalances(ctx context.Context, partyID string) (map[string]models.Balance, error) {
	_, party, err := m.party(ctx, partyID)
	if err != nil {
		return nil, err
	}

	sets := make([]map[string]models.Balance, 0, len(party.ChunkRefs))
	for _, ref := range party.ChunkRefs {
		h, err := m.cache.Get(ctx, ref.BalancesID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, &NotFoundError{Kind: "balances", ID: ref.BalancesID}
			}
			return nil, err
		}
		doc, ok := h.Doc()
		if !ok {
			return nil, &NotFoundError{Kind: "balances", ID: ref.BalancesID}
		}
		b, err := models.FromDoc[models.ExpenseChunkBalances](doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode balances %s: %w", ref.BalancesID, err)
		}
		sets = append(sets, b.Balances)
	}
	return balance.Merge(sets...), nil
}
