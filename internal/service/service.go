// Package service exposes the ledger's operation surface to callers: party
// and participant management, expense CRUD delegating to the chunk
// manager, balance queries, and the migration entry points. Presentation
// code never touches documents directly; everything shared goes through
// here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/partyledger/internal/balance"
	"github.com/mmynk/partyledger/internal/diff"
	"github.com/mmynk/partyledger/internal/docstore"
	"github.com/mmynk/partyledger/internal/ledger"
	"github.com/mmynk/partyledger/internal/migrate"
	"github.com/mmynk/partyledger/internal/models"
	"github.com/mmynk/partyledger/internal/pager"
	"github.com/mmynk/partyledger/internal/validate"
)

// Service is the device-local entry point to a replicated ledger.
type Service struct {
	engine docstore.Engine
	cache  *pager.Cache
	mgr    *ledger.Manager

	registry *migrate.Registry
	versions map[string]int
	runner   *migrate.Runner

	partyListID string
	log         *slog.Logger
}

// New builds a service over the given document engine. The migration
// registry starts empty; populate it with RegisterMigration at startup,
// before any document is loaded.
func New(engine docstore.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	cache := pager.NewCache(engine)
	registry := migrate.NewRegistry()
	versions := map[string]int{}
	return &Service{
		engine:   engine,
		cache:    cache,
		mgr:      ledger.NewManager(engine, cache, log),
		registry: registry,
		versions: versions,
		runner:   migrate.NewRunner(registry, versions),
		log:      log,
	}
}

// Cache exposes the read-through cache, e.g. for wiring an invalidation
// hook into a UI layer.
func (s *Service) Cache() *pager.Cache { return s.cache }

// RegisterMigration adds a migration step and raises the version this
// build writes for the model to the step's target. Call only at startup;
// the registry is read-only afterwards.
func (s *Service) RegisterMigration(model string, from, to int, fn migrate.Transform) error {
	if err := s.registry.Register(model, from, to, fn); err != nil {
		return err
	}
	if to > s.versions[model] {
		s.versions[model] = to
	}
	return nil
}

// MigrateDocument migrates a raw document tree for the given model type.
func (s *Service) MigrateDocument(model string, doc docstore.Doc) (docstore.Doc, int, error) {
	return s.runner.MigrateDocument(model, doc)
}

// MigrateIfNeeded migrates the identified document in place when stale.
func (s *Service) MigrateIfNeeded(ctx context.Context, id, model string) (int, error) {
	h, err := s.cache.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.runner.MigrateIfNeeded(h, model)
}

// SetSchemaVersion stamps a document tree; see migrate.SetSchemaVersion.
func (s *Service) SetSchemaVersion(doc docstore.Doc, v int) {
	migrate.SetSchemaVersion(doc, v)
}

// AttachPartyList adopts an existing party list document, so appends after
// a process restart land on the device's list instead of allocating a new
// one. The id comes from the caller (config or the host platform); the
// engine assigns document ids, so there is no well-known id to look up.
func (s *Service) AttachPartyList(ctx context.Context, id string) error {
	h, err := s.cache.Get(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return &ledger.NotFoundError{Kind: "partyList", ID: id}
		}
		return err
	}
	if _, err := s.runner.MigrateIfNeeded(h, migrate.ModelPartyList); err != nil {
		return err
	}
	doc, ok := h.Doc()
	if !ok {
		return &ledger.NotFoundError{Kind: "partyList", ID: id}
	}
	if _, err := models.FromDoc[models.PartyList](doc); err != nil {
		return fmt.Errorf("failed to decode party list %s: %w", id, err)
	}
	s.partyListID = id
	return nil
}

// CreateParty creates the party document and registers it on the device's
// party list.
func (s *Service) CreateParty(ctx context.Context, in models.PartyInput) (*models.Party, error) {
	if err := validate.Title(in.Name); err != nil {
		return nil, err
	}
	participants := make(map[string]models.Participant, len(in.Participants))
	for _, p := range in.Participants {
		if err := validate.NewParticipant(p, participants); err != nil {
			return nil, err
		}
		participants[p.ID] = p
	}

	party := models.Party{
		ID:            "", // assigned by the engine
		Name:          in.Name,
		Currency:      in.Currency,
		Participants:  participants,
		ChunkRefs:     []models.ChunkRef{},
		SchemaVersion: s.versions[migrate.ModelParty],
	}
	tree, err := models.ToDoc(party)
	if err != nil {
		return nil, err
	}
	h, err := s.engine.Create(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to create party: %w", err)
	}
	party.ID = h.ID()

	if err := s.appendToPartyList(ctx, party.ID); err != nil {
		return nil, err
	}
	s.log.Info("party created", "party", party.ID, "participants", len(participants))
	return &party, nil
}

// UpdateParty patches the stored party with the structural delta to the
// incoming value. Chunk refs are owned by the chunk manager and are not
// touched here.
func (s *Service) UpdateParty(ctx context.Context, p models.Party) error {
	h, stored, err := s.getParty(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := validate.Title(p.Name); err != nil {
		return err
	}

	incoming := *stored
	incoming.Name = p.Name
	incoming.Currency = p.Currency

	return s.patchParty(h, stored, &incoming)
}

// AddParticipant adds a new member. Participant ids are unique within a
// party.
func (s *Service) AddParticipant(ctx context.Context, partyID string, p models.Participant) error {
	h, stored, err := s.getParty(ctx, partyID)
	if err != nil {
		return err
	}
	if err := validate.NewParticipant(p, stored.Participants); err != nil {
		return err
	}

	incoming := *stored
	incoming.Participants = make(map[string]models.Participant, len(stored.Participants)+1)
	for id, existing := range stored.Participants {
		incoming.Participants[id] = existing
	}
	incoming.Participants[p.ID] = p

	if err := s.patchParty(h, stored, &incoming); err != nil {
		return err
	}
	s.log.Info("participant added", "party", partyID, "participant", p.ID)
	return nil
}

// UpdateParticipant patches one member's fields.
func (s *Service) UpdateParticipant(ctx context.Context, partyID string, p models.Participant) error {
	h, stored, err := s.getParty(ctx, partyID)
	if err != nil {
		return err
	}
	if _, ok := stored.Participants[p.ID]; !ok {
		return fmt.Errorf("%w: %q", validate.ErrUnknownParticipant, p.ID)
	}
	if err := validate.Title(p.Name); err != nil {
		return err
	}

	incoming := *stored
	incoming.Participants = make(map[string]models.Participant, len(stored.Participants))
	for id, existing := range stored.Participants {
		incoming.Participants[id] = existing
	}
	incoming.Participants[p.ID] = p

	return s.patchParty(h, stored, &incoming)
}

// CreateExpense delegates to the chunk manager.
func (s *Service) CreateExpense(ctx context.Context, partyID string, in models.ExpenseInput) (*models.Expense, error) {
	return s.mgr.CreateExpense(ctx, partyID, in)
}

// UpdateExpense delegates to the chunk manager.
func (s *Service) UpdateExpense(ctx context.Context, partyID string, e models.Expense) (*models.Expense, error) {
	return s.mgr.UpdateExpense(ctx, partyID, e)
}

// DeleteExpense delegates to the chunk manager.
func (s *Service) DeleteExpense(ctx context.Context, partyID, expenseID string) error {
	return s.mgr.DeleteExpense(ctx, partyID, expenseID)
}

// RecalculateAllBalances resynchronizes every chunk's balances document.
func (s *Service) RecalculateAllBalances(ctx context.Context, partyID string) error {
	return s.mgr.RecalculateAllBalances(ctx, partyID)
}

// TotalBalances merges all chunk balances into the party-wide view.
func (s *Service) TotalBalances(ctx context.Context, partyID string) (map[string]models.Balance, error) {
	return s.mgr.TotalBalances(ctx, partyID)
}

// OpenChunkID exposes the chunk manager's open-chunk selection.
func (s *Service) OpenChunkID(ctx context.Context, partyID string) (string, error) {
	return s.mgr.OpenChunkID(ctx, partyID)
}

// getParty loads a party through the cache, migrating stale documents
// before decoding.
func (s *Service) getParty(ctx context.Context, partyID string) (docstore.Handle, *models.Party, error) {
	h, err := s.cache.Get(ctx, partyID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil, &ledger.NotFoundError{Kind: "party", ID: partyID}
		}
		return nil, nil, err
	}
	if _, err := s.runner.MigrateIfNeeded(h, migrate.ModelParty); err != nil {
		return nil, nil, err
	}
	doc, ok := h.Doc()
	if !ok {
		return nil, nil, &ledger.NotFoundError{Kind: "party", ID: partyID}
	}
	party, err := models.FromDoc[models.Party](doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode party %s: %w", partyID, err)
	}
	return h, party, nil
}

// patchParty writes only the delta between stored and incoming.
func (s *Service) patchParty(h docstore.Handle, stored, incoming *models.Party) error {
	baseTree, err := models.ToDoc(stored)
	if err != nil {
		return err
	}
	targetTree, err := models.ToDoc(incoming)
	if err != nil {
		return err
	}
	ops := diff.Compute(baseTree, targetTree)
	if len(ops) == 0 {
		return nil
	}
	return h.Change(func(d docstore.Doc) error {
		return diff.Apply(d, ops)
	})
}

// appendToPartyList creates the device's party list on first use and
// appends the new id.
func (s *Service) appendToPartyList(ctx context.Context, partyID string) error {
	if s.partyListID == "" {
		tree, err := models.ToDoc(models.PartyList{PartyIDs: []string{partyID}})
		if err != nil {
			return err
		}
		h, err := s.engine.Create(ctx, tree)
		if err != nil {
			return fmt.Errorf("failed to create party list: %w", err)
		}
		s.partyListID = h.ID()
		return nil
	}

	h, err := s.cache.Get(ctx, s.partyListID)
	if err != nil {
		return err
	}
	return h.Change(func(d docstore.Doc) error {
		ids, _ := d["partyIds"].([]any)
		d["partyIds"] = append(ids, any(partyID))
		return nil
	})
}

// PartyListID returns the device's party list document id ("" until the
// first party is created).
func (s *Service) PartyListID() string { return s.partyListID }

// Pure computation surface, re-exported so callers need only this package.

// CalculateBalancesByParticipant computes balances for one expense list.
func CalculateBalancesByParticipant(expenses []models.Expense, participants []string) map[string]models.Balance {
	return balance.BalancesForChunk(expenses, participants)
}

// SimplifyBalanceTransactions reduces balances to settlement transactions.
func SimplifyBalanceTransactions(balances map[string]models.Balance) []models.Transaction {
	return balance.Simplify(balances)
}

// MergeBalancesByParticipant merges chunk-scoped balance sets.
func MergeBalancesByParticipant(sets ...map[string]models.Balance) map[string]models.Balance {
	return balance.Merge(sets...)
}

// GetImpactOnBalanceForUser returns one expense's effect on a user's net.
func GetImpactOnBalanceForUser(user string, e models.Expense) int64 {
	return balance.ImpactOnBalanceForUser(user, e)
}
