// Package validate holds pure predicates over user-supplied ledger fields.
// Every function returns an error token (or nil); nothing here panics and
// nothing here touches a document. Callers check these before any mutation
// so a failed validation never leaves partial state behind.
package validate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mmynk/partyledger/internal/models"
)

// Error tokens. Callers match with errors.Is.
var (
	ErrEmptyTitle         = errors.New("title must not be empty")
	ErrNonIntegerAmount   = errors.New("amount is not an integer number of cents")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrUnknownShareKind   = errors.New("share kind must be exact or divide")
	ErrNoPayer            = errors.New("expense needs at least one payer")
	ErrNoShares           = errors.New("expense needs at least one share")
	ErrUnknownParticipant = errors.New("participant is not a member of the party")
	ErrMalformedID        = errors.New("malformed expense identifier")
	ErrDuplicateID        = errors.New("participant id already exists in the party")
)

// Title checks a user-visible name.
func Title(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// IntegerCents reports whether a user-supplied monetary value is a whole,
// non-negative number of cents.
func IntegerCents(v float64) error {
	if v != math.Trunc(v) || math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrNonIntegerAmount
	}
	if v < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// ExpenseID splits an expense identifier into its time-sortable token and
// owning chunk id, rejecting malformed values.
func ExpenseID(id string) (token, chunkID string, err error) {
	token, chunkID, ok := strings.Cut(id, ":")
	if !ok || token == "" || chunkID == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	return token, chunkID, nil
}

// ExpenseInput validates a full expense payload against a party's
// participant set. It is the fail-fast gate in front of createExpense.
func ExpenseInput(in models.ExpenseInput, participants map[string]models.Participant) error {
	if err := Title(in.Name); err != nil {
		return err
	}
	if len(in.PaidBy) == 0 {
		return ErrNoPayer
	}
	if len(in.Shares) == 0 {
		return ErrNoShares
	}
	for id, cents := range in.PaidBy {
		if _, ok := participants[id]; !ok {
			return fmt.Errorf("%w: payer %q", ErrUnknownParticipant, id)
		}
		if err := IntegerCents(cents); err != nil {
			return fmt.Errorf("paidBy[%s]: %w", id, err)
		}
	}
	for id, share := range in.Shares {
		if _, ok := participants[id]; !ok {
			return fmt.Errorf("%w: share holder %q", ErrUnknownParticipant, id)
		}
		switch share.Kind {
		case models.ShareExact, models.ShareDivide:
		default:
			return fmt.Errorf("%w: shares[%s]", ErrUnknownShareKind, id)
		}
		if err := IntegerCents(share.Value); err != nil {
			return fmt.Errorf("shares[%s]: %w", id, err)
		}
	}
	return nil
}

// NewParticipant checks that a participant can be added to the party.
func NewParticipant(p models.Participant, existing map[string]models.Participant) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrMalformedID)
	}
	if err := Title(p.Name); err != nil {
		return err
	}
	if _, ok := existing[p.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, p.ID)
	}
	return nil
}
