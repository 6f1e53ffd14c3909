package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/partyledger/internal/models"
)

// MintExpenseID builds "<time-sortable-token>:<chunk-id>". The token is a
// UUIDv7, whose string form sorts lexicographically by creation time, so a
// chunk kept newest-first stays binary-searchable on the raw id. NewV7 only
// fails when the random source does, and no token can be minted without
// one, so the error aborts the write.
func MintExpenseID(chunkID string) (string, error) {
	token, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to mint expense id: %w", err)
	}
	return token.String() + ":" + chunkID, nil
}

// tokenOf returns the time-sortable component of an expense id.
func tokenOf(id string) string {
	token, _, _ := strings.Cut(id, ":")
	return token
}

// FindExpenseByID binary-searches a chunk's expense list, which is ordered
// descending by the id's time-sortable token. Returns the expense, its
// index, and true; or the zero expense, -1, false when absent. O(log n).
func FindExpenseByID(expenses []models.Expense, id string) (models.Expense, int, bool) {
	target := tokenOf(id)
	i := sort.Search(len(expenses), func(i int) bool {
		return tokenOf(expenses[i].ID) <= target
	})
	for ; i < len(expenses) && tokenOf(expenses[i].ID) == target; i++ {
		if expenses[i].ID == id {
			return expenses[i], i, true
		}
	}
	return models.Expense{}, -1, false
}
