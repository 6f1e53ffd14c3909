package ledger

import "fmt"

// NotFoundError aborts an operation that could not locate its party, chunk
// or expense. The failed operation leaves no partial mutation behind.
type NotFoundError struct {
	Kind string // "party", "chunk", "balances", "partyList" or "expense"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
