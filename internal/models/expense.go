package models

// ChunkCapacity is the fixed number of expenses a chunk accepts before it
// closes to new inserts. Existing entries may still be edited or removed.
const ChunkCapacity = 500

// ExpenseChunk is a bounded segment of a party's expense history.
// Expenses are ordered newest-first.
type ExpenseChunk struct {
	SchemaVersion int    `json:"schemaVersion,omitempty"`
	PartyID       string `json:"partyId"`

	// Capacity is recorded on the document so older chunks keep the
	// capacity they were created with.
	Capacity int `json:"capacity"`

	Expenses []Expense `json:"expenses"`
}

// Full reports whether the chunk is closed to new inserts.
func (c *ExpenseChunk) Full() bool {
	cap := c.Capacity
	if cap == 0 {
		cap = ChunkCapacity
	}
	return len(c.Expenses) >= cap
}

// Expense is a single entry in a chunk. Its identifier is
// "<time-sortable-token>:<chunk-doc-id>", so the owning chunk can always be
// recovered from the id alone.
type Expense struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	PaidAt int64  `json:"paidAt"`

	// PaidBy maps participant id to the integer cents that participant
	// put in. Usually a single entry.
	PaidBy map[string]int64 `json:"paidBy"`

	// Shares maps participant id to that participant's share of the
	// expense.
	Shares map[string]Share `json:"shares"`

	// Transfer marks a settlement payment rather than a purchase.
	Transfer bool `json:"transfer,omitempty"`

	// MediaIDs lists attached receipt images and the like.
	MediaIDs []string `json:"mediaIds,omitempty"`

	// Hash is a fast non-cryptographic digest over the stable fields,
	// used for conflict hinting only.
	Hash string `json:"hash,omitempty"`

	// Edit, when non-nil, holds an optimistic in-progress edit. It is
	// cleared on successful commit; a nil Edit means committed state.
	Edit *PendingEdit `json:"edit,omitempty"`
}

// PendingEdit is the explicit tagged form of an uncommitted edit: the draft
// the user is working on plus the hash of the committed baseline it started
// from.
type PendingEdit struct {
	Draft        *Expense `json:"draft"`
	BaselineHash string   `json:"baselineHash"`
}

// ShareKind discriminates the Share variant.
type ShareKind string

const (
	// ShareExact is a fixed amount in cents.
	ShareExact ShareKind = "exact"
	// ShareDivide is a proportional weight over the remainder after all
	// exact shares are taken out.
	ShareDivide ShareKind = "divide"
)

// Share is a tagged variant: exact{amount} or divide{units, derivedAmount?}.
type Share struct {
	Kind ShareKind `json:"kind"`

	// Amount is the fixed cents for an exact share.
	Amount int64 `json:"amount,omitempty"`

	// Units is the proportional weight for a divide share.
	Units int64 `json:"units,omitempty"`

	// DerivedAmount caches the cents a divide share resolved to the last
	// time balances were computed. Display only.
	DerivedAmount *int64 `json:"derivedAmount,omitempty"`
}

// Exact builds a fixed-amount share.
func Exact(cents int64) Share { return Share{Kind: ShareExact, Amount: cents} }

// Divide builds a proportional share.
func Divide(units int64) Share { return Share{Kind: ShareDivide, Units: units} }
