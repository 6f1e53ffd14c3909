package models

// Balance is one participant's net position, scoped to whatever expense set
// it was computed from (a single chunk, or a merge of chunks).
type Balance struct {
	// OwedToUser is the total others owe this participant, in cents.
	OwedToUser int64 `json:"owedToUser"`

	// UserOwes is the total this participant owes others, in cents.
	UserOwes int64 `json:"userOwes"`

	// Differences maps counterparty id to the net difference with that
	// counterparty. Positive means the counterparty owes this participant.
	Differences map[string]int64 `json:"differences"`

	// Balance is OwedToUser - UserOwes.
	Balance int64 `json:"balance"`

	// VisualRatio is Balance normalized to the largest absolute balance
	// among all participants, in [-1, 1]. Zero when every balance is zero.
	// Exists purely for proportional UI rendering.
	VisualRatio float64 `json:"visualRatio"`
}

// ExpenseChunkBalances is the precomputed balances document paired with one
// expense chunk. Totals across chunks are produced by an associative merge,
// never by recomputing from full history.
type ExpenseChunkBalances struct {
	SchemaVersion int                `json:"schemaVersion,omitempty"`
	PartyID       string             `json:"partyId"`
	Balances      map[string]Balance `json:"balances"`
}

// Transaction is a proposed settlement payment reducing outstanding
// balances. Amount is negative: it is the change applied to the debt.
type Transaction struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}
