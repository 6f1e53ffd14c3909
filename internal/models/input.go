package models

// Inputs carry user-supplied values before validation. Monetary fields are
// float64 on purpose: values arrive from UI layers and JSON, and the
// validation package rejects anything that is not a whole number of cents
// before an input is ever turned into a persisted model.

// ExpenseInput is the payload for creating an expense.
type ExpenseInput struct {
	Name     string                `json:"name"`
	PaidAt   int64                 `json:"paidAt"`
	PaidBy   map[string]float64    `json:"paidBy"`
	Shares   map[string]ShareInput `json:"shares"`
	Transfer bool                  `json:"transfer,omitempty"`
	MediaIDs []string              `json:"mediaIds,omitempty"`
}

// ShareInput is the unvalidated form of a Share. Value is cents for an
// exact share and units for a divide share.
type ShareInput struct {
	Kind  ShareKind `json:"kind"`
	Value float64   `json:"value"`
}

// PartyInput is the payload for creating a party.
type PartyInput struct {
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Participants []Participant `json:"participants"`
}
