package models

// Party represents one expense group replicated across devices.
type Party struct {
	// SchemaVersion is the migration level of this document.
	// Absent (zero) means the document predates versioning.
	SchemaVersion int `json:"schemaVersion,omitempty"`

	// ID is the party's document id.
	ID string `json:"id"`

	// Name is the display name of the party.
	Name string `json:"name"`

	// Currency is the ISO 4217 code all amounts are denominated in.
	Currency string `json:"currency"`

	// Participants is keyed by participant id. Ids are unique within
	// a party.
	Participants map[string]Participant `json:"participants"`

	// ChunkRefs is ordered newest-first. At most the ref at index 0 may
	// accept new expenses (the "open" chunk).
	ChunkRefs []ChunkRef `json:"chunkRefs"`
}

// Participant is a member of a party.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`

	// Archived participants no longer appear in pickers but keep their
	// history and balances.
	Archived bool `json:"archived,omitempty"`

	// PersonalMode marks a participant who only ever pays for themselves.
	PersonalMode bool `json:"personalMode,omitempty"`
}

// ChunkRef pairs an expense chunk document with its balances document.
// One-to-one with an ExpenseChunk and an ExpenseChunkBalances.
type ChunkRef struct {
	ChunkID    string `json:"chunkId"`
	CreatedAt  int64  `json:"createdAt"`
	BalancesID string `json:"balancesId"`
}

// ParticipantIDs returns the party's participant ids in unspecified order.
func (p *Party) ParticipantIDs() []string {
	ids := make([]string, 0, len(p.Participants))
	for id := range p.Participants {
		ids = append(ids, id)
	}
	return ids
}

// PartyList is the per-device list of known parties.
type PartyList struct {
	SchemaVersion int      `json:"schemaVersion,omitempty"`
	ID            string   `json:"id"`
	PartyIDs      []string `json:"partyIds"`
}
