package domain

import "time"

// HistoryEntry is one append-only field change record. Entries are never
// mutated or deleted; ordering is changed_at with seq breaking ties.
type HistoryEntry struct {
	Seq       int64     `json:"-"`
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	ChangedBy string    `json:"changedBy"`
	FieldName string    `json:"fieldName"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	ChangedAt time.Time `json:"changedAt"`
}

// JourneyStep is one reconstructed state in a record's lifecycle timeline.
// Derived from the history log, never stored.
type JourneyStep struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	IsCurrent bool      `json:"isCurrent"`
}

// Journey is the ordered status timeline of a record. Exactly one step has
// IsCurrent set: the chronologically last one.
type Journey struct {
	RecordID    string        `json:"recordId"`
	Steps       []JourneyStep `json:"steps"`
	CompletedAt *time.Time    `json:"completedAt"`
}
