package repository

import (
	"context"

	"orderdesk/backend/internal/history/domain"
)

// Repository defines persistence for the append-only history log.
type Repository interface {
	// Create appends one entry and fills in its Seq. Entries are never updated.
	Create(ctx context.Context, e *domain.HistoryEntry) error
	// ListByRecordField returns all entries for (recordID, fieldName) ordered
	// ascending by changed_at, ties broken by seq.
	ListByRecordField(ctx context.Context, recordID, fieldName string) ([]domain.HistoryEntry, error)
	// ListByRecord returns entries for recordID across all fields, newest first,
	// paginated by limit and offset.
	ListByRecord(ctx context.Context, recordID string, limit, offset int32) ([]domain.HistoryEntry, error)
}
