// Package history provides the append-only field change log and the journey
// reconstruction read model built on top of it.
package history

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"orderdesk/backend/internal/history/domain"
	historyrepo "orderdesk/backend/internal/history/repository"
)

// Recorder appends field change entries to the history log. Writes are
// best-effort side effects of an already committed mutation: repository
// failures are logged and never propagated, so they cannot block or fail the
// primary write path.
type Recorder struct {
	repo historyrepo.Repository
	nowF func() time.Time
}

// NewRecorder returns a Recorder that persists to repo.
func NewRecorder(repo historyrepo.Repository) *Recorder {
	return &Recorder{repo: repo, nowF: func() time.Time { return time.Now().UTC() }}
}

// RecordFieldChange appends one entry for a committed field change and returns
// it, or nil when the repository write failed (failure is logged, not returned).
func (r *Recorder) RecordFieldChange(ctx context.Context, recordID, changedBy, fieldName, oldValue, newValue string) *domain.HistoryEntry {
	if r == nil || r.repo == nil {
		return nil
	}
	entry := &domain.HistoryEntry{
		ID:        uuid.New().String(),
		RecordID:  recordID,
		ChangedBy: changedBy,
		FieldName: fieldName,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedAt: r.nowF(),
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		log.Printf("history: failed to record %s change for %s: %v", fieldName, recordID, err)
		return nil
	}
	return entry
}
