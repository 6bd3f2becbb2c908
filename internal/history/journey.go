package history

import (
	"context"
	"time"

	"orderdesk/backend/internal/history/domain"
	historyrepo "orderdesk/backend/internal/history/repository"
	recorddomain "orderdesk/backend/internal/record/domain"
	recordrepo "orderdesk/backend/internal/record/repository"
)

// Reconstructor replays a record's status history into an ordered journey.
// The mutable record row is the fast-path projection; the history log is the
// source of truth for when and by whom each transition happened.
type Reconstructor struct {
	history historyrepo.Repository
	meta    recordrepo.MetaSource
}

// NewReconstructor returns a Reconstructor reading from the given history
// repository and record metadata source.
func NewReconstructor(history historyrepo.Repository, meta recordrepo.MetaSource) *Reconstructor {
	return &Reconstructor{history: history, meta: meta}
}

// Journey reconstructs the status timeline for the record. Returns (nil, nil)
// when the record does not exist.
//
// With no status history the journey is a single synthesized step carrying the
// record's current status. Otherwise step 0 is synthesized from the first
// entry's oldValue (falling back to the kind's initial status when empty),
// attributed to the record's creator at creation time, and each entry
// contributes one step from its newValue. IsCurrent is set on the last step
// only: a record can legitimately revisit a status, so earlier steps with the
// same value stay non-current.
func (r *Reconstructor) Journey(ctx context.Context, kind recorddomain.Kind, recordID string) (*domain.Journey, error) {
	meta, err := r.meta.Meta(ctx, kind, recordID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	entries, err := r.history.ListByRecordField(ctx, recordID, recorddomain.StatusField)
	if err != nil {
		return nil, err
	}

	steps := make([]domain.JourneyStep, 0, len(entries)+1)
	if len(entries) == 0 {
		steps = append(steps, domain.JourneyStep{
			Status:    meta.Status,
			ChangedBy: meta.CreatedBy,
			ChangedAt: meta.CreatedAt,
		})
	} else {
		initial := entries[0].OldValue
		if initial == "" {
			initial = recorddomain.InitialStatus(kind)
		}
		steps = append(steps, domain.JourneyStep{
			Status:    initial,
			ChangedBy: meta.CreatedBy,
			ChangedAt: meta.CreatedAt,
		})
		for _, e := range entries {
			steps = append(steps, domain.JourneyStep{
				Status:    e.NewValue,
				ChangedBy: e.ChangedBy,
				ChangedAt: e.ChangedAt,
			})
		}
	}
	steps[len(steps)-1].IsCurrent = true

	return &domain.Journey{
		RecordID:    recordID,
		Steps:       steps,
		CompletedAt: completedAt(steps, recorddomain.TerminalStatus(kind)),
	}, nil
}

// completedAt returns the timestamp of the latest step whose status equals the
// kind's terminal status, or nil.
func completedAt(steps []domain.JourneyStep, terminal string) *time.Time {
	if terminal == "" {
		return nil
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Status == terminal {
			t := steps[i].ChangedAt
			return &t
		}
	}
	return nil
}
