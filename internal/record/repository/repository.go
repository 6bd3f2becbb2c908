package repository

import (
	"context"
	"errors"
	"time"

	"orderdesk/backend/internal/record/domain"
)

// ErrNoLifecycle is returned when a record kind has no status lifecycle
// (comments) and therefore no journey.
var ErrNoLifecycle = errors.New("record kind has no status lifecycle")

// Meta is the slice of a record the journey reconstructor needs: its current
// status, creator, and creation time.
type Meta struct {
	Status    string
	CreatedBy string
	CreatedAt time.Time
}

// MetaSource resolves record metadata by kind and id. Returns (nil, nil) when
// the record does not exist.
type MetaSource interface {
	Meta(ctx context.Context, kind domain.Kind, recordID string) (*Meta, error)
}

// Repository defines the record persistence this subsystem touches: metadata
// reads for journey reconstruction and inserts for seeding. Full CRUD lives in
// the request/response layer outside this core.
type Repository interface {
	MetaSource
	CreateOrder(ctx context.Context, o *domain.Order) error
	CreateSubtask(ctx context.Context, s *domain.Subtask) error
	CreateComment(ctx context.Context, c *domain.Comment) error
	CreateTask(ctx context.Context, t *domain.DashboardTask) error
}
