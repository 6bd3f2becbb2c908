package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"orderdesk/backend/internal/db"
	"orderdesk/backend/internal/record/domain"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresRepository reads record metadata and writes seed records.
type PostgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns a record repository backed by the given querier.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

func tableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindOrder:
		return "orders", nil
	case domain.KindSubtask:
		return "subtasks", nil
	case domain.KindTask:
		return "dashboard_tasks", nil
	case domain.KindComment:
		return "", ErrNoLifecycle
	}
	return "", errors.New("unknown record kind: " + string(kind))
}

// Meta returns the record's current status, creator, and creation time, or
// (nil, nil) when no such record exists.
func (r *PostgresRepository) Meta(ctx context.Context, kind domain.Kind, recordID string) (*Meta, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	creatorCol := "created_by"
	if kind == domain.KindTask {
		creatorCol = "owner_id"
	}
	sql, args, err := psql.Select("status", creatorCol, "created_at").
		From(table).
		Where(squirrel.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&m.Status, &m.CreatedBy, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// CreateOrder inserts an order. The order must have ID and Number set.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	sql, args, err := psql.Insert("orders").
		Columns("id", "number", "title", "customer", "status", "assigned_to", "due_date", "created_by", "updated_by", "created_at", "updated_at").
		Values(o.ID, o.Number, o.Title, o.Customer, o.Status, o.AssignedTo, o.DueDate, o.CreatedBy, o.UpdatedBy, o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, sql, args...)
	return err
}

// CreateSubtask inserts a subtask under an existing order.
func (r *PostgresRepository) CreateSubtask(ctx context.Context, s *domain.Subtask) error {
	sql, args, err := psql.Insert("subtasks").
		Columns("id", "order_id", "title", "status", "position", "assigned_to", "due_date", "created_by", "updated_by", "created_at", "updated_at").
		Values(s.ID, s.OrderID, s.Title, s.Status, s.Position, s.AssignedTo, s.DueDate, s.CreatedBy, s.UpdatedBy, s.CreatedAt, s.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, sql, args...)
	return err
}

// CreateComment inserts a comment under an existing order.
func (r *PostgresRepository) CreateComment(ctx context.Context, c *domain.Comment) error {
	reactions := c.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}
	raw, err := json.Marshal(reactions)
	if err != nil {
		return err
	}
	sql, args, err := psql.Insert("comments").
		Columns("id", "order_id", "author_id", "body", "reactions", "created_at", "updated_at").
		Values(c.ID, c.OrderID, c.AuthorID, c.Body, raw, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, sql, args...)
	return err
}

// CreateTask inserts a dashboard task.
func (r *PostgresRepository) CreateTask(ctx context.Context, t *domain.DashboardTask) error {
	sql, args, err := psql.Insert("dashboard_tasks").
		Columns("id", "title", "status", "position", "owner_id", "scheduled_for", "created_by", "updated_by", "created_at", "updated_at").
		Values(t.ID, t.Title, t.Status, t.Position, t.OwnerID, t.ScheduledFor, t.CreatedBy, t.UpdatedBy, t.CreatedAt, t.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, sql, args...)
	return err
}
