package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"orderdesk/backend/internal/db"
	"orderdesk/backend/internal/history/domain"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const table = "history_entries"

var columns = []string{"seq", "id", "record_id", "changed_by", "field_name", "old_value", "new_value", "changed_at"}

// PostgresRepository persists history entries in the history_entries table.
type PostgresRepository struct {
	q db.Querier
}

// NewPostgresRepository returns a history repository backed by the given querier.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

// Create appends one entry. The entry must have ID set; Seq is assigned by the
// database and written back.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.HistoryEntry) error {
	sql, args, err := psql.Insert(table).
		Columns("id", "record_id", "changed_by", "field_name", "old_value", "new_value", "changed_at").
		Values(e.ID, e.RecordID, e.ChangedBy, e.FieldName, e.OldValue, e.NewValue, e.ChangedAt).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return err
	}
	return r.q.QueryRow(ctx, sql, args...).Scan(&e.Seq)
}

// ListByRecordField returns entries for (recordID, fieldName) in replay order.
func (r *PostgresRepository) ListByRecordField(ctx context.Context, recordID, fieldName string) ([]domain.HistoryEntry, error) {
	sql, args, err := psql.Select(columns...).
		From(table).
		Where(squirrel.Eq{"record_id": recordID}).
		Where(squirrel.Eq{"field_name": fieldName}).
		OrderBy("changed_at ASC", "seq ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.HistoryEntry
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByRecord returns entries for recordID across all fields, newest first.
func (r *PostgresRepository) ListByRecord(ctx context.Context, recordID string, limit, offset int32) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := psql.Select(columns...).
		From(table).
		Where(squirrel.Eq{"record_id": recordID}).
		OrderBy("changed_at DESC", "seq DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []domain.HistoryEntry
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}
