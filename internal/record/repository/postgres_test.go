package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"orderdesk/backend/internal/record/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func TestMeta_Order(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	recordID := uuid.New().String()
	created := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`SELECT status, created_by, created_at FROM orders`).
		WithArgs(recordID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "created_by", "created_at"}).
			AddRow("in_progress", "alice", created))

	m, err := repo.Meta(context.Background(), domain.KindOrder, recordID)
	if err != nil {
		t.Fatalf("Meta returned error: %v", err)
	}
	if m == nil {
		t.Fatal("Meta returned nil for existing record")
	}
	if m.Status != "in_progress" || m.CreatedBy != "alice" || !m.CreatedAt.Equal(created) {
		t.Errorf("meta = %+v, want in_progress/alice/%v", m, created)
	}
}

func TestMeta_TaskUsesOwnerColumn(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	recordID := uuid.New().String()
	mock.ExpectQuery(`SELECT status, owner_id, created_at FROM dashboard_tasks`).
		WithArgs(recordID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "owner_id", "created_at"}).
			AddRow("todo", "bob", time.Now().UTC()))

	m, err := repo.Meta(context.Background(), domain.KindTask, recordID)
	if err != nil {
		t.Fatalf("Meta returned error: %v", err)
	}
	if m.CreatedBy != "bob" {
		t.Errorf("CreatedBy = %q, want owner bob", m.CreatedBy)
	}
}

func TestMeta_MissingRecord(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	recordID := uuid.New().String()
	mock.ExpectQuery(`SELECT status, created_by, created_at FROM orders`).
		WithArgs(recordID).
		WillReturnError(pgx.ErrNoRows)

	m, err := repo.Meta(context.Background(), domain.KindOrder, recordID)
	if err != nil {
		t.Fatalf("Meta returned error: %v", err)
	}
	if m != nil {
		t.Errorf("meta = %+v, want nil for missing record", m)
	}
}

func TestMeta_CommentHasNoLifecycle(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	_, err := repo.Meta(context.Background(), domain.KindComment, uuid.New().String())
	if !errors.Is(err, ErrNoLifecycle) {
		t.Errorf("err = %v, want ErrNoLifecycle", err)
	}
}

func TestCreateOrder(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	now := time.Now().UTC()
	o := &domain.Order{
		ID: uuid.New().String(), Number: "ORD-1001", Title: "Install",
		Customer: "Bakery", Status: domain.OrderStatusNew,
		CreatedBy: "alice", UpdatedBy: "alice", CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(o.ID, o.Number, o.Title, o.Customer, o.Status, o.AssignedTo, o.DueDate, o.CreatedBy, o.UpdatedBy, o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
}

func TestCreateComment_MarshalsReactions(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	now := time.Now().UTC()
	c := &domain.Comment{
		ID: uuid.New().String(), OrderID: uuid.New().String(),
		AuthorID: "bob", Body: "done?",
		Reactions: map[string][]string{"👍": {"alice"}},
		CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec(`INSERT INTO comments`).
		WithArgs(c.ID, c.OrderID, c.AuthorID, c.Body, []byte(`{"👍":["alice"]}`), c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.CreateComment(context.Background(), c); err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}
}
