package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"orderdesk/backend/internal/history"
	historydomain "orderdesk/backend/internal/history/domain"
	"orderdesk/backend/internal/record/domain"
	recordrepo "orderdesk/backend/internal/record/repository"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeHistoryRepo struct {
	entries []historydomain.HistoryEntry
	err     error
}

func (f *fakeHistoryRepo) Create(ctx context.Context, e *historydomain.HistoryEntry) error {
	return f.err
}

func (f *fakeHistoryRepo) ListByRecordField(ctx context.Context, recordID, fieldName string) ([]historydomain.HistoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []historydomain.HistoryEntry
	for _, e := range f.entries {
		if e.RecordID == recordID && e.FieldName == fieldName {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) ListByRecord(ctx context.Context, recordID string, limit, offset int32) ([]historydomain.HistoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []historydomain.HistoryEntry
	for _, e := range f.entries {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMetaSource struct {
	meta map[string]*recordrepo.Meta
}

func (f *fakeMetaSource) Meta(ctx context.Context, kind domain.Kind, recordID string) (*recordrepo.Meta, error) {
	return f.meta[recordID], nil
}

func newTestRouter(repo *fakeHistoryRepo, meta *fakeMetaSource) *mux.Router {
	h := New(history.NewReconstructor(repo, meta), repo)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func get(t *testing.T, router *mux.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJourney_OK(t *testing.T) {
	repo := &fakeHistoryRepo{entries: []historydomain.HistoryEntry{
		{RecordID: "order-1", FieldName: domain.StatusField, OldValue: "new", NewValue: "in_progress", ChangedBy: "bob", ChangedAt: baseTime.Add(time.Hour)},
	}}
	meta := &fakeMetaSource{meta: map[string]*recordrepo.Meta{
		"order-1": {Status: "in_progress", CreatedBy: "alice", CreatedAt: baseTime},
	}}
	rec := get(t, newTestRouter(repo, meta), "/api/orders/order-1/journey")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var journey historydomain.Journey
	if err := json.Unmarshal(rec.Body.Bytes(), &journey); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(journey.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(journey.Steps))
	}
	if !journey.Steps[1].IsCurrent {
		t.Error("last step should be current")
	}
	if journey.Steps[0].ChangedBy != "alice" {
		t.Errorf("step 0 attributed to %q, want creator alice", journey.Steps[0].ChangedBy)
	}
}

func TestJourney_MissingRecordIs404(t *testing.T) {
	rec := get(t, newTestRouter(&fakeHistoryRepo{}, &fakeMetaSource{}), "/api/orders/ghost/journey")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestJourney_UnknownKindIs404(t *testing.T) {
	rec := get(t, newTestRouter(&fakeHistoryRepo{}, &fakeMetaSource{}), "/api/widgets/order-1/journey")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHistory_FilterByField(t *testing.T) {
	repo := &fakeHistoryRepo{entries: []historydomain.HistoryEntry{
		{ID: "h1", RecordID: "order-1", FieldName: "status", OldValue: "new", NewValue: "in_progress", ChangedAt: baseTime},
		{ID: "h2", RecordID: "order-1", FieldName: "title", OldValue: "a", NewValue: "b", ChangedAt: baseTime},
	}}
	rec := get(t, newTestRouter(repo, &fakeMetaSource{}), "/api/orders/order-1/history?field=status")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []historydomain.HistoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "h1" {
		t.Errorf("entries = %+v, want only the status entry", entries)
	}
}

func TestHistory_EmptyIsJSONArray(t *testing.T) {
	rec := get(t, newTestRouter(&fakeHistoryRepo{}, &fakeMetaSource{}), "/api/orders/order-1/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestHistory_RepoErrorIs500(t *testing.T) {
	repo := &fakeHistoryRepo{err: errors.New("connection refused")}
	rec := get(t, newTestRouter(repo, &fakeMetaSource{}), "/api/orders/order-1/history")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
