package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.pingErr
}

func probe(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness_AlwaysOK(t *testing.T) {
	rec := probe(t, New(&mockPinger{pingErr: errors.New("down")}), "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadiness_NilPinger(t *testing.T) {
	rec := probe(t, New(nil), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadiness_PingSuccess(t *testing.T) {
	rec := probe(t, New(&mockPinger{}), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadiness_PingFailure(t *testing.T) {
	rec := probe(t, New(&mockPinger{pingErr: errors.New("connection refused")}), "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
