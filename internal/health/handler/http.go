// Package handler serves liveness and readiness for load balancers and
// Kubernetes probes.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Pinger reports database reachability (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves /healthz and /readyz.
type Handler struct {
	db Pinger
}

// New returns a health Handler. db may be nil; readiness then skips the ping.
func New(db Pinger) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes mounts the probe endpoints on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.handleLive).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.handleReady).Methods(http.MethodGet)
}

type status struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, status{Status: "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeStatus(w, http.StatusOK, status{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeStatus(w, http.StatusServiceUnavailable, status{Status: "unavailable", DB: err.Error()})
		return
	}
	writeStatus(w, http.StatusOK, status{Status: "ok", DB: "ok"})
}

func writeStatus(w http.ResponseWriter, code int, s status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(s)
}
