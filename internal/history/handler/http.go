// Package handler exposes the history log and journey reconstruction over
// HTTP: GET /api/{kind}/{id}/journey and GET /api/{kind}/{id}/history.
package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"orderdesk/backend/internal/history"
	historydomain "orderdesk/backend/internal/history/domain"
	historyrepo "orderdesk/backend/internal/history/repository"
	"orderdesk/backend/internal/record/domain"
)

// kindByPath maps the URL collection segment to a record kind.
var kindByPath = map[string]domain.Kind{
	"orders":   domain.KindOrder,
	"subtasks": domain.KindSubtask,
	"comments": domain.KindComment,
	"tasks":    domain.KindTask,
}

// Handler serves journey and history reads.
type Handler struct {
	journeys *history.Reconstructor
	repo     historyrepo.Repository
}

// New returns a Handler over the given reconstructor and history repository.
func New(journeys *history.Reconstructor, repo historyrepo.Repository) *Handler {
	return &Handler{journeys: journeys, repo: repo}
}

// RegisterRoutes mounts the read endpoints on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/{kind}/{id}/journey", h.handleJourney).Methods(http.MethodGet)
	r.HandleFunc("/api/{kind}/{id}/history", h.handleHistory).Methods(http.MethodGet)
}

func (h *Handler) handleJourney(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := kindByPath[vars["kind"]]
	if !ok {
		http.Error(w, "unknown record kind", http.StatusNotFound)
		return
	}
	journey, err := h.journeys.Journey(r.Context(), kind, vars["id"])
	if err != nil {
		log.Printf("history: journey %s/%s: %v", kind, vars["id"], err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if journey == nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, journey)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, ok := kindByPath[vars["kind"]]; !ok {
		http.Error(w, "unknown record kind", http.StatusNotFound)
		return
	}
	recordID := vars["id"]
	q := r.URL.Query()

	if field := q.Get("field"); field != "" {
		entries, err := h.repo.ListByRecordField(r.Context(), recordID, field)
		if err != nil {
			log.Printf("history: list %s field %s: %v", recordID, field, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, nonNil(entries))
		return
	}

	limit := parseInt32(q.Get("limit"), 50)
	offset := parseInt32(q.Get("offset"), 0)
	entries, err := h.repo.ListByRecord(r.Context(), recordID, limit, offset)
	if err != nil {
		log.Printf("history: list %s: %v", recordID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, nonNil(entries))
}

// nonNil keeps empty history responses encoding as [] instead of null.
func nonNil(entries []historydomain.HistoryEntry) []historydomain.HistoryEntry {
	if entries == nil {
		return []historydomain.HistoryEntry{}
	}
	return entries
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("history: encode response: %v", err)
	}
}

func parseInt32(s string, def int32) int32 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}
