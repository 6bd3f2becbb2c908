// Package hub fans committed mutation events out to every connection joined to
// a record's room. Delivery is at-least-once and best-effort: a dead or slow
// member never fails the publish and never blocks delivery to the others.
package hub

import (
	"context"
	"log"
	"sync"

	"orderdesk/backend/internal/realtime/event"
	"orderdesk/backend/internal/telemetry"
)

// Sender is what the hub needs from a room member: a stable id and a
// non-blocking enqueue.
type Sender interface {
	ID() string
	Send(env *event.Envelope) error
}

// Hub is the instance-scoped room membership table. Safe for concurrent
// join/leave/publish: publish iterates a copy of the member set, so membership
// may change mid-fan-out without corruption.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Sender
	byConn map[string]map[string]struct{}
	closed bool

	metrics *telemetry.Metrics
}

// New returns an empty hub. metrics may be nil.
func New(metrics *telemetry.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]Sender),
		byConn:  make(map[string]map[string]struct{}),
		metrics: metrics,
	}
}

// Join adds the connection to the room. Idempotent.
func (h *Hub) Join(roomID string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]Sender)
		h.rooms[roomID] = room
	}
	room[s.ID()] = s

	memberships, ok := h.byConn[s.ID()]
	if !ok {
		memberships = make(map[string]struct{})
		h.byConn[s.ID()] = memberships
	}
	memberships[roomID] = struct{}{}
}

// Leave removes the connection from the room. Idempotent; returns whether the
// room is now empty so callers can release per-record advisory state.
func (h *Hub) Leave(roomID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(roomID, connID)
}

// LeaveAll removes the connection from every room it joined and returns the
// rooms that became empty. Must be called on disconnect: a leaked membership
// causes phantom broadcasts to a dead connection.
func (h *Hub) LeaveAll(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var emptied []string
	for roomID := range h.byConn[connID] {
		if h.leaveLocked(roomID, connID) {
			emptied = append(emptied, roomID)
		}
	}
	return emptied
}

// Publish delivers the envelope to every member of the room. A failed enqueue
// to one member (closed connection, full buffer) is logged and dropped; the
// next full-record event naturally resyncs that client.
func (h *Hub) Publish(ctx context.Context, roomID string, env *event.Envelope) {
	h.mu.RLock()
	members := make([]Sender, 0, len(h.rooms[roomID]))
	for _, s := range h.rooms[roomID] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	h.metrics.EventPublished(ctx, string(env.Type))
	for _, s := range members {
		if err := s.Send(env); err != nil {
			log.Printf("hub: dropped %s to %s in room %s: %v", env.Type, s.ID(), roomID, err)
			h.metrics.DeliveryDropped(ctx, string(env.Type))
		}
	}
}

// PublishExcept is Publish minus one connection, used so a client does not
// receive the echo of its own ephemeral signal.
func (h *Hub) PublishExcept(ctx context.Context, roomID, exceptConnID string, env *event.Envelope) {
	h.mu.RLock()
	members := make([]Sender, 0, len(h.rooms[roomID]))
	for id, s := range h.rooms[roomID] {
		if id != exceptConnID {
			members = append(members, s)
		}
	}
	h.mu.RUnlock()

	h.metrics.EventPublished(ctx, string(env.Type))
	for _, s := range members {
		if err := s.Send(env); err != nil {
			log.Printf("hub: dropped %s to %s in room %s: %v", env.Type, s.ID(), roomID, err)
			h.metrics.DeliveryDropped(ctx, string(env.Type))
		}
	}
}

// Members returns the current size of the room.
func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Close empties the membership table. Subsequent joins are ignored and
// publishes deliver to no one.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.rooms = make(map[string]map[string]Sender)
	h.byConn = make(map[string]map[string]struct{})
}

func (h *Hub) leaveLocked(roomID, connID string) bool {
	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	delete(room, connID)
	if memberships, ok := h.byConn[connID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(h.byConn, connID)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, roomID)
		return true
	}
	return false
}
