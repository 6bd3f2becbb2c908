// Package telemetry provides best-effort operational event emission for the
// realtime subsystem: OTel logs, optional Kafka export, and metric counters.
// Nothing here may block or fail the primary mutation or fan-out paths.
package telemetry

import (
	"context"
	"time"
)

// Realtime event types emitted by the server and hub.
const (
	EventConnectionOpened = "connection_opened"
	EventConnectionClosed = "connection_closed"
	EventRoomJoined       = "room_joined"
	EventPublished        = "event_published"
	EventDeliveryDropped  = "delivery_dropped"
	EventFieldConflict    = "field_conflict"
)

// SourceRealtime marks events originating from the realtime server.
const SourceRealtime = "realtime"

// Event is one operational telemetry event.
type Event struct {
	UserID    string    `json:"user_id,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Combine fans one event out to several emitters. Nil emitters are skipped;
// the first error is returned after all emitters ran.
func Combine(emitters ...EventEmitter) EventEmitter {
	var active []EventEmitter
	for _, e := range emitters {
		if e != nil {
			active = append(active, e)
		}
	}
	return multiEmitter(active)
}

type multiEmitter []EventEmitter

func (m multiEmitter) Emit(ctx context.Context, event *Event) error {
	var firstErr error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
