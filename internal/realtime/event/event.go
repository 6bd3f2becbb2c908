// Package event defines the wire vocabulary of the realtime channel: a typed
// envelope and one payload struct per event. Server-to-client events carry the
// full committed record, never deltas, so late or reordered delivery self-heals
// under the client's last-write-wins cache.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"orderdesk/backend/internal/record/domain"
)

// Type tags an envelope with its event name.
type Type string

// Server-to-client events.
const (
	TypeOrderCreated    Type = "order:created"
	TypeOrderUpdated    Type = "order:updated"
	TypeOrderDeleted    Type = "order:deleted"
	TypeSubtaskCreated  Type = "subtask:created"
	TypeSubtaskUpdated  Type = "subtask:updated"
	TypeSubtaskMoved    Type = "subtask:moved"
	TypeSubtaskDeleted  Type = "subtask:deleted"
	TypeCommentCreated  Type = "comment:created"
	TypeCommentUpdated  Type = "comment:updated"
	TypeCommentDeleted  Type = "comment:deleted"
	TypeReactionToggled Type = "reaction:toggled"
	TypeTaskCreated     Type = "task:created"
	TypeTaskUpdated     Type = "task:updated"
	TypeTaskDeleted     Type = "task:deleted"
	TypePresenceUpdated Type = "presence:updated"
	TypeTypingUpdate    Type = "typing:update"
	TypeFieldEditing    Type = "field:editing"
	TypeFieldStopped    Type = "field:stopped"
)

// Client-to-server signals.
const (
	TypeJoinRecord     Type = "join:record"
	TypeLeaveRecord    Type = "leave:record"
	TypeTypingStart    Type = "typing:start"
	TypeTypingStop     Type = "typing:stop"
	TypePresenceUpdate Type = "presence:update"
	TypeFieldStart     Type = "field:start"
	TypeFieldStop      Type = "field:stop"
)

// Envelope is the tagged union exchanged over the websocket.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DeletedPayload carries the id of a deleted record.
type DeletedPayload struct {
	ID string `json:"id"`
}

// ReactionsPayload carries a comment's full reaction map after a toggle.
type ReactionsPayload struct {
	CommentID string              `json:"commentId"`
	Reactions map[string][]string `json:"reactions"`
}

// PresencePayload is the wire form of a presence entry.
type PresencePayload struct {
	UserID          string    `json:"userId"`
	IsOnline        bool      `json:"isOnline"`
	CurrentRecordID string    `json:"currentRecordId,omitempty"`
	LastActivity    time.Time `json:"lastActivity"`
}

// TypingPayload announces that a user started or stopped typing on a record.
type TypingPayload struct {
	RecordID string `json:"recordId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// FieldEditPayload announces that a user is editing, or stopped editing, one
// field of one record.
type FieldEditPayload struct {
	RecordID  string `json:"recordId"`
	FieldName string `json:"fieldName"`
	UserID    string `json:"userId"`
}

// RoomPayload carries the room a connection joins or leaves: a record id or a
// collection room name (see ListRoom).
type RoomPayload struct {
	RecordID string `json:"recordId"`
}

// TypingSignalPayload is the client-side typing signal; the server fills in
// the user from the connection identity.
type TypingSignalPayload struct {
	RecordID string `json:"recordId"`
}

// PresenceSignalPayload updates which record the client is currently viewing.
type PresenceSignalPayload struct {
	CurrentRecordID string `json:"currentRecordId"`
}

// FieldSignalPayload is the client-side edit start/stop signal.
type FieldSignalPayload struct {
	RecordID  string `json:"recordId"`
	FieldName string `json:"fieldName"`
}

// ListRoom returns the collection room name for a record kind. Clients viewing
// a collection (e.g. all orders) join this room instead of a record room.
func ListRoom(kind domain.Kind) string {
	return string(kind) + "s"
}

// New builds an envelope with the payload marshaled to JSON.
func New(t Type, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", t, err)
	}
	return &Envelope{Type: t, Payload: raw}, nil
}

// payloadFactories maps each event type to a constructor for its payload.
// The dispatch table is the single source of truth for payload shapes.
var payloadFactories = map[Type]func() any{
	TypeOrderCreated:    func() any { return new(domain.Order) },
	TypeOrderUpdated:    func() any { return new(domain.Order) },
	TypeOrderDeleted:    func() any { return new(DeletedPayload) },
	TypeSubtaskCreated:  func() any { return new(domain.Subtask) },
	TypeSubtaskUpdated:  func() any { return new(domain.Subtask) },
	TypeSubtaskMoved:    func() any { return new(domain.Subtask) },
	TypeSubtaskDeleted:  func() any { return new(DeletedPayload) },
	TypeCommentCreated:  func() any { return new(domain.Comment) },
	TypeCommentUpdated:  func() any { return new(domain.Comment) },
	TypeCommentDeleted:  func() any { return new(DeletedPayload) },
	TypeReactionToggled: func() any { return new(ReactionsPayload) },
	TypeTaskCreated:     func() any { return new(domain.DashboardTask) },
	TypeTaskUpdated:     func() any { return new(domain.DashboardTask) },
	TypeTaskDeleted:     func() any { return new(DeletedPayload) },
	TypePresenceUpdated: func() any { return new(PresencePayload) },
	TypeTypingUpdate:    func() any { return new(TypingPayload) },
	TypeFieldEditing:    func() any { return new(FieldEditPayload) },
	TypeFieldStopped:    func() any { return new(FieldEditPayload) },
	TypeJoinRecord:      func() any { return new(RoomPayload) },
	TypeLeaveRecord:     func() any { return new(RoomPayload) },
	TypeTypingStart:     func() any { return new(TypingSignalPayload) },
	TypeTypingStop:      func() any { return new(TypingSignalPayload) },
	TypePresenceUpdate:  func() any { return new(PresenceSignalPayload) },
	TypeFieldStart:      func() any { return new(FieldSignalPayload) },
	TypeFieldStop:       func() any { return new(FieldSignalPayload) },
}

// Known reports whether t is part of the vocabulary.
func Known(t Type) bool {
	_, ok := payloadFactories[t]
	return ok
}

// Decode unmarshals the envelope payload into its typed struct (a pointer,
// e.g. *domain.Order for order:created). Unknown types return an error so
// callers can drop them.
func (e *Envelope) Decode() (any, error) {
	factory, ok := payloadFactories[e.Type]
	if !ok {
		return nil, fmt.Errorf("event: unknown type %q", e.Type)
	}
	v := factory()
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, v); err != nil {
			return nil, fmt.Errorf("event: decode %s payload: %w", e.Type, err)
		}
	}
	return v, nil
}

// DecodeInto unmarshals the envelope payload into v without consulting the
// dispatch table. Used by handlers that already know the expected shape.
func (e *Envelope) DecodeInto(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
