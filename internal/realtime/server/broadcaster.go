package server

import (
	"context"
	"time"

	"orderdesk/backend/internal/realtime/event"
	"orderdesk/backend/internal/realtime/hub"
	"orderdesk/backend/internal/record/domain"
	"orderdesk/backend/internal/telemetry"
)

// Broadcaster is the publish surface the CRUD layer calls after a mutation
// commits. Each method builds the wire envelope with the full record and
// publishes it to the record's room and the kind's collection room, so both
// detail views and list views converge on the committed state.
type Broadcaster struct {
	hub     *hub.Hub
	emitter telemetry.EventEmitter
}

// NewBroadcaster wires a Broadcaster to the hub. emitter may be nil.
func NewBroadcaster(h *hub.Hub, emitter telemetry.EventEmitter) *Broadcaster {
	return &Broadcaster{hub: h, emitter: emitter}
}

// OrderCreated publishes the committed order to its room and the orders room.
func (b *Broadcaster) OrderCreated(ctx context.Context, o *domain.Order) {
	b.publish(ctx, event.TypeOrderCreated, o, o.ID, domain.KindOrder)
}

// OrderUpdated publishes the full updated order, never a delta.
func (b *Broadcaster) OrderUpdated(ctx context.Context, o *domain.Order) {
	b.publish(ctx, event.TypeOrderUpdated, o, o.ID, domain.KindOrder)
}

// OrderDeleted publishes the deleted order's id.
func (b *Broadcaster) OrderDeleted(ctx context.Context, id string) {
	b.publish(ctx, event.TypeOrderDeleted, event.DeletedPayload{ID: id}, id, domain.KindOrder)
}

// SubtaskCreated publishes a new subtask to its parent order's room and the
// subtasks room.
func (b *Broadcaster) SubtaskCreated(ctx context.Context, s *domain.Subtask) {
	b.publish(ctx, event.TypeSubtaskCreated, s, s.OrderID, domain.KindSubtask)
}

// SubtaskUpdated publishes the full updated subtask.
func (b *Broadcaster) SubtaskUpdated(ctx context.Context, s *domain.Subtask) {
	b.publish(ctx, event.TypeSubtaskUpdated, s, s.OrderID, domain.KindSubtask)
}

// SubtaskMoved publishes a board move (column or position change) as its own
// event so clients can animate it distinctly from a field edit.
func (b *Broadcaster) SubtaskMoved(ctx context.Context, s *domain.Subtask) {
	b.publish(ctx, event.TypeSubtaskMoved, s, s.OrderID, domain.KindSubtask)
}

// SubtaskDeleted publishes the deleted subtask's id to its parent order's room.
func (b *Broadcaster) SubtaskDeleted(ctx context.Context, orderID, id string) {
	b.publish(ctx, event.TypeSubtaskDeleted, event.DeletedPayload{ID: id}, orderID, domain.KindSubtask)
}

// CommentCreated publishes a new comment to its parent order's room.
func (b *Broadcaster) CommentCreated(ctx context.Context, c *domain.Comment) {
	b.publish(ctx, event.TypeCommentCreated, c, c.OrderID, domain.KindComment)
}

// CommentUpdated publishes the full edited comment.
func (b *Broadcaster) CommentUpdated(ctx context.Context, c *domain.Comment) {
	b.publish(ctx, event.TypeCommentUpdated, c, c.OrderID, domain.KindComment)
}

// CommentDeleted publishes the deleted comment's id to its parent order's room.
func (b *Broadcaster) CommentDeleted(ctx context.Context, orderID, id string) {
	b.publish(ctx, event.TypeCommentDeleted, event.DeletedPayload{ID: id}, orderID, domain.KindComment)
}

// ReactionToggled publishes the comment's full reaction map after a toggle,
// so concurrent toggles converge instead of double-applying.
func (b *Broadcaster) ReactionToggled(ctx context.Context, orderID string, c *domain.Comment) {
	b.publish(ctx, event.TypeReactionToggled, event.ReactionsPayload{
		CommentID: c.ID,
		Reactions: c.Reactions,
	}, orderID, domain.KindComment)
}

// TaskCreated publishes a new dashboard task.
func (b *Broadcaster) TaskCreated(ctx context.Context, t *domain.DashboardTask) {
	b.publish(ctx, event.TypeTaskCreated, t, t.ID, domain.KindTask)
}

// TaskUpdated publishes the full updated dashboard task.
func (b *Broadcaster) TaskUpdated(ctx context.Context, t *domain.DashboardTask) {
	b.publish(ctx, event.TypeTaskUpdated, t, t.ID, domain.KindTask)
}

// TaskDeleted publishes the deleted task's id.
func (b *Broadcaster) TaskDeleted(ctx context.Context, id string) {
	b.publish(ctx, event.TypeTaskDeleted, event.DeletedPayload{ID: id}, id, domain.KindTask)
}

func (b *Broadcaster) publish(ctx context.Context, typ event.Type, payload any, recordRoom string, kind domain.Kind) {
	env, err := event.New(typ, payload)
	if err != nil {
		return
	}
	if recordRoom != "" {
		b.hub.Publish(ctx, recordRoom, env)
	}
	b.hub.Publish(ctx, event.ListRoom(kind), env)
	telemetry.EmitAsync(b.emitter, &telemetry.Event{
		RecordID:  recordRoom,
		EventType: telemetry.EventPublished,
		Source:    telemetry.SourceRealtime,
		Metadata:  env.Payload,
		CreatedAt: time.Now().UTC(),
	})
}
