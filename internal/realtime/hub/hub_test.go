package hub

import (
	"context"
	"errors"
	"sort"
	"testing"

	"orderdesk/backend/internal/realtime/event"
)

// fakeSender records delivered envelopes; failErr makes every Send fail.
type fakeSender struct {
	id       string
	received []*event.Envelope
	failErr  error
}

func (s *fakeSender) ID() string { return s.id }

func (s *fakeSender) Send(env *event.Envelope) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.received = append(s.received, env)
	return nil
}

func envOf(t *testing.T, typ event.Type, payload any) *event.Envelope {
	t.Helper()
	env, err := event.New(typ, payload)
	if err != nil {
		t.Fatalf("event.New(%s): %v", typ, err)
	}
	return env
}

func TestHub_PublishDeliversToRoomMembers(t *testing.T) {
	h := New(nil)
	a := &fakeSender{id: "conn-a"}
	b := &fakeSender{id: "conn-b"}
	other := &fakeSender{id: "conn-c"}
	h.Join("order-1", a)
	h.Join("order-1", b)
	h.Join("order-2", other)

	env := envOf(t, event.TypeOrderUpdated, map[string]string{"id": "order-1"})
	h.Publish(context.Background(), "order-1", env)

	if len(a.received) != 1 || len(b.received) != 1 {
		t.Errorf("room members got %d and %d envelopes, want 1 each", len(a.received), len(b.received))
	}
	if len(other.received) != 0 {
		t.Errorf("member of another room got %d envelopes, want 0", len(other.received))
	}
}

func TestHub_PublishEmptyRoomIsNoop(t *testing.T) {
	h := New(nil)
	env := envOf(t, event.TypeOrderCreated, map[string]string{"id": "order-1"})
	h.Publish(context.Background(), "nobody-here", env) // must not panic
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := New(nil)
	a := &fakeSender{id: "conn-a"}
	h.Join("order-1", a)
	h.Join("order-1", a)

	if got := h.Members("order-1"); got != 1 {
		t.Errorf("Members = %d, want 1", got)
	}
	env := envOf(t, event.TypeOrderUpdated, map[string]string{"id": "order-1"})
	h.Publish(context.Background(), "order-1", env)
	if len(a.received) != 1 {
		t.Errorf("double-joined member got %d envelopes, want 1", len(a.received))
	}
}

func TestHub_DeadMemberDoesNotBlockOthers(t *testing.T) {
	h := New(nil)
	dead := &fakeSender{id: "conn-dead", failErr: errors.New("send buffer full")}
	live := &fakeSender{id: "conn-live"}
	h.Join("order-1", dead)
	h.Join("order-1", live)

	env := envOf(t, event.TypeOrderUpdated, map[string]string{"id": "order-1"})
	h.Publish(context.Background(), "order-1", env)

	if len(live.received) != 1 {
		t.Errorf("live member got %d envelopes, want 1", len(live.received))
	}
}

func TestHub_LeaveReportsRoomEmptied(t *testing.T) {
	h := New(nil)
	a := &fakeSender{id: "conn-a"}
	b := &fakeSender{id: "conn-b"}
	h.Join("order-1", a)
	h.Join("order-1", b)

	if emptied := h.Leave("order-1", "conn-a"); emptied {
		t.Error("Leave with remaining member reported room emptied")
	}
	if emptied := h.Leave("order-1", "conn-b"); !emptied {
		t.Error("Leave of last member did not report room emptied")
	}
	// Leaving again (or a room never joined) is a no-op.
	if emptied := h.Leave("order-1", "conn-b"); emptied {
		t.Error("Leave of already-left member reported room emptied")
	}
}

func TestHub_LeaveAllReturnsEmptiedRooms(t *testing.T) {
	h := New(nil)
	a := &fakeSender{id: "conn-a"}
	b := &fakeSender{id: "conn-b"}
	h.Join("order-1", a)
	h.Join("subtask-9", a)
	h.Join("orders", a)
	h.Join("orders", b)

	emptied := h.LeaveAll("conn-a")
	sort.Strings(emptied)
	want := []string{"order-1", "subtask-9"}
	if len(emptied) != len(want) {
		t.Fatalf("LeaveAll emptied %v, want %v", emptied, want)
	}
	for i := range want {
		if emptied[i] != want[i] {
			t.Fatalf("LeaveAll emptied %v, want %v", emptied, want)
		}
	}
	if got := h.Members("orders"); got != 1 {
		t.Errorf("shared room has %d members after LeaveAll, want 1", got)
	}

	env := envOf(t, event.TypeOrderUpdated, map[string]string{"id": "order-1"})
	h.Publish(context.Background(), "order-1", env)
	if len(a.received) != 0 {
		t.Errorf("disconnected member got %d envelopes, want 0", len(a.received))
	}
}

func TestHub_PublishExceptSkipsPublisher(t *testing.T) {
	h := New(nil)
	self := &fakeSender{id: "conn-self"}
	peer := &fakeSender{id: "conn-peer"}
	h.Join("order-1", self)
	h.Join("order-1", peer)

	env := envOf(t, event.TypeTypingUpdate, event.TypingPayload{
		RecordID: "order-1", UserID: "u-1", IsTyping: true,
	})
	h.PublishExcept(context.Background(), "order-1", "conn-self", env)

	if len(self.received) != 0 {
		t.Errorf("publisher got %d envelopes of its own signal, want 0", len(self.received))
	}
	if len(peer.received) != 1 {
		t.Errorf("peer got %d envelopes, want 1", len(peer.received))
	}
}

func TestHub_PublishPreservesOrderPerMember(t *testing.T) {
	h := New(nil)
	a := &fakeSender{id: "conn-a"}
	h.Join("order-1", a)

	types := []event.Type{event.TypeOrderCreated, event.TypeOrderUpdated, event.TypeOrderDeleted}
	for _, typ := range types {
		h.Publish(context.Background(), "order-1", envOf(t, typ, map[string]string{"id": "order-1"}))
	}

	if len(a.received) != len(types) {
		t.Fatalf("got %d envelopes, want %d", len(a.received), len(types))
	}
	for i, typ := range types {
		if a.received[i].Type != typ {
			t.Errorf("envelope %d has type %s, want %s", i, a.received[i].Type, typ)
		}
	}
}

func TestHub_CloseDropsMembershipAndIgnoresJoins(t *testing.T) {
	h := New(nil)
	a := &fakeSender{id: "conn-a"}
	h.Join("order-1", a)
	h.Close()

	if got := h.Members("order-1"); got != 0 {
		t.Errorf("Members after Close = %d, want 0", got)
	}
	h.Join("order-1", a)
	if got := h.Members("order-1"); got != 0 {
		t.Errorf("Members after post-Close Join = %d, want 0", got)
	}
}
