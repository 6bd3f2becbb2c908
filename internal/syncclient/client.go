package syncclient

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"orderdesk/backend/internal/realtime/event"
	"orderdesk/backend/internal/record/domain"
)

// Options configures a Client connection.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// Token is the bearer token sent on the handshake.
	Token string
	// User is the dev-mode user id, used instead of Token against a server
	// running without a key.
	User string
	// UserID is the local user's id, used to suppress self-conflict warnings.
	// Defaults to User when empty.
	UserID string
	// OnEvent, if set, is invoked for every received envelope after the
	// caches have been updated.
	OnEvent func(*event.Envelope)
}

// Client maintains the websocket connection and mirrors server events into
// typed caches, the presence map, and the conflict advisor. One read loop
// applies events in arrival order; all state is safe to read concurrently.
type Client struct {
	Orders   *Cache[domain.Order]
	Subtasks *Cache[domain.Subtask]
	Comments *Cache[domain.Comment]
	Tasks    *Cache[domain.DashboardTask]
	Advisor  *Advisor

	ws      *websocket.Conn
	onEvent func(*event.Envelope)

	mu       sync.RWMutex
	presence map[string]event.PresencePayload
	typing   map[string]map[string]bool // recordID → set of typing users

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// Dial connects and starts the read loop. Close the client to stop it.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("syncclient: invalid url %q: %w", opts.URL, err)
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	} else if opts.User != "" {
		q := u.Query()
		q.Set("user", opts.User)
		u.RawQuery = q.Encode()
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("syncclient: dial %s: %s: %w", opts.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("syncclient: dial %s: %w", opts.URL, err)
	}

	selfID := opts.UserID
	if selfID == "" {
		selfID = opts.User
	}
	c := &Client{
		Orders:   NewCache[domain.Order](),
		Subtasks: NewCache[domain.Subtask](),
		Comments: NewCache[domain.Comment](),
		Tasks:    NewCache[domain.DashboardTask](),
		Advisor:  NewAdvisor(selfID),
		ws:       ws,
		onEvent:  opts.OnEvent,
		presence: make(map[string]event.PresencePayload),
		typing:   make(map[string]map[string]bool),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		var env event.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}
		c.apply(&env)
		if c.onEvent != nil {
			c.onEvent(&env)
		}
	}
}

// apply routes one server event into the caches via the payload dispatch
// table. Unknown types are logged and dropped.
func (c *Client) apply(env *event.Envelope) {
	payload, err := env.Decode()
	if err != nil {
		log.Printf("syncclient: dropping event: %v", err)
		return
	}
	switch env.Type {
	case event.TypeOrderCreated, event.TypeOrderUpdated:
		c.Orders.ApplyRemoteUpsert(*payload.(*domain.Order))
	case event.TypeOrderDeleted:
		c.Orders.ApplyRemoteDelete(payload.(*event.DeletedPayload).ID)
	case event.TypeSubtaskCreated, event.TypeSubtaskUpdated, event.TypeSubtaskMoved:
		c.Subtasks.ApplyRemoteUpsert(*payload.(*domain.Subtask))
	case event.TypeSubtaskDeleted:
		c.Subtasks.ApplyRemoteDelete(payload.(*event.DeletedPayload).ID)
	case event.TypeCommentCreated, event.TypeCommentUpdated:
		c.Comments.ApplyRemoteUpsert(*payload.(*domain.Comment))
	case event.TypeCommentDeleted:
		c.Comments.ApplyRemoteDelete(payload.(*event.DeletedPayload).ID)
	case event.TypeReactionToggled:
		p := payload.(*event.ReactionsPayload)
		if comment, ok := c.Comments.Get(p.CommentID); ok {
			comment.Reactions = p.Reactions
			c.Comments.ApplyRemoteUpsert(comment)
		}
	case event.TypeTaskCreated, event.TypeTaskUpdated:
		c.Tasks.ApplyRemoteUpsert(*payload.(*domain.DashboardTask))
	case event.TypeTaskDeleted:
		c.Tasks.ApplyRemoteDelete(payload.(*event.DeletedPayload).ID)
	case event.TypePresenceUpdated:
		p := payload.(*event.PresencePayload)
		c.mu.Lock()
		c.presence[p.UserID] = *p
		c.mu.Unlock()
	case event.TypeTypingUpdate:
		p := payload.(*event.TypingPayload)
		c.mu.Lock()
		set, ok := c.typing[p.RecordID]
		if !ok {
			set = make(map[string]bool)
			c.typing[p.RecordID] = set
		}
		if p.IsTyping {
			set[p.UserID] = true
		} else {
			delete(set, p.UserID)
		}
		c.mu.Unlock()
	case event.TypeFieldEditing:
		p := payload.(*event.FieldEditPayload)
		c.Advisor.ObserveEditing(p.RecordID, p.FieldName, p.UserID)
	case event.TypeFieldStopped:
		p := payload.(*event.FieldEditPayload)
		c.Advisor.ObserveStopped(p.RecordID, p.FieldName, p.UserID)
	}
}

// Presence returns the user's last known presence entry.
func (c *Client) Presence(userID string) (event.PresencePayload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presence[userID]
	return p, ok
}

// TypingUsers returns who is currently typing on the record.
func (c *Client) TypingUsers(recordID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for userID := range c.typing[recordID] {
		out = append(out, userID)
	}
	return out
}

// JoinRecord subscribes to a record room (or a collection room, see
// event.ListRoom).
func (c *Client) JoinRecord(recordID string) error {
	return c.send(event.TypeJoinRecord, event.RoomPayload{RecordID: recordID})
}

// LeaveRecord unsubscribes from a room.
func (c *Client) LeaveRecord(recordID string) error {
	return c.send(event.TypeLeaveRecord, event.RoomPayload{RecordID: recordID})
}

// StartTyping signals that the user is typing on the record.
func (c *Client) StartTyping(recordID string) error {
	return c.send(event.TypeTypingStart, event.TypingSignalPayload{RecordID: recordID})
}

// StopTyping signals that the user stopped typing.
func (c *Client) StopTyping(recordID string) error {
	return c.send(event.TypeTypingStop, event.TypingSignalPayload{RecordID: recordID})
}

// UpdatePresence reports which record the user is currently viewing.
func (c *Client) UpdatePresence(currentRecordID string) error {
	return c.send(event.TypePresenceUpdate, event.PresenceSignalPayload{CurrentRecordID: currentRecordID})
}

// StartFieldEdit signals the edit to the server and returns an advisory
// warning when someone else is already on the field. The warning never blocks
// the edit.
func (c *Client) StartFieldEdit(recordID, fieldName string) (*ConflictWarning, error) {
	warning := c.Advisor.StartEdit(recordID, fieldName)
	if err := c.send(event.TypeFieldStart, event.FieldSignalPayload{RecordID: recordID, FieldName: fieldName}); err != nil {
		return warning, err
	}
	return warning, nil
}

// StopFieldEdit signals the end of the edit.
func (c *Client) StopFieldEdit(recordID, fieldName string) error {
	return c.send(event.TypeFieldStop, event.FieldSignalPayload{RecordID: recordID, FieldName: fieldName})
}

func (c *Client) send(typ event.Type, payload any) error {
	env, err := event.New(typ, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return fmt.Errorf("syncclient: connection closed")
	default:
	}
	return c.ws.WriteJSON(env)
}

// Close shuts the connection down. Idempotent.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Done is closed when the connection has shut down.
func (c *Client) Done() <-chan struct{} { return c.done }
