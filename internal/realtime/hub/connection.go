package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderdesk/backend/internal/realtime/event"
)

const (
	// writeWait is the max time allowed for a single websocket write.
	writeWait = 10 * time.Second
	// pongWait is how long to wait for a pong before considering the peer dead.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// DefaultSendBuffer is the per-connection outbound queue size. A member
	// slower than this loses events rather than stalling the fan-out.
	DefaultSendBuffer = 64
)

var (
	// ErrConnClosed is returned by Send after the connection shut down.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when the outbound queue is full; the event
	// is dropped for this member only.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn wraps one websocket connection with a buffered outbound queue. All
// writes go through the write pump goroutine, so fan-outs from many publishers
// serialize into one ordered stream per member.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan *event.Envelope
	done   chan struct{}
	once   sync.Once
}

// NewConn wraps ws. sendBuffer <= 0 uses DefaultSendBuffer. The caller must
// run WritePump and ReadPump.
func NewConn(id, userID string, ws *websocket.Conn, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan *event.Envelope, sendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user behind the connection.
func (c *Conn) UserID() string { return c.userID }

// Send enqueues the envelope for the write pump without blocking. Returns
// ErrConnClosed or ErrSendBufferFull when the event cannot be delivered; the
// caller treats both as a non-fatal delivery failure.
func (c *Conn) Send(env *event.Envelope) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// WritePump drains the send queue to the websocket and keeps the connection
// alive with pings. Runs until Close or a write error.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadPump reads envelopes and passes each to handle, serially, until the
// peer disconnects or a read error occurs. Serial dispatch is what preserves
// FIFO ordering per publishing connection.
func (c *Conn) ReadPump(handle func(*event.Envelope)) {
	defer c.Close()
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var env event.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		handle(&env)
	}
}

// Close shuts the connection down. Idempotent.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }
