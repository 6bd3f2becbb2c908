// Package server exposes the realtime websocket endpoint: it upgrades
// authenticated connections, dispatches inbound signals to the hub and the
// presence tracker, and cleans up membership, presence, and field locks when a
// connection goes away.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"orderdesk/backend/internal/identity"
	"orderdesk/backend/internal/realtime/event"
	"orderdesk/backend/internal/realtime/hub"
	"orderdesk/backend/internal/realtime/presence"
	"orderdesk/backend/internal/telemetry"
)

// PresenceRoom is the room every connection joins on connect; presence changes
// fan out here so all clients keep a live team presence map.
const PresenceRoom = "presence"

// Deps holds the server's collaborators. Resolver is required; nil Hub or
// Tracker get fresh instances; Metrics and Emitter may be nil.
type Deps struct {
	Resolver   *identity.Resolver
	Hub        *hub.Hub
	Tracker    *presence.Tracker
	Metrics    *telemetry.Metrics
	Emitter    telemetry.EventEmitter
	SendBuffer int
}

// Server handles websocket upgrades and the inbound signal protocol.
type Server struct {
	resolver *identity.Resolver
	hub      *hub.Hub
	tracker  *presence.Tracker
	metrics  *telemetry.Metrics
	emitter  telemetry.EventEmitter

	upgrader   websocket.Upgrader
	sendBuffer int
	handlers   map[event.Type]func(*session, *event.Envelope)
}

// session is the per-connection state threaded through signal handlers.
type session struct {
	conn  *hub.Conn
	ident *identity.Identity
}

// New builds a Server. See Deps for which fields are optional.
func New(deps Deps) *Server {
	h := deps.Hub
	if h == nil {
		h = hub.New(deps.Metrics)
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = presence.NewTracker(0)
	}
	s := &Server{
		resolver: deps.Resolver,
		hub:      h,
		tracker:  tracker,
		metrics:  deps.Metrics,
		emitter:  deps.Emitter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The websocket is same-app; auth is the bearer token, not the Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: deps.SendBuffer,
	}
	s.handlers = map[event.Type]func(*session, *event.Envelope){
		event.TypeJoinRecord:     s.handleJoin,
		event.TypeLeaveRecord:    s.handleLeave,
		event.TypeTypingStart:    s.handleTypingStart,
		event.TypeTypingStop:     s.handleTypingStop,
		event.TypePresenceUpdate: s.handlePresenceUpdate,
		event.TypeFieldStart:     s.handleFieldStart,
		event.TypeFieldStop:      s.handleFieldStop,
	}
	return s
}

// Hub returns the hub, for composing the Broadcaster.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Tracker returns the presence tracker, for wiring the sweeper.
func (s *Server) Tracker() *presence.Tracker { return s.tracker }

// RegisterRoutes mounts the websocket endpoint on the router.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ident, err := s.resolver.Resolve(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("realtime: upgrade failed for %s: %v", ident.UserID, err)
		return
	}

	connID := uuid.NewString()
	conn := hub.NewConn(connID, ident.UserID, ws, s.sendBuffer)
	sess := &session{conn: conn, ident: ident}

	entry := s.tracker.Update(connID, ident.UserID, "")
	s.hub.Join(PresenceRoom, conn)
	s.sendPresenceSnapshot(conn)
	s.broadcastPresence(r.Context(), entry)
	telemetry.EmitAsync(s.emitter, &telemetry.Event{
		UserID:    ident.UserID,
		EventType: telemetry.EventConnectionOpened,
		Source:    telemetry.SourceRealtime,
		CreatedAt: time.Now().UTC(),
	})

	go conn.WritePump()
	go func() {
		conn.ReadPump(func(env *event.Envelope) { s.dispatch(sess, env) })
		s.teardown(sess)
	}()
}

// dispatch routes one inbound envelope through the handler table. Unknown
// types are logged and dropped so a newer client cannot wedge the connection.
func (s *Server) dispatch(sess *session, env *event.Envelope) {
	s.tracker.Touch(sess.conn.ID())
	h, ok := s.handlers[env.Type]
	if !ok {
		log.Printf("realtime: dropping unknown signal %q from %s", env.Type, sess.ident.UserID)
		return
	}
	h(sess, env)
}

// teardown runs once the read pump exits: membership, presence, and every
// field lock the connection held are released and the departures fanned out.
func (s *Server) teardown(sess *session) {
	ctx := context.Background()
	connID := sess.conn.ID()

	emptied := s.hub.LeaveAll(connID)
	for _, roomID := range emptied {
		s.tracker.ReleaseRecord(roomID)
	}
	entry, ok, released := s.tracker.Disconnect(connID)
	for _, l := range released {
		s.broadcastFieldStopped(ctx, l)
	}
	if ok {
		entry.IsOnline = false
		s.broadcastPresence(ctx, entry)
	}
	telemetry.EmitAsync(s.emitter, &telemetry.Event{
		UserID:    sess.ident.UserID,
		EventType: telemetry.EventConnectionClosed,
		Source:    telemetry.SourceRealtime,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) handleJoin(sess *session, env *event.Envelope) {
	var p event.RoomPayload
	if err := env.DecodeInto(&p); err != nil || p.RecordID == "" {
		return
	}
	s.hub.Join(p.RecordID, sess.conn)
	telemetry.EmitAsync(s.emitter, &telemetry.Event{
		UserID:    sess.ident.UserID,
		RecordID:  p.RecordID,
		EventType: telemetry.EventRoomJoined,
		Source:    telemetry.SourceRealtime,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) handleLeave(sess *session, env *event.Envelope) {
	var p event.RoomPayload
	if err := env.DecodeInto(&p); err != nil || p.RecordID == "" {
		return
	}
	if emptied := s.hub.Leave(p.RecordID, sess.conn.ID()); emptied {
		s.tracker.ReleaseRecord(p.RecordID)
	}
}

func (s *Server) handleTypingStart(sess *session, env *event.Envelope) {
	s.publishTyping(sess, env, true)
}

func (s *Server) handleTypingStop(sess *session, env *event.Envelope) {
	s.publishTyping(sess, env, false)
}

func (s *Server) publishTyping(sess *session, env *event.Envelope, isTyping bool) {
	var p event.TypingSignalPayload
	if err := env.DecodeInto(&p); err != nil || p.RecordID == "" {
		return
	}
	out, err := event.New(event.TypeTypingUpdate, event.TypingPayload{
		RecordID: p.RecordID,
		UserID:   sess.ident.UserID,
		IsTyping: isTyping,
	})
	if err != nil {
		return
	}
	s.hub.PublishExcept(context.Background(), p.RecordID, sess.conn.ID(), out)
}

func (s *Server) handlePresenceUpdate(sess *session, env *event.Envelope) {
	var p event.PresenceSignalPayload
	if err := env.DecodeInto(&p); err != nil {
		return
	}
	entry := s.tracker.Update(sess.conn.ID(), sess.ident.UserID, p.CurrentRecordID)
	s.broadcastPresence(context.Background(), entry)
}

func (s *Server) handleFieldStart(sess *session, env *event.Envelope) {
	var p event.FieldSignalPayload
	if err := env.DecodeInto(&p); err != nil || p.RecordID == "" || p.FieldName == "" {
		return
	}
	ctx := context.Background()
	if other, held := s.tracker.Editor(p.RecordID, p.FieldName, sess.ident.UserID); held {
		s.metrics.ConflictDetected(ctx, p.FieldName)
		telemetry.EmitAsync(s.emitter, &telemetry.Event{
			UserID:    sess.ident.UserID,
			RecordID:  p.RecordID,
			EventType: telemetry.EventFieldConflict,
			Source:    telemetry.SourceRealtime,
			CreatedAt: time.Now().UTC(),
		})
		_ = other // the lock is advisory: the new editor still takes it over
	}
	l := s.tracker.SetFieldEditing(p.RecordID, p.FieldName, sess.ident.UserID, sess.conn.ID())
	out, err := event.New(event.TypeFieldEditing, event.FieldEditPayload{
		RecordID:  l.RecordID,
		FieldName: l.FieldName,
		UserID:    l.EditingBy,
	})
	if err != nil {
		return
	}
	s.hub.PublishExcept(ctx, p.RecordID, sess.conn.ID(), out)
}

func (s *Server) handleFieldStop(sess *session, env *event.Envelope) {
	var p event.FieldSignalPayload
	if err := env.DecodeInto(&p); err != nil || p.RecordID == "" || p.FieldName == "" {
		return
	}
	// The owner check means a stale stop cannot clobber a lock another user
	// has since taken; no event fans out for a no-op clear.
	if !s.tracker.ClearFieldEditing(p.RecordID, p.FieldName, sess.ident.UserID) {
		return
	}
	s.broadcastFieldStopped(context.Background(), presence.FieldLock{
		RecordID:  p.RecordID,
		FieldName: p.FieldName,
		EditingBy: sess.ident.UserID,
	})
}

// OnExpired is the sweeper callback: expired presence entries go offline and
// expired locks fan out as stopped edits.
func (s *Server) OnExpired(entries []presence.Entry, locks []presence.FieldLock) {
	ctx := context.Background()
	for _, e := range entries {
		e.IsOnline = false
		s.broadcastPresence(ctx, e)
	}
	for _, l := range locks {
		s.broadcastFieldStopped(ctx, l)
	}
}

func (s *Server) broadcastPresence(ctx context.Context, e presence.Entry) {
	out, err := event.New(event.TypePresenceUpdated, event.PresencePayload{
		UserID:          e.UserID,
		IsOnline:        e.IsOnline,
		CurrentRecordID: e.CurrentRecordID,
		LastActivity:    e.LastActivity,
	})
	if err != nil {
		return
	}
	s.hub.Publish(ctx, PresenceRoom, out)
}

func (s *Server) broadcastFieldStopped(ctx context.Context, l presence.FieldLock) {
	out, err := event.New(event.TypeFieldStopped, event.FieldEditPayload{
		RecordID:  l.RecordID,
		FieldName: l.FieldName,
		UserID:    l.EditingBy,
	})
	if err != nil {
		return
	}
	s.hub.Publish(ctx, l.RecordID, out)
}

// sendPresenceSnapshot delivers the current presence map to a newly connected
// client, one presence:updated per entry.
func (s *Server) sendPresenceSnapshot(conn *hub.Conn) {
	for _, e := range s.tracker.Snapshot() {
		out, err := event.New(event.TypePresenceUpdated, event.PresencePayload{
			UserID:          e.UserID,
			IsOnline:        e.IsOnline,
			CurrentRecordID: e.CurrentRecordID,
			LastActivity:    e.LastActivity,
		})
		if err != nil {
			continue
		}
		if err := conn.Send(out); err != nil {
			return
		}
	}
}
