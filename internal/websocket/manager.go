package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
)

// SessionAccess is the part of the session store the gateway relies on.
type SessionAccess interface {
	Get(ctx context.Context, sessionID uuid.UUID, actorID string) (*models.ExchangeSession, error)
	AppendMessage(ctx context.Context, sessionID uuid.UUID, senderID string, kind models.MessageKind, body, contentRef string) (*models.Message, error)
}

// room is the set of connections joined to one session.
type room struct {
	mu      sync.Mutex
	members map[uuid.UUID]*Client
}

func (r *room) snapshot(exclude uuid.UUID) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.members))
	for id, c := range r.members {
		if id != exclude {
			out = append(out, c)
		}
	}
	return out
}

// Manager brokers realtime traffic between session participants.
// Lock order is roomsMutex before room.mu; client locks are never held
// while taking either.
type Manager struct {
	sessions SessionAccess
	log      *slog.Logger

	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex

	rooms      map[uuid.UUID]*room
	roomsMutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(sessions SessionAccess, log *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: sessions,
		log:      log.With("component", "gateway"),
		clients:  make(map[uuid.UUID]*Client),
		rooms:    make(map[uuid.UUID]*room),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	client.log.Info("websocket client connected")
}

// RemoveClient drops the connection from every room it joined.
func (m *Manager) RemoveClient(client *Client) {
	m.clientsMutex.Lock()
	_, exists := m.clients[client.ID]
	delete(m.clients, client.ID)
	m.clientsMutex.Unlock()
	if !exists {
		return
	}

	for _, sessionID := range client.roomIDs() {
		m.LeaveRoom(client, sessionID)
	}
	client.log.Info("websocket client disconnected")
}

// HandleFrame dispatches one inbound frame. Failures are reported to the
// sending client only.
func (m *Manager) HandleFrame(ctx context.Context, client *Client, data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		m.sendError(client, fmt.Errorf("malformed frame: %w", apperrors.ErrInvalidInput))
		return
	}
	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		m.sendError(client, fmt.Errorf("invalid session_id %q: %w", in.SessionID, apperrors.ErrInvalidInput))
		return
	}

	switch in.Type {
	case EventJoin:
		err = m.JoinRoom(ctx, client, sessionID)
	case EventLeave:
		m.LeaveRoom(client, sessionID)
	case EventSendMessage:
		err = m.RelayMessage(ctx, client, sessionID, in.Kind, in.Body, in.ContentRef)
	case EventTyping, EventStopTyping:
		err = m.RelayEphemeral(client, sessionID, in.Type)
	default:
		err = fmt.Errorf("unknown frame type %q: %w", in.Type, apperrors.ErrInvalidInput)
	}
	if err != nil {
		m.sendError(client, err)
	}
}

// JoinRoom adds a participant's connection to the session room and tells
// the room, the joiner included.
func (m *Manager) JoinRoom(ctx context.Context, client *Client, sessionID uuid.UUID) error {
	sess, err := m.sessions.Get(ctx, sessionID, client.UserID)
	if err != nil {
		return err
	}
	if sess.Ended() {
		return fmt.Errorf("session %s: %w", sessionID, apperrors.ErrSessionClosed)
	}

	m.roomsMutex.Lock()
	r, ok := m.rooms[sessionID]
	if !ok {
		r = &room{members: make(map[uuid.UUID]*Client)}
		m.rooms[sessionID] = r
	}
	r.mu.Lock()
	r.members[client.ID] = client
	r.mu.Unlock()
	m.roomsMutex.Unlock()

	client.joinedRoom(sessionID)
	client.log.Debug("joined room", "session_id", sessionID)
	m.broadcast(sessionID, lifecycleEvent(EventJoined, sessionID, client.UserID), uuid.Nil)
	return nil
}

// LeaveRoom removes the connection and tells the remaining members. The
// room goes away with its last member.
func (m *Manager) LeaveRoom(client *Client, sessionID uuid.UUID) {
	if !client.leftRoom(sessionID) {
		return
	}

	m.roomsMutex.Lock()
	if r, ok := m.rooms[sessionID]; ok {
		r.mu.Lock()
		delete(r.members, client.ID)
		empty := len(r.members) == 0
		r.mu.Unlock()
		if empty {
			delete(m.rooms, sessionID)
		}
	}
	m.roomsMutex.Unlock()

	m.broadcast(sessionID, lifecycleEvent(EventLeft, sessionID, client.UserID), uuid.Nil)
}

// RelayMessage stores the message and, once committed, fans it out to the
// room with an ack to the sender.
func (m *Manager) RelayMessage(ctx context.Context, client *Client, sessionID uuid.UUID, kind models.MessageKind, body, contentRef string) error {
	msg, err := m.sessions.AppendMessage(ctx, sessionID, client.UserID, kind, body, contentRef)
	if err != nil {
		return err
	}
	m.BroadcastMessage(*msg)
	client.sendEvent(Event{Type: EventMessageSent, SessionID: &sessionID, ActorID: client.UserID, Message: msg})
	return nil
}

// RelayEphemeral forwards typing indicators to the other members. Nothing
// is stored.
func (m *Manager) RelayEphemeral(client *Client, sessionID uuid.UUID, t EventType) error {
	if !client.inRoom(sessionID) {
		return fmt.Errorf("not joined to session %s: %w", sessionID, apperrors.ErrForbidden)
	}
	m.broadcast(sessionID, lifecycleEvent(t, sessionID, client.UserID), client.ID)
	return nil
}

// BroadcastMessage delivers a committed message to every member of its room.
func (m *Manager) BroadcastMessage(msg models.Message) {
	sessionID := msg.SessionID
	m.broadcast(sessionID, Event{Type: EventMessage, SessionID: &sessionID, Message: &msg}, uuid.Nil)
}

// Consume announces a session end to its room. Connections stay open.
func (m *Manager) Consume(_ context.Context, evt models.SessionEndedEvent) error {
	m.SessionEnded(evt.SessionID, evt.EndedBy)
	return nil
}

func (m *Manager) SessionEnded(sessionID uuid.UUID, actorID string) {
	m.broadcast(sessionID, lifecycleEvent(EventSessionEnded, sessionID, actorID), uuid.Nil)
}

// RoomSize reports how many connections are joined to the session.
func (m *Manager) RoomSize(sessionID uuid.UUID) int {
	m.roomsMutex.RLock()
	defer m.roomsMutex.RUnlock()
	r, ok := m.rooms[sessionID]
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (m *Manager) broadcast(sessionID uuid.UUID, evt Event, exclude uuid.UUID) {
	m.roomsMutex.RLock()
	r, ok := m.rooms[sessionID]
	m.roomsMutex.RUnlock()
	if !ok {
		return
	}
	members := r.snapshot(exclude)
	if len(members) == 0 {
		return
	}

	evt.Timestamp = time.Now().UTC()
	frame, err := json.Marshal(evt)
	if err != nil {
		m.log.Error("marshal event", "type", evt.Type, "error", err)
		return
	}
	for _, c := range members {
		c.enqueue(frame)
	}
}

func (m *Manager) sendError(client *Client, err error) {
	msg := err.Error()
	if !apperrors.IsClientError(err) {
		client.log.Error("frame failed", "error", err)
		msg = "internal server error"
	}
	client.sendEvent(Event{Type: EventError, Code: apperrors.Code(err), Error: msg})
}

// Shutdown closes every connection.
func (m *Manager) Shutdown() {
	m.cancel()

	m.clientsMutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMutex.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
