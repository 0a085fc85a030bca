package websocket

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/exchange-api/internal/models"
)

// EventType names a frame on the realtime channel.
type EventType string

// Client to server.
const (
	EventJoin        EventType = "join"
	EventLeave       EventType = "leave"
	EventSendMessage EventType = "send_message"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stop_typing"
)

// Server to client.
const (
	EventMessage      EventType = "message"
	EventJoined       EventType = "joined"
	EventLeft         EventType = "left"
	EventSessionEnded EventType = "session_ended"
	EventMessageSent  EventType = "message_sent"
	EventError        EventType = "error"
)

// Inbound is a frame sent by a client.
type Inbound struct {
	Type       EventType          `json:"type"`
	SessionID  string             `json:"session_id"`
	Kind       models.MessageKind `json:"kind,omitempty"`
	Body       string             `json:"body,omitempty"`
	ContentRef string             `json:"content_ref,omitempty"`
}

// Event is a frame sent to a client.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID *uuid.UUID      `json:"session_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func lifecycleEvent(t EventType, sessionID uuid.UUID, actorID string) Event {
	return Event{Type: t, SessionID: &sessionID, ActorID: actorID}
}
