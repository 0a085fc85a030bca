package websocket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
	"github.com/skillswap/exchange-api/internal/utils"
)

type fakeSessions struct {
	mu   sync.Mutex
	sess models.ExchangeSession
}

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID, actorID string) (*models.ExchangeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.sess.ID {
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
	}
	if !f.sess.IsParticipant(actorID) {
		return nil, apperrors.ErrForbidden
	}
	sess := f.sess
	return &sess, nil
}

func (f *fakeSessions) AppendMessage(ctx context.Context, id uuid.UUID, senderID string, kind models.MessageKind, body, contentRef string) (*models.Message, error) {
	if _, err := f.Get(ctx, id, senderID); err != nil {
		return nil, err
	}
	payload, err := models.NewPayload(kind, body, contentRef)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess.LastSeq++
	return &models.Message{ID: uuid.New(), SessionID: id, Seq: f.sess.LastSeq, SenderID: senderID, Payload: payload, SentAt: time.Now().UTC()}, nil
}

type gateway struct {
	manager *Manager
	server  *httptest.Server
	jwt     *utils.JWTService
	session uuid.UUID
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	sessions := &fakeSessions{sess: models.ExchangeSession{
		ID:             uuid.New(),
		ProposalID:     uuid.New(),
		ParticipantIDs: [2]string{"alice", "bob"},
	}}
	jwtService := utils.NewJWTService("gateway-secret", time.Hour)
	m := NewManager(sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(m.Handler(jwtService))
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return &gateway{manager: m, server: srv, jwt: jwtService, session: sessions.sess.ID}
}

func (g *gateway) dial(t *testing.T, actorID string) *websocket.Conn {
	t.Helper()
	token, err := g.jwt.GenerateToken(actorID)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, in Inbound) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(in))
}

func next(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestHandshake(t *testing.T) {
	g := newGateway(t)

	t.Run("should refuse a missing token with 401", func(t *testing.T) {
		req := require.New(t)
		url := "ws" + strings.TrimPrefix(g.server.URL, "http")
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		req.Error(err)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should refuse an invalid token with 401", func(t *testing.T) {
		req := require.New(t)
		url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "?token=garbage"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		req.Error(err)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should accept a bearer header", func(t *testing.T) {
		req := require.New(t)
		token, err := g.jwt.GenerateToken("alice")
		req.NoError(err)
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(g.server.URL, "http"), header)
		req.NoError(err)
		_ = conn.Close()
	})
}

func TestRoomTraffic(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	sid := g.session.String()

	alice := g.dial(t, "alice")
	send(t, alice, Inbound{Type: EventJoin, SessionID: sid})
	evt := next(t, alice)
	req.Equal(EventJoined, evt.Type)
	req.Equal("alice", evt.ActorID)

	bob := g.dial(t, "bob")
	send(t, bob, Inbound{Type: EventJoin, SessionID: sid})
	req.Equal(EventJoined, next(t, bob).Type)
	evt = next(t, alice)
	req.Equal(EventJoined, evt.Type)
	req.Equal("bob", evt.ActorID)
	req.Equal(2, g.manager.RoomSize(g.session))

	t.Run("should deliver a message to the room and ack the sender", func(t *testing.T) {
		req := require.New(t)
		send(t, alice, Inbound{Type: EventSendMessage, SessionID: sid, Kind: models.KindText, Body: "hola"})

		got := next(t, bob)
		req.Equal(EventMessage, got.Type)
		req.Equal("hola", got.Message.Payload.Body())
		req.Equal(int64(1), got.Message.Seq)

		req.Equal(EventMessage, next(t, alice).Type)
		ack := next(t, alice)
		req.Equal(EventMessageSent, ack.Type)
		req.Equal(int64(1), ack.Message.Seq)
	})

	t.Run("should report an invalid payload to the sender only", func(t *testing.T) {
		req := require.New(t)
		send(t, alice, Inbound{Type: EventSendMessage, SessionID: sid, Kind: models.KindImage, Body: "no ref"})
		got := next(t, alice)
		req.Equal(EventError, got.Type)
		req.Equal("invalid_message", got.Code)
	})

	t.Run("should relay typing to the other member", func(t *testing.T) {
		req := require.New(t)
		send(t, bob, Inbound{Type: EventTyping, SessionID: sid})
		got := next(t, alice)
		req.Equal(EventTyping, got.Type)
		req.Equal("bob", got.ActorID)
	})

	t.Run("should announce the session end without closing connections", func(t *testing.T) {
		req := require.New(t)
		req.NoError(g.manager.Consume(context.Background(), models.SessionEndedEvent{SessionID: g.session, EndedBy: "bob"}))
		for _, conn := range []*websocket.Conn{alice, bob} {
			got := next(t, conn)
			req.Equal(EventSessionEnded, got.Type)
			req.Equal("bob", got.ActorID)
		}
	})

	t.Run("should tell the room when a member disconnects", func(t *testing.T) {
		req := require.New(t)
		req.NoError(bob.Close())
		got := next(t, alice)
		req.Equal(EventLeft, got.Type)
		req.Equal("bob", got.ActorID)
		req.Eventually(func() bool { return g.manager.RoomSize(g.session) == 1 }, time.Second, 10*time.Millisecond)
	})
}

func TestJoinRoom_Rejections(t *testing.T) {
	g := newGateway(t)

	t.Run("should refuse a non participant", func(t *testing.T) {
		req := require.New(t)
		carol := g.dial(t, "carol")
		send(t, carol, Inbound{Type: EventJoin, SessionID: g.session.String()})
		got := next(t, carol)
		req.Equal(EventError, got.Type)
		req.Equal("forbidden", got.Code)
		req.Zero(g.manager.RoomSize(g.session))
	})

	t.Run("should refuse typing before joining", func(t *testing.T) {
		req := require.New(t)
		alice := g.dial(t, "alice")
		send(t, alice, Inbound{Type: EventTyping, SessionID: g.session.String()})
		got := next(t, alice)
		req.Equal(EventError, got.Type)
		req.Equal("forbidden", got.Code)
	})

	t.Run("should reject malformed frames", func(t *testing.T) {
		req := require.New(t)
		alice := g.dial(t, "alice")
		req.NoError(alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
		got := next(t, alice)
		req.Equal("invalid_input", got.Code)

		send(t, alice, Inbound{Type: "dance", SessionID: g.session.String()})
		req.Equal("invalid_input", next(t, alice).Code)
	})
}

func TestLeaveRoom_DestroysEmptyRoom(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	alice := g.dial(t, "alice")

	send(t, alice, Inbound{Type: EventJoin, SessionID: g.session.String()})
	req.Equal(EventJoined, next(t, alice).Type)
	req.Equal(1, g.manager.RoomSize(g.session))

	send(t, alice, Inbound{Type: EventLeave, SessionID: g.session.String()})
	req.Eventually(func() bool { return g.manager.RoomSize(g.session) == 0 }, time.Second, 10*time.Millisecond)

	g.manager.roomsMutex.RLock()
	_, exists := g.manager.rooms[g.session]
	g.manager.roomsMutex.RUnlock()
	req.False(exists)
}
