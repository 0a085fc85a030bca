package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	writeWait = 10 * time.Second

	maxMessageSize = 512 * 1024

	sendBufferSize = 256

	// frameTimeout bounds the storage work done for one inbound frame.
	frameTimeout = 10 * time.Second
)

// Client is one authenticated websocket connection.
type Client struct {
	ID      uuid.UUID
	UserID  string
	conn    *websocket.Conn
	send    chan []byte
	manager *Manager
	log     *slog.Logger

	roomsMu sync.Mutex
	rooms   map[uuid.UUID]struct{}

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewClient(userID string, conn *websocket.Conn, manager *Manager) *Client {
	id := uuid.New()
	return &Client{
		ID:        id,
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		manager:   manager,
		log:       manager.log.With("client_id", id, "actor_id", userID),
		rooms:     make(map[uuid.UUID]struct{}),
		closeChan: make(chan struct{}),
	}
}

// Start registers the client and runs its pumps.
func (c *Client) Start() {
	c.manager.AddClient(c)

	go c.readPump()
	go c.writePump()
}

// Close tears the connection down; the read pump then unregisters it.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		_ = c.conn.Close()
	})
}

// enqueue hands a frame to the write pump. A full buffer drops the client.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.closeChan:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("send buffer full, dropping connection")
		c.Close()
		return false
	}
}

func (c *Client) sendEvent(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	frame, err := json.Marshal(evt)
	if err != nil {
		c.log.Error("marshal event", "type", evt.Type, "error", err)
		return
	}
	c.enqueue(frame)
}

func (c *Client) joinedRoom(sessionID uuid.UUID) {
	c.roomsMu.Lock()
	c.rooms[sessionID] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) leftRoom(sessionID uuid.UUID) bool {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if _, ok := c.rooms[sessionID]; !ok {
		return false
	}
	delete(c.rooms, sessionID)
	return true
}

func (c *Client) inRoom(sessionID uuid.UUID) bool {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	_, ok := c.rooms[sessionID]
	return ok
}

// roomIDs drains the client's memberships.
func (c *Client) roomIDs() []uuid.UUID {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) readPump() {
	defer func() {
		c.manager.RemoveClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected close", "error", err)
			}
			return
		}

		ctx, cancel := context.WithTimeout(c.manager.ctx, frameTimeout)
		c.manager.HandleFrame(ctx, c, data)
		cancel()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
