package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// Conn - часть *websocket.Conn, которой пользуется клиент.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection of a user watching a match.
type Client struct {
	ID      string
	MatchID int
	UserID  int

	hub  *Hub
	conn Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(h *Hub, conn Conn, matchID, userID int) *Client {
	return &Client{
		ID:      uuid.NewString(),
		MatchID: matchID,
		UserID:  userID,
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}
}

// trySend never blocks; false means the client is gone or too slow.
func (c *Client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) logger() *slog.Logger {
	return c.hub.logger.With(
		slog.Int("match_id", c.MatchID),
		slog.Int("user_id", c.UserID),
		slog.String("client_id", c.ID),
	)
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.release(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}
		c.hub.HandleMessage(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().Debug("websocket write failed", slog.Any("error", err))
				return
			}

			// каждое событие - отдельный кадр, иначе клиент получит склеенный JSON
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().Debug("websocket ping failed", slog.Any("error", err))
				return
			}
		}
	}
}
