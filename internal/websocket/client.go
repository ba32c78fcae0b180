package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"cra-notify/internal/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer     = 256
	defaultMaxMessageSize = 4096
)

var (
	ErrClientDisconnected = errors.New("client disconnected")
	ErrSlowConsumer       = errors.New("client send buffer full")
)

// Conn is the part of *websocket.Conn the pumps rely on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one authenticated socket.
type Client struct {
	id     string
	hub    *Hub
	conn   Conn
	send   chan []byte
	userID string
	role   string
	name   string

	// rooms this socket is in, guarded by hub.mu
	rooms map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	closed int32

	wg sync.WaitGroup
}

func NewClient(hub *Hub, conn Conn, identity *auth.Identity) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.sendBuffer),
		userID: identity.UserID,
		role:   identity.Role,
		name:   identity.Name,
		rooms:  make(map[string]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// close marks the client closed and stops both pumps. Safe to call repeatedly.
func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
		if err := c.conn.Close(); err != nil {
			c.hub.logger.Debug("Error closing connection", "clientID", c.id, "userID", c.userID, "error", err)
		}
	}
}

// Send enqueues an event without blocking. A full buffer means the peer is not
// keeping up; the socket is closed and the client reconciles over REST.
func (c *Client) Send(e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.hub.logger.Warn("Send buffer full, closing client", "clientID", c.id, "userID", c.userID)
		c.close()
		return ErrSlowConsumer
	}
}

func (c *Client) sendError(message string) {
	_ = c.Send(ErrorEvent{Message: message})
}

// Start runs both pumps. It returns immediately.
func (c *Client) Start() {
	c.wg.Add(2)
	go c.writePump()
	go c.readPump()
}

// Wait blocks until both pumps have returned.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) readPump() {
	defer func() {
		c.wg.Done()
		c.close()
		c.hub.Detach(c)
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket error", "clientID", c.id, "userID", c.userID, "error", err)
			} else {
				c.hub.logger.Debug("WebSocket connection closed", "clientID", c.id, "userID", c.userID, "error", err)
			}
			return
		}

		c.hub.HandleFrame(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.wg.Done()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("Error writing message", "clientID", c.id, "userID", c.userID, "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("Error sending ping", "clientID", c.id, "userID", c.userID, "error", err)
				c.close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
