package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
)

// ErrClientClosed is returned when sending to a disconnected viewer
var ErrClientClosed = errors.New("client closed")

// Client is one viewer connection
type Client struct {
	ID   string
	Room string

	conn *websocket.Conn
	hub  *Hub

	mu     sync.Mutex
	send   chan []byte
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	heartbeatMu   sync.RWMutex
	lastHeartbeat time.Time
	connectedAt   time.Time
}

// NewClient creates a viewer of room. conn may be nil in tests.
func NewClient(id, room string, conn *websocket.Conn, hub *Hub) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	now := time.Now()
	return &Client{
		ID:            id,
		Room:          room,
		conn:          conn,
		hub:           hub,
		send:          make(chan []byte, sendQueueSize),
		ctx:           ctx,
		cancel:        cancel,
		lastHeartbeat: now,
		connectedAt:   now,
	}
}

// ReadPump reads viewer frames until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		c.touch()

		if err := c.hub.handle(c.ctx, c, data); err != nil {
			c.hub.logger.Debug("message handling failed", zap.String("client_id", c.ID), zap.Error(err))
			c.SendError(err.Error())
		}
	}
}

// WritePump writes queued frames and keepalive pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per message so viewers can parse each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a message for this viewer
func (c *Client) Send(message *Message) error {
	data, err := marshalMessage(message)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	if !c.enqueue(data) {
		return errors.New("send queue full")
	}
	return nil
}

// SendJSON queues payload under messageType
func (c *Client) SendJSON(messageType string, payload any) error {
	return c.Send(&Message{Type: messageType, Room: c.Room, Payload: payload})
}

// SendError reports a failure to the viewer
func (c *Client) SendError(message string) {
	_ = c.SendJSON(TypeError, map[string]string{"message": message})
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) touch() {
	c.heartbeatMu.Lock()
	c.lastHeartbeat = time.Now()
	c.heartbeatMu.Unlock()
}

// LastHeartbeat returns when the viewer was last heard from
func (c *Client) LastHeartbeat() time.Time {
	c.heartbeatMu.RLock()
	defer c.heartbeatMu.RUnlock()
	return c.lastHeartbeat
}

// ConnectionDuration returns how long the viewer has been connected
func (c *Client) ConnectionDuration() time.Duration {
	return time.Since(c.connectedAt)
}

// Close disconnects the viewer
func (c *Client) Close() {
	c.cancel()
	c.hub.remove(c)
}
