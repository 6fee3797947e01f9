// Package websocket streams canvas changes of open models to viewers. Each
// model is a room; viewers receive a snapshot on join and every committed
// change afterwards.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JoinFunc sends the initial state of a room to a new viewer. It also
// serves resync requests.
type JoinFunc func(ctx context.Context, client *Client) error

type roomMessage struct {
	room string
	data []byte
}

// Hub tracks viewers per room and fans out room messages
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	unregister chan *Client
	broadcast  chan roomMessage

	handlersMu sync.RWMutex
	handlers   map[string]MessageHandler
	onJoin     JoinFunc

	logger     *zap.Logger
	staleAfter time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewHub creates a hub bound to ctx
func NewHub(ctx context.Context, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hubCtx, cancel := context.WithCancel(ctx)
	h := &Hub{
		rooms:      make(map[string]map[*Client]bool),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan roomMessage, 1024),
		handlers:   make(map[string]MessageHandler),
		logger:     logger,
		staleAfter: 90 * time.Second,
		ctx:        hubCtx,
		cancel:     cancel,
	}
	h.RegisterHandler(TypePing, PingHandler)
	h.RegisterHandler(TypeResync, func(ctx context.Context, c *Client, _ *Message) error {
		return h.join(ctx, c)
	})
	return h
}

// RegisterHandler sets the handler of a viewer message type
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[messageType] = handler
}

// OnJoin sets the function that sends the initial room state
func (h *Hub) OnJoin(fn JoinFunc) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.onJoin = fn
}

// Run is the hub event loop. It returns when the hub is shut down.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	cleanup := time.NewTicker(30 * time.Second)
	defer cleanup.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-cleanup.C:
			h.removeStale()
		}
	}
}

// Publish queues payload for every viewer of room
func (h *Hub) Publish(room, messageType string, payload any) {
	data, err := marshalMessage(&Message{Type: messageType, Room: room, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("room", room), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("broadcast queue full, message dropped", zap.String("room", room))
	}
}

// add registers client in its room and sends it the room state
func (h *Hub) add(client *Client) error {
	h.mu.Lock()
	if h.rooms[client.Room] == nil {
		h.rooms[client.Room] = make(map[*Client]bool)
	}
	h.rooms[client.Room][client] = true
	h.mu.Unlock()

	h.logger.Debug("viewer joined",
		zap.String("client_id", client.ID),
		zap.String("room", client.Room),
		zap.Int("viewers", h.RoomSize(client.Room)),
	)
	return h.join(client.ctx, client)
}

func (h *Hub) join(ctx context.Context, client *Client) error {
	h.handlersMu.RLock()
	fn := h.onJoin
	h.handlersMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, client)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	viewers, ok := h.rooms[client.Room]
	if ok && viewers[client] {
		delete(viewers, client)
		if len(viewers) == 0 {
			delete(h.rooms, client.Room)
		}
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		client.closeSend()
		h.logger.Debug("viewer left", zap.String("client_id", client.ID), zap.String("room", client.Room))
	}
}

func (h *Hub) deliver(msg roomMessage) {
	for _, client := range h.Clients(msg.room) {
		if !client.enqueue(msg.data) {
			h.logger.Warn("viewer send queue full, skipping",
				zap.String("client_id", client.ID),
				zap.String("room", msg.room),
			)
		}
	}
}

func (h *Hub) removeStale() {
	h.mu.RLock()
	var stale []*Client
	for _, viewers := range h.rooms {
		for client := range viewers {
			if time.Since(client.LastHeartbeat()) > h.staleAfter {
				stale = append(stale, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Info("removing stale viewer", zap.String("client_id", client.ID))
		client.cancel()
		h.remove(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	n := 0
	for _, viewers := range rooms {
		for client := range viewers {
			client.cancel()
			if client.conn != nil {
				client.conn.Close()
			}
			n++
		}
	}
	h.logger.Info("hub stopped", zap.Int("viewers", n))
}

// handle dispatches a frame received from client
func (h *Hub) handle(ctx context.Context, client *Client, data []byte) error {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return err
	}

	h.handlersMu.RLock()
	handler, ok := h.handlers[message.Type]
	h.handlersMu.RUnlock()
	if !ok {
		h.logger.Debug("no handler for message type", zap.String("type", message.Type))
		return nil
	}
	return handler(ctx, client, &message)
}

// Clients returns the viewers of room
func (h *Hub) Clients(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	viewers := h.rooms[room]
	out := make([]*Client, 0, len(viewers))
	for client := range viewers {
		out = append(out, client)
	}
	return out
}

// RoomSize returns the number of viewers of room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of rooms with viewers
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown disconnects every viewer and waits for Run to return
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		h.cancel()
		h.wg.Wait()
	})
}
