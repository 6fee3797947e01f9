package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds upgrade settings
type Config struct {
	ReadBufferSize    int      `mapstructure:"read_buffer_size"`
	WriteBufferSize   int      `mapstructure:"write_buffer_size"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	EnableCompression bool     `mapstructure:"enable_compression"`
}

// DefaultConfig accepts any origin
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		AllowedOrigins:  []string{"*"},
	}
}

// checkOrigin accepts requests without an Origin header and those whose host
// matches an allowed origin
func (c Config) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		switch {
		case allowed == "*", allowed == origin, allowed == u.Host:
			return true
		case strings.HasPrefix(allowed, "*.") && strings.HasSuffix(u.Host, allowed[1:]):
			return true
		}
	}
	return false
}

// Upgrader turns HTTP requests into room viewers
type Upgrader struct {
	upgrader *websocket.Upgrader
	hub      *Hub
}

// NewUpgrader creates an Upgrader for hub
func NewUpgrader(config Config, hub *Hub) *Upgrader {
	return &Upgrader{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			CheckOrigin:       config.checkOrigin,
			EnableCompression: config.EnableCompression,
		},
		hub: hub,
	}
}

// ServeRoom upgrades the request and joins the viewer to room
func (u *Upgrader) ServeRoom(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		u.hub.logger.Debug("websocket upgrade failed", zap.String("room", room), zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), room, conn, u.hub)
	go client.WritePump()

	if err := u.hub.add(client); err != nil {
		u.hub.logger.Warn("failed to send room state",
			zap.String("client_id", client.ID),
			zap.String("room", room),
			zap.Error(err),
		)
		client.SendError(err.Error())
	}

	go client.ReadPump()
}

// Server bundles a hub with its upgrader
type Server struct {
	Hub      *Hub
	Upgrader *Upgrader
}

// NewServer creates a stream server
func NewServer(ctx context.Context, config Config, logger *zap.Logger) *Server {
	hub := NewHub(ctx, logger)
	return &Server{Hub: hub, Upgrader: NewUpgrader(config, hub)}
}

// Start runs the hub loop in the background
func (s *Server) Start() {
	go s.Hub.Run()
}

// Shutdown disconnects all viewers
func (s *Server) Shutdown(context.Context) error {
	s.Hub.Shutdown()
	return nil
}

// Handler serves rooms named by room(r)
func (s *Server) Handler(room func(r *http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Upgrader.ServeRoom(w, r, room(r))
	}
}
