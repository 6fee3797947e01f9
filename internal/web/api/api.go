// Package api exposes the layout engine, the configuration translator and
// per-model canvas sessions over HTTP
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/render"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/session"
	"github.com/dimgraph/dimgraph/internal/store"
	"github.com/dimgraph/dimgraph/internal/translate"
	"github.com/dimgraph/dimgraph/internal/web/response"
	"github.com/dimgraph/dimgraph/internal/web/router"
	"github.com/dimgraph/dimgraph/internal/web/websocket"
)

const maxBodyBytes = 1 << 20

// ConfigStore persists model configurations and table columns.
// *store.Store implements it.
type ConfigStore interface {
	LoadModelConfig(ctx context.Context, modelID string) ([]translate.DimJoinConfig, error)
	SaveModelConfig(ctx context.Context, modelID string, records []translate.DimJoinConfig) error
	PutColumns(ctx context.Context, tableID string, fields []model.FieldRef) error
	Ping(ctx context.Context) error
}

// ColumnCache drops cached table metadata. *metacache.Service implements it.
type ColumnCache interface {
	Invalidate(ctx context.Context, tableID string) error
	InvalidateAll(ctx context.Context) error
}

// Handler serves the API
type Handler struct {
	renderer *render.Renderer
	store    ConfigStore
	cache    ColumnCache
	sessions *session.Registry
	stream   *websocket.Server
	logger   *zap.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithStore enables the persisted configuration and column routes
func WithStore(s ConfigStore) Option {
	return func(h *Handler) { h.store = s }
}

// WithCache lets column updates invalidate cached metadata
func WithCache(c ColumnCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithStream publishes session changes to websocket viewers
func WithStream(s *websocket.Server) Option {
	return func(h *Handler) { h.stream = s }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a Handler. Session changes are forwarded to the stream when
// one is configured.
func New(renderer *render.Renderer, sessions *session.Registry, opts ...Option) *Handler {
	h := &Handler{
		renderer: renderer,
		sessions: sessions,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.stream != nil {
		sessions.OnChange(func(modelID string, ch scene.Change) {
			h.stream.Hub.Publish(modelID, websocket.TypeChange, ch)
		})
		h.stream.Hub.OnJoin(h.sendScene)
	}
	return h
}

// Register mounts every route on r
func (h *Handler) Register(r *router.Router) {
	r.Get("/health", h.health).Named("health")

	r.Group("/api", func(api *router.Router) {
		api.Post("/layout", h.layout).Named("layout")
		api.Post("/ports", h.ports).Named("ports")
		api.Post("/diff", h.diff).Named("diff")
		api.Post("/translate/working", h.toWorking).Named("translate.working")
		api.Post("/translate/persisted", h.toPersisted).Named("translate.persisted")
		api.Post("/validate", h.validate).Named("validate")

		api.Get("/models/{modelID}/config", h.getConfig).Named("config.show")
		api.Put("/models/{modelID}/config", h.putConfig).Named("config.update")
		api.Post("/models/{modelID}/render", h.render).Named("render")
		api.Post("/models/{modelID}/sync", h.sync).Named("sync")
		api.Get("/models/{modelID}/scene", h.scene).Named("scene")
		api.Delete("/models/{modelID}/scene", h.closeScene).Named("scene.close")
		api.Post("/models/{modelID}/nodes/{nodeID}/expand", h.expand).Named("node.expand")
		api.Post("/models/{modelID}/nodes/{nodeID}/page", h.page).Named("node.page")
		api.Post("/models/{modelID}/nodes/{nodeID}/side", h.side).Named("node.side")
		api.Post("/models/{modelID}/nodes/{nodeID}/reveal", h.reveal).Named("node.reveal")

		api.Put("/tables/{tableID}/columns", h.putColumns).Named("columns.update")
		api.Delete("/tables/{tableID}/cache", h.dropCache).Named("columns.invalidate")
		api.Delete("/cache", h.dropAllCache).Named("cache.clear")
	})

	if h.stream != nil {
		r.Get("/ws/models/{modelID}", h.stream.Handler(func(req *http.Request) string {
			return router.PathParam(req, "modelID")
		})).Named("stream")
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	}
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			body["status"] = "degraded"
			body["database"] = err.Error()
			response.JSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	response.OK(w, body)
}

var (
	errEmptyBody   = errors.New("request body is empty")
	errInvalidBody = errors.New("invalid JSON body")
)

// decode reads a JSON body into v
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return response.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// fail maps engine errors onto HTTP statuses
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var graphErr *model.GraphError
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.RenderNotFound(w, err.Error())
	case errors.Is(err, render.ErrUnknownNode), errors.Is(err, render.ErrUnknownField):
		response.RenderNotFound(w, err.Error())
	case errors.As(err, &graphErr):
		response.RenderError(w, http.StatusUnprocessableEntity,
			response.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).WithCode("invalid_graph"))
	case errors.Is(err, context.DeadlineExceeded):
		response.RenderError(w, http.StatusGatewayTimeout, err)
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		response.RenderInternalError(w, err)
	}
}
