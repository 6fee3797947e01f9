package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/cli/config"
	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/render"
	"github.com/dimgraph/dimgraph/internal/session"
	"github.com/dimgraph/dimgraph/internal/store"
	"github.com/dimgraph/dimgraph/internal/web/api"
	"github.com/dimgraph/dimgraph/internal/web/middleware"
	"github.com/dimgraph/dimgraph/internal/web/profiling"
	"github.com/dimgraph/dimgraph/internal/web/ratelimit"
	"github.com/dimgraph/dimgraph/internal/web/router"
	"github.com/dimgraph/dimgraph/internal/web/websocket"
)

// app is the assembled service
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	cache    *metacache.Service
	renderer *render.Renderer
	sessions *session.Registry
	stream   *websocket.Server
	router   *router.Router
	limiter  ratelimit.Limiter
	redis    *redis.Client
}

// openStore connects to the configured database. It returns nil when no
// database URL is set.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if _, err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// newBackend creates the configured metadata cache backend
func newBackend(ctx context.Context, cfg *config.Config) (metacache.Backend, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		return metacache.NewRedisBackend(ctx, cfg.Cache.Redis, cfg.BackendConfig())
	case config.CacheMemory, "":
		return metacache.NewMemoryBackend(cfg.BackendConfig()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// newCache builds the metadata cache in front of st
func newCache(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger) (*metacache.Service, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	var fetcher metacache.Fetcher
	if st != nil {
		fetcher = st
	}
	return metacache.NewService(backend, fetcher,
		metacache.WithTTL(cfg.Cache.TTL),
		metacache.WithLogger(logger.Named("metacache")),
	), nil
}

// buildApp wires the engine, the API and the middleware stack. st may be
// nil; the configuration routes then answer 503.
func buildApp(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger) (*app, error) {
	cache, err := newCache(ctx, cfg, st, logger)
	if err != nil {
		return nil, err
	}

	// without a store nodes fall back to their join fields
	var fields render.FieldSource
	if st != nil {
		fields = cache
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		cache:    cache,
		renderer: render.New(fields, render.WithOptions(cfg.RenderOptions()), render.WithLogger(logger.Named("render"))),
		sessions: session.NewRegistry(logger.Named("session")),
		stream:   websocket.NewServer(ctx, cfg.WebSocket, logger.Named("websocket")),
		router:   router.New(),
	}

	stack := []middleware.Middleware{
		middleware.RequestID(),
		middleware.Logging(logger.Named("http"), "/health"),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORS),
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Backend == ratelimit.BackendRedis {
			a.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
		}
		if a.limiter, err = ratelimit.New(cfg.RateLimit, a.redis); err != nil {
			cache.Close()
			if a.redis != nil {
				a.redis.Close()
			}
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		stack = append(stack, middleware.RateLimit(a.limiter, logger.Named("ratelimit"), nil, "/health", "/ws/"))
	}
	stack = append(stack, middleware.Timeout(cfg.Request.Timeout))
	a.router.Use(stack...)

	opts := []api.Option{
		api.WithCache(cache),
		api.WithStream(a.stream),
		api.WithLogger(logger.Named("api")),
	}
	if st != nil {
		opts = append(opts, api.WithStore(st))
	}
	api.New(a.renderer, a.sessions, opts...).Register(a.router)
	profiling.Register(a.router, cfg.Profiling, a.stats)
	return a, nil
}

// stats reports engine counters on /debug/stats
func (a *app) stats() map[string]any {
	return map[string]any{
		"sessions":     a.sessions.Len(),
		"stream_rooms": a.stream.Hub.RoomCount(),
		"database":     a.store != nil,
		"cache":        a.cfg.Cache.Backend,
	}
}

// Handler returns the root HTTP handler
func (a *app) Handler() http.Handler {
	return a.router
}

// start launches the background workers
func (a *app) start(ctx context.Context) {
	a.stream.Start()
	if a.cfg.Session.IdleTimeout > 0 && a.cfg.Session.EvictInterval > 0 {
		go a.sessions.RunEvictor(ctx, a.cfg.Session.EvictInterval, a.cfg.Session.IdleTimeout)
	}
	if tb, ok := a.limiter.(*ratelimit.TokenBucket); ok {
		go tb.RunSweeper(ctx, a.cfg.RateLimit.Window)
	}
}

// close releases the cache, the rate limiter and the database
func (a *app) close() error {
	var firstErr error
	if err := a.cache.Close(); err != nil {
		firstErr = err
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
