// Package ratelimit limits how often one client may call the API
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Limiter decides whether the request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
}

// Info is the outcome of one Allow call
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// Config selects and sizes a limiter. Limit requests are allowed per Window.
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	Prefix  string        `mapstructure:"prefix"`
}

// DefaultConfig allows 600 requests per minute from memory, disabled
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Limit:   600,
		Window:  time.Minute,
		Prefix:  "dimgraph:ratelimit:",
	}
}

// New builds the limiter cfg names. client is required for the redis
// backend.
func New(cfg Config, client *redis.Client) (Limiter, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		if cfg.Limit <= 0 || cfg.Window <= 0 {
			return nil, fmt.Errorf("limit and window must be positive")
		}
		return NewTokenBucket(cfg.Limit, cfg.Window), nil
	case BackendRedis:
		return NewRedisWindow(client, cfg.Limit, cfg.Window, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
