// Package config loads dimgraph.yaml through viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dimgraph/dimgraph/internal/layout"
	"github.com/dimgraph/dimgraph/internal/logging"
	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/port"
	"github.com/dimgraph/dimgraph/internal/render"
	"github.com/dimgraph/dimgraph/internal/store"
	"github.com/dimgraph/dimgraph/internal/web/middleware"
	"github.com/dimgraph/dimgraph/internal/web/profiling"
	"github.com/dimgraph/dimgraph/internal/web/ratelimit"
	"github.com/dimgraph/dimgraph/internal/web/server"
	"github.com/dimgraph/dimgraph/internal/web/websocket"
)

// FileName is the config file looked up in the working directory
const FileName = "dimgraph"

// EnvPrefix prefixes environment overrides, e.g. DIMGRAPH_SERVER_ADDRESS
const EnvPrefix = "DIMGRAPH"

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the full dimgraph configuration
type Config struct {
	Server    server.Config         `mapstructure:"server"`
	Database  DatabaseConfig        `mapstructure:"database"`
	Cache     CacheConfig           `mapstructure:"cache"`
	Layout    layout.Options        `mapstructure:"layout"`
	Node      NodeConfig            `mapstructure:"node"`
	Log       logging.Config        `mapstructure:"log"`
	CORS      middleware.CORSConfig `mapstructure:"cors"`
	WebSocket websocket.Config      `mapstructure:"websocket"`
	Session   SessionConfig         `mapstructure:"session"`
	Request   RequestConfig         `mapstructure:"request"`
	RateLimit ratelimit.Config      `mapstructure:"ratelimit"`
	Profiling profiling.Config      `mapstructure:"profiling"`
}

// DatabaseConfig selects the SQL driver. An empty URL runs without a
// database.
type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"`
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

// CacheConfig selects the table metadata cache
type CacheConfig struct {
	Backend string                `mapstructure:"backend"`
	TTL     time.Duration         `mapstructure:"ttl"`
	Prefix  string                `mapstructure:"prefix"`
	Redis   metacache.RedisConfig `mapstructure:"redis"`
}

// NodeConfig sizes table nodes
type NodeConfig struct {
	render.Sizing `mapstructure:",squash"`
	port.Geometry `mapstructure:",squash"`
}

// SessionConfig controls idle session eviction
type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EvictInterval time.Duration `mapstructure:"evict_interval"`
}

// RequestConfig bounds HTTP handlers
type RequestConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RenderOptions returns the renderer settings
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Layout: c.Layout,
		Port:   c.Node.Geometry,
		Sizing: c.Node.Sizing,
	}
}

// BackendConfig returns the cache backend settings
func (c *Config) BackendConfig() metacache.BackendConfig {
	return metacache.BackendConfig{DefaultTTL: c.Cache.TTL, Prefix: c.Cache.Prefix}
}

// Defaults returns the configuration used when no file is present
func Defaults() *Config {
	opts := render.DefaultOptions()
	backend := metacache.DefaultBackendConfig()
	return &Config{
		Server:   server.DefaultConfig(),
		Database: DatabaseConfig{Driver: store.DriverSQLite},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     backend.DefaultTTL,
			Prefix:  backend.Prefix,
			Redis:   metacache.RedisConfig{Addr: "localhost:6379"},
		},
		Layout:    opts.Layout,
		Node:      NodeConfig{Sizing: opts.Sizing, Geometry: opts.Port},
		Log:       logging.Config{Level: "info"},
		CORS:      middleware.DefaultCORSConfig(),
		WebSocket: websocket.DefaultConfig(),
		Session:   SessionConfig{IdleTimeout: 30 * time.Minute, EvictInterval: time.Minute},
		Request:   RequestConfig{Timeout: 30 * time.Second},
		RateLimit: ratelimit.DefaultConfig(),
	}
}

// New returns a viper instance carrying every default and env binding
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_header_bytes", d.Server.MaxHeaderBytes)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", false)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.prefix", d.Cache.Prefix)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("layout.hgap", d.Layout.HGap)
	v.SetDefault("layout.vgap", d.Layout.VGap)

	v.SetDefault("node.width", d.Node.Width)
	v.SetDefault("node.min_height", d.Node.MinHeight)
	v.SetDefault("node.page_size", d.Node.PageSize)
	v.SetDefault("node.expanded", d.Node.Expanded)
	v.SetDefault("node.header_top", d.Node.HeaderTopOffset)
	v.SetDefault("node.header_height", d.Node.HeaderHeight)
	v.SetDefault("node.row_height", d.Node.RowHeight)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", false)

	v.SetDefault("cors.allowed_origins", d.CORS.AllowedOrigins)
	v.SetDefault("cors.allowed_methods", d.CORS.AllowedMethods)
	v.SetDefault("cors.allowed_headers", d.CORS.AllowedHeaders)
	v.SetDefault("cors.allow_credentials", d.CORS.AllowCredentials)
	v.SetDefault("cors.max_age", d.CORS.MaxAge)

	v.SetDefault("websocket.read_buffer_size", d.WebSocket.ReadBufferSize)
	v.SetDefault("websocket.write_buffer_size", d.WebSocket.WriteBufferSize)
	v.SetDefault("websocket.allowed_origins", d.WebSocket.AllowedOrigins)
	v.SetDefault("websocket.enable_compression", d.WebSocket.EnableCompression)

	v.SetDefault("session.idle_timeout", d.Session.IdleTimeout)
	v.SetDefault("session.evict_interval", d.Session.EvictInterval)
	v.SetDefault("request.timeout", d.Request.Timeout)

	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.backend", d.RateLimit.Backend)
	v.SetDefault("ratelimit.limit", d.RateLimit.Limit)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)
	v.SetDefault("ratelimit.prefix", d.RateLimit.Prefix)

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.block_rate", 0)
	v.SetDefault("profiling.mutex_fraction", 0)
}

// Load reads path, or dimgraph.yaml from the working directory when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check
func Validate(cfg *Config) error {
	var problems []string

	switch cfg.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres, store.DriverPgx:
	default:
		problems = append(problems, fmt.Sprintf("database.driver must be one of sqlite3, postgres, pgx, got %q", cfg.Database.Driver))
	}
	switch cfg.Cache.Backend {
	case CacheMemory, CacheRedis:
	default:
		problems = append(problems, fmt.Sprintf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend))
	}
	if cfg.Node.Width <= 0 {
		problems = append(problems, "node.width must be positive")
	}
	if cfg.Node.PageSize < 0 {
		problems = append(problems, "node.page_size must not be negative")
	}
	if cfg.Layout.HGap < 0 || cfg.Layout.VGap < 0 {
		problems = append(problems, "layout gaps must not be negative")
	}
	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Backend {
		case ratelimit.BackendMemory, ratelimit.BackendRedis:
		default:
			problems = append(problems, fmt.Sprintf("ratelimit.backend must be memory or redis, got %q", cfg.RateLimit.Backend))
		}
		if cfg.RateLimit.Limit <= 0 || cfg.RateLimit.Window <= 0 {
			problems = append(problems, "ratelimit.limit and ratelimit.window must be positive")
		}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Write stores the settings collected by "dimgraph init" at path
func Write(path string, settings map[string]any) error {
	v := New()
	for key, value := range settings {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
