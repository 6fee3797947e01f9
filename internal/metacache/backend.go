// Package metacache caches table column metadata fetched from the metadata
// platform so that sizing and port resolution do not refetch on every render.
package metacache

import (
	"context"
	"errors"
	"time"
)

// Backend is a byte-oriented key/value store with expiry
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key under the backend's prefix
	Clear(ctx context.Context) error
	Close() error
}

// BackendConfig holds settings shared by all backends
type BackendConfig struct {
	// DefaultTTL applies when Set is called with ttl 0. Negative means no expiry.
	DefaultTTL time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// DefaultBackendConfig returns the stock backend settings
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		DefaultTTL: 10 * time.Minute,
		Prefix:     "dimgraph:",
	}
}

// MissError is returned by a backend when a key is absent or expired
type MissError struct {
	Key string
}

func (e MissError) Error() string {
	return "cache miss: " + e.Key
}

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	var miss MissError
	return errors.As(err, &miss)
}
