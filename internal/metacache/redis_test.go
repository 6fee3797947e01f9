package metacache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackendWithClient(client, DefaultBackendConfig())
	t.Cleanup(func() { backend.Close() })
	return backend, mr
}

func TestNewRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	backend, err := NewRedisBackend(context.Background(), RedisConfig{Addr: mr.Addr()}, DefaultBackendConfig())
	require.NoError(t, err)
	assert.NoError(t, backend.Close())
}

func TestNewRedisBackend_ConnectionError(t *testing.T) {
	_, err := NewRedisBackend(context.Background(), RedisConfig{Addr: "localhost:99999"}, DefaultBackendConfig())
	assert.Error(t, err)
}

func TestRedisBackend_SetGetDelete(t *testing.T) {
	backend, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "columns:t1", []byte(`{"x":1}`), time.Minute))
	assert.True(t, mr.Exists("dimgraph:columns:t1"))

	got, err := backend.Get(ctx, "columns:t1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"x":1}`), got)

	require.NoError(t, backend.Delete(ctx, "columns:t1"))
	_, err = backend.Get(ctx, "columns:t1")
	assert.True(t, IsMiss(err))
}

func TestRedisBackend_TTL(t *testing.T) {
	backend, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, DefaultBackendConfig().DefaultTTL, mr.TTL("dimgraph:k"))

	require.NoError(t, backend.Set(ctx, "short", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)
	_, err := backend.Get(ctx, "short")
	assert.True(t, IsMiss(err))

	require.NoError(t, backend.Set(ctx, "forever", []byte("v"), -1))
	assert.Equal(t, time.Duration(0), mr.TTL("dimgraph:forever"))
}

func TestRedisBackend_ClearKeepsForeignKeys(t *testing.T) {
	backend, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, backend.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, mr.Set("other:key", "x"))

	require.NoError(t, backend.Clear(ctx))

	assert.False(t, mr.Exists("dimgraph:a"))
	assert.False(t, mr.Exists("dimgraph:b"))
	assert.True(t, mr.Exists("other:key"))
}
