package metacache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dimgraph/dimgraph/internal/model"
)

type countingFetcher struct {
	calls  map[string]int
	tables map[string][]model.FieldRef
	err    error
}

func (f *countingFetcher) GetColumnsByID(ctx context.Context, tableID string) (Columns, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[tableID]++
	if f.err != nil {
		return Columns{}, f.err
	}
	fields, ok := f.tables[tableID]
	return Columns{Exists: ok, Fields: fields}, nil
}

func userFields() []model.FieldRef {
	return []model.FieldRef{{ID: "id", Name: "id", DataType: "BIGINT"}, {ID: "name", Name: "name", DataType: "STRING"}}
}

func TestService_ReadThrough(t *testing.T) {
	fetcher := &countingFetcher{tables: map[string][]model.FieldRef{"t_user": userFields()}}
	svc := NewService(newMemory(t), fetcher, WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	cols, err := svc.Columns(ctx, "t_user")
	require.NoError(t, err)
	assert.True(t, cols.Exists)
	assert.Equal(t, "t_user", cols.TableID)
	assert.Equal(t, userFields(), cols.Fields)

	_, err = svc.Columns(ctx, "t_user")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls["t_user"])
}

func TestService_Invalidate(t *testing.T) {
	fetcher := &countingFetcher{tables: map[string][]model.FieldRef{"t_user": userFields()}}
	svc := NewService(newMemory(t), fetcher)
	ctx := context.Background()

	_, err := svc.Columns(ctx, "t_user")
	require.NoError(t, err)

	fetcher.tables["t_user"] = userFields()[:1]
	require.NoError(t, svc.Invalidate(ctx, "t_user"))

	cols, err := svc.Columns(ctx, "t_user")
	require.NoError(t, err)
	assert.Len(t, cols.Fields, 1)
	assert.Equal(t, 2, fetcher.calls["t_user"])

	require.NoError(t, svc.InvalidateAll(ctx))
	_, err = svc.Columns(ctx, "t_user")
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls["t_user"])
}

func TestService_MissingTableIsNotAnError(t *testing.T) {
	svc := NewService(newMemory(t), &countingFetcher{})

	cols, err := svc.Columns(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, cols.Exists)
	assert.Empty(t, cols.Fields)
}

func TestService_FetchError(t *testing.T) {
	boom := errors.New("upstream down")
	svc := NewService(newMemory(t), &countingFetcher{err: boom})

	_, err := svc.Columns(context.Background(), "t_user")
	assert.ErrorIs(t, err, boom)
}

func TestService_NoFetcher(t *testing.T) {
	svc := NewService(newMemory(t), nil)
	_, err := svc.Columns(context.Background(), "t_user")
	assert.Error(t, err)
}

func TestService_BackendFailureFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	backend := NewRedisBackendWithClient(client, DefaultBackendConfig())
	defer backend.Close()
	mr.Close()

	fetcher := &countingFetcher{tables: map[string][]model.FieldRef{"t_user": userFields()}}
	svc := NewService(backend, fetcher, WithTTL(time.Minute))

	cols, err := svc.Columns(context.Background(), "t_user")
	require.NoError(t, err)
	assert.True(t, cols.Exists)
}

func TestService_RedisBackend(t *testing.T) {
	backend, mr := setupRedis(t)
	fetcher := FetcherFunc(func(ctx context.Context, tableID string) (Columns, error) {
		return Columns{Exists: true, Fields: userFields()}, nil
	})
	svc := NewService(backend, fetcher, WithTTL(30*time.Second))

	_, err := svc.Columns(context.Background(), "t_user")
	require.NoError(t, err)
	assert.True(t, mr.Exists("dimgraph:"+ColumnsKey("t_user")))
	assert.Equal(t, 30*time.Second, mr.TTL("dimgraph:"+ColumnsKey("t_user")))
}
