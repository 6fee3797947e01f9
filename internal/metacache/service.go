package metacache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/model"
)

// Columns is the field list of one table. Exists is false when the table is
// gone from the metadata platform.
type Columns struct {
	TableID string           `json:"tableId"`
	Exists  bool             `json:"exists"`
	Fields  []model.FieldRef `json:"fields"`
}

// Fetcher loads columns from the metadata platform
type Fetcher interface {
	GetColumnsByID(ctx context.Context, tableID string) (Columns, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, tableID string) (Columns, error)

// GetColumnsByID calls f
func (f FetcherFunc) GetColumnsByID(ctx context.Context, tableID string) (Columns, error) {
	return f(ctx, tableID)
}

// Service is a read-through column cache. Entries live until their TTL runs
// out or Invalidate is called for the table.
type Service struct {
	backend Backend
	fetcher Fetcher
	ttl     time.Duration
	logger  *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithTTL sets the entry lifetime
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service
func NewService(backend Backend, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ColumnsKey is the backend key of a table's columns
func ColumnsKey(tableID string) string {
	return "columns:" + tableID
}

// Columns returns the columns of a table, fetching on a miss. Backend errors
// are logged and bypassed; fetch errors are returned.
func (s *Service) Columns(ctx context.Context, tableID string) (Columns, error) {
	key := ColumnsKey(tableID)

	raw, err := s.backend.Get(ctx, key)
	switch {
	case err == nil:
		var cols Columns
		if jsonErr := json.Unmarshal(raw, &cols); jsonErr == nil {
			return cols, nil
		}
		s.logger.Warn("discarding undecodable cache entry", zap.String("table_id", tableID))
	case IsMiss(err):
	default:
		s.logger.Warn("column cache read failed", zap.String("table_id", tableID), zap.Error(err))
	}

	if s.fetcher == nil {
		return Columns{TableID: tableID}, fmt.Errorf("no column fetcher configured for table %s", tableID)
	}

	cols, err := s.fetcher.GetColumnsByID(ctx, tableID)
	if err != nil {
		return Columns{TableID: tableID}, fmt.Errorf("failed to fetch columns of %s: %w", tableID, err)
	}
	cols.TableID = tableID

	if encoded, err := json.Marshal(cols); err == nil {
		if err := s.backend.Set(ctx, key, encoded, s.ttl); err != nil {
			s.logger.Warn("column cache write failed", zap.String("table_id", tableID), zap.Error(err))
		}
	}

	s.logger.Debug("fetched columns",
		zap.String("table_id", tableID),
		zap.Bool("exists", cols.Exists),
		zap.Int("fields", len(cols.Fields)),
	)
	return cols, nil
}

// Invalidate drops the cached columns of a table
func (s *Service) Invalidate(ctx context.Context, tableID string) error {
	if err := s.backend.Delete(ctx, ColumnsKey(tableID)); err != nil {
		return fmt.Errorf("failed to invalidate columns of %s: %w", tableID, err)
	}
	s.logger.Debug("invalidated columns", zap.String("table_id", tableID))
	return nil
}

// InvalidateAll drops every cached table
func (s *Service) InvalidateAll(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

// Close releases the backend
func (s *Service) Close() error {
	return s.backend.Close()
}
