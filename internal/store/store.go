// Package store persists model join configurations and table column
// metadata in a SQL database. SQLite, PostgreSQL (lib/pq) and PostgreSQL
// through pgx are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a model has no saved configuration
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedDriver is returned by Open for unknown driver names
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Store is the persistence collaborator of the engine
type Store struct {
	db       *sql.DB
	driver   string
	logger   *zap.Logger
	now      func() time.Time
	tables   tableNames
	numbered bool
}

type tableNames struct {
	migrations string
	configs    string
	columns    string
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to the database and verifies the connection
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	if !supported(driver) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; in-memory databases are per connection
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return New(db, driver, opts...)
}

// New wraps an open handle. driver selects the SQL dialect.
func New(db *sql.DB, driver string, opts ...Option) (*Store, error) {
	if !supported(driver) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	s := &Store{
		db:       db,
		driver:   driver,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		numbered: driver != DriverSQLite,
		tables: tableNames{
			migrations: pq.QuoteIdentifier("schema_migrations"),
			configs:    pq.QuoteIdentifier("model_configs"),
			columns:    pq.QuoteIdentifier("table_columns"),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func supported(driver string) bool {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverPgx:
		return true
	}
	return false
}

// Driver returns the driver name
func (s *Store) Driver() string {
	return s.driver
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites '?' placeholders to the driver's style
func (s *Store) rebind(query string) string {
	if !s.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// withTx runs fn in a transaction, committing on success and rolling back
// on error or panic
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
