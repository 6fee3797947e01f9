package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Migration is one schema step
type Migration struct {
	Version int64
	Name    string
	up      func(t tableNames) []string
}

// Applied records a migration that has run
type Applied struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_model_configs",
		up: func(t tableNames) []string {
			return []string{`
CREATE TABLE IF NOT EXISTS ` + t.configs + ` (
	model_id VARCHAR(255) PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`}
		},
	},
	{
		Version: 2,
		Name:    "create_table_columns",
		up: func(t tableNames) []string {
			return []string{`
CREATE TABLE IF NOT EXISTS ` + t.columns + ` (
	table_id VARCHAR(255) NOT NULL,
	position INTEGER NOT NULL,
	field_id VARCHAR(255) NOT NULL,
	name TEXT NOT NULL,
	data_type VARCHAR(64) NOT NULL,
	PRIMARY KEY (table_id, position)
)`}
		},
	},
}

// Migrations returns the known schema steps in order
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// Migrate applies pending migrations and returns the ones it ran
func (s *Store) Migrate(ctx context.Context) ([]Migration, error) {
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+s.tables.migrations+` (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	done, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, m := range migrations {
		if done[m.Version] {
			continue
		}

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.up(s.tables) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO `+s.tables.migrations+` (version, name, applied_at) VALUES (?, ?, ?)`),
				m.Version, m.Name, s.now())
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}

		s.logger.Info("applied migration", zap.Int64("version", m.Version), zap.String("name", m.Name))
		ran = append(ran, m)
	}
	return ran, nil
}

// Status lists applied migrations sorted by version
func (s *Store) Status(ctx context.Context) ([]Applied, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, name, applied_at FROM `+s.tables.migrations+` ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var out []Applied
	for rows.Next() {
		var a Applied
		if err := rows.Scan(&a.Version, &a.Name, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM `+s.tables.migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}
