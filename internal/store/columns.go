package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/model"
)

var _ metacache.Fetcher = (*Store)(nil)

// GetColumnsByID returns the registered columns of a table in position
// order. A table without columns reports Exists false.
func (s *Store) GetColumnsByID(ctx context.Context, tableID string) (metacache.Columns, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT field_id, name, data_type FROM `+s.tables.columns+` WHERE table_id = ? ORDER BY position ASC`),
		tableID,
	)
	if err != nil {
		return metacache.Columns{}, fmt.Errorf("failed to query columns of %s: %w", tableID, err)
	}
	defer rows.Close()

	cols := metacache.Columns{TableID: tableID, Fields: []model.FieldRef{}}
	for rows.Next() {
		var f model.FieldRef
		if err := rows.Scan(&f.ID, &f.Name, &f.DataType); err != nil {
			return metacache.Columns{}, fmt.Errorf("failed to scan column of %s: %w", tableID, err)
		}
		cols.Fields = append(cols.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return metacache.Columns{}, fmt.Errorf("failed to read columns of %s: %w", tableID, err)
	}

	cols.Exists = len(cols.Fields) > 0
	return cols, nil
}

// PutColumns replaces the registered columns of a table. An empty list
// unregisters the table.
func (s *Store) PutColumns(ctx context.Context, tableID string, fields []model.FieldRef) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`DELETE FROM `+s.tables.columns+` WHERE table_id = ?`),
			tableID,
		); err != nil {
			return err
		}

		for i, f := range fields {
			if f.ID == "" {
				return fmt.Errorf("column %d has no id", i)
			}
			if _, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO `+s.tables.columns+` (table_id, position, field_id, name, data_type) VALUES (?, ?, ?, ?, ?)`),
				tableID, i, f.ID, f.Name, f.DataType,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store columns of %s: %w", tableID, err)
	}

	s.logger.Debug("stored columns", zap.String("table_id", tableID), zap.Int("fields", len(fields)))
	return nil
}
