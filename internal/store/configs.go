package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/translate"
)

// LoadModelConfig returns the persisted join records of a model, or
// ErrNotFound when nothing was saved for it
func (s *Store) LoadModelConfig(ctx context.Context, modelID string) ([]translate.DimJoinConfig, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM `+s.tables.configs+` WHERE model_id = ?`),
		modelID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", modelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", modelID, err)
	}

	var records []translate.DimJoinConfig
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", modelID, err)
	}
	if records == nil {
		records = []translate.DimJoinConfig{}
	}
	return records, nil
}

// SaveModelConfig replaces the persisted join records of a model
func (s *Store) SaveModelConfig(ctx context.Context, modelID string, records []translate.DimJoinConfig) error {
	if records == nil {
		records = []translate.DimJoinConfig{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode model %s: %w", modelID, err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`DELETE FROM `+s.tables.configs+` WHERE model_id = ?`),
			modelID,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO `+s.tables.configs+` (model_id, payload, updated_at) VALUES (?, ?, ?)`),
			modelID, string(payload), s.now(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save model %s: %w", modelID, err)
	}

	s.logger.Debug("saved model config", zap.String("model_id", modelID), zap.Int("joins", len(records)))
	return nil
}

// DeleteModelConfig removes a model's configuration. Deleting an unknown
// model is not an error.
func (s *Store) DeleteModelConfig(ctx context.Context, modelID string) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM `+s.tables.configs+` WHERE model_id = ?`),
		modelID,
	); err != nil {
		return fmt.Errorf("failed to delete model %s: %w", modelID, err)
	}
	return nil
}
