package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// BatchStorage persists saved batch configurations in Badger so the panel
// survives restarts. Executions are runtime-only and never stored.
type BatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBatchStorage creates a new BatchStorage instance
func NewBatchStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BatchConfigStorage {
	return &BatchStorage{
		db:     db,
		logger: logger,
	}
}

// SaveConfig inserts or updates a batch configuration
func (s *BatchStorage) SaveConfig(ctx context.Context, cfg *models.BatchConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("batch config ID is required")
	}
	if err := s.db.Store().Upsert(cfg.ID, cfg); err != nil {
		return fmt.Errorf("failed to save batch config: %w", err)
	}
	return nil
}

// GetConfig retrieves a batch configuration by ID
func (s *BatchStorage) GetConfig(ctx context.Context, id string) (*models.BatchConfig, error) {
	var cfg models.BatchConfig
	err := s.db.Store().Get(id, &cfg)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch config: %w", err)
	}
	return &cfg, nil
}

// ListConfigs returns all saved batch configurations
func (s *BatchStorage) ListConfigs(ctx context.Context) ([]*models.BatchConfig, error) {
	var configs []*models.BatchConfig
	if err := s.db.Store().Find(&configs, nil); err != nil {
		return nil, fmt.Errorf("failed to list batch configs: %w", err)
	}
	return configs, nil
}

// DeleteConfig removes a batch configuration. Missing ids are a no-op.
func (s *BatchStorage) DeleteConfig(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.BatchConfig{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete batch config: %w", err)
	}
	return nil
}
