package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"gorm.io/gorm"
)

// GetTrackerConfig returns the stored Jira credentials, or ErrNotFound.
func (s *Store) GetTrackerConfig(ctx context.Context) (*models.TrackerConfig, error) {
	var cfg models.TrackerConfig
	err := s.db.WithContext(ctx).Order("id DESC").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tracker config: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("database: load tracker config: %w", err)
	}
	return &cfg, nil
}

// SaveTrackerConfig replaces any stored credentials with cfg.
func (s *Store) SaveTrackerConfig(ctx context.Context, cfg *models.TrackerConfig) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.TrackerConfig{}).Error; err != nil {
			return fmt.Errorf("database: clear tracker config: %w", err)
		}
		cfg.ID = 0
		if err := tx.Create(cfg).Error; err != nil {
			return fmt.Errorf("database: save tracker config: %w", err)
		}
		return nil
	})
}

// DeleteTrackerConfig removes the stored credentials, if any.
func (s *Store) DeleteTrackerConfig(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.TrackerConfig{}).Error; err != nil {
		return fmt.Errorf("database: delete tracker config: %w", err)
	}
	return nil
}
