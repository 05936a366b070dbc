package database

import (
	"fmt"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultLogLevel is the gorm log level outside of tests.
const DefaultLogLevel = logger.Warn

// AllModels returns every table the store migrates.
func AllModels() []interface{} {
	return []interface{}{
		&models.Card{},
		&models.Comment{},
		&models.HistoryEntry{},
		&models.CustomColumn{},
		&models.CustomFieldValue{},
		&models.TrackerConfig{},
	}
}

// Open connects to the sqlite database at dsn and migrates all tables.
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", dsn, err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("database: auto-migrate: %w", err)
	}
	return db, nil
}

// Init opens the database for the long-running server and exits on failure.
func Init(dbPath string) *gorm.DB {
	db, err := Open(dbPath, DefaultLogLevel)
	if err != nil {
		zap.L().Fatal("Failed to initialise database", zap.Error(err))
	}

	zap.L().Info("Database initialised and migrated successfully", zap.String("path", dbPath))

	return db
}
