package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/config"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	DB = db
	slog.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
	return nil
}

// Migrate creates or updates the entry and preset tables under their
// configured names.
func Migrate(db *gorm.DB, tables config.TablesConfig) error {
	if err := db.Table(tables.Entries).AutoMigrate(&models.LogEntry{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", tables.Entries, err)
	}
	if err := db.Table(tables.Presets).AutoMigrate(&models.FilterPreset{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", tables.Presets, err)
	}
	return nil
}

func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
