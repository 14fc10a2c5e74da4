package database

import (
	"fmt"
	"log/slog"

	"github.com/Thapan6/StudentReportCard/internal/config"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath)
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.DBDriver != "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// One connection keeps writers serialised and lets :memory: databases
		// be shared across goroutines.
		sqlDB.SetMaxOpenConns(1)
	}

	// Auto-migrate the Student table
	if err := db.AutoMigrate(&model.Student{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	slog.Debug("database ready", "driver", cfg.DBDriver)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Warn("close database", "error", err)
	}
}
