// Package database opens the gorm connection selected by configuration.
package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/portfolio-payments/internal/config"
	"github.com/axellelanca/portfolio-payments/internal/models"
)

// Open connects to SQLite or PostgreSQL depending on database.driver. Gorm's
// own messages go to log.
func Open(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Database.Name)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  NewGormLogger(log, cfg.Log.Level == "debug"),
		NowFunc: NowUTC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewGormLogger writes gorm warnings, errors and slow queries through log.
// SQL traces are added in debug mode. Missing rows are an expected outcome of
// lookups and are not logged.
func NewGormLogger(log *slog.Logger, debug bool) logger.Interface {
	level, slogLevel := logger.Warn, slog.LevelWarn
	if debug {
		level, slogLevel = logger.Info, slog.LevelDebug
	}
	w := slog.NewLogLogger(log.With("component", "gorm").Handler(), slogLevel)
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// NowUTC is the clock used for autoCreateTime columns. Timestamps are stored in
// UTC so that range queries compare consistently on SQLite.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Migrate creates or updates the products, donations and affiliate_clicks tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	return sqlDB.Close()
}
