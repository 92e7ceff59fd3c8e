package infrastructure

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"user-record-service/internal/adapter/db/postgres"
	"user-record-service/internal/config"
	"user-record-service/pkg/logger"
)

// NewDatabase opens the configured database, sizes its pool and, when
// enabled, migrates the users table.
func NewDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DB.SQLitePath)
	default:
		dialector = pgdriver.Open(cfg.DB.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerWithConfig(l, cfg.Logger.SlowQuerySeconds, cfg.Logger.Level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if cfg.DB.AutoMigrate {
		if err := postgres.AutoMigrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate users table: %w", err)
		}
	}

	l.Info("database connected",
		zap.String("driver", cfg.DB.Driver),
		zap.Bool("auto_migrate", cfg.DB.AutoMigrate),
		zap.Int("max_open_conns", cfg.DB.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.DB.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.DB.ConnMaxLifetime),
	)

	return db, nil
}

// CloseDatabase closes the database connection
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
