// Package db provides database connection and migration handling.
package db

import (
	"fmt"
	"time"

	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the gorm connection
type Database struct {
	DB     *gorm.DB
	logger *utils.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger *utils.Logger) (*Database, error) {
	log := logger.Named("db")

	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if cfg.Server.IsDevelopment() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName))

	return &Database{DB: gdb, logger: log}, nil
}

// Migrate runs schema migrations for all models and converts the
// telemetry table into a TimescaleDB hypertable when the extension is
// available.
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.Subscription{},
		&models.User{},
		&models.Device{},
		&models.Metric{},
		&models.TelemetryPoint{},
		&models.AlertRule{},
		&models.TriggeredAlert{},
		&models.Report{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Hypertable conversion is best-effort: plain PostgreSQL works too,
	// just without time partitioning.
	hyperSQL := "SELECT create_hypertable('telemetry_points', 'time', if_not_exists => TRUE, migrate_data => TRUE)"
	if err := d.DB.Exec(hyperSQL).Error; err != nil {
		d.logger.Warn("could not create hypertable, continuing with plain table", zap.Error(err))
	}

	d.logger.Info("database migrations completed")
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
