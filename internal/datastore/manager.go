// Package datastore opens the relational store backing the running catalog.
//
// SQLite is the default; MySQL is supported for multi-process deployments
// where row-level locks on the zone window matter.
package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// Manager defines the database lifecycle operations.
type Manager interface {
	// Initialize creates or updates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location for display.
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Open creates the manager selected by settings.Type.
func Open(settings *conf.DatabaseSettings, log logger.Logger) (Manager, error) {
	switch settings.Type {
	case conf.DatabaseSQLite:
		return NewSQLiteManager(settings.SQLite.Path, settings, log)
	case conf.DatabaseMySQL:
		return NewMySQLManager(&settings.MySQL, settings, log)
	default:
		return nil, errors.ConfigError(fmt.Errorf("unsupported database type %q", settings.Type), "database.type")
	}
}

// gormConfig returns the shared GORM configuration.
func gormConfig(settings *conf.DatabaseSettings, log logger.Logger) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, settings.SlowQueryThreshold),
		TranslateError: true,
	}
}

// migrate runs AutoMigrate for every catalog model.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entities.All()...); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityCritical)
	}
	return nil
}

// closeDB closes the connection pool behind db.
func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", errors.PriorityMedium)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}
	return nil
}
