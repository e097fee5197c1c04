package datastore

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/runcat/internal/conf"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/logger"
)

// SQLiteDriverName is the database/sql driver registered with the SQL math
// functions the declarative matcher relies on.
const SQLiteDriverName = "sqlite3_runcat"

var registerDriverOnce sync.Once

// registerSQLiteDriver registers SQLiteDriverName. database/sql keeps a
// process-wide driver registry, so this runs once.
func registerSQLiteDriver() {
	registerDriverOnce.Do(func() {
		sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: registerMathFunctions,
		})
	})
}

// registerMathFunctions adds the functions MySQL provides natively.
func registerMathFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := []struct {
		name string
		impl any
	}{
		{"SQRT", math.Sqrt},
		{"COS", math.Cos},
		{"ASIN", math.Asin},
		{"RADIANS", func(deg float64) float64 { return deg * math.Pi / 180 }},
		{"DEGREES", func(rad float64) float64 { return rad * 180 / math.Pi }},
		{"FLOOR", func(x float64) int64 { return int64(math.Floor(x)) }},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
			return fmt.Errorf("register %s: %w", f.name, err)
		}
	}
	return nil
}

// SQLiteManager handles the SQLite catalog database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager opens (creating if needed) the SQLite database at dbPath.
func NewSQLiteManager(dbPath string, settings *conf.DatabaseSettings, log logger.Logger) (*SQLiteManager, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dbError(err, "create_db_dir", errors.PriorityCritical, "path", dbPath)
		}
	}

	registerSQLiteDriver()

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: SQLiteDriverName,
		DSN:        dsn,
	}), gormConfig(settings, log))
	if err != nil {
		return nil, dbError(err, "open_sqlite", errors.PriorityCritical, "path", dbPath)
	}

	return &SQLiteManager{db: db, dbPath: dbPath}, nil
}

// Initialize creates or updates the schema.
func (m *SQLiteManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns false for SQLite.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}
