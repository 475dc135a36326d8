// Package database opens the GORM connection pool and owns the schema.
//
// WHY GORM HERE?
// The app talks to SQLite in development and tests, and to PostgreSQL or
// MySQL in hosted deployments. GORM gives one query API over all three and,
// more importantly, a portable INSERT ... ON CONFLICT that the identity upsert
// and the backblast batch insert rely on.
//
// The schema itself is NOT created by AutoMigrate. It lives in versioned SQL
// files under migrations/ and is applied by sql-migrate, so every deployment
// runs exactly the same DDL and `f3ctl migrate status` can say what is applied.
package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure-Go SQLite driver, registered under the name "sqlite".
	// gorm's sqlite dialector is pointed at it via DriverName below.
	_ "modernc.org/sqlite"

	"github.com/f3-invigorate/invigorate/internal/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Open connects, tunes the pool and pings. It does not run migrations.
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if cfg.LogQueries {
		level = gormlogger.Info
	}
	// GORM logs through a *log.Logger; slog.NewLogLogger bridges that into
	// our structured handler so SQL warnings land in the same stream.
	gormLog := gormlogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormLog,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("database: opening %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: getting sql.DB: %w", err)
	}

	if cfg.Driver == DriverSQLite && isMemoryDSN(cfg.DSN) {
		// Each connection to ":memory:" is a separate, empty database.
		// Pin the pool to one connection that never expires.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database: pinging %s: %w", cfg.Driver, err)
	}

	return db, nil
}

// Close releases the pool behind a *gorm.DB.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
		return sqlite.New(sqlite.Config{
			DriverName: "sqlite",
			DSN:        sqliteDSN(cfg.DSN),
		}), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverMySQL:
		return mysql.Open(mysqlDSN(cfg.DSN)), nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}
}

// sqliteDSN adds the pragmas the app depends on unless the caller set them.
// foreign_keys is off by default in SQLite and the record tables need it.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !isMemoryDSN(dsn) && !strings.Contains(dsn, "journal_mode") {
		params = append(params, "_pragma=journal_mode(wal)")
	}
	if !strings.Contains(dsn, "_time_format") {
		params = append(params, "_time_format=sqlite")
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// mysqlDSN makes the driver scan TIMESTAMP columns into time.Time.
func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func ensureSQLiteDir(dsn string) error {
	if isMemoryDSN(dsn) {
		return nil
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("database: creating %s: %w", dir, err)
	}
	return nil
}
