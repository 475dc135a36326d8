// Package dbtest gives tests a fresh, fully migrated in-memory database.
package dbtest

import (
	"io"
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
)

// New opens ":memory:", applies every migration and closes the pool when the
// test finishes. Each call gets its own empty database.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.Open(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    ":memory:",
	}, logger)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	if _, err := database.MigrateUp(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
