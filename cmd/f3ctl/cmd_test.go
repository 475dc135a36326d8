package main

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
)

// setup points every command at a fresh SQLite file.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", filepath.Join(dir, "invigorate.db"))
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")
	color.NoColor = true
	return dir
}

// execute runs one command line. Flag variables are package globals, so
// they are reset to their defaults first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	migrateSteps = 1
	legacyDSN = ""
	legacyDriver = database.DriverPostgres
	dryRun = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	setup(t)

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Applied 2 migration(s)")

	out, err = execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date.")

	out, err = execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "0001_users.sql")
	assert.Contains(t, out, "0002_records.sql")
	assert.NotContains(t, out, "pending")

	out, err = execute(t, "migrate", "down", "--steps", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back 1 migration(s)")

	out, err = execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
}

func TestCheckDB(t *testing.T) {
	setup(t)

	out, err := execute(t, "check-db")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Connected to sqlite")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "pending; run 'f3ctl migrate up'")

	_, err = execute(t, "migrate", "up")
	require.NoError(t, err)

	out, err = execute(t, "check-db")
	require.NoError(t, err)
	assert.NotContains(t, out, "missing")
	assert.Contains(t, out, "all 2 applied")
	assert.Contains(t, out, "Recent users")
}

func TestReconcileLegacy(t *testing.T) {
	dir := setup(t)
	legacyPath := filepath.Join(dir, "legacy.db")

	src, err := database.Open(config.DatabaseConfig{Driver: database.DriverSQLite, DSN: legacyPath},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE athletes (id TEXT PRIMARY KEY, firebase_id TEXT NOT NULL, email TEXT,
			first_name TEXT, last_name TEXT, gofast_handle TEXT, photo_url TEXT, created_at TIMESTAMP)`,
		`CREATE TABLE attendance_records (id TEXT PRIMARY KEY, athlete_id TEXT, ao_id TEXT,
			date TIMESTAMP, source TEXT, created_at TIMESTAMP)`,
		`INSERT INTO athletes VALUES ('cl-a1', 'fb-1', 'one@example.com', 'Sam', NULL, 'Sparky', NULL, '2024-01-01 09:00:00')`,
		`INSERT INTO attendance_records VALUES
			('cl-r1', 'cl-a1', 'the-yard', '2024-03-04 12:00:00', 'SELF', '2024-03-04 13:00:00'),
			('cl-r2', 'cl-nobody', 'the-yard', '2024-03-04 12:00:00', 'SELF', '2024-03-04 13:00:00')`,
	} {
		require.NoError(t, src.Exec(stmt).Error)
	}
	require.NoError(t, database.Close(src))

	t.Run("requires a source", func(t *testing.T) {
		_, err := execute(t, "reconcile-legacy")
		assert.ErrorContains(t, err, "--legacy-dsn is required")
	})

	t.Run("dry run", func(t *testing.T) {
		out, err := execute(t, "reconcile-legacy", "--legacy-driver", "sqlite", "--legacy-dsn", legacyPath, "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "Dry run: nothing was written.")
		assert.Contains(t, out, "1 athletes, 0 HIMs → 1 users")
		assert.Contains(t, out, "read 2, imported 1, 1 orphaned")
	})

	t.Run("real run", func(t *testing.T) {
		out, err := execute(t, "reconcile-legacy", "--legacy-driver", "sqlite", "--legacy-dsn", legacyPath)
		require.NoError(t, err)
		assert.Contains(t, out, "imported 1")
		assert.Contains(t, out, "✓ Legacy import complete")

		out, err = execute(t, "check-db")
		require.NoError(t, err)
		assert.Contains(t, out, "Sparky")
	})

	t.Run("rerun imports nothing", func(t *testing.T) {
		out, err := execute(t, "reconcile-legacy", "--legacy-driver", "sqlite", "--legacy-dsn", legacyPath)
		require.NoError(t, err)
		assert.Contains(t, out, "read 2, imported 0")
	})
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
