package database

import (
	"embed"
	"fmt"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func migrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
}

// migrateDialect maps our driver names to sql-migrate's dialect names.
func migrateDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	case DriverMySQL:
		return "mysql", nil
	}
	return "", fmt.Errorf("database: no migration dialect for %q", driver)
}

// MigrateUp applies every pending migration and returns how many ran.
func MigrateUp(db *gorm.DB, driver string) (int, error) {
	return run(db, driver, migrate.Up, 0)
}

// MigrateDown rolls back the most recent `steps` migrations.
func MigrateDown(db *gorm.DB, driver string, steps int) (int, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("database: rollback steps must be positive, got %d", steps)
	}
	return run(db, driver, migrate.Down, steps)
}

func run(db *gorm.DB, driver string, dir migrate.MigrationDirection, max int) (int, error) {
	dialect, err := migrateDialect(driver)
	if err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("database: getting sql.DB: %w", err)
	}

	n, err := migrate.ExecMax(sqlDB, dialect, migrationSource(), dir, max)
	if err != nil {
		return n, fmt.Errorf("database: running migrations: %w", err)
	}
	return n, nil
}

// MigrationState is one embedded migration and when (if ever) it was applied.
type MigrationState struct {
	ID        string
	AppliedAt *time.Time
}

func (m MigrationState) Applied() bool { return m.AppliedAt != nil }

// MigrationStatus lists embedded migrations in order with their applied time.
func MigrationStatus(db *gorm.DB, driver string) ([]MigrationState, error) {
	dialect, err := migrateDialect(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: getting sql.DB: %w", err)
	}

	migrations, err := migrationSource().FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("database: reading embedded migrations: %w", err)
	}
	records, err := migrate.GetMigrationRecords(sqlDB, dialect)
	if err != nil {
		return nil, fmt.Errorf("database: reading migration records: %w", err)
	}

	applied := make(map[string]time.Time, len(records))
	for _, r := range records {
		applied[r.Id] = r.AppliedAt
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		state := MigrationState{ID: m.Id}
		if at, ok := applied[m.Id]; ok {
			state.AppliedAt = &at
		}
		states = append(states, state)
	}
	return states, nil
}
