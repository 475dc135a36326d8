package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/f3-invigorate/invigorate/internal/model"
)

// TableCount is a row count for one application table.
type TableCount struct {
	Table string
	Rows  int64
}

// Report is what `f3ctl check-db` prints: enough to tell at a glance whether
// the database is reachable, migrated and holding data.
type Report struct {
	Driver      string
	Version     string
	Tables      []string
	Counts      []TableCount
	Migrations  []MigrationState
	RecentUsers []model.User
}

// appTables are counted in this order.
var appTables = []string{
	model.User{}.TableName(),
	model.AttendanceRecord{}.TableName(),
	model.EffortRecord{}.TableName(),
	model.WeeklyReflection{}.TableName(),
	model.SelfReportEntry{}.TableName(),
}

// AppTables returns the application's tables in reporting order.
func AppTables() []string {
	return append([]string(nil), appTables...)
}

// Inspect gathers a Report. Missing tables are not an error; they simply
// have no count, which is itself the diagnosis.
func Inspect(ctx context.Context, db *gorm.DB, driver string) (*Report, error) {
	db = db.WithContext(ctx)
	report := &Report{Driver: driver}

	versionSQL := "SELECT version()"
	if driver == DriverSQLite {
		versionSQL = "SELECT sqlite_version()"
	}
	if err := db.Raw(versionSQL).Scan(&report.Version).Error; err != nil {
		return nil, fmt.Errorf("database: reading server version: %w", err)
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("database: listing tables: %w", err)
	}
	report.Tables = tables

	for _, table := range appTables {
		if !db.Migrator().HasTable(table) {
			continue
		}
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("database: counting %s: %w", table, err)
		}
		report.Counts = append(report.Counts, TableCount{Table: table, Rows: n})
	}

	migrations, err := MigrationStatus(db, driver)
	if err != nil {
		return nil, err
	}
	report.Migrations = migrations

	if db.Migrator().HasTable(&model.User{}) {
		if err := db.Order("created_at DESC").Limit(5).Find(&report.RecentUsers).Error; err != nil {
			return nil, fmt.Errorf("database: sampling users: %w", err)
		}
	}

	return report, nil
}
