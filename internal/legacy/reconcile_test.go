package legacy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/f3-invigorate/invigorate/internal/config"
	"github.com/f3-invigorate/invigorate/internal/database"
	"github.com/f3-invigorate/invigorate/internal/database/dbtest"
	"github.com/f3-invigorate/invigorate/internal/model"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// legacySchema is the pre-unification layout, including the f3_him_id
// columns the old back-fill added to some record tables but not others.
var legacySchema = []string{
	`CREATE TABLE athletes (
		id TEXT PRIMARY KEY, firebase_id TEXT UNIQUE NOT NULL, email TEXT,
		first_name TEXT, last_name TEXT, gofast_handle TEXT UNIQUE, photo_url TEXT,
		created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE f3_hims (
		id TEXT PRIMARY KEY, firebase_id TEXT UNIQUE NOT NULL, email TEXT,
		first_name TEXT, last_name TEXT, f3_handle TEXT UNIQUE, photo_url TEXT,
		created_at TIMESTAMP, updated_at TIMESTAMP)`,
	`CREATE TABLE attendance_records (
		id TEXT PRIMARY KEY, athlete_id TEXT, f3_him_id TEXT, ao_id TEXT,
		date TIMESTAMP, source TEXT, created_at TIMESTAMP)`,
	`CREATE TABLE effort_records (
		id TEXT PRIMARY KEY, athlete_id TEXT, date TIMESTAMP, calories INTEGER,
		duration_sec INTEGER, cal_per_min REAL, created_at TIMESTAMP)`,
	`CREATE TABLE weekly_reflections (
		id TEXT PRIMARY KEY, athlete_id TEXT, f3_him_id TEXT, mood TEXT, wins TEXT,
		struggles TEXT, intention TEXT, created_at TIMESTAMP)`,
	`CREATE TABLE self_report_entries (
		id TEXT PRIMARY KEY, athlete_id TEXT, category TEXT, note TEXT, created_at TIMESTAMP)`,
}

var legacyData = []string{
	`INSERT INTO athletes VALUES
		('cl-a1', 'fb-1', 'one@example.com', 'Sam', 'Smith', 'Sparky', NULL, '2024-01-01 09:00:00', '2024-01-01 09:00:00'),
		('cl-a2', 'fb-2', 'two@example.com', 'Pat', NULL, NULL, NULL, '2024-01-02 09:00:00', '2024-01-02 09:00:00')`,
	// The old migration copied athletes into f3_hims with the same ids.
	`INSERT INTO f3_hims VALUES
		('cl-a1', 'fb-1', 'one@example.com', 'Sam', 'Smith', 'Sparky', NULL, '2024-01-01 09:00:00', '2024-01-01 09:00:00')`,
	`INSERT INTO attendance_records VALUES
		('cl-r1', 'cl-a1', 'cl-a1', 'the-yard', '2024-03-04 12:00:00', 'BACKBLAST', '2024-03-04 13:00:00'),
		('cl-r2', 'cl-a2', NULL,    'the-yard', '2024-03-04 12:00:00', 'SELF',      '2024-03-04 13:00:00'),
		('cl-r3', 'cl-gone', NULL,  'the-yard', '2024-03-04 12:00:00', 'SELF',      '2024-03-04 13:00:00')`,
	`INSERT INTO effort_records VALUES
		('cl-e1', 'cl-a2', '2024-03-04 12:00:00', 450, 2700, 10.0, '2024-03-04 13:00:00')`,
	`INSERT INTO weekly_reflections VALUES
		('cl-w1', 'cl-a1', NULL, '', 'ran 5k', NULL, NULL, '2024-03-05 20:00:00')`,
	`INSERT INTO self_report_entries VALUES
		('cl-s1', 'cl-a2', 'FELLOWSHIP', 'coffeeteria', '2024-03-06 08:00:00'),
		('cl-s2', 'cl-a2', 'WORKOUT', NULL, '2024-03-06 08:00:00')`,
}

func newLegacyDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: database.DriverSQLite, DSN: ":memory:"}, quietLogger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	for _, stmt := range append(legacySchema, legacyData...) {
		require.NoError(t, db.Exec(stmt).Error, stmt)
	}
	return db
}

func tableResult(t *testing.T, r *Report, table string) TableResult {
	t.Helper()
	for _, res := range r.Tables {
		if res.Table == table {
			return res
		}
	}
	t.Fatalf("no result for %s in %+v", table, r.Tables)
	return TableResult{}
}

func TestReconciler_Run(t *testing.T) {
	ctx := context.Background()
	src, dst := newLegacyDB(t), dbtest.New(t)
	rec := NewReconciler(src, dst, quietLogger)

	report, err := rec.Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Athletes)
	assert.Equal(t, 1, report.HIMs)
	assert.Equal(t, 2, report.Users, "the athlete and HIM rows for fb-1 merge")

	assert.Equal(t, TableResult{Table: "attendance_records", Read: 3, Imported: 2, Orphaned: 1},
		tableResult(t, report, "attendance_records"))
	assert.Equal(t, TableResult{Table: "effort_records", Read: 1, Imported: 1},
		tableResult(t, report, "effort_records"))
	assert.Equal(t, TableResult{Table: "weekly_reflections", Read: 1, Imported: 1},
		tableResult(t, report, "weekly_reflections"))
	assert.Equal(t, TableResult{Table: "self_report_entries", Read: 2, Imported: 1},
		tableResult(t, report, "self_report_entries"), "unknown categories are dropped")

	// === Users ===
	var sam, pat model.User
	require.NoError(t, dst.Where("subject_id = ?", "fb-1").Take(&sam).Error)
	require.NoError(t, dst.Where("subject_id = ?", "fb-2").Take(&pat).Error)
	assert.Equal(t, model.RoleHIM, sam.Role)
	assert.Equal(t, "Sparky", *sam.Handle)
	assert.Equal(t, model.RoleAthlete, pat.Role)

	// === Records keep their ids and point at the new users ===
	var att model.AttendanceRecord
	require.NoError(t, dst.Where("id = ?", "cl-r1").Take(&att).Error)
	assert.Equal(t, sam.ID, att.UserID)
	assert.Equal(t, model.SourceBackblast, att.Source)

	var effort model.EffortRecord
	require.NoError(t, dst.Where("id = ?", "cl-e1").Take(&effort).Error)
	assert.Equal(t, pat.ID, effort.UserID)
	assert.Equal(t, 2700, effort.DurationSec)

	var refl model.WeeklyReflection
	require.NoError(t, dst.Where("id = ?", "cl-w1").Take(&refl).Error)
	assert.Nil(t, refl.Mood, "empty legacy text becomes NULL")
	assert.Equal(t, "ran 5k", *refl.Wins)
}

func TestReconciler_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src, dst := newLegacyDB(t), dbtest.New(t)
	rec := NewReconciler(src, dst, quietLogger)

	_, err := rec.Run(ctx, Options{})
	require.NoError(t, err)

	again, err := rec.Run(ctx, Options{})
	require.NoError(t, err)
	for _, res := range again.Tables {
		assert.Zero(t, res.Imported, res.Table)
	}

	var users int64
	require.NoError(t, dst.Model(&model.User{}).Count(&users).Error)
	assert.EqualValues(t, 2, users)
}

func TestReconciler_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	src, dst := newLegacyDB(t), dbtest.New(t)

	report, err := NewReconciler(src, dst, quietLogger).Run(ctx, Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Users)
	assert.EqualValues(t, 2, tableResult(t, report, "attendance_records").Imported)

	for _, m := range []any{&model.User{}, &model.AttendanceRecord{}, &model.EffortRecord{}} {
		var n int64
		require.NoError(t, dst.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestReconciler_EmptyLegacyDatabase(t *testing.T) {
	src, err := database.Open(config.DatabaseConfig{Driver: database.DriverSQLite, DSN: ":memory:"}, quietLogger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(src) })

	report, err := NewReconciler(src, dbtest.New(t), quietLogger).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Zero(t, report.Athletes)
	assert.Zero(t, report.Users)
	assert.Empty(t, report.Tables)
}
