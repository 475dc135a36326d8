// Package legacy imports data from the schema the app used before users were
// unified.
//
// LEGACY LAYOUT:
// The old database kept people in two tables with the same shape:
//
//	athletes (id, firebase_id, email, first_name, last_name, gofast_handle, photo_url, ...)
//	f3_hims  (id, firebase_id, email, first_name, last_name, f3_handle,     photo_url, ...)
//
// and the record tables pointed at them through athlete_id, later joined by
// an f3_him_id column that a half-finished migration back-filled. A record's
// owner is therefore f3_him_id when set, else athlete_id.
//
// MAPPING:
//   - every person becomes one users row keyed on firebase_id; a person in
//     both tables is merged and f3_hims rows promote to HIM
//   - record rows keep their legacy id, so a rerun skips what it already copied
//   - a record whose owner is in neither people table is counted as orphaned
//     and left behind
package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
	"github.com/f3-invigorate/invigorate/internal/repository/gormdb"
)

const batchSize = 200

// errDryRun rolls back the import transaction after everything was written.
var errDryRun = errors.New("legacy: dry run")

type Options struct {
	// DryRun performs the whole import inside a transaction and rolls it
	// back, so the Report shows exactly what a real run would write.
	DryRun bool
}

// TableResult counts one legacy record table.
type TableResult struct {
	Table    string
	Read     int
	Imported int64
	Orphaned int
}

type Report struct {
	DryRun   bool
	Athletes int
	HIMs     int
	Users    int // distinct users after merging both people tables
	Tables   []TableResult
}

// Reconciler copies from a legacy database into the current one.
type Reconciler struct {
	src    *gorm.DB
	dst    *gorm.DB
	logger *slog.Logger
}

func NewReconciler(src, dst *gorm.DB, logger *slog.Logger) *Reconciler {
	return &Reconciler{src: src, dst: dst, logger: logger}
}

type person struct {
	ID         string  `gorm:"column:id"`
	FirebaseID string  `gorm:"column:firebase_id"`
	Email      *string `gorm:"column:email"`
	FirstName  *string `gorm:"column:first_name"`
	LastName   *string `gorm:"column:last_name"`
	Handle     *string `gorm:"column:handle"`
	PhotoURL   *string `gorm:"column:photo_url"`
}

// Legacy record rows, with the owner already resolved to owner_id.

type attendanceRow struct {
	OwnerID   string    `gorm:"column:owner_id"`
	ID        string    `gorm:"column:id"`
	AOID      string    `gorm:"column:ao_id"`
	Date      time.Time `gorm:"column:date"`
	Source    string    `gorm:"column:source"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

type effortRow struct {
	OwnerID     string    `gorm:"column:owner_id"`
	ID          string    `gorm:"column:id"`
	Date        time.Time `gorm:"column:date"`
	Calories    int       `gorm:"column:calories"`
	DurationSec int       `gorm:"column:duration_sec"`
	CalPerMin   float64   `gorm:"column:cal_per_min"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

type reflectionRow struct {
	OwnerID   string    `gorm:"column:owner_id"`
	ID        string    `gorm:"column:id"`
	Mood      *string   `gorm:"column:mood"`
	Wins      *string   `gorm:"column:wins"`
	Struggles *string   `gorm:"column:struggles"`
	Intention *string   `gorm:"column:intention"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

type selfReportRow struct {
	OwnerID   string    `gorm:"column:owner_id"`
	ID        string    `gorm:"column:id"`
	Category  string    `gorm:"column:category"`
	Note      *string   `gorm:"column:note"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// Run imports everything in one transaction on the destination. Any error
// rolls the whole import back.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Report, error) {
	athletes, err := r.readPeople(ctx, "athletes", "gofast_handle")
	if err != nil {
		return nil, err
	}
	hims, err := r.readPeople(ctx, "f3_hims", "f3_handle")
	if err != nil {
		return nil, err
	}

	report := &Report{DryRun: opts.DryRun, Athletes: len(athletes), HIMs: len(hims)}

	err = r.dst.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := gormdb.New(tx).Users()

		// legacy person id → users.id
		owners := make(map[string]string, len(athletes)+len(hims))
		// Athletes first so an f3_hims row for the same person promotes it.
		if err := r.importPeople(ctx, users, athletes, false, owners); err != nil {
			return err
		}
		if err := r.importPeople(ctx, users, hims, true, owners); err != nil {
			return err
		}

		distinct := make(map[string]struct{}, len(owners))
		for _, id := range owners {
			distinct[id] = struct{}{}
		}
		report.Users = len(distinct)

		for _, copyTable := range []func(context.Context, *gorm.DB, map[string]string) (TableResult, error){
			r.copyAttendance,
			r.copyEfforts,
			r.copyReflections,
			r.copySelfReports,
		} {
			res, err := copyTable(ctx, tx, owners)
			if err != nil {
				return err
			}
			if res.Table != "" {
				report.Tables = append(report.Tables, res)
			}
		}

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}

	r.logger.Info("legacy import finished",
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("athletes", report.Athletes),
		slog.Int("hims", report.HIMs),
		slog.Int("users", report.Users),
	)
	return report, nil
}

// readPeople returns nil when the table does not exist; an old database may
// predate f3_hims entirely.
func (r *Reconciler) readPeople(ctx context.Context, table, handleColumn string) ([]person, error) {
	m := r.src.Migrator()
	if !m.HasTable(table) {
		r.logger.Info("legacy table absent", slog.String("table", table))
		return nil, nil
	}

	handle := "NULL AS handle"
	if m.HasColumn(table, handleColumn) {
		handle = handleColumn + " AS handle"
	}

	var people []person
	err := r.src.WithContext(ctx).Table(table).
		Select("id, firebase_id, email, first_name, last_name, " + handle + ", photo_url").
		Order("created_at").
		Scan(&people).Error
	if err != nil {
		return nil, fmt.Errorf("legacy: reading %s: %w", table, err)
	}
	return people, nil
}

func (r *Reconciler) importPeople(ctx context.Context, users repository.UserRepository, people []person, promote bool, owners map[string]string) error {
	for _, p := range people {
		if p.FirebaseID == "" {
			r.logger.Warn("skipping legacy person without firebase id", slog.String("legacy_id", p.ID))
			continue
		}
		u, err := users.UpsertBySubject(ctx, &model.User{
			SubjectID: p.FirebaseID,
			Email:     blankToNil(p.Email),
			FirstName: blankToNil(p.FirstName),
			LastName:  blankToNil(p.LastName),
			Handle:    blankToNil(p.Handle),
			PhotoURL:  blankToNil(p.PhotoURL),
		}, repository.UpsertOptions{Promote: promote})
		if err != nil {
			return fmt.Errorf("legacy: importing person %s: %w", p.ID, err)
		}
		owners[p.ID] = u.ID
	}
	return nil
}

// ownerColumn picks the expression naming a record's legacy owner, or ""
// when the table has neither column.
func (r *Reconciler) ownerColumn(table string) string {
	m := r.src.Migrator()
	hasHIM, hasAthlete := m.HasColumn(table, "f3_him_id"), m.HasColumn(table, "athlete_id")
	switch {
	case hasHIM && hasAthlete:
		return "COALESCE(f3_him_id, athlete_id, '')"
	case hasHIM:
		return "COALESCE(f3_him_id, '')"
	case hasAthlete:
		return "COALESCE(athlete_id, '')"
	}
	return ""
}

// readRecords scans table into dst with the owner exposed as owner_id. It
// reports false when the table is absent or has no owner column.
func (r *Reconciler) readRecords(ctx context.Context, table, columns string, dst any) (bool, error) {
	if !r.src.Migrator().HasTable(table) {
		return false, nil
	}
	owner := r.ownerColumn(table)
	if owner == "" {
		r.logger.Warn("legacy table has no owner column", slog.String("table", table))
		return false, nil
	}

	err := r.src.WithContext(ctx).Table(table).
		Select(owner + " AS owner_id, " + columns).
		Scan(dst).Error
	if err != nil {
		return false, fmt.Errorf("legacy: reading %s: %w", table, err)
	}
	return true, nil
}

func (r *Reconciler) copyAttendance(ctx context.Context, tx *gorm.DB, owners map[string]string) (TableResult, error) {
	const table = "attendance_records"
	var rows []attendanceRow

	source := "'" + string(model.SourceSelf) + "' AS source"
	if r.src.Migrator().HasColumn(table, "source") {
		source = "source"
	}
	ok, err := r.readRecords(ctx, table, "id, ao_id, date, "+source+", created_at", &rows)
	if err != nil || !ok {
		return TableResult{}, err
	}

	res := TableResult{Table: table, Read: len(rows)}
	recs := make([]model.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		userID, known := owners[row.OwnerID]
		if !known {
			res.Orphaned++
			continue
		}
		src := model.Source(row.Source)
		if src != model.SourceBackblast {
			src = model.SourceSelf
		}
		rec := model.AttendanceRecord{
			UserID:    userID,
			AOID:      row.AOID,
			Date:      row.Date,
			Source:    src,
			CreatedAt: row.CreatedAt,
		}
		rec.ID = row.ID
		recs = append(recs, rec)
	}

	res.Imported, err = insertSkippingDuplicates(ctx, tx, table, &recs, len(recs))
	return res, err
}

func (r *Reconciler) copyEfforts(ctx context.Context, tx *gorm.DB, owners map[string]string) (TableResult, error) {
	const table = "effort_records"
	var rows []effortRow

	ok, err := r.readRecords(ctx, table, "id, date, calories, duration_sec, cal_per_min, created_at", &rows)
	if err != nil || !ok {
		return TableResult{}, err
	}

	res := TableResult{Table: table, Read: len(rows)}
	recs := make([]model.EffortRecord, 0, len(rows))
	for _, row := range rows {
		userID, known := owners[row.OwnerID]
		if !known {
			res.Orphaned++
			continue
		}
		rec := model.EffortRecord{
			UserID:      userID,
			Date:        row.Date,
			Calories:    row.Calories,
			DurationSec: row.DurationSec,
			CalPerMin:   row.CalPerMin,
			CreatedAt:   row.CreatedAt,
		}
		rec.ID = row.ID
		recs = append(recs, rec)
	}

	res.Imported, err = insertSkippingDuplicates(ctx, tx, table, &recs, len(recs))
	return res, err
}

func (r *Reconciler) copyReflections(ctx context.Context, tx *gorm.DB, owners map[string]string) (TableResult, error) {
	const table = "weekly_reflections"
	var rows []reflectionRow

	ok, err := r.readRecords(ctx, table, "id, mood, wins, struggles, intention, created_at", &rows)
	if err != nil || !ok {
		return TableResult{}, err
	}

	res := TableResult{Table: table, Read: len(rows)}
	recs := make([]model.WeeklyReflection, 0, len(rows))
	for _, row := range rows {
		userID, known := owners[row.OwnerID]
		if !known {
			res.Orphaned++
			continue
		}
		rec := model.WeeklyReflection{
			UserID:    userID,
			Mood:      blankToNil(row.Mood),
			Wins:      blankToNil(row.Wins),
			Struggles: blankToNil(row.Struggles),
			Intention: blankToNil(row.Intention),
			CreatedAt: row.CreatedAt,
		}
		rec.ID = row.ID
		recs = append(recs, rec)
	}

	res.Imported, err = insertSkippingDuplicates(ctx, tx, table, &recs, len(recs))
	return res, err
}

func (r *Reconciler) copySelfReports(ctx context.Context, tx *gorm.DB, owners map[string]string) (TableResult, error) {
	const table = "self_report_entries"
	var rows []selfReportRow

	ok, err := r.readRecords(ctx, table, "id, category, note, created_at", &rows)
	if err != nil || !ok {
		return TableResult{}, err
	}

	res := TableResult{Table: table, Read: len(rows)}
	recs := make([]model.SelfReportEntry, 0, len(rows))
	for _, row := range rows {
		userID, known := owners[row.OwnerID]
		if !known {
			res.Orphaned++
			continue
		}
		category := model.Category(row.Category)
		if !category.Valid() {
			r.logger.Warn("skipping legacy self-report with unknown category",
				slog.String("legacy_id", row.ID),
				slog.String("category", row.Category),
			)
			continue
		}
		rec := model.SelfReportEntry{
			UserID:    userID,
			Category:  category,
			Note:      blankToNil(row.Note),
			CreatedAt: row.CreatedAt,
		}
		rec.ID = row.ID
		recs = append(recs, rec)
	}

	res.Imported, err = insertSkippingDuplicates(ctx, tx, table, &recs, len(recs))
	return res, err
}

// insertSkippingDuplicates writes recs (a pointer to a slice of models) in
// batches. Rows whose id, or any other unique key, already exists are skipped.
func insertSkippingDuplicates(ctx context.Context, tx *gorm.DB, table string, recs any, n int) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(recs, batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("legacy: writing %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

func blankToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
