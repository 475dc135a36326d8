// Package repository declares the storage contracts the service layer uses.
//
// Services depend on these interfaces, never on GORM directly. The concrete
// implementation lives in repository/gormdb; service tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/f3-invigorate/invigorate/internal/model"
)

// UpsertOptions tunes the find-or-create.
//
// FallbackEmail is written only when the row is inserted and the claims had
// no email. Promote sets the HIM role on both insert and update; without it
// the existing role is left untouched.
type UpsertOptions struct {
	FallbackEmail *string
	Promote       bool
}

type UserRepository interface {
	// UpsertBySubject inserts or updates the user keyed on SubjectID in one
	// statement. Only non-nil profile fields on u are refreshed on update.
	// It returns the stored row.
	UpsertBySubject(ctx context.Context, u *model.User, opts UpsertOptions) (*model.User, error)
	GetBySubject(ctx context.Context, subjectID string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmails returns users whose email exactly matches one of emails.
	FindByEmails(ctx context.Context, emails []string) ([]model.User, error)
}

type RecordRepository interface {
	// CreateAttendance inserts one row; a duplicate (user, ao, date) is
	// silently skipped. It reports whether a row was written.
	CreateAttendance(ctx context.Context, rec *model.AttendanceRecord) (bool, error)
	// CreateAttendanceBatch inserts every row in one multi-row statement,
	// skipping duplicates, and returns the number actually written.
	CreateAttendanceBatch(ctx context.Context, recs []model.AttendanceRecord) (int64, error)
	CreateEffort(ctx context.Context, rec *model.EffortRecord) error
	CreateReflection(ctx context.Context, rec *model.WeeklyReflection) error
	CreateSelfReport(ctx context.Context, rec *model.SelfReportEntry) error
}

// DashboardRepository holds the read-only rollups.
type DashboardRepository interface {
	CountAttendanceSince(ctx context.Context, userID string, since time.Time) (int64, error)
	RecentEfforts(ctx context.Context, userID string, limit int) ([]model.EffortRecord, error)
	// LatestReflection returns (nil, nil) when the user has none.
	LatestReflection(ctx context.Context, userID string) (*model.WeeklyReflection, error)
	RecentSelfReports(ctx context.Context, userID string, limit int) ([]model.SelfReportEntry, error)
}
