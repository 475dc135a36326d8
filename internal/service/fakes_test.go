package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

// =========================================================================
// IN-MEMORY REPOSITORIES
// =========================================================================
//
// These fakes implement the repository interfaces with maps and slices, so
// service tests run without a database. They follow the real store's rules
// where a service depends on them (upsert keeps nil fields, duplicate
// attendance is skipped). Anything SQL-specific is tested in gormdb.

type fakeUsers struct {
	mu        sync.Mutex
	bySubject map[string]*model.User
	nextID    int
	err       error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{bySubject: make(map[string]*model.User)}
}

func (f *fakeUsers) UpsertBySubject(_ context.Context, u *model.User, opts repository.UpsertOptions) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	existing, ok := f.bySubject[u.SubjectID]
	if !ok {
		f.nextID++
		row := *u
		row.ID = fmt.Sprintf("user-%d", f.nextID)
		row.Role = model.RoleAthlete
		if row.Email == nil {
			row.Email = opts.FallbackEmail
		}
		if opts.Promote {
			row.Role = model.RoleHIM
		}
		f.bySubject[u.SubjectID] = &row
		out := row
		return &out, nil
	}

	if u.Email != nil {
		existing.Email = u.Email
	}
	if u.FirstName != nil {
		existing.FirstName = u.FirstName
	}
	if u.LastName != nil {
		existing.LastName = u.LastName
	}
	if u.PhotoURL != nil {
		existing.PhotoURL = u.PhotoURL
	}
	if opts.Promote {
		existing.Role = model.RoleHIM
	}
	out := *existing
	return &out, nil
}

func (f *fakeUsers) GetBySubject(_ context.Context, subject string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.bySubject[subject]
	if !ok {
		return nil, apperror.NotFound("user", subject)
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.bySubject {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUsers) FindByEmails(_ context.Context, emails []string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[e] = true
	}
	var out []model.User
	for _, u := range f.bySubject {
		if u.Email != nil && want[*u.Email] {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// add stores a user directly, bypassing Resolve.
func (f *fakeUsers) add(t *testing.T, subject, email string, role model.Role) *model.User {
	t.Helper()
	u, err := f.UpsertBySubject(context.Background(),
		&model.User{SubjectID: subject, Email: &email},
		repository.UpsertOptions{Promote: role == model.RoleHIM},
	)
	if err != nil {
		t.Fatalf("adding user: %v", err)
	}
	return u
}

type attendanceKey struct {
	user, ao string
	day      string
}

type fakeRecords struct {
	mu          sync.Mutex
	attendance  []model.AttendanceRecord
	seen        map[attendanceKey]bool
	efforts     []model.EffortRecord
	reflections []model.WeeklyReflection
	reports     []model.SelfReportEntry
	err         error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{seen: make(map[attendanceKey]bool)}
}

func (f *fakeRecords) insertAttendance(rec model.AttendanceRecord) bool {
	key := attendanceKey{rec.UserID, rec.AOID, rec.Date.Format(time.RFC3339)}
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	f.attendance = append(f.attendance, rec)
	return true
}

func (f *fakeRecords) CreateAttendance(_ context.Context, rec *model.AttendanceRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.insertAttendance(*rec), nil
}

func (f *fakeRecords) CreateAttendanceBatch(_ context.Context, recs []model.AttendanceRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, rec := range recs {
		if f.insertAttendance(rec) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecords) CreateEffort(_ context.Context, rec *model.EffortRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.efforts = append(f.efforts, *rec)
	return nil
}

func (f *fakeRecords) CreateReflection(_ context.Context, rec *model.WeeklyReflection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reflections = append(f.reflections, *rec)
	return nil
}

func (f *fakeRecords) CreateSelfReport(_ context.Context, rec *model.SelfReportEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, *rec)
	return nil
}

// fakeDashboard returns canned rollups and records what it was asked.
type fakeDashboard struct {
	count      int64
	efforts    []model.EffortRecord
	reflection *model.WeeklyReflection
	reports    []model.SelfReportEntry
	err        error

	gotSince time.Time
	gotLimit int
}

func (f *fakeDashboard) CountAttendanceSince(_ context.Context, _ string, since time.Time) (int64, error) {
	f.gotSince = since
	return f.count, f.err
}

func (f *fakeDashboard) RecentEfforts(_ context.Context, _ string, limit int) ([]model.EffortRecord, error) {
	f.gotLimit = limit
	return f.efforts, nil
}

func (f *fakeDashboard) LatestReflection(context.Context, string) (*model.WeeklyReflection, error) {
	return f.reflection, nil
}

func (f *fakeDashboard) RecentSelfReports(context.Context, string, int) ([]model.SelfReportEntry, error) {
	return f.reports, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }

func assertAppError(t *testing.T, err error, sentinel error, wantMsg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", sentinel)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel %v", err, sentinel)
	}
	if wantMsg != "" && appErr.Message != wantMsg {
		t.Errorf("message = %q, want %q", appErr.Message, wantMsg)
	}
}
