package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

type SelfAttendanceInput struct {
	AO   string `json:"ao"   validate:"required,max=255"`
	Date string `json:"date" validate:"required,caldate"`
}

// BackblastInput is a Q's report. Pax is a comma-separated list of emails.
type BackblastInput struct {
	AO   string `json:"ao"   validate:"required,max=255"`
	Date string `json:"date" validate:"required,caldate"`
	Pax  string `json:"pax"  validate:"required"`
}

// BackblastResult reports what a backblast did.
//
// Resolved is how many PAX emails matched a user; Created is how many rows
// were new (a re-posted backblast resolves everyone but creates nothing).
// Unknown lists the emails that matched nobody.
type BackblastResult struct {
	Resolved int
	Created  int64
	Unknown  []string
}

func (r BackblastResult) Message() string {
	return fmt.Sprintf("Created %d attendance record(s)", r.Resolved)
}

type AttendanceService struct {
	users   repository.UserRepository
	records repository.RecordRepository
	loc     *time.Location
	logger  *slog.Logger
}

func NewAttendanceService(users repository.UserRepository, records repository.RecordRepository, loc *time.Location, logger *slog.Logger) *AttendanceService {
	return &AttendanceService{users: users, records: records, loc: loc, logger: logger}
}

// LogSelf records the caller at an AO. Logging the same AO and day twice
// is a successful no-op.
func (s *AttendanceService) LogSelf(ctx context.Context, user *model.User, in SelfAttendanceInput) error {
	in.AO = strings.TrimSpace(in.AO)
	in.Date = strings.TrimSpace(in.Date)
	if err := Validate(in); err != nil {
		return err
	}
	date, err := NormalizeDate(in.Date, s.loc)
	if err != nil {
		return err
	}

	rec := &model.AttendanceRecord{
		UserID: user.ID,
		AOID:   in.AO,
		Date:   date,
		Source: model.SourceSelf,
	}
	created, err := s.records.CreateAttendance(ctx, rec)
	if err != nil {
		return fmt.Errorf("logging attendance: %w", err)
	}

	s.logger.Info("attendance logged",
		slog.String("user_id", user.ID),
		slog.String("ao", in.AO),
		slog.String("date", date.Format(dateLayout)),
		slog.Bool("duplicate", !created),
	)
	return nil
}

// CreateBackblast records attendance for every PAX email that matches a user.
//
// RULES:
//  1. Only a HIM may post one (ErrForbidden otherwise)
//  2. Emails are split on commas, trimmed, blanks dropped; none left → 400
//  3. Emails are matched exactly; unknown ones are skipped and logged, not
//     rejected, so one typo does not sink the whole report
//  4. Nobody matched → 404
//  5. All rows go in one INSERT that skips (user, ao, date) duplicates
func (s *AttendanceService) CreateBackblast(ctx context.Context, q *model.User, in BackblastInput) (*BackblastResult, error) {
	if !q.IsHIM() {
		return nil, apperror.Forbidden("Only F3 HIMs can post a backblast")
	}

	in.AO = strings.TrimSpace(in.AO)
	in.Date = strings.TrimSpace(in.Date)
	in.Pax = strings.TrimSpace(in.Pax)
	if err := Validate(in); err != nil {
		return nil, err
	}
	date, err := NormalizeDate(in.Date, s.loc)
	if err != nil {
		return nil, err
	}

	emails := splitPax(in.Pax)
	if len(emails) == 0 {
		return nil, apperror.ValidationFailed("pax", "No valid emails provided")
	}

	users, err := s.users.FindByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("resolving pax: %w", err)
	}

	found := make(map[string]bool, len(users))
	for _, u := range users {
		if u.Email != nil {
			found[*u.Email] = true
		}
	}
	result := &BackblastResult{Resolved: len(users)}
	for _, e := range emails {
		if !found[e] {
			result.Unknown = append(result.Unknown, e)
		}
	}

	if len(result.Unknown) > 0 {
		s.logger.Warn("backblast pax not found",
			slog.String("q", q.ID),
			slog.Any("emails", result.Unknown),
		)
	}
	if len(users) == 0 {
		return nil, apperror.NoneFound("No users found for provided emails")
	}

	recs := make([]model.AttendanceRecord, 0, len(users))
	for _, u := range users {
		recs = append(recs, model.AttendanceRecord{
			UserID: u.ID,
			AOID:   in.AO,
			Date:   date,
			Source: model.SourceBackblast,
		})
	}
	result.Created, err = s.records.CreateAttendanceBatch(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("saving backblast: %w", err)
	}

	s.logger.Info("backblast posted",
		slog.String("q", q.ID),
		slog.String("ao", in.AO),
		slog.String("date", date.Format(dateLayout)),
		slog.Int("resolved", result.Resolved),
		slog.Int64("created", result.Created),
	)
	return result, nil
}

// splitPax splits on commas, trims, and drops blanks and repeats.
func splitPax(pax string) []string {
	var emails []string
	seen := make(map[string]bool)
	for _, e := range strings.Split(pax, ",") {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		emails = append(emails, e)
	}
	return emails
}
