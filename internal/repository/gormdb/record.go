package gormdb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

var (
	_ repository.RecordRepository    = (*RecordStore)(nil)
	_ repository.DashboardRepository = (*DashboardStore)(nil)
)

type RecordStore struct {
	db *gorm.DB
}

// skipDuplicates renders ON CONFLICT DO NOTHING (INSERT IGNORE-style on MySQL).
// The conflict target is the (user_id, ao_id, date) unique index.
var skipDuplicates = clause.OnConflict{DoNothing: true}

func (s *RecordStore) CreateAttendance(ctx context.Context, rec *model.AttendanceRecord) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(skipDuplicates).Create(rec)
	if res.Error != nil {
		return false, apperror.Persistence("saving attendance", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreateAttendanceBatch writes all rows in a single INSERT, so the batch is
// atomic: either every non-duplicate row lands or none do.
func (s *RecordStore) CreateAttendanceBatch(ctx context.Context, recs []model.AttendanceRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(skipDuplicates).Create(&recs)
	if res.Error != nil {
		return 0, apperror.Persistence("saving backblast attendance", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *RecordStore) CreateEffort(ctx context.Context, rec *model.EffortRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperror.Persistence("saving effort", err)
	}
	return nil
}

func (s *RecordStore) CreateReflection(ctx context.Context, rec *model.WeeklyReflection) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperror.Persistence("saving reflection", err)
	}
	return nil
}

func (s *RecordStore) CreateSelfReport(ctx context.Context, rec *model.SelfReportEntry) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperror.Persistence("saving self-report", err)
	}
	return nil
}

type DashboardStore struct {
	db *gorm.DB
}

func (s *DashboardStore) CountAttendanceSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("user_id = ? AND date >= ?", userID, since).
		Count(&n).Error
	if err != nil {
		return 0, apperror.Persistence("counting attendance", err)
	}
	return n, nil
}

func (s *DashboardStore) RecentEfforts(ctx context.Context, userID string, limit int) ([]model.EffortRecord, error) {
	var efforts []model.EffortRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("id DESC").
		Limit(limit).
		Find(&efforts).Error
	if err != nil {
		return nil, apperror.Persistence("loading recent efforts", err)
	}
	return efforts, nil
}

// LatestReflection orders by write time. Ids are UUIDv7 and so break ties
// between entries saved within the same clock tick.
func (s *DashboardStore) LatestReflection(ctx context.Context, userID string) (*model.WeeklyReflection, error) {
	var r model.WeeklyReflection
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Persistence("loading latest reflection", err)
	}
	return &r, nil
}

func (s *DashboardStore) RecentSelfReports(ctx context.Context, userID string, limit int) ([]model.SelfReportEntry, error) {
	var entries []model.SelfReportEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperror.Persistence("loading self-reports", err)
	}
	return entries, nil
}
