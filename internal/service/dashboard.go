package service

import (
	"context"
	"fmt"
	"time"

	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

const (
	RecentEffortLimit     = 5
	RecentSelfReportLimit = 5
)

// Summary is everything the dashboard shows. Nothing is cached; each page
// load runs the four queries again.
type Summary struct {
	User             *model.User             `json:"user"`
	WeekStart        time.Time               `json:"weekStart"`
	WeeklyAttendance int64                   `json:"weeklyAttendance"`
	RecentEfforts    []model.EffortRecord    `json:"recentEfforts"`
	LatestReflection *model.WeeklyReflection `json:"latestReflection"`
	RecentReports    []model.SelfReportEntry `json:"recentSelfReports"`
}

type DashboardService struct {
	repo repository.DashboardRepository
	loc  *time.Location
	now  Clock
}

func NewDashboardService(repo repository.DashboardRepository, loc *time.Location, now Clock) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{repo: repo, loc: loc, now: now}
}

func (s *DashboardService) Summary(ctx context.Context, user *model.User) (*Summary, error) {
	weekStart := WeekStart(s.now(), s.loc)

	count, err := s.repo.CountAttendanceSince(ctx, user.ID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("dashboard attendance: %w", err)
	}
	efforts, err := s.repo.RecentEfforts(ctx, user.ID, RecentEffortLimit)
	if err != nil {
		return nil, fmt.Errorf("dashboard efforts: %w", err)
	}
	reflection, err := s.repo.LatestReflection(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("dashboard reflection: %w", err)
	}
	reports, err := s.repo.RecentSelfReports(ctx, user.ID, RecentSelfReportLimit)
	if err != nil {
		return nil, fmt.Errorf("dashboard self-reports: %w", err)
	}

	// Empty slices, not nil, so the JSON is [] rather than null.
	if efforts == nil {
		efforts = []model.EffortRecord{}
	}
	if reports == nil {
		reports = []model.SelfReportEntry{}
	}

	return &Summary{
		User:             user,
		WeekStart:        weekStart,
		WeeklyAttendance: count,
		RecentEfforts:    efforts,
		LatestReflection: reflection,
		RecentReports:    reports,
	}, nil
}
