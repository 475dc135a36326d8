package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

// EffortInput is a manual workout entry. The caps keep duration_sec and
// the derived rate inside a 32-bit column.
type EffortInput struct {
	Calories        FlexInt `json:"calories"        validate:"present,wholenum,gt=0,lte=100000"`
	DurationMinutes FlexInt `json:"durationMinutes" validate:"present,wholenum,gt=0,lte=10000"`
	Date            string  `json:"date"            validate:"required,caldate"`
}

type EffortService struct {
	records repository.RecordRepository
	loc     *time.Location
	logger  *slog.Logger
}

func NewEffortService(records repository.RecordRepository, loc *time.Location, logger *slog.Logger) *EffortService {
	return &EffortService{records: records, loc: loc, logger: logger}
}

// LogManual stores the effort with duration in seconds and calories per
// minute derived at write time. Validation has already ruled out zero
// minutes, so the division is safe.
func (s *EffortService) LogManual(ctx context.Context, user *model.User, in EffortInput) (*model.EffortRecord, error) {
	in.Date = strings.TrimSpace(in.Date)
	if err := Validate(in); err != nil {
		return nil, err
	}
	date, err := NormalizeDate(in.Date, s.loc)
	if err != nil {
		return nil, err
	}

	calories := int(in.Calories.Value)
	minutes := int(in.DurationMinutes.Value)
	rec := &model.EffortRecord{
		UserID:      user.ID,
		Date:        date,
		Calories:    calories,
		DurationSec: minutes * 60,
		CalPerMin:   float64(calories) / float64(minutes),
	}
	if err := s.records.CreateEffort(ctx, rec); err != nil {
		return nil, fmt.Errorf("logging effort: %w", err)
	}

	s.logger.Info("effort logged",
		slog.String("user_id", user.ID),
		slog.Int("calories", calories),
		slog.Int("minutes", minutes),
	)
	return rec, nil
}
