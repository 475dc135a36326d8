package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

// ReflectionInput has four optional free-text answers. An all-empty
// reflection is allowed; it still marks that the user checked in.
type ReflectionInput struct {
	Mood      *string `json:"mood"      validate:"omitempty,max=5000"`
	Wins      *string `json:"wins"      validate:"omitempty,max=5000"`
	Struggles *string `json:"struggles" validate:"omitempty,max=5000"`
	Intention *string `json:"intention" validate:"omitempty,max=5000"`
}

type ReflectionService struct {
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewReflectionService(records repository.RecordRepository, logger *slog.Logger) *ReflectionService {
	return &ReflectionService{records: records, logger: logger}
}

// Save appends a reflection. Blank answers are stored as NULL.
func (s *ReflectionService) Save(ctx context.Context, user *model.User, in ReflectionInput) (*model.WeeklyReflection, error) {
	rec := &model.WeeklyReflection{
		UserID:    user.ID,
		Mood:      optionalText(in.Mood),
		Wins:      optionalText(in.Wins),
		Struggles: optionalText(in.Struggles),
		Intention: optionalText(in.Intention),
	}
	if err := Validate(ReflectionInput{rec.Mood, rec.Wins, rec.Struggles, rec.Intention}); err != nil {
		return nil, err
	}

	if err := s.records.CreateReflection(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving reflection: %w", err)
	}

	s.logger.Info("reflection saved", slog.String("user_id", user.ID))
	return rec, nil
}
