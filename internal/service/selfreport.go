package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/repository"
)

type SelfReportInput struct {
	Category string  `json:"category" validate:"required,category"`
	Note     *string `json:"note"     validate:"omitempty,max=5000"`
}

type SelfReportService struct {
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewSelfReportService(records repository.RecordRepository, logger *slog.Logger) *SelfReportService {
	return &SelfReportService{records: records, logger: logger}
}

func (s *SelfReportService) Create(ctx context.Context, user *model.User, in SelfReportInput) (*model.SelfReportEntry, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Note = optionalText(in.Note)
	if err := Validate(in); err != nil {
		return nil, err
	}

	rec := &model.SelfReportEntry{
		UserID:   user.ID,
		Category: model.Category(in.Category),
		Note:     in.Note,
	}
	if err := s.records.CreateSelfReport(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving self-report: %w", err)
	}

	s.logger.Info("self-report created",
		slog.String("user_id", user.ID),
		slog.String("category", in.Category),
	)
	return rec, nil
}
