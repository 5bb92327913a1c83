package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// FollowUpService implements the NCD follow-up roster
type FollowUpService struct {
	repo   ports.FollowUpRepository
	logger *zap.Logger
	now    func() time.Time
}

var _ ports.FollowUpService = (*FollowUpService)(nil)

// NewFollowUpService creates a new follow-up service
func NewFollowUpService(repo ports.FollowUpRepository, logger *zap.Logger) *FollowUpService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpService{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the time source used to derive statuses
func (s *FollowUpService) WithClock(now func() time.Time) *FollowUpService {
	s.now = now
	return s
}

// List returns the roster filtered by status.
// Entries stored without a status get one derived from their due date.
func (s *FollowUpService) List(ctx context.Context, filter domain.FollowUpFilter) ([]*domain.FollowUp, error) {
	items, err := s.repo.ListFollowUps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	today := s.now()
	for _, f := range items {
		f.Normalize(today)
	}
	return domain.FilterFollowUps(items, filter), nil
}

// Toggle flips the completion flag of one entry
func (s *FollowUpService) Toggle(ctx context.Context, id string) (*domain.FollowUp, error) {
	f, err := s.repo.GetFollowUp(ctx, id)
	if err != nil {
		return nil, err
	}
	f.ToggleCompleted()
	if err := s.repo.SetCompleted(ctx, id, f.Completed); err != nil {
		return nil, fmt.Errorf("failed to update follow-up: %w", err)
	}
	f.Normalize(s.now())
	followUpTogglesTotal.WithLabelValues(strconv.FormatBool(f.Completed)).Inc()
	s.logger.Info("followup_toggled", zap.String("followup_id", id), zap.Bool("completed", f.Completed))
	return f, nil
}

// Seed loads a roster. Entries need an id, a patient name and a due date.
func (s *FollowUpService) Seed(ctx context.Context, items []*domain.FollowUp) (int, error) {
	fields := map[string]string{}
	for i, f := range items {
		if f.ID == "" {
			fields[fmt.Sprintf("followups[%d].id", i)] = "required"
		}
		if f.PatientName == "" {
			fields[fmt.Sprintf("followups[%d].patient_name", i)] = "required"
		}
		if f.DueDate.IsZero() {
			fields[fmt.Sprintf("followups[%d].due_date", i)] = "required"
		}
	}
	if len(fields) > 0 {
		return 0, domain.NewValidationError("invalid follow-up roster", fields)
	}
	if err := s.repo.UpsertFollowUps(ctx, items); err != nil {
		return 0, fmt.Errorf("failed to seed follow-ups: %w", err)
	}
	s.logger.Info("followups_seeded", zap.Int("count", len(items)))
	return len(items), nil
}
