package services

import (
	"context"
	"fmt"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// ReportService implements read access to registered families
type ReportService struct {
	store ports.RecordStore
}

var _ ports.ReportService = (*ReportService)(nil)

// NewReportService creates a new report service
func NewReportService(store ports.RecordStore) *ReportService {
	return &ReportService{store: store}
}

// ListFamilies returns every family with its members, as stored
func (s *ReportService) ListFamilies(ctx context.Context) ([]*domain.Family, error) {
	families, err := s.store.ReadFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read families: %w", err)
	}
	if families == nil {
		families = []*domain.Family{}
	}
	return families, nil
}

// Directory returns the summarized families matching filter
func (s *ReportService) Directory(ctx context.Context, filter domain.FamilyFilter) ([]domain.FamilySummary, error) {
	families, err := s.ListFamilies(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterFamilies(families, filter), nil
}
