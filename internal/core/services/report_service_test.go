package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/services"
)

func TestReportService_Directory(t *testing.T) {
	store := new(MockRecordStore)
	svc := services.NewReportService(store)

	store.On("ReadFamilies", mock.Anything).Return([]*domain.Family{
		{ID: "1", HeadName: "Rajesh Kumar", Village: "Mavli", Members: []*domain.Member{
			{Name: "Sita", Category: domain.CategoryPregnancy, Risk: domain.Assessment{Level: domain.RiskRed}},
		}},
		{ID: "2", HeadName: "Sita Devi", Village: "Gogunda", Members: []*domain.Member{
			{Name: "Sita", Risk: domain.Assessment{Level: domain.RiskGreen}},
		}},
	}, nil)

	rows, err := svc.Directory(context.Background(), domain.FamilyFilter{Tab: domain.TabHighRisk})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].ID)
	assert.True(t, rows[0].HasPregnantWoman)
}

func TestReportService_ListFamiliesError(t *testing.T) {
	store := new(MockRecordStore)
	svc := services.NewReportService(store)

	store.On("ReadFamilies", mock.Anything).Return(nil, errors.New("timeout"))

	_, err := svc.ListFamilies(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read families")
}

func TestReportService_ListFamiliesEmpty(t *testing.T) {
	store := new(MockRecordStore)
	svc := services.NewReportService(store)

	store.On("ReadFamilies", mock.Anything).Return(nil, nil)

	families, err := svc.ListFamilies(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, families)
	assert.Empty(t, families)
}
