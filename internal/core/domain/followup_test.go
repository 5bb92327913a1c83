package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

func TestDeriveFollowUpStatus(t *testing.T) {
	today := time.Date(2026, 2, 24, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, domain.FollowUpOverdue, domain.DeriveFollowUpStatus(time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC), today))
	assert.Equal(t, domain.FollowUpDueToday, domain.DeriveFollowUpStatus(time.Date(2026, 2, 24, 8, 0, 0, 0, time.UTC), today))
	assert.Equal(t, domain.FollowUpUpcoming, domain.DeriveFollowUpStatus(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), today))
}

func TestFollowUp_NormalizeKeepsExplicitStatus(t *testing.T) {
	today := time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)
	f := &domain.FollowUp{DueDate: today.AddDate(0, 0, 3), Status: domain.FollowUpOverdue}
	f.Normalize(today)
	assert.Equal(t, domain.FollowUpOverdue, f.Status)

	g := &domain.FollowUp{DueDate: today.AddDate(0, 0, 3)}
	g.Normalize(today)
	assert.Equal(t, domain.FollowUpUpcoming, g.Status)
	assert.NotNil(t, g.Conditions)
}

func TestFilterFollowUps(t *testing.T) {
	items := []*domain.FollowUp{
		{ID: "1", PatientName: "Ramesh Kumar", Status: domain.FollowUpOverdue},
		{ID: "2", PatientName: "Sunita Devi", Status: domain.FollowUpDueToday},
		{ID: "3", PatientName: "Mohammad Ali", Status: domain.FollowUpOverdue},
		{ID: "5", PatientName: "Kishan Singh", Status: domain.FollowUpUpcoming},
	}

	assert.Len(t, domain.FilterFollowUps(items, domain.FollowUpFilterAll), 4)
	assert.Len(t, domain.FilterFollowUps(items, domain.FollowUpFilterOverdue), 2)
	due := domain.FilterFollowUps(items, domain.ParseFollowUpFilter("Due Today"))
	if assert.Len(t, due, 1) {
		assert.Equal(t, "2", due[0].ID)
	}

	items[0].ToggleCompleted()
	assert.True(t, items[0].Completed)
	items[0].ToggleCompleted()
	assert.False(t, items[0].Completed)
}
