package domain

import (
	"strings"
	"time"
)

type FollowUpStatus string

const (
	FollowUpOverdue  FollowUpStatus = "overdue"
	FollowUpDueToday FollowUpStatus = "due-today"
	FollowUpUpcoming FollowUpStatus = "upcoming"
)

// FollowUp is one entry of the NCD follow-up roster
type FollowUp struct {
	ID          string         `json:"id"`
	PatientName string         `json:"patient_name"`
	Age         int            `json:"age"`
	Village     string         `json:"village"`
	Conditions  []string       `json:"conditions"`
	LastVisit   time.Time      `json:"last_visit"`
	DueDate     time.Time      `json:"due_date"`
	Status      FollowUpStatus `json:"status"`
	Completed   bool           `json:"completed"`
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DeriveFollowUpStatus compares calendar dates of due and today
func DeriveFollowUpStatus(due, today time.Time) FollowUpStatus {
	d, t := dateOnly(due), dateOnly(today)
	switch {
	case d.Before(t):
		return FollowUpOverdue
	case d.Equal(t):
		return FollowUpDueToday
	default:
		return FollowUpUpcoming
	}
}

// Normalize fills a missing status from the due date
func (f *FollowUp) Normalize(today time.Time) {
	if f.Status == "" {
		f.Status = DeriveFollowUpStatus(f.DueDate, today)
	}
	if f.Conditions == nil {
		f.Conditions = []string{}
	}
}

func (f *FollowUp) ToggleCompleted() {
	f.Completed = !f.Completed
}

type FollowUpFilter string

const (
	FollowUpFilterAll      FollowUpFilter = "all"
	FollowUpFilterDueToday FollowUpFilter = "due-today"
	FollowUpFilterOverdue  FollowUpFilter = "overdue"
)

// ParseFollowUpFilter accepts the roster tab names ("Due Today") and query values ("due-today")
func ParseFollowUpFilter(raw string) FollowUpFilter {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "-")) {
	case "due-today", "today":
		return FollowUpFilterDueToday
	case "overdue":
		return FollowUpFilterOverdue
	default:
		return FollowUpFilterAll
	}
}

func FilterFollowUps(items []*FollowUp, filter FollowUpFilter) []*FollowUp {
	out := make([]*FollowUp, 0, len(items))
	for _, f := range items {
		switch filter {
		case FollowUpFilterDueToday:
			if f.Status != FollowUpDueToday {
				continue
			}
		case FollowUpFilterOverdue:
			if f.Status != FollowUpOverdue {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
