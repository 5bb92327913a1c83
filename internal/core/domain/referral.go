package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReferralEvent announces a Red member to supervisors after a registration is saved
type ReferralEvent struct {
	ID         uuid.UUID    `json:"id"`
	WorkerID   string       `json:"worker_id"`
	FamilyID   string       `json:"family_id"`
	MemberID   string       `json:"member_id"`
	MemberName string       `json:"member_name"`
	Village    string       `json:"village"`
	Category   Category     `json:"category"`
	Level      RiskLevel    `json:"level"`
	Reasons    []RiskReason `json:"reasons"`
	Priority   int          `json:"priority"`
	Advice     string       `json:"advice"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewReferralEvent builds the event for a persisted member of family
func NewReferralEvent(workerID string, family *Family, m *Member, now time.Time) *ReferralEvent {
	return &ReferralEvent{
		ID:         uuid.New(),
		WorkerID:   workerID,
		FamilyID:   family.ID,
		MemberID:   m.ID,
		MemberName: m.Name,
		Village:    family.Village,
		Category:   m.Category,
		Level:      m.Risk.Level,
		Reasons:    m.Risk.Reasons,
		Priority:   MemberPriority(m),
		Advice:     FollowUpAdvice(m.Risk.Level),
		CreatedAt:  now.UTC(),
	}
}

// Validate checks the fields a consumer needs to route the event
func (e *ReferralEvent) Validate() bool {
	return e.ID != uuid.Nil && e.MemberName != "" && e.Level == RiskRed
}
