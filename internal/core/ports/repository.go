package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

// Record tables written by a registration submit, in insert order
const (
	TableFamilies    = "families"
	TableMembers     = "members"
	TablePregnancies = "pregnancies"
	TableChildren    = "children"
)

// RecordStore defines the persistence boundary for registrations
type RecordStore interface {
	// Create inserts one row into table and returns the id assigned by the store.
	// Tables without a meaningful id (pregnancies, children) may return "".
	Create(ctx context.Context, table string, record map[string]any) (string, error)

	// ReadFamilies returns every family joined with its members,
	// members in registration order
	ReadFamilies(ctx context.Context) ([]*domain.Family, error)
}

// FollowUpRepository defines persistence for the NCD follow-up roster
type FollowUpRepository interface {
	ListFollowUps(ctx context.Context) ([]*domain.FollowUp, error)
	GetFollowUp(ctx context.Context, id string) (*domain.FollowUp, error)

	// SetCompleted updates the completion flag; returns domain.ErrFollowUpNotFound for unknown ids
	SetCompleted(ctx context.Context, id string, completed bool) error

	// UpsertFollowUps seeds the roster, replacing entries with the same id
	UpsertFollowUps(ctx context.Context, items []*domain.FollowUp) error
}

// SessionStore persists registration sessions between requests
type SessionStore interface {
	Save(ctx context.Context, s *domain.Session) error

	// Load returns domain.ErrSessionNotFound when the session is unknown or expired
	Load(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// SubmissionGuard prevents two concurrent submits of the same session
type SubmissionGuard interface {
	// Acquire returns domain.ErrSubmissionInProgress when key is already held.
	// The release func must be called once the submit finishes.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ReferralPublisher defines the interface for publishing Red referrals to RabbitMQ
type ReferralPublisher interface {
	PublishReferral(ctx context.Context, event *domain.ReferralEvent) error
}
