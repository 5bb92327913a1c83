package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

// RegistrationService defines the registration workflow operations.
// Every session belongs to the worker who started it.
type RegistrationService interface {
	Start(ctx context.Context, workerID string) (*domain.Session, error)
	Get(ctx context.Context, id uuid.UUID, workerID string) (*domain.Session, error)

	// SaveFamily stores the family form; in AddFamily it advances to AddMember,
	// later it only edits the fields
	SaveFamily(ctx context.Context, id uuid.UUID, workerID string, in domain.FamilyInput) (*domain.Session, error)
	SaveMember(ctx context.Context, id uuid.UUID, workerID string, in domain.MemberInput) (*domain.Session, error)
	EditMember(ctx context.Context, id uuid.UUID, workerID string, index int, in domain.MemberInput) (*domain.Session, error)
	AnswerPregnancyPrompt(ctx context.Context, id uuid.UUID, workerID string, pregnant bool) (*domain.Session, error)
	SavePregnancy(ctx context.Context, id uuid.UUID, workerID string, p domain.PregnancySpecialization) (*domain.Session, error)
	SaveChild(ctx context.Context, id uuid.UUID, workerID string, c domain.ChildSpecialization) (*domain.Session, error)

	// UpdatePregnancyDraft and UpdateChildDraft keep a form open and refresh its banner
	UpdatePregnancyDraft(ctx context.Context, id uuid.UUID, workerID string, p domain.PregnancySpecialization) (*domain.Session, error)
	UpdateChildDraft(ctx context.Context, id uuid.UUID, workerID string, c domain.ChildSpecialization) (*domain.Session, error)
	AddAnotherMember(ctx context.Context, id uuid.UUID, workerID string) (*domain.Session, error)

	// Submit validates and persists the registration, then resets the session.
	// A store failure returns *domain.PersistenceError and keeps the session.
	Submit(ctx context.Context, id uuid.UUID, workerID string) (*SubmitResult, error)

	// SubmitBundle replays an offline registration and persists it
	SubmitBundle(ctx context.Context, bundle *domain.RegistrationBundle) (*SubmitResult, error)

	Discard(ctx context.Context, id uuid.UUID, workerID string) error

	// Preview classifies an ad hoc member without touching any session
	Preview(req PreviewRequest) *AssessmentPreview
}

// ReportService defines read access to registered families
type ReportService interface {
	ListFamilies(ctx context.Context) ([]*domain.Family, error)
	Directory(ctx context.Context, filter domain.FamilyFilter) ([]domain.FamilySummary, error)
}

// FollowUpService defines the NCD follow-up roster operations
type FollowUpService interface {
	List(ctx context.Context, filter domain.FollowUpFilter) ([]*domain.FollowUp, error)
	Toggle(ctx context.Context, id string) (*domain.FollowUp, error)
	Seed(ctx context.Context, items []*domain.FollowUp) (int, error)
}

// SubmitResult reports the ids assigned by the record store
type SubmitResult struct {
	FamilyID  string   `json:"family_id"`
	MemberIDs []string `json:"member_ids"`
	Referrals int      `json:"referrals"`
}

// PreviewRequest is an ad hoc member with an optional specialization
type PreviewRequest struct {
	Member    domain.MemberInput              `json:"member"`
	Pregnancy *domain.PregnancySpecialization `json:"pregnancy,omitempty"`
	Child     *domain.ChildSpecialization     `json:"child,omitempty"`
}

// AssessmentPreview is what the worker sees before saving a member
type AssessmentPreview struct {
	Category   domain.Category   `json:"category"`
	BMI        domain.BMI        `json:"bmi"`
	Assessment domain.Assessment `json:"assessment"`
	CarePlan   []string          `json:"care_plan"`
	Advice     string            `json:"advice"`
	Priority   int               `json:"priority"`
	Banner     *domain.Banner    `json:"banner,omitempty"`
}
