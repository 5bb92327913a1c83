package handler_test

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/adapters/websocket"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

type MockRegistrationService struct {
	mock.Mock
}

func (m *MockRegistrationService) session(args mock.Arguments) (*domain.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockRegistrationService) Start(ctx context.Context, workerID string) (*domain.Session, error) {
	return m.session(m.Called(ctx, workerID))
}

func (m *MockRegistrationService) Get(ctx context.Context, id uuid.UUID, workerID string) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID))
}

func (m *MockRegistrationService) SaveFamily(ctx context.Context, id uuid.UUID, workerID string, in domain.FamilyInput) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, in))
}

func (m *MockRegistrationService) SaveMember(ctx context.Context, id uuid.UUID, workerID string, in domain.MemberInput) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, in))
}

func (m *MockRegistrationService) EditMember(ctx context.Context, id uuid.UUID, workerID string, index int, in domain.MemberInput) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, index, in))
}

func (m *MockRegistrationService) AnswerPregnancyPrompt(ctx context.Context, id uuid.UUID, workerID string, pregnant bool) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, pregnant))
}

func (m *MockRegistrationService) SavePregnancy(ctx context.Context, id uuid.UUID, workerID string, p domain.PregnancySpecialization) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, p))
}

func (m *MockRegistrationService) SaveChild(ctx context.Context, id uuid.UUID, workerID string, c domain.ChildSpecialization) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, c))
}

func (m *MockRegistrationService) UpdatePregnancyDraft(ctx context.Context, id uuid.UUID, workerID string, p domain.PregnancySpecialization) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, p))
}

func (m *MockRegistrationService) UpdateChildDraft(ctx context.Context, id uuid.UUID, workerID string, c domain.ChildSpecialization) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID, c))
}

func (m *MockRegistrationService) AddAnotherMember(ctx context.Context, id uuid.UUID, workerID string) (*domain.Session, error) {
	return m.session(m.Called(ctx, id, workerID))
}

func (m *MockRegistrationService) Submit(ctx context.Context, id uuid.UUID, workerID string) (*ports.SubmitResult, error) {
	args := m.Called(ctx, id, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SubmitResult), args.Error(1)
}

func (m *MockRegistrationService) SubmitBundle(ctx context.Context, bundle *domain.RegistrationBundle) (*ports.SubmitResult, error) {
	args := m.Called(ctx, bundle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SubmitResult), args.Error(1)
}

func (m *MockRegistrationService) Discard(ctx context.Context, id uuid.UUID, workerID string) error {
	return m.Called(ctx, id, workerID).Error(0)
}

func (m *MockRegistrationService) Preview(req ports.PreviewRequest) *ports.AssessmentPreview {
	return m.Called(req).Get(0).(*ports.AssessmentPreview)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) ListFamilies(ctx context.Context) ([]*domain.Family, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Family), args.Error(1)
}

func (m *MockReportService) Directory(ctx context.Context, filter domain.FamilyFilter) ([]domain.FamilySummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FamilySummary), args.Error(1)
}

type MockFollowUpService struct {
	mock.Mock
}

func (m *MockFollowUpService) List(ctx context.Context, filter domain.FollowUpFilter) ([]*domain.FollowUp, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FollowUp), args.Error(1)
}

func (m *MockFollowUpService) Toggle(ctx context.Context, id string) (*domain.FollowUp, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FollowUp), args.Error(1)
}

func (m *MockFollowUpService) Seed(ctx context.Context, items []*domain.FollowUp) (int, error) {
	args := m.Called(ctx, items)
	return args.Int(0), args.Error(1)
}

type fakeFeed struct {
	subs []websocket.Subscriber
}

func (f *fakeFeed) Serve(w http.ResponseWriter, r *http.Request, sub websocket.Subscriber) error {
	f.subs = append(f.subs, sub)
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

var (
	_ ports.RegistrationService = (*MockRegistrationService)(nil)
	_ ports.ReportService       = (*MockReportService)(nil)
	_ ports.FollowUpService     = (*MockFollowUpService)(nil)
)

// asWorker injects an authenticated identity the way the auth middleware would
func asWorker(id middleware.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), id)))
		})
	}
}

func newRouter(id *middleware.Identity, mount func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	if id != nil {
		r.Use(asWorker(*id))
	}
	mount(r)
	return r
}
