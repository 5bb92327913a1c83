package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

const (
	defaultSubmitLockTTL   = 2 * time.Minute
	referralPublishTimeout = 10 * time.Second
)

// RegistrationService drives registration sessions through the workflow and
// submits finished registrations to the record store
type RegistrationService struct {
	workflow  *domain.Workflow
	sessions  ports.SessionStore
	guard     ports.SubmissionGuard
	store     ports.RecordStore
	referrals ports.ReferralPublisher
	logger    *zap.Logger

	lockTTL  time.Duration
	inflight sync.WaitGroup
}

var _ ports.RegistrationService = (*RegistrationService)(nil)

// NewRegistrationService creates a new registration service.
// referrals may be nil when no broker is configured.
func NewRegistrationService(
	workflow *domain.Workflow,
	sessions ports.SessionStore,
	guard ports.SubmissionGuard,
	store ports.RecordStore,
	referrals ports.ReferralPublisher,
	logger *zap.Logger,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		workflow:  workflow,
		sessions:  sessions,
		guard:     guard,
		store:     store,
		referrals: referrals,
		logger:    logger,
		lockTTL:   defaultSubmitLockTTL,
	}
}

func (s *RegistrationService) Start(ctx context.Context, workerID string) (*domain.Session, error) {
	if workerID == "" {
		return nil, domain.NewValidationError("worker id is required", nil)
	}
	sess := s.workflow.NewSession(workerID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.logger.Info("registration_started",
		zap.String("session_id", sess.ID.String()),
		zap.String("worker_id", workerID))
	return sess, nil
}

// Get returns the session. Sessions of other workers are reported as not found.
func (s *RegistrationService) Get(ctx context.Context, id uuid.UUID, workerID string) (*domain.Session, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.WorkerID != workerID {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func sessionLockKey(id uuid.UUID) string {
	return "submit:" + id.String()
}

// apply loads a session, runs one transition and saves it back while holding
// the session lock, so no edit lands while a submit of the same session runs.
// A failed transition leaves the stored session untouched.
func (s *RegistrationService) apply(
	ctx context.Context,
	id uuid.UUID,
	workerID string,
	transition func(*domain.Session) (*domain.Member, error),
) (*domain.Session, error) {
	release, err := s.guard.Acquire(ctx, sessionLockKey(id), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.Get(ctx, id, workerID)
	if err != nil {
		return nil, err
	}
	from := sess.State
	finalized, err := transition(sess)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if finalized != nil {
		s.logMember(sess, finalized)
	}
	s.logger.Debug("registration_transition",
		zap.String("session_id", sess.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(sess.State)))
	return sess, nil
}

func (s *RegistrationService) SaveFamily(ctx context.Context, id uuid.UUID, workerID string, in domain.FamilyInput) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		if sess.State == domain.StateAddFamily {
			return nil, s.workflow.SaveFamily(sess, in)
		}
		return nil, s.workflow.UpdateFamily(sess, in)
	})
}

func (s *RegistrationService) SaveMember(ctx context.Context, id uuid.UUID, workerID string, in domain.MemberInput) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return s.workflow.SaveMember(sess, in)
	})
}

func (s *RegistrationService) EditMember(ctx context.Context, id uuid.UUID, workerID string, index int, in domain.MemberInput) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return s.workflow.EditMember(sess, index, in)
	})
}

func (s *RegistrationService) AnswerPregnancyPrompt(ctx context.Context, id uuid.UUID, workerID string, pregnant bool) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return s.workflow.AnswerPregnancyPrompt(sess, pregnant)
	})
}

func (s *RegistrationService) SavePregnancy(ctx context.Context, id uuid.UUID, workerID string, p domain.PregnancySpecialization) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return s.workflow.SavePregnancy(sess, p)
	})
}

func (s *RegistrationService) SaveChild(ctx context.Context, id uuid.UUID, workerID string, c domain.ChildSpecialization) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return s.workflow.SaveChild(sess, c)
	})
}

func (s *RegistrationService) UpdatePregnancyDraft(ctx context.Context, id uuid.UUID, workerID string, p domain.PregnancySpecialization) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return nil, s.workflow.UpdatePregnancyDraft(sess, p)
	})
}

func (s *RegistrationService) UpdateChildDraft(ctx context.Context, id uuid.UUID, workerID string, c domain.ChildSpecialization) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return nil, s.workflow.UpdateChildDraft(sess, c)
	})
}

func (s *RegistrationService) AddAnotherMember(ctx context.Context, id uuid.UUID, workerID string) (*domain.Session, error) {
	return s.apply(ctx, id, workerID, func(sess *domain.Session) (*domain.Member, error) {
		return nil, s.workflow.AddAnotherMember(sess)
	})
}

func (s *RegistrationService) Discard(ctx context.Context, id uuid.UUID, workerID string) error {
	release, err := s.guard.Acquire(ctx, sessionLockKey(id), s.lockTTL)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.Get(ctx, id, workerID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Submit persists the registration held by the session.
// The session is loaded only after the session lock is held, so a submit
// racing a finished one sees the reset session and fails validation, and
// transitions arriving meanwhile are rejected with ErrSubmissionInProgress.
func (s *RegistrationService) Submit(ctx context.Context, id uuid.UUID, workerID string) (*ports.SubmitResult, error) {
	release, err := s.guard.Acquire(ctx, sessionLockKey(id), s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := s.Get(ctx, id, workerID)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.ValidateForSubmit(sess); err != nil {
		submissionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	family := sess.Family
	result, err := s.persist(ctx, &family)
	if err != nil {
		submissionsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("registration_submit_failed",
			zap.String("session_id", sess.ID.String()),
			zap.String("worker_id", workerID),
			zap.Error(err))
		return nil, err
	}

	result.Referrals = s.publishReferrals(workerID, &family)

	s.workflow.Reset(sess)
	if err := s.sessions.Save(ctx, sess); err != nil {
		// registration is stored; only the reset was lost
		s.logger.Warn("session_reset_failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
	}

	submissionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("registration_submitted",
		zap.String("session_id", sess.ID.String()),
		zap.String("worker_id", workerID),
		zap.String("family_id", result.FamilyID),
		zap.Int("members", len(result.MemberIDs)),
		zap.Int("referrals", result.Referrals))
	return result, nil
}

// SubmitBundle replays an offline bundle through the workflow and persists it
func (s *RegistrationService) SubmitBundle(ctx context.Context, bundle *domain.RegistrationBundle) (*ports.SubmitResult, error) {
	if bundle == nil {
		return nil, domain.NewValidationError("empty bundle", nil)
	}
	sess, err := s.workflow.Replay(bundle)
	if err != nil {
		return nil, err
	}
	for _, m := range sess.Family.Members {
		s.logMember(sess, m)
	}

	release, err := s.guard.Acquire(ctx, "bundle:"+bundle.BundleID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := s.persist(ctx, &sess.Family)
	if err != nil {
		submissionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	result.Referrals = s.publishReferrals(bundle.WorkerID, &sess.Family)
	submissionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("registration_bundle_submitted",
		zap.String("bundle_id", bundle.BundleID),
		zap.String("worker_id", bundle.WorkerID),
		zap.String("family_id", result.FamilyID),
		zap.Int("members", len(result.MemberIDs)))
	return result, nil
}

// persist writes the family, then every member, then every specialization
// record, one request at a time. Nothing is rolled back when a later insert
// fails; the first failure is returned as *domain.PersistenceError.
func (s *RegistrationService) persist(ctx context.Context, family *domain.Family) (*ports.SubmitResult, error) {
	familyID, err := s.store.Create(ctx, ports.TableFamilies, familyRecord(family))
	if err != nil {
		return nil, &domain.PersistenceError{Table: ports.TableFamilies, Err: err}
	}
	family.ID = familyID

	members := make([]*domain.Member, len(family.Members))
	result := &ports.SubmitResult{FamilyID: familyID, MemberIDs: make([]string, 0, len(family.Members))}
	for i, m := range family.Members {
		saved := *m
		memberID, err := s.store.Create(ctx, ports.TableMembers, memberRecord(&saved, familyID))
		if err != nil {
			return nil, &domain.PersistenceError{Table: ports.TableMembers, Err: err}
		}
		saved.ID = memberID
		saved.FamilyID = familyID
		members[i] = &saved
		result.MemberIDs = append(result.MemberIDs, memberID)
	}

	for _, m := range members {
		switch {
		case m.Category == domain.CategoryPregnancy && m.Pregnancy != nil:
			if _, err := s.store.Create(ctx, ports.TablePregnancies, pregnancyRecord(m.Pregnancy, m.ID)); err != nil {
				return nil, &domain.PersistenceError{Table: ports.TablePregnancies, Err: err}
			}
		case m.Category == domain.CategoryChild && m.Child != nil:
			if _, err := s.store.Create(ctx, ports.TableChildren, childRecord(m.Child, m.ID)); err != nil {
				return nil, &domain.PersistenceError{Table: ports.TableChildren, Err: err}
			}
		}
	}
	family.Members = members
	return result, nil
}

// publishReferrals sends one event per Red member in the background and
// returns how many were queued. Failures are logged and never reach the caller.
func (s *RegistrationService) publishReferrals(workerID string, family *domain.Family) int {
	if s.referrals == nil {
		return 0
	}
	now := time.Now()
	var events []*domain.ReferralEvent
	for _, m := range family.Members {
		if m.Risk.Level == domain.RiskRed {
			events = append(events, domain.NewReferralEvent(workerID, family, m, now))
		}
	}
	for _, event := range events {
		s.inflight.Add(1)
		go func(event *domain.ReferralEvent) {
			defer s.inflight.Done()
			ctx, cancel := context.WithTimeout(context.Background(), referralPublishTimeout)
			defer cancel()
			if err := s.referrals.PublishReferral(ctx, event); err != nil {
				referralsTotal.WithLabelValues("failed").Inc()
				s.logger.Error("referral_publish_failed",
					zap.String("member_id", event.MemberID),
					zap.Error(err))
				return
			}
			referralsTotal.WithLabelValues("published").Inc()
			s.logger.Info("referral_published",
				zap.String("referral_id", event.ID.String()),
				zap.String("family_id", event.FamilyID),
				zap.String("member_id", event.MemberID),
				zap.Int("priority", event.Priority))
		}(event)
	}
	return len(events)
}

// Wait blocks until background referral publishing has finished
func (s *RegistrationService) Wait() {
	s.inflight.Wait()
}

// Preview classifies an ad hoc member the way finalize would
func (s *RegistrationService) Preview(req ports.PreviewRequest) *ports.AssessmentPreview {
	m := domain.NewMember(req.Member)
	var banner *domain.Banner
	switch domain.CategoryFor(m.Gender, m.Age) {
	case domain.CategoryPregnancy:
		if req.Pregnancy != nil {
			p := *req.Pregnancy
			m.Category = domain.CategoryPregnancy
			m.Pregnancy = &p
			b := domain.PregnancyBanner(&p)
			banner = &b
		}
	case domain.CategoryChild:
		c := domain.DefaultChild()
		if req.Child != nil {
			c = *req.Child
		}
		m.Category = domain.CategoryChild
		m.Child = &c
		b := domain.ChildBanner(&c)
		banner = &b
	}
	m.Risk = s.workflow.Classifier().Classify(m)
	m.CarePlan = domain.GenerateCarePlan(m)
	return &ports.AssessmentPreview{
		Category:   m.Category,
		BMI:        m.BMI,
		Assessment: m.Risk,
		CarePlan:   m.CarePlan,
		Advice:     domain.FollowUpAdvice(m.Risk.Level),
		Priority:   domain.MemberPriority(m),
		Banner:     banner,
	}
}

func (s *RegistrationService) logMember(sess *domain.Session, m *domain.Member) {
	membersClassifiedTotal.WithLabelValues(string(m.Category), m.Risk.Level.String()).Inc()
	reasons := make([]string, len(m.Risk.Reasons))
	for i, r := range m.Risk.Reasons {
		reasons[i] = string(r)
	}
	s.logger.Info("member_finalized",
		zap.String("session_id", sess.ID.String()),
		zap.String("worker_id", sess.WorkerID),
		zap.String("category", string(m.Category)),
		zap.String("risk_level", m.Risk.Level.String()),
		zap.Strings("reasons", reasons),
		zap.String("bmi", m.BMI.String()))
}

// IsClientError reports errors caused by the request rather than the system
func IsClientError(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrMemberNotFound) ||
		errors.Is(err, domain.ErrSubmissionInProgress)
}
