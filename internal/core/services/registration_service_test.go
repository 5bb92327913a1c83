package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/repository"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
	"github.com/umeed-health/asha-service/internal/core/services"
)

// MockRecordStore is a mock implementation of RecordStore
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Create(ctx context.Context, table string, record map[string]any) (string, error) {
	args := m.Called(ctx, table, record)
	return args.String(0), args.Error(1)
}

func (m *MockRecordStore) ReadFamilies(ctx context.Context) ([]*domain.Family, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Family), args.Error(1)
}

// MockReferralPublisher is a mock implementation of ReferralPublisher
type MockReferralPublisher struct {
	mock.Mock
}

func (m *MockReferralPublisher) PublishReferral(ctx context.Context, event *domain.ReferralEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fixture struct {
	svc       *services.RegistrationService
	store     *MockRecordStore
	referrals *MockReferralPublisher
	sessions  *repository.KVSessionStore
}

func newFixture() *fixture {
	kv := repository.NewMemoryKV()
	f := &fixture{
		store:     new(MockRecordStore),
		referrals: new(MockReferralPublisher),
		sessions:  repository.NewKVSessionStore(kv, time.Hour),
	}
	f.svc = services.NewRegistrationService(
		domain.NewWorkflow(nil),
		f.sessions,
		repository.NewKVSubmissionGuard(kv),
		f.store,
		f.referrals,
		zap.NewNop(),
	)
	return f
}

// overview drives a new session to Overview with the given members
func (f *fixture) overview(t *testing.T, worker string, members ...domain.MemberInput) *domain.Session {
	ctx := context.Background()
	sess, err := f.svc.Start(ctx, worker)
	require.NoError(t, err)
	sess, err = f.svc.SaveFamily(ctx, sess.ID, worker, domain.FamilyInput{Village: "Mavli", HeadName: "Rajesh Kumar", Mobile: "9876543210"})
	require.NoError(t, err)
	for i, in := range members {
		if i > 0 {
			sess, err = f.svc.AddAnotherMember(ctx, sess.ID, worker)
			require.NoError(t, err)
		}
		sess, err = f.svc.SaveMember(ctx, sess.ID, worker, in)
		require.NoError(t, err)
		if sess.State == domain.StatePregnancyPrompt {
			sess, err = f.svc.AnswerPregnancyPrompt(ctx, sess.ID, worker, false)
			require.NoError(t, err)
		}
	}
	require.Equal(t, domain.StateOverview, sess.State)
	return sess
}

func adult(name string) domain.MemberInput {
	in := domain.DefaultMemberInput()
	in.Name = name
	in.Age = "40"
	in.Gender = domain.GenderMale
	return in
}

func TestRegistrationService_Start(t *testing.T) {
	f := newFixture()
	sess, err := f.svc.Start(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAddFamily, sess.State)

	_, err = f.svc.Start(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegistrationService_GetOtherWorker(t *testing.T) {
	f := newFixture()
	sess, err := f.svc.Start(context.Background(), "worker-1")
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), sess.ID, "worker-2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.svc.Get(context.Background(), uuid.New(), "worker-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistrationService_InvalidTransitionKeepsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, err := f.svc.Start(ctx, "worker-1")
	require.NoError(t, err)

	_, err = f.svc.AddAnotherMember(ctx, sess.ID, "worker-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.svc.Get(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAddFamily, stored.State)
}

func TestRegistrationService_Submit_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.overview(t, "worker-1", adult("Rajesh"))

	// pregnancy member with bleeding -> Red
	sess, err := f.svc.AddAnotherMember(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	in := domain.DefaultMemberInput()
	in.Name = "Sita"
	in.Age = "25"
	_, err = f.svc.SaveMember(ctx, sess.ID, "worker-1", in)
	require.NoError(t, err)
	_, err = f.svc.AnswerPregnancyPrompt(ctx, sess.ID, "worker-1", true)
	require.NoError(t, err)
	p := domain.DefaultPregnancy()
	p.DangerSigns.Bleeding = true
	_, err = f.svc.SavePregnancy(ctx, sess.ID, "worker-1", p)
	require.NoError(t, err)

	var order []string
	record := func(args mock.Arguments) { order = append(order, args.String(1)) }
	f.store.On("Create", mock.Anything, ports.TableFamilies, mock.MatchedBy(func(r map[string]any) bool {
		return r["head_name"] == "Rajesh Kumar" && r["village"] == "Mavli"
	})).Return("fam-1", nil).Run(record).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.MatchedBy(func(r map[string]any) bool {
		return r["family_id"] == "fam-1" && r["name"] == "Rajesh"
	})).Return("mem-1", nil).Run(record).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.MatchedBy(func(r map[string]any) bool {
		return r["family_id"] == "fam-1" && r["name"] == "Sita" && r["risk_level"] == "Red"
	})).Return("mem-2", nil).Run(record).Once()
	f.store.On("Create", mock.Anything, ports.TablePregnancies, mock.MatchedBy(func(r map[string]any) bool {
		return r["member_id"] == "mem-2"
	})).Return("", nil).Run(record).Once()
	f.referrals.On("PublishReferral", mock.Anything, mock.MatchedBy(func(e *domain.ReferralEvent) bool {
		return e.MemberID == "mem-2" && e.FamilyID == "fam-1" && e.Level == domain.RiskRed
	})).Return(nil).Once()

	result, err := f.svc.Submit(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, "fam-1", result.FamilyID)
	assert.Equal(t, []string{"mem-1", "mem-2"}, result.MemberIDs)
	assert.Equal(t, 1, result.Referrals)
	assert.Equal(t, []string{ports.TableFamilies, ports.TableMembers, ports.TableMembers, ports.TablePregnancies}, order)

	stored, err := f.svc.Get(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAddFamily, stored.State)
	assert.Empty(t, stored.Family.Members)

	f.store.AssertExpectations(t)
	f.referrals.AssertExpectations(t)
}

func TestRegistrationService_Submit_MemberFailureNoRollback(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.overview(t, "worker-1", adult("Rajesh"), adult("Mohan"))

	f.store.On("Create", mock.Anything, ports.TableFamilies, mock.Anything).Return("fam-1", nil).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.Anything).Return("", errors.New("connection reset")).Once()

	result, err := f.svc.Submit(ctx, sess.ID, "worker-1")
	assert.Nil(t, result)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ports.TableMembers, perr.Table)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	// the family insert is not undone and nothing else is attempted
	f.store.AssertNumberOfCalls(t, "Create", 2)
	f.store.AssertExpectations(t)
	f.referrals.AssertNotCalled(t, "PublishReferral", mock.Anything, mock.Anything)

	// session is preserved for another attempt
	stored, err := f.svc.Get(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateOverview, stored.State)
	assert.Len(t, stored.Family.Members, 2)
	assert.Empty(t, stored.Family.ID)
}

func TestRegistrationService_Submit_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.overview(t, "worker-1", adult(""))

	_, err := f.svc.Submit(ctx, sess.ID, "worker-1")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "members[0].name")
	f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrationService_Submit_ConcurrentRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.overview(t, "worker-1", adult("Rajesh"))

	started := make(chan struct{})
	unblock := make(chan struct{})
	f.store.On("Create", mock.Anything, ports.TableFamilies, mock.Anything).Return("fam-1", nil).Run(func(mock.Arguments) {
		close(started)
		<-unblock
	}).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.Anything).Return("mem-1", nil).Once()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.Submit(ctx, sess.ID, "worker-1")
	}()

	<-started
	_, err := f.svc.Submit(ctx, sess.ID, "worker-1")
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)

	close(unblock)
	wg.Wait()
	require.NoError(t, firstErr)

	// after the first submit finished, the session is reset and cannot be submitted again
	_, err = f.svc.Submit(ctx, sess.ID, "worker-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	f.store.AssertNumberOfCalls(t, "Create", 2)
}

func TestRegistrationService_TransitionsRejectedDuringSubmit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.overview(t, "worker-1", adult("Rajesh"))

	started := make(chan struct{})
	unblock := make(chan struct{})
	f.store.On("Create", mock.Anything, ports.TableFamilies, mock.Anything).Return("fam-1", nil).Run(func(mock.Arguments) {
		close(started)
		<-unblock
	}).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.Anything).Return("mem-1", nil).Once()

	var wg sync.WaitGroup
	var submitErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, submitErr = f.svc.Submit(ctx, sess.ID, "worker-1")
	}()

	<-started
	_, err := f.svc.AddAnotherMember(ctx, sess.ID, "worker-1")
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)
	_, err = f.svc.EditMember(ctx, sess.ID, "worker-1", 0, adult("Mohan"))
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)
	err = f.svc.Discard(ctx, sess.ID, "worker-1")
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)

	close(unblock)
	wg.Wait()
	require.NoError(t, submitErr)

	stored, err := f.svc.Get(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAddFamily, stored.State)
	f.store.AssertNumberOfCalls(t, "Create", 2)

	// the lock is released once the submit returns
	_, err = f.svc.SaveFamily(ctx, sess.ID, "worker-1", domain.FamilyInput{Village: "Mavli", HeadName: "Sita Devi"})
	assert.NoError(t, err)
}

func TestRegistrationService_Submit_ReferralFailureDoesNotFail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, err := f.svc.Start(ctx, "worker-1")
	require.NoError(t, err)
	_, err = f.svc.SaveFamily(ctx, sess.ID, "worker-1", domain.FamilyInput{Village: "Gogunda", HeadName: "Sita Devi"})
	require.NoError(t, err)
	in := domain.DefaultMemberInput()
	in.Name = "Munna"
	in.Age = "2"
	_, err = f.svc.SaveMember(ctx, sess.ID, "worker-1", in)
	require.NoError(t, err)
	c := domain.DefaultChild()
	c.Symptoms.Convulsions = true
	_, err = f.svc.SaveChild(ctx, sess.ID, "worker-1", c)
	require.NoError(t, err)

	f.store.On("Create", mock.Anything, ports.TableFamilies, mock.Anything).Return("fam-9", nil).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.Anything).Return("mem-9", nil).Once()
	f.store.On("Create", mock.Anything, ports.TableChildren, mock.MatchedBy(func(r map[string]any) bool {
		return r["member_id"] == "mem-9"
	})).Return("", nil).Once()
	f.referrals.On("PublishReferral", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	result, err := f.svc.Submit(ctx, sess.ID, "worker-1")
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, 1, result.Referrals)
	f.referrals.AssertExpectations(t)
}

func TestRegistrationService_SubmitBundle(t *testing.T) {
	f := newFixture()
	bundle := &domain.RegistrationBundle{
		BundleID: "bundle-1",
		WorkerID: "worker-7",
		Family:   domain.FamilyInput{Village: "Rampur", HeadName: "Kishan Singh"},
		Members:  []domain.BundleMember{{Member: adult("Kishan")}},
	}

	f.store.On("Create", mock.Anything, ports.TableFamilies, mock.Anything).Return("fam-3", nil).Once()
	f.store.On("Create", mock.Anything, ports.TableMembers, mock.Anything).Return("mem-3", nil).Once()

	result, err := f.svc.SubmitBundle(context.Background(), bundle)
	require.NoError(t, err)
	assert.Equal(t, "fam-3", result.FamilyID)
	assert.Equal(t, 0, result.Referrals)
	f.store.AssertExpectations(t)

	bundle.Family.HeadName = ""
	_, err = f.svc.SubmitBundle(context.Background(), bundle)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegistrationService_Preview(t *testing.T) {
	f := newFixture()

	in := domain.DefaultMemberInput()
	in.Name = "Sita"
	in.Age = "25"
	p := domain.DefaultPregnancy()
	p.Vitals.SystolicBP = 150
	preview := f.svc.Preview(ports.PreviewRequest{Member: in, Pregnancy: &p})
	assert.Equal(t, domain.CategoryPregnancy, preview.Category)
	assert.Equal(t, domain.RiskRed, preview.Assessment.Level)
	require.NotNil(t, preview.Banner)
	assert.Equal(t, domain.BannerHighRisk, preview.Banner.Status)
	assert.Equal(t, "Immediate PHC Referral", preview.Advice)

	preview = f.svc.Preview(ports.PreviewRequest{Member: adult("Mohan")})
	assert.Equal(t, domain.CategoryGeneral, preview.Category)
	assert.Equal(t, domain.RiskGreen, preview.Assessment.Level)
	assert.Nil(t, preview.Banner)
	assert.Equal(t, domain.BMI(23.4), preview.BMI)
}
