package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umeed-health/asha-service/internal/adapters/repository"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

func TestMemoryKV_SetNXAndDelIfEqual(t *testing.T) {
	kv := repository.NewMemoryKV()
	ctx := context.Background()

	ok, err := kv.SetNX(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetNX(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.DelIfEqual(ctx, "k", "b"))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, kv.DelIfEqual(ctx, "k", "a"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrMiss)
}

func TestMemoryKV_Expiry(t *testing.T) {
	kv := repository.NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrMiss)
}

func TestKVSessionStore_RoundTrip(t *testing.T) {
	store := repository.NewKVSessionStore(repository.NewMemoryKV(), time.Hour)
	ctx := context.Background()

	wf := domain.NewWorkflow(nil)
	sess := wf.NewSession("asha-1")
	require.NoError(t, wf.SaveFamily(sess, domain.FamilyInput{Village: "Mavli", HeadName: "Rajesh Kumar"}))
	in := domain.DefaultMemberInput()
	in.Name, in.Age, in.Gender = "Rajesh", "45", domain.GenderMale
	in.SystolicBP = 150
	_, err := wf.SaveMember(sess, in)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOverview, loaded.State)
	require.Len(t, loaded.Family.Members, 1)
	assert.Equal(t, domain.RiskOrange, loaded.Family.Members[0].Risk.Level)
	assert.Equal(t, sess.Family.Members[0].BMI, loaded.Family.Members[0].BMI)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = store.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestKVSubmissionGuard(t *testing.T) {
	guard := repository.NewKVSubmissionGuard(repository.NewMemoryKV())
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "submit:1", time.Minute)
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "submit:1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)

	release()
	release2, err := guard.Acquire(ctx, "submit:1", time.Minute)
	require.NoError(t, err)
	release2()
}
