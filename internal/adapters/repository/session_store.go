package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

const sessionKeyPrefix = "asha:session:"

// KVSessionStore keeps registration sessions as JSON documents with a sliding TTL
type KVSessionStore struct {
	kv  KV
	ttl time.Duration
}

var _ ports.SessionStore = (*KVSessionStore)(nil)

func NewKVSessionStore(kv KV, ttl time.Duration) *KVSessionStore {
	return &KVSessionStore{kv: kv, ttl: ttl}
}

func (s *KVSessionStore) Save(ctx context.Context, sess *domain.Session) error {
	body, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.kv.Set(ctx, sessionKeyPrefix+sess.ID.String(), string(body), s.ttl)
}

func (s *KVSessionStore) Load(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+id.String())
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Family.Members == nil {
		sess.Family.Members = []*domain.Member{}
	}
	return &sess, nil
}

func (s *KVSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.kv.Del(ctx, sessionKeyPrefix+id.String())
}

// KVSubmissionGuard is a lock per key built on SETNX with a TTL, so a crashed
// submit frees the lock once the TTL runs out
type KVSubmissionGuard struct {
	kv KV
}

var _ ports.SubmissionGuard = (*KVSubmissionGuard)(nil)

func NewKVSubmissionGuard(kv KV) *KVSubmissionGuard {
	return &KVSubmissionGuard{kv: kv}
}

func (g *KVSubmissionGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := "asha:lock:" + key
	token := uuid.NewString()
	ok, err := g.kv.SetNX(ctx, lockKey, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire submission lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSubmissionInProgress
	}
	return func() {
		_ = g.kv.DelIfEqual(context.Background(), lockKey, token)
	}, nil
}
