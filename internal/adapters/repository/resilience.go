package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/umeed-health/asha-service/internal/core/domain"
)

// BreakerSettings configures the circuit breakers wrapped around store calls
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         5,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, domain.ErrFollowUpNotFound)
		},
	})
}

// retryPolicy repeats idempotent operations only; inserts run once.
type retryPolicy struct {
	maxRetries int
	delay      time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxRetries: 3, delay: time.Second}
}

func (p retryPolicy) do(ctx context.Context, operation func() error) error {
	var lastErr error
	for i := 0; i < p.maxRetries; i++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanent(err) {
			return err
		}
		if i < p.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", p.maxRetries, lastErr)
}

// errPermanent marks failures that retrying cannot fix (missing rows, bad payloads, 4xx)
var errPermanent = errors.New("permanent failure")

func isPermanent(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, errPermanent) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
