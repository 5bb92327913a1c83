package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// DefaultReferralQueue carries one event per Red member
const DefaultReferralQueue = "asha.referrals"

// referralLatencyBudget is the publish latency above which a warning is logged
const referralLatencyBudget = 15 * time.Second

// RabbitMQPublisher implements ReferralPublisher.
// Includes retry logic and a circuit breaker.
type RabbitMQPublisher struct {
	link *rabbitLink
	cb   *gobreaker.CircuitBreaker
}

var _ ports.ReferralPublisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(rabbitMQURL, queueName string, settings BreakerSettings, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if queueName == "" {
		queueName = DefaultReferralQueue
	}
	link := newRabbitLink(rabbitMQURL, queueName, logger)
	if err := link.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	go link.handleReconnection()

	return &RabbitMQPublisher{
		link: link,
		cb:   newBreaker("rabbitmq", settings),
	}, nil
}

// PublishReferral publishes a persistent JSON referral event
func (p *RabbitMQPublisher) PublishReferral(ctx context.Context, event *domain.ReferralEvent) error {
	if !event.Validate() {
		return fmt.Errorf("invalid referral event for member %s", event.MemberID)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal referral event: %w", err)
	}
	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publishWithRetry(ctx, event, body)
	})
	status := "success"
	if err != nil {
		status = "failed"
	}
	publishedTotal.WithLabelValues(p.link.queueName, status).Inc()
	return err
}

func (p *RabbitMQPublisher) publishWithRetry(ctx context.Context, event *domain.ReferralEvent, body []byte) error {
	start := time.Now()
	log := p.link.logger.With(
		zap.String("referral_id", event.ID.String()),
		zap.String("family_id", event.FamilyID),
		zap.String("member_id", event.MemberID),
	)
	log.Debug("referral_publish_attempt", zap.String("risk_level", event.Level.String()))

	var lastErr error
	for i := 0; i < p.link.maxRetries; i++ {
		ch := p.link.current()
		if ch == nil {
			p.link.requestReconnect()
			lastErr = fmt.Errorf("RabbitMQ connection is closed")
			if err := sleepCtx(ctx, p.link.retryDelay); err != nil {
				return err
			}
			continue
		}

		err := ch.PublishWithContext(
			ctx,
			"",               // exchange
			p.link.queueName, // routing key
			false,            // mandatory
			false,            // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				MessageId:    event.ID.String(),
				Body:         body,
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if err == nil {
			if latency := time.Since(start); latency > referralLatencyBudget {
				log.Warn("referral publish latency exceeded budget", zap.Duration("latency", latency))
			}
			return nil
		}

		lastErr = err
		log.Warn("failed to publish referral",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", p.link.maxRetries),
			zap.Error(err))
		if i < p.link.maxRetries-1 {
			p.link.requestReconnect()
			if err := sleepCtx(ctx, p.link.retryDelay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("failed to publish referral after %d retries: %w", p.link.maxRetries, lastErr)
}

func (p *RabbitMQPublisher) Close() error {
	return p.link.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
