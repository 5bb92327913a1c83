package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Outcome tells the consumer how to settle a delivery
type Outcome int

const (
	// OutcomeAck removes the message after successful processing
	OutcomeAck Outcome = iota
	// OutcomeReject drops a message that can never succeed
	OutcomeReject
	// OutcomeRequeue returns the message to the queue for another attempt
	OutcomeRequeue
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeReject:
		return "reject"
	default:
		return "requeue"
	}
}

// MessageHandler processes one message body
type MessageHandler interface {
	Handle(ctx context.Context, body []byte) Outcome
}

// HandlerFunc adapts a function to MessageHandler
type HandlerFunc func(ctx context.Context, body []byte) Outcome

func (f HandlerFunc) Handle(ctx context.Context, body []byte) Outcome {
	return f(ctx, body)
}

// RabbitMQConsumer reads a durable queue one message at a time with manual acks.
// Consumption restarts after a reconnect while the consuming context is alive.
type RabbitMQConsumer struct {
	link    *rabbitLink
	handler MessageHandler
	name    string

	consumingMutex sync.Mutex
	consumingCtx   context.Context
	isConsuming    bool
}

func NewRabbitMQConsumer(rabbitMQURL, queueName, name string, handler MessageHandler, logger *zap.Logger) (*RabbitMQConsumer, error) {
	link := newRabbitLink(rabbitMQURL, queueName, logger.With(zap.String("consumer", name)))
	if err := link.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	c := &RabbitMQConsumer{link: link, handler: handler, name: name}
	link.onReconnect = c.restart
	go link.handleReconnection()
	return c, nil
}

func (c *RabbitMQConsumer) restart() {
	c.consumingMutex.Lock()
	ctx, running := c.consumingCtx, c.isConsuming
	c.consumingMutex.Unlock()
	if ctx != nil && ctx.Err() == nil && !running {
		if err := c.StartConsuming(ctx); err != nil {
			c.link.logger.Error("failed to restart consumer", zap.Error(err))
		}
	}
}

// StartConsuming registers the consumer and processes deliveries in a goroutine
func (c *RabbitMQConsumer) StartConsuming(ctx context.Context) error {
	c.consumingMutex.Lock()
	if c.isConsuming {
		c.consumingMutex.Unlock()
		c.link.logger.Info("consumer already running, skipping duplicate start")
		return nil
	}
	c.isConsuming = true
	c.consumingCtx = ctx
	c.consumingMutex.Unlock()

	stop := func() {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
	}

	ch := c.link.current()
	if ch == nil {
		stop()
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	if err := ch.Qos(1, 0, false); err != nil {
		stop()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	tag := fmt.Sprintf("%s-%d", c.name, time.Now().UnixNano())
	msgs, err := ch.Consume(
		c.link.queueName, // queue
		tag,              // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		stop()
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.link.logger.Info("consumer started", zap.String("tag", tag))

	go func() {
		for {
			select {
			case <-ctx.Done():
				stop()
				c.link.logger.Info("consumer context cancelled")
				return
			case msg, ok := <-msgs:
				if !ok {
					stop()
					c.link.logger.Warn("delivery channel closed, reconnecting")
					c.link.requestReconnect()
					return
				}
				started := time.Now()
				outcome := c.handler.Handle(ctx, msg.Body)
				c.settle(msg, outcome)
				messagesConsumedTotal.WithLabelValues(c.link.queueName, outcome.String()).Inc()
				consumeDuration.WithLabelValues(c.link.queueName, outcome.String()).Observe(time.Since(started).Seconds())
			}
		}
	}()
	return nil
}

func (c *RabbitMQConsumer) settle(msg amqp091.Delivery, outcome Outcome) {
	var err error
	switch outcome {
	case OutcomeAck:
		err = msg.Ack(false)
	case OutcomeReject:
		err = msg.Nack(false, false)
	default:
		err = msg.Nack(false, true)
	}
	if err != nil {
		c.link.logger.Error("failed to settle delivery",
			zap.String("outcome", outcome.String()),
			zap.Error(err))
	}
}

func (c *RabbitMQConsumer) Close() error {
	c.consumingMutex.Lock()
	c.isConsuming = false
	c.consumingMutex.Unlock()
	err := c.link.Close()
	c.link.logger.Info("consumer closed")
	return err
}
