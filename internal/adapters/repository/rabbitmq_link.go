package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// rabbitLink owns one connection and channel bound to a durable queue.
// Publishers and consumers share its connect and reconnect handling.
type rabbitLink struct {
	url        string
	queueName  string
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration

	connMutex     sync.RWMutex
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	reconnectCh   chan struct{}
	stopReconnect chan struct{}
	stopOnce      sync.Once
	onReconnect   func()
}

func newRabbitLink(url, queueName string, logger *zap.Logger) *rabbitLink {
	return &rabbitLink{
		url:           url,
		queueName:     queueName,
		logger:        logger.With(zap.String("queue", queueName)),
		maxRetries:    3,
		retryDelay:    1 * time.Second,
		reconnectCh:   make(chan struct{}, 1),
		stopReconnect: make(chan struct{}),
	}
}

// connect dials, opens a channel and declares the queue
func (l *rabbitLink) connect() error {
	var (
		conn *amqp091.Connection
		err  error
	)
	for i := 0; i < l.maxRetries; i++ {
		conn, err = amqp091.Dial(l.url)
		if err == nil {
			break
		}
		l.logger.Warn("failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", l.maxRetries),
			zap.Error(err))
		if i < l.maxRetries-1 {
			time.Sleep(l.retryDelay)
		}
	}
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if _, err := ch.QueueDeclare(
		l.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", l.queueName, err)
	}

	l.connMutex.Lock()
	l.conn, l.channel = conn, ch
	l.connMutex.Unlock()

	l.logger.Info("connected to RabbitMQ")
	return nil
}

// current returns the open channel or nil when the link is down
func (l *rabbitLink) current() *amqp091.Channel {
	l.connMutex.RLock()
	defer l.connMutex.RUnlock()
	if l.conn == nil || l.conn.IsClosed() || l.channel == nil || l.channel.IsClosed() {
		return nil
	}
	return l.channel
}

func (l *rabbitLink) requestReconnect() {
	select {
	case l.reconnectCh <- struct{}{}:
	default:
	}
}

func (l *rabbitLink) handleReconnection() {
	for {
		select {
		case <-l.reconnectCh:
			l.logger.Info("attempting to reconnect to RabbitMQ")
			l.closeConn()
			if err := l.connect(); err != nil {
				l.logger.Error("reconnection failed", zap.Error(err))
				select {
				case <-time.After(5 * time.Second):
					l.requestReconnect()
				case <-l.stopReconnect:
					return
				}
				continue
			}
			if l.onReconnect != nil {
				l.onReconnect()
			}
		case <-l.stopReconnect:
			return
		}
	}
}

func (l *rabbitLink) closeConn() error {
	l.connMutex.Lock()
	defer l.connMutex.Unlock()
	if l.channel != nil && !l.channel.IsClosed() {
		l.channel.Close()
	}
	var err error
	if l.conn != nil && !l.conn.IsClosed() {
		err = l.conn.Close()
	}
	l.conn, l.channel = nil, nil
	return err
}

func (l *rabbitLink) Close() error {
	l.stopOnce.Do(func() { close(l.stopReconnect) })
	return l.closeConn()
}
