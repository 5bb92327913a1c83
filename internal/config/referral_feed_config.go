package config

import (
	"crypto/rsa"
	"fmt"
)

// ReferralFeedConfig configures the supervisor referral feed process
type ReferralFeedConfig struct {
	JWTPublicKey  *rsa.PublicKey
	RabbitMQURL   string
	QueueName     string
	WebSocketPort string
	LogLevel      string
	LogFormat     string
}

// LoadReferralFeed reads the subset of settings the referral feed needs.
// It does not require a record store.
func LoadReferralFeed() (*ReferralFeedConfig, error) {
	v := newViper()
	publicKey, err := loadPublicKey(v.GetString("PUBLIC_KEY_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}
	return &ReferralFeedConfig{
		JWTPublicKey:  publicKey,
		RabbitMQURL:   v.GetString("RABBITMQ_URL"),
		QueueName:     v.GetString("REFERRAL_QUEUE_NAME"),
		WebSocketPort: v.GetString("WEBSOCKET_PORT"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFormat:     v.GetString("LOG_FORMAT"),
	}, nil
}
