// Package events publishes authentication lifecycle events so other services
// (alerting, analytics) can react without being called inline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/volspike/wallet-auth/pkg/types"
)

// Topics
const (
	TopicLogin       = "auth.login"
	TopicUserCreated = "auth.user_created"
)

// LoginEvent is published on every successful wallet login.
type LoginEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Provider string    `json:"provider"`
	CAIP10   string    `json:"caip10"`
	ChainID  string    `json:"chain_id"`
	At       time.Time `json:"at"`
}

// UserCreatedEvent is published when a first-contact wallet creates a user.
type UserCreatedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	CAIP10 string    `json:"caip10"`
	At     time.Time `json:"at"`
}

// Publisher emits authentication events. Publish failures are the caller's
// to log, never to fail a login over.
type Publisher interface {
	PublishLogin(ctx context.Context, user *types.User, identity *types.Identity) error
	PublishUserCreated(ctx context.Context, user *types.User, identity *types.Identity) error
	Close() error
}

// WatermillPublisher implements Publisher over any watermill backend.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewGoChannelPublisher creates an in-process publisher, the default when no
// Redis is configured.
func NewGoChannelPublisher() *WatermillPublisher {
	return &WatermillPublisher{
		publisher: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

// NewRedisStreamPublisher creates a Redis Streams publisher so events reach
// consumers in other processes.
func NewRedisStreamPublisher(client *redis.Client) (*WatermillPublisher, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return &WatermillPublisher{publisher: publisher}, nil
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, user *types.User, identity *types.Identity) error {
	return p.publish(TopicLogin, LoginEvent{
		UserID:   user.ID,
		Provider: string(identity.Provider),
		CAIP10:   identity.CAIP10,
		ChainID:  identity.ChainID,
		At:       time.Now(),
	})
}

// PublishUserCreated publishes a user-created event.
func (p *WatermillPublisher) PublishUserCreated(ctx context.Context, user *types.User, identity *types.Identity) error {
	return p.publish(TopicUserCreated, UserCreatedEvent{
		UserID: user.ID,
		CAIP10: identity.CAIP10,
		At:     time.Now(),
	})
}

// Close shuts the underlying publisher down.
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// NopPublisher discards all events. Used in tests.
type NopPublisher struct{}

func (NopPublisher) PublishLogin(ctx context.Context, user *types.User, identity *types.Identity) error {
	return nil
}

func (NopPublisher) PublishUserCreated(ctx context.Context, user *types.User, identity *types.Identity) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
