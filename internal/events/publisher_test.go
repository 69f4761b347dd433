package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volspike/wallet-auth/pkg/types"
)

// capturePublisher records published messages per topic.
type capturePublisher struct {
	topics   []string
	messages []*message.Message
	failWith error
}

func (c *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	if c.failWith != nil {
		return c.failWith
	}
	for _, msg := range messages {
		c.topics = append(c.topics, topic)
		c.messages = append(c.messages, msg)
	}
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func testSubjects() (*types.User, *types.Identity) {
	user := &types.User{ID: uuid.New(), Tier: types.TierFree, Role: types.RoleUser}
	identity := &types.Identity{
		Provider: types.ProviderEVM,
		CAIP10:   "eip155:1:0xabc0000000000000000000000000000000000001",
		Address:  "0xabc0000000000000000000000000000000000001",
		ChainID:  "1",
	}
	return user, identity
}

func TestPublishLogin(t *testing.T) {
	capture := &capturePublisher{}
	p := &WatermillPublisher{publisher: capture}
	user, identity := testSubjects()

	require.NoError(t, p.PublishLogin(context.Background(), user, identity))
	require.Len(t, capture.messages, 1)
	assert.Equal(t, TopicLogin, capture.topics[0])

	var event LoginEvent
	require.NoError(t, json.Unmarshal(capture.messages[0].Payload, &event))
	assert.Equal(t, user.ID, event.UserID)
	assert.Equal(t, "evm", event.Provider)
	assert.Equal(t, identity.CAIP10, event.CAIP10)
	assert.Equal(t, "1", event.ChainID)
	assert.WithinDuration(t, time.Now(), event.At, time.Minute)
}

func TestPublishUserCreated(t *testing.T) {
	capture := &capturePublisher{}
	p := &WatermillPublisher{publisher: capture}
	user, identity := testSubjects()

	require.NoError(t, p.PublishUserCreated(context.Background(), user, identity))
	require.Len(t, capture.messages, 1)
	assert.Equal(t, TopicUserCreated, capture.topics[0])

	var event UserCreatedEvent
	require.NoError(t, json.Unmarshal(capture.messages[0].Payload, &event))
	assert.Equal(t, user.ID, event.UserID)
	assert.Equal(t, identity.CAIP10, event.CAIP10)
}

func TestPublishErrorSurfaces(t *testing.T) {
	capture := &capturePublisher{failWith: fmt.Errorf("broker down")}
	p := &WatermillPublisher{publisher: capture}
	user, identity := testSubjects()

	err := p.PublishLogin(context.Background(), user, identity)
	assert.ErrorContains(t, err, "broker down")
}

func TestGoChannelPublisherPublishes(t *testing.T) {
	p := NewGoChannelPublisher()
	defer p.Close()
	user, identity := testSubjects()

	assert.NoError(t, p.PublishLogin(context.Background(), user, identity))
}
