package deeplink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps handshake state in Redis as a single JSON value per
// token, so Update replaces the whole record atomically.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed handshake store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "walletauth:handshake:",
	}
}

// Put stores the state with a TTL matching its expiry.
func (s *RedisStore) Put(ctx context.Context, st *State) error {
	return s.write(ctx, st, false)
}

// Update replaces an existing record, keeping the original TTL window.
func (s *RedisStore) Update(ctx context.Context, st *State) error {
	return s.write(ctx, st, true)
}

func (s *RedisStore) write(ctx context.Context, st *State, mustExist bool) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal handshake state: %w", err)
	}

	ttl := time.Until(st.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("handshake state already expired")
	}

	key := s.prefix + st.Token
	if mustExist {
		ok, err := s.client.SetXX(ctx, key, payload, ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to update handshake state: %w", err)
		}
		if !ok {
			return fmt.Errorf("handshake state %q not found", st.Token)
		}
		return nil
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store handshake state: %w", err)
	}
	return nil
}

// Get returns the state, or nil when Redis no longer holds the key.
func (s *RedisStore) Get(ctx context.Context, token string) (*State, error) {
	payload, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handshake state: %w", err)
	}

	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal handshake state: %w", err)
	}
	return &st, nil
}

// Delete removes the record.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete handshake state: %w", err)
	}
	return nil
}
