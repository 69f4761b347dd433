package nonce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps nonce records in Redis so multiple service instances can
// share one challenge space. Redis evicts expired keys itself; the Manager
// still checks ExpiresAt at read time so correctness never depends on
// eviction timing.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed nonce store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "walletauth:nonce:",
	}
}

// Put stores the record as a JSON value with a TTL matching its expiry.
func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal nonce record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("nonce record already expired")
	}

	if err := s.client.Set(ctx, s.prefix+rec.Value, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// Get returns the record, or nil when Redis no longer holds the key.
func (s *RedisStore) Get(ctx context.Context, value string) (*Record, error) {
	payload, err := s.client.Get(ctx, s.prefix+value).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nonce record: %w", err)
	}
	return &rec, nil
}

// Delete consumes the record via GETDEL, which is atomic on the Redis side:
// of N racing consumers exactly one receives the value.
func (s *RedisStore) Delete(ctx context.Context, value string) (bool, error) {
	err := s.client.GetDel(ctx, s.prefix+value).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return true, nil
}
