// Package nonce issues and consumes the single-use challenge tokens that
// protect signature verification against replay.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// DefaultTTL is how long an issued nonce stays redeemable.
const DefaultTTL = 5 * time.Minute

// Record is a live challenge token. A record is present in the store iff it
// is still valid and unconsumed.
type Record struct {
	Value     string         `json:"value"`
	Address   string         `json:"address"`
	Family    types.Provider `json:"family"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Store persists nonce records. Implementations must make Delete an atomic
// check-and-delete: of N concurrent deletes for the same value, exactly one
// observes true.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	// Get returns nil for absent or expired values without mutating state.
	Get(ctx context.Context, value string) (*Record, error)
	// Delete removes the record and reports whether it was present and live.
	Delete(ctx context.Context, value string) (bool, error)
}

// Manager issues, validates and consumes nonces.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the default nonce TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a nonce manager backed by the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate mints a fresh URL-safe nonce bound to (address, family) and stores
// it with the configured TTL. Multiple live nonces per address are allowed so
// concurrent tabs do not invalidate each other.
func (m *Manager) Generate(ctx context.Context, address string, family types.Provider) (*Record, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := m.now()
	rec := &Record{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		Address:   address,
		Family:    family,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Put(ctx, rec); err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	return rec, nil
}

// Validate returns the live record for value without consuming it, so a
// nonce survives the validation that happens while a message is being
// prepared. Absent and expired values both yield ErrNonceInvalid.
func (m *Manager) Validate(ctx context.Context, value string) (*Record, error) {
	rec, err := m.store.Get(ctx, value)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	if rec == nil || !m.now().Before(rec.ExpiresAt) {
		return nil, apperrors.ErrNonceInvalid
	}
	return rec, nil
}

// Consume atomically removes the record. It returns ErrNonceInvalid when the
// value is absent, expired, or was consumed by a concurrent caller.
func (m *Manager) Consume(ctx context.Context, value string) error {
	ok, err := m.store.Delete(ctx, value)
	if err != nil {
		return apperrors.StorageUnavailable(err)
	}
	if !ok {
		return apperrors.ErrNonceInvalid
	}
	return nil
}

// TTL returns the configured nonce lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
