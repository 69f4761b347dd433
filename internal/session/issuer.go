// Package session issues and verifies the opaque bearer credentials handed
// out after signature verification succeeds.
package session

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// DefaultTTL is the default session lifetime.
const DefaultTTL = 24 * time.Hour

// Issuer signs and verifies ES256 session tokens.
type Issuer struct {
	signKey *ecdsa.PrivateKey
	ttl     time.Duration
	now     func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the session TTL.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates a session issuer signing with the given P-256 key.
func NewIssuer(signKey *ecdsa.PrivateKey, opts ...Option) *Issuer {
	i := &Issuer{
		signKey: signKey,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a bearer token for a verified identity.
func (i *Issuer) Issue(user *types.User, identity *types.Identity) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Address:  identity.Address,
		Provider: string(identity.Provider),
		ChainID:  identity.ChainID,
		Tier:     user.Tier,
		Role:     user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(i.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns its claims. Signature, audience
// and expiry failures all surface as ErrUnauthorized.
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &i.signKey.PublicKey, nil
	}, jwt.WithAudience(Audience), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

// TTL returns the configured session lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
