package deeplink

import (
	"context"
)

// Store persists handshake state. Records are read and written whole, so a
// connect-stage update and a concurrent BuildSignURL read can never observe
// a torn record. Implementations drop records at their TTL; readers still
// check ExpiresAt so correctness never depends on sweep timing.
type Store interface {
	Put(ctx context.Context, st *State) error
	// Get returns nil for absent or expired tokens.
	Get(ctx context.Context, token string) (*State, error)
	// Update replaces the whole record. The token must already exist.
	Update(ctx context.Context, st *State) error
	Delete(ctx context.Context, token string) error
}
