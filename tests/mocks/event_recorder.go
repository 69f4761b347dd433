package mocks

import (
	"context"
	"sync"

	"github.com/volspike/wallet-auth/internal/events"
	"github.com/volspike/wallet-auth/pkg/types"
)

// EventRecorder captures published events for assertions.
type EventRecorder struct {
	mu      sync.Mutex
	logins  []*types.Identity
	creates []*types.Identity

	// FailWith, when set, makes every publish return this error.
	FailWith error
}

var _ events.Publisher = (*EventRecorder)(nil)

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) PublishLogin(ctx context.Context, user *types.User, identity *types.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.logins = append(r.logins, identity)
	return nil
}

func (r *EventRecorder) PublishUserCreated(ctx context.Context, user *types.User, identity *types.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.creates = append(r.creates, identity)
	return nil
}

func (r *EventRecorder) Close() error { return nil }

// Logins returns the identities of recorded login events.
func (r *EventRecorder) Logins() []*types.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Identity(nil), r.logins...)
}

// UserCreations returns the identities of recorded user-created events.
func (r *EventRecorder) UserCreations() []*types.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Identity(nil), r.creates...)
}
