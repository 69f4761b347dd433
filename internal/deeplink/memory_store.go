package deeplink

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is the in-process handshake store. All reads return copies and
// all writes replace whole records under the lock.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a memory store and starts its sweep goroutine.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		states: make(map[string]*State),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s
}

// Put stores the state keyed by its token.
func (s *MemoryStore) Put(ctx context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.states[st.Token] = &cp
	return nil
}

// Get returns a copy of the live state, or nil when absent or expired.
func (s *MemoryStore) Get(ctx context.Context, token string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[token]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(st.ExpiresAt) {
		delete(s.states, token)
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// Update replaces an existing record.
func (s *MemoryStore) Update(ctx context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[st.Token]; !ok {
		return fmt.Errorf("handshake state %q not found", st.Token)
	}
	cp := *st
	s.states[st.Token] = &cp
	return nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, token)
	return nil
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for token, st := range s.states {
				if !now.Before(st.ExpiresAt) {
					delete(s.states, token)
				}
			}
			s.mu.Unlock()
		}
	}
}
