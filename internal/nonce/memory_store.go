package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used by single-instance deployments.
// Correctness relies on the expiry check at read time; the janitor only
// bounds memory growth.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a memory store and starts its sweep goroutine.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s
}

// Put stores a record keyed by its value.
func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Value] = &cp
	return nil
}

// Get returns a copy of the live record, or nil when absent or expired.
func (s *MemoryStore) Get(ctx context.Context, value string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[value]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.records, value)
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Delete removes the record under the store lock. Exactly one of N
// concurrent deletes for the same value returns true; an expired record is
// treated as already absent.
func (s *MemoryStore) Delete(ctx context.Context, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[value]
	if !ok {
		return false, nil
	}
	delete(s.records, value)
	if !s.now().Before(rec.ExpiresAt) {
		return false, nil
	}
	return true, nil
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
			for value, rec := range s.records {
				if !now.Before(rec.ExpiresAt) {
					delete(s.records, value)
				}
			}
			s.mu.Unlock()
		}
	}
}
