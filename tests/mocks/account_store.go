// Package mocks provides in-memory test doubles for the storage
// collaborators.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/volspike/wallet-auth/internal/app"
	"github.com/volspike/wallet-auth/pkg/types"
)

// MemoryAccountStore is an in-memory AccountStore with the same uniqueness
// semantics as the Postgres implementation: CreateWalletAccount returns nil
// without error when another writer already owns (provider, caip10).
type MemoryAccountStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*types.User
	accounts map[string]*types.WalletAccount

	// FailWith, when set, makes every call return this error. Lets tests
	// exercise the storage-outage paths.
	FailWith error
}

var _ app.AccountStore = (*MemoryAccountStore)(nil)

// NewMemoryAccountStore creates an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		users:    make(map[uuid.UUID]*types.User),
		accounts: make(map[string]*types.WalletAccount),
	}
}

func accountKey(provider types.Provider, caip10 string) string {
	return string(provider) + "|" + caip10
}

func (s *MemoryAccountStore) FindWalletAccount(ctx context.Context, provider types.Provider, caip10 string) (*types.WalletAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	acct, ok := s.accounts[accountKey(provider, caip10)]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (s *MemoryAccountStore) CreateWalletAccount(ctx context.Context, acct *types.WalletAccount) (*types.WalletAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	key := accountKey(acct.Provider, acct.CAIP10)
	if _, exists := s.accounts[key]; exists {
		return nil, nil
	}
	cp := *acct
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	s.accounts[key] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryAccountStore) ListWalletAccounts(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var out []*types.WalletAccount
	for _, acct := range s.accounts {
		if acct.UserID == userID {
			cp := *acct
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryAccountStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	for _, acct := range s.accounts {
		if acct.ID == id {
			acct.LastLoginAt = now
			return nil
		}
	}
	return fmt.Errorf("wallet account %s not found", id)
}

func (s *MemoryAccountStore) CreateUser(ctx context.Context, tier, role string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	user := &types.User{
		ID:        uuid.New(),
		Tier:      tier,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.users[user.ID] = user
	cp := *user
	return &cp, nil
}

func (s *MemoryAccountStore) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

// UserCount reports how many user rows exist, orphans included.
func (s *MemoryAccountStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// AccountCount reports how many wallet accounts exist.
func (s *MemoryAccountStore) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}
