package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/volspike/wallet-auth/internal/storage"
	"github.com/volspike/wallet-auth/pkg/types"
)

// AccountStore is the storage collaborator contract the identity linker
// consumes. Implementations enforce the (provider, caip10) uniqueness
// invariant; CreateWalletAccount returns nil without error when another
// writer already owns the key.
type AccountStore interface {
	FindWalletAccount(ctx context.Context, provider types.Provider, caip10 string) (*types.WalletAccount, error)
	CreateWalletAccount(ctx context.Context, acct *types.WalletAccount) (*types.WalletAccount, error)
	ListWalletAccounts(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, now time.Time) error
	CreateUser(ctx context.Context, tier, role string) (*types.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*types.User, error)
}

// PostgresAccountStore adapts the pgx repositories to AccountStore.
type PostgresAccountStore struct {
	users    *storage.UserRepository
	accounts *storage.WalletAccountRepository
}

// NewPostgresAccountStore creates the production AccountStore.
func NewPostgresAccountStore(store *storage.Store) *PostgresAccountStore {
	return &PostgresAccountStore{
		users:    storage.NewUserRepository(store),
		accounts: storage.NewWalletAccountRepository(store),
	}
}

func (s *PostgresAccountStore) FindWalletAccount(ctx context.Context, provider types.Provider, caip10 string) (*types.WalletAccount, error) {
	return s.accounts.FindByProviderCAIP10(ctx, provider, caip10)
}

func (s *PostgresAccountStore) CreateWalletAccount(ctx context.Context, acct *types.WalletAccount) (*types.WalletAccount, error) {
	return s.accounts.Create(ctx, acct)
}

func (s *PostgresAccountStore) ListWalletAccounts(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *PostgresAccountStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.accounts.UpdateLastLogin(ctx, id, now)
}

func (s *PostgresAccountStore) CreateUser(ctx context.Context, tier, role string) (*types.User, error) {
	return s.users.Create(ctx, tier, role)
}

func (s *PostgresAccountStore) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	return s.users.GetByID(ctx, id)
}
