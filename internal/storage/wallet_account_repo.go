package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/volspike/wallet-auth/pkg/types"
)

// WalletAccountRepository handles wallet account data operations. The table
// carries a unique index on (provider, caip10); first-link races resolve
// there, not in application code.
type WalletAccountRepository struct {
	store *Store
}

// NewWalletAccountRepository creates a new WalletAccountRepository
func NewWalletAccountRepository(store *Store) *WalletAccountRepository {
	return &WalletAccountRepository{store: store}
}

// FindByProviderCAIP10 retrieves a wallet account by its unique key.
// Returns nil when no account exists.
func (r *WalletAccountRepository) FindByProviderCAIP10(ctx context.Context, provider types.Provider, caip10 string) (*types.WalletAccount, error) {
	query := `
		SELECT id, provider, caip10, address, chain_id, user_id, last_login_at, created_at
		FROM wallet_accounts
		WHERE provider = $1 AND caip10 = $2
	`

	var acct types.WalletAccount
	err := r.store.pool.QueryRow(ctx, query, provider, caip10).Scan(
		&acct.ID,
		&acct.Provider,
		&acct.CAIP10,
		&acct.Address,
		&acct.ChainID,
		&acct.UserID,
		&acct.LastLoginAt,
		&acct.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet account: %w", err)
	}

	return &acct, nil
}

// Create inserts a wallet account. On a (provider, caip10) conflict it
// returns nil without error; the caller re-reads the winner's row.
func (r *WalletAccountRepository) Create(ctx context.Context, acct *types.WalletAccount) (*types.WalletAccount, error) {
	query := `
		INSERT INTO wallet_accounts (provider, caip10, address, chain_id, user_id, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, caip10) DO NOTHING
		RETURNING id, provider, caip10, address, chain_id, user_id, last_login_at, created_at
	`

	var created types.WalletAccount
	err := r.store.pool.QueryRow(ctx, query,
		acct.Provider,
		acct.CAIP10,
		acct.Address,
		acct.ChainID,
		acct.UserID,
		acct.LastLoginAt,
	).Scan(
		&created.ID,
		&created.Provider,
		&created.CAIP10,
		&created.Address,
		&created.ChainID,
		&created.UserID,
		&created.LastLoginAt,
		&created.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		// Conflict: another linker won the race.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet account: %w", err)
	}

	return &created, nil
}

// UpdateLastLogin touches last_login_at on a successful verification.
func (r *WalletAccountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE wallet_accounts
		SET last_login_at = $2
		WHERE id = $1
	`

	if _, err := r.store.pool.Exec(ctx, query, id, now); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// ListByUser retrieves all wallet accounts linked to a user.
func (r *WalletAccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error) {
	query := `
		SELECT id, provider, caip10, address, chain_id, user_id, last_login_at, created_at
		FROM wallet_accounts
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*types.WalletAccount
	for rows.Next() {
		var acct types.WalletAccount
		if err := rows.Scan(
			&acct.ID,
			&acct.Provider,
			&acct.CAIP10,
			&acct.Address,
			&acct.ChainID,
			&acct.UserID,
			&acct.LastLoginAt,
			&acct.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wallet account: %w", err)
		}
		accounts = append(accounts, &acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallet accounts: %w", err)
	}

	return accounts, nil
}
