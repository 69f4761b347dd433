package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// Linker resolves a verified identity to a stable user, creating one on
// first contact. Calling Link twice with the same caip10 yields the same
// user both times; duplicate accounts are impossible because the storage
// layer enforces uniqueness on (provider, caip10).
type Linker struct {
	store AccountStore
	now   func() time.Time
}

// NewLinker creates an identity linker.
func NewLinker(store AccountStore) *Linker {
	return &Linker{store: store, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (l *Linker) SetClock(now func() time.Time) {
	l.now = now
}

// Link maps a proven identity to its user. The second return value reports
// whether a new user was created. Storage failures surface as
// StorageUnavailable, never as an authentication failure.
func (l *Linker) Link(ctx context.Context, identity *types.Identity) (*types.User, bool, error) {
	// The caip10 is the uniqueness key, so a malformed one must never reach
	// the unique index.
	if _, _, _, err := types.ParseCAIP10(identity.CAIP10); err != nil {
		return nil, false, apperrors.MalformedPayload("malformed account identifier")
	}

	acct, err := l.store.FindWalletAccount(ctx, identity.Provider, identity.CAIP10)
	if err != nil {
		return nil, false, apperrors.StorageUnavailable(err)
	}
	if acct != nil {
		user, err := l.touch(ctx, acct)
		return user, false, err
	}

	// First contact: the signature already proves key ownership, so the user
	// is created without any confirmation step.
	user, err := l.store.CreateUser(ctx, types.TierFree, types.RoleUser)
	if err != nil {
		return nil, false, apperrors.StorageUnavailable(err)
	}

	now := l.now()
	created, err := l.store.CreateWalletAccount(ctx, &types.WalletAccount{
		Provider:    identity.Provider,
		CAIP10:      identity.CAIP10,
		Address:     identity.Address,
		ChainID:     identity.ChainID,
		UserID:      user.ID,
		LastLoginAt: now,
	})
	if err != nil {
		return nil, false, apperrors.StorageUnavailable(err)
	}
	if created != nil {
		return user, true, nil
	}

	// Lost a concurrent first-link race: the unique index kept exactly one
	// row. Re-read the winner's account and return its user; the user row
	// created above stays unreferenced.
	winner, err := l.store.FindWalletAccount(ctx, identity.Provider, identity.CAIP10)
	if err != nil {
		return nil, false, apperrors.StorageUnavailable(err)
	}
	if winner == nil {
		return nil, false, apperrors.StorageUnavailable(fmt.Errorf("wallet account %s vanished after conflict", identity.CAIP10))
	}
	winnerUser, err := l.touch(ctx, winner)
	return winnerUser, false, err
}

// Wallets lists the wallet accounts linked to a user, oldest first.
func (l *Linker) Wallets(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error) {
	accounts, err := l.store.ListWalletAccounts(ctx, userID)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	return accounts, nil
}

func (l *Linker) touch(ctx context.Context, acct *types.WalletAccount) (*types.User, error) {
	if err := l.store.UpdateLastLogin(ctx, acct.ID, l.now()); err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	user, err := l.store.GetUser(ctx, acct.UserID)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	if user == nil {
		return nil, apperrors.StorageUnavailable(fmt.Errorf("user %s missing for wallet account %s", acct.UserID, acct.ID))
	}
	return user, nil
}
