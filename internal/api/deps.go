package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/volspike/wallet-auth/internal/app"
	"github.com/volspike/wallet-auth/internal/deeplink"
	"github.com/volspike/wallet-auth/internal/nonce"
	"github.com/volspike/wallet-auth/pkg/types"
)

// AuthService is the subset of app.AuthService used by the API layer.
// It is an interface to allow handler-level unit tests without a database.
type AuthService interface {
	IssueNonce(ctx context.Context, address string, family types.Provider) (*nonce.Record, error)
	PrepareEVMMessage(ctx context.Context, address, chainID, nonceValue string) (string, error)
	PrepareSolanaMessage(ctx context.Context, address, chainID, nonceValue string) (string, error)

	VerifyEVM(ctx context.Context, message, signature string) (*app.LoginResult, error)
	VerifySolana(ctx context.Context, message, signature, address, chainID string) (*app.LoginResult, error)

	ListWallets(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error)

	StartHandshake(ctx context.Context, appURL, redirectBase string) (*deeplink.StartResult, error)
	RequestSignature(ctx context.Context, state, address, chainID, appURL, redirectBase string) (string, error)
	HandshakeCallback(ctx context.Context, state, walletPublicKey, data, nonceB58 string) (*app.CallbackResult, error)
}
