package siwe

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/volspike/wallet-auth/internal/chains"
	"github.com/volspike/wallet-auth/internal/nonce"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// Verifier checks EIP-4361 messages against the server domain, the nonce
// store and the chain allowlist, and recovers the signer from the EIP-191
// personal-sign signature.
type Verifier struct {
	nonces *nonce.Manager
	chains *chains.Allowlist
	domain string
	now    func() time.Time
}

// NewVerifier creates an EVM signature verifier. domain is the server's
// configured origin host, without scheme or port.
func NewVerifier(nonces *nonce.Manager, allowlist *chains.Allowlist, domain string) *Verifier {
	return &Verifier{
		nonces: nonces,
		chains: allowlist,
		domain: domain,
		now:    time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// Verify runs the full check sequence over the exact message text. The nonce
// is consumed only after every check has passed; any earlier failure leaves
// it redeemable so a genuine client can retry.
func (v *Verifier) Verify(ctx context.Context, messageText, signature string) (*types.Identity, error) {
	msg, err := ParseMessage(messageText)
	if err != nil {
		return nil, err
	}

	// Domain binding: a signature minted for another origin must not
	// authenticate here.
	if msg.Domain != v.domain {
		return nil, apperrors.ErrInvalidSignature
	}

	now := v.now()
	if msg.IssuedAt.After(now) {
		return nil, apperrors.ErrInvalidSignature
	}
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return nil, apperrors.ErrInvalidSignature
	}
	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return nil, apperrors.ErrInvalidSignature
	}

	rec, err := v.nonces.Validate(ctx, msg.Nonce)
	if err != nil {
		return nil, err
	}
	if rec.Family != types.ProviderEVM || !strings.EqualFold(rec.Address, msg.Address) {
		return nil, apperrors.ErrNonceInvalid
	}

	recovered, err := recoverAddress(messageText, signature)
	if err != nil {
		return nil, apperrors.ErrInvalidSignature
	}
	if !strings.EqualFold(recovered, msg.Address) {
		return nil, apperrors.ErrInvalidSignature
	}

	if !v.chains.Allowed(types.ProviderEVM, msg.ChainID) {
		return nil, apperrors.ErrChainNotAllowed
	}

	if err := v.nonces.Consume(ctx, msg.Nonce); err != nil {
		return nil, err
	}

	address := strings.ToLower(msg.Address)
	return &types.Identity{
		Provider: types.ProviderEVM,
		CAIP10:   types.CAIP10(types.ProviderEVM, msg.ChainID, address),
		Address:  address,
		ChainID:  msg.ChainID,
	}, nil
}

// recoverAddress recovers the signer of an EIP-191 personal-sign signature
// over messageText. Wallets emit V as 27/28; go-ethereum expects 0/1.
func recoverAddress(messageText, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", err
	}
	if len(sig) != crypto.SignatureLength {
		return "", apperrors.ErrInvalidSignature
	}

	cp := make([]byte, len(sig))
	copy(cp, sig)
	if cp[crypto.RecoveryIDOffset] >= 27 {
		cp[crypto.RecoveryIDOffset] -= 27
	}

	digest := accounts.TextHash([]byte(messageText))
	pub, err := crypto.SigToPub(digest, cp)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
