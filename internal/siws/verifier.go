package siws

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/volspike/wallet-auth/internal/chains"
	"github.com/volspike/wallet-auth/internal/nonce"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// Verifier checks Solana sign-in messages: nonce, Ed25519 detached signature
// over the exact message bytes, and the chain allowlist.
type Verifier struct {
	nonces *nonce.Manager
	chains *chains.Allowlist
}

// NewVerifier creates a Solana signature verifier.
func NewVerifier(nonces *nonce.Manager, allowlist *chains.Allowlist) *Verifier {
	return &Verifier{nonces: nonces, chains: allowlist}
}

// Verify checks the signed message. signature and address arrive
// base58-encoded, the wire form the wallet apps use. The nonce is consumed
// only once every check has passed.
func (v *Verifier) Verify(ctx context.Context, messageText, signature, address, chainID string) (*types.Identity, error) {
	msg, err := ParseMessage(messageText)
	if err != nil {
		return nil, err
	}

	rec, err := v.nonces.Validate(ctx, msg.Nonce)
	if err != nil {
		return nil, err
	}
	if rec.Family != types.ProviderSolana || rec.Address != address {
		return nil, apperrors.ErrNonceInvalid
	}

	pubKey, err := decodePublicKey(address)
	if err != nil {
		return nil, apperrors.ErrInvalidSignature
	}

	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, apperrors.ErrInvalidSignature
	}

	if !ed25519.Verify(pubKey, []byte(messageText), sig) {
		return nil, apperrors.ErrInvalidSignature
	}

	if !v.chains.Allowed(types.ProviderSolana, chainID) {
		return nil, apperrors.ErrChainNotAllowed
	}

	if err := v.nonces.Consume(ctx, msg.Nonce); err != nil {
		return nil, err
	}

	return &types.Identity{
		Provider: types.ProviderSolana,
		CAIP10:   types.CAIP10(types.ProviderSolana, chainID, address),
		Address:  address,
		ChainID:  chainID,
	}, nil
}

// decodePublicKey decodes a base58 Solana address into a 32-byte Ed25519
// public key.
func decodePublicKey(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, apperrors.ErrInvalidSignature
	}
	return ed25519.PublicKey(decoded), nil
}
