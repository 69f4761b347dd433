package siwe

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volspike/wallet-auth/internal/chains"
	"github.com/volspike/wallet-auth/internal/nonce"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

const testDomain = "app.example.com"

type evmSigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func newEVMSigner(t *testing.T) *evmSigner {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return &evmSigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

// sign produces an EIP-191 personal-sign signature the way wallets do,
// with V encoded as 27/28.
func (s *evmSigner) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(message)), s.key)
	require.NoError(t, err)
	sig[ethcrypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

type verifierFixture struct {
	verifier *Verifier
	nonces   *nonce.Manager
	signer   *evmSigner
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()
	store := nonce.NewMemoryStore(0)
	t.Cleanup(store.Close)
	nonces := nonce.NewManager(store)
	allowlist := chains.New([]string{"1"}, nil)
	return &verifierFixture{
		verifier: NewVerifier(nonces, allowlist, testDomain),
		nonces:   nonces,
		signer:   newEVMSigner(t),
	}
}

func (f *verifierFixture) message(t *testing.T, mutate func(*Message)) *Message {
	t.Helper()
	rec, err := f.nonces.Generate(context.Background(), f.signer.address, types.ProviderEVM)
	require.NoError(t, err)
	msg := &Message{
		Domain:   testDomain,
		Address:  f.signer.address,
		URI:      "https://" + testDomain,
		Version:  "1",
		ChainID:  "1",
		Nonce:    rec.Value,
		IssuedAt: time.Now().Add(-time.Second),
	}
	if mutate != nil {
		mutate(msg)
	}
	return msg
}

func TestVerifySuccess(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, nil)
	text := msg.Render()

	identity, err := f.verifier.Verify(context.Background(), text, f.signer.sign(t, text))
	require.NoError(t, err)

	wantAddr := strings.ToLower(f.signer.address)
	assert.Equal(t, types.ProviderEVM, identity.Provider)
	assert.Equal(t, wantAddr, identity.Address)
	assert.Equal(t, "1", identity.ChainID)
	assert.Equal(t, "eip155:1:"+wantAddr, identity.CAIP10)
}

func TestVerifyConsumesNonce(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, nil)
	text := msg.Render()
	sig := f.signer.sign(t, text)

	_, err := f.verifier.Verify(context.Background(), text, sig)
	require.NoError(t, err)

	// Replaying the identical message and signature must fail.
	_, err = f.verifier.Verify(context.Background(), text, sig)
	assert.ErrorIs(t, err, apperrors.ErrNonceInvalid)
}

func TestVerifyDomainBinding(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, func(m *Message) { m.Domain = "evil.example.com" })
	text := msg.Render()

	_, err := f.verifier.Verify(context.Background(), text, f.signer.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	// The nonce survives the failed attempt.
	_, err = f.nonces.Validate(context.Background(), msg.Nonce)
	assert.NoError(t, err)
}

func TestVerifyWrongSigner(t *testing.T) {
	f := newVerifierFixture(t)
	other := newEVMSigner(t)

	msg := f.message(t, nil)
	text := msg.Render()

	_, err := f.verifier.Verify(context.Background(), text, other.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestVerifyTamperedMessage(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, nil)
	sig := f.signer.sign(t, msg.Render())

	msg.Statement = "I agree to transfer everything"
	_, err := f.verifier.Verify(context.Background(), msg.Render(), sig)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestVerifyUnknownNonce(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, func(m *Message) { m.Nonce = "never-issued" })
	text := msg.Render()

	_, err := f.verifier.Verify(context.Background(), text, f.signer.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrNonceInvalid)
}

func TestVerifyNonceBoundToOtherAddress(t *testing.T) {
	f := newVerifierFixture(t)
	other := newEVMSigner(t)

	// Nonce issued for f.signer, message signed by other.
	rec, err := f.nonces.Generate(context.Background(), f.signer.address, types.ProviderEVM)
	require.NoError(t, err)

	msg := f.message(t, func(m *Message) {
		m.Address = other.address
		m.Nonce = rec.Value
	})
	text := msg.Render()

	_, err = f.verifier.Verify(context.Background(), text, other.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrNonceInvalid)
}

func TestVerifyChainNotAllowed(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, func(m *Message) { m.ChainID = "56" })
	text := msg.Render()

	_, err := f.verifier.Verify(context.Background(), text, f.signer.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrChainNotAllowed)

	// Chain policy is checked before consumption, so the nonce survives.
	_, err = f.nonces.Validate(context.Background(), msg.Nonce)
	assert.NoError(t, err)
}

func TestVerifyExpiredMessage(t *testing.T) {
	f := newVerifierFixture(t)
	expired := time.Now().Add(-time.Minute)
	msg := f.message(t, func(m *Message) { m.ExpirationTime = &expired })
	text := msg.Render()

	_, err := f.verifier.Verify(context.Background(), text, f.signer.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestVerifyNotYetValid(t *testing.T) {
	f := newVerifierFixture(t)
	notBefore := time.Now().Add(time.Hour)
	msg := f.message(t, func(m *Message) { m.NotBefore = &notBefore })
	text := msg.Render()

	_, err := f.verifier.Verify(context.Background(), text, f.signer.sign(t, text))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestVerifyMalformedSignature(t *testing.T) {
	f := newVerifierFixture(t)
	msg := f.message(t, nil)
	text := msg.Render()

	tests := []struct {
		name      string
		signature string
	}{
		{"not hex", "zzzz"},
		{"too short", "0xdeadbeef"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier.Verify(context.Background(), text, tt.signature)
			assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
		})
	}
}

func TestVerifyMalformedMessage(t *testing.T) {
	f := newVerifierFixture(t)
	_, err := f.verifier.Verify(context.Background(), "not a sign-in message", "0x00")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeMalformedPayload))
}
