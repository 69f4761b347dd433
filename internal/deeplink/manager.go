package deeplink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

// DefaultTTL is how long a handshake may take end to end. There is no
// explicit terminal transition; anything unfinished at the TTL is dropped.
const DefaultTTL = 10 * time.Minute

const nonceSize = 24

// Manager drives the two-stage connect/sign handshake with a wallet app.
type Manager struct {
	store    Store
	linkBase string
	cluster  string
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the handshake TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a handshake manager. linkBase is the wallet app's
// universal-link origin (e.g. "https://phantom.app/ul"); cluster names the
// Solana cluster the connect link requests.
func NewManager(store Store, linkBase, cluster string, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		linkBase: linkBase,
		cluster:  cluster,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartResult is returned by Start.
type StartResult struct {
	State     string
	URL       string
	ExpiresAt time.Time
}

// Start mints an ephemeral X25519 keypair and an opaque state token, stores
// them, and builds the wallet-app connect deep link. The keypair lives and
// dies with this one state token.
func (m *Manager) Start(ctx context.Context, appURL, redirectBase string) (*StartResult, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate handshake keypair: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	st := &State{
		Token:     token,
		Stage:     StageStarted,
		PublicKey: pub[:],
		SecretKey: priv[:],
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, st); err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	q := url.Values{}
	q.Set("app_url", appURL)
	q.Set("dapp_encryption_public_key", base58.Encode(pub[:]))
	q.Set("redirect_link", redirectURL(redirectBase, token))
	if m.cluster != "" {
		q.Set("cluster", m.cluster)
	}

	return &StartResult{
		State:     token,
		URL:       m.linkBase + "/v1/connect?" + q.Encode(),
		ExpiresAt: st.ExpiresAt,
	}, nil
}

// Decrypt opens an encrypted callback payload for the given state token and
// classifies it. peerPublicKey may be empty on the sign leg; the key
// persisted by the connect leg is used instead. A connect result records the
// wallet's session and public key on the stored state. Any decrypt or
// classification failure discards the state; retries need a new handshake.
func (m *Manager) Decrypt(ctx context.Context, token, peerPublicKey, data, nonceB58 string) (*Result, error) {
	st, err := m.getLive(ctx, token)
	if err != nil {
		return nil, err
	}

	peerKey, err := m.resolvePeerKey(st, peerPublicKey)
	if err != nil {
		return nil, m.fail(ctx, token, err)
	}

	shared, err := sharedSecret(st.SecretKey, peerKey)
	if err != nil {
		return nil, m.fail(ctx, token, apperrors.ErrDecryptionFailed)
	}

	nonce, err := decodeNonce(nonceB58)
	if err != nil {
		return nil, m.fail(ctx, token, apperrors.ErrDecryptionFailed)
	}

	ciphertext, err := base58.Decode(data)
	if err != nil {
		return nil, m.fail(ctx, token, apperrors.ErrDecryptionFailed)
	}

	plaintext, ok := box.OpenAfterPrecomputation(nil, ciphertext, nonce, shared)
	if !ok {
		return nil, m.fail(ctx, token, apperrors.ErrDecryptionFailed)
	}

	result, err := classifyPayload(plaintext)
	if err != nil {
		return nil, m.fail(ctx, token, err)
	}

	if result.Stage == ResultConnect {
		walletKey, err := base58.Decode(result.Connect.PublicKey)
		if err != nil || len(walletKey) != 32 {
			return nil, m.fail(ctx, token, apperrors.MalformedPayload("connect payload carries an invalid public key"))
		}
		st.Stage = StageConnected
		st.PeerSession = result.Connect.Session
		st.PeerPublicKey = walletKey
		if err := m.store.Update(ctx, st); err != nil {
			return nil, apperrors.StorageUnavailable(err)
		}
	}

	return result, nil
}

// SignRequest parameterizes BuildSignURL.
type SignRequest struct {
	Message      string
	ChainID      string
	AppURL       string
	RedirectBase string
}

// BuildSignURL encrypts {session, message} for the wallet and builds the
// sign-message deep link. It requires a state whose connect stage has
// completed, and records the message so the sign callback can verify it.
func (m *Manager) BuildSignURL(ctx context.Context, token string, req *SignRequest) (string, error) {
	st, err := m.getLive(ctx, token)
	if err != nil {
		return "", err
	}
	if st.PeerSession == "" || len(st.PeerPublicKey) == 0 {
		return "", m.fail(ctx, token, apperrors.ErrHandshakeState)
	}

	shared, err := sharedSecret(st.SecretKey, st.PeerPublicKey)
	if err != nil {
		return "", m.fail(ctx, token, apperrors.ErrDecryptionFailed)
	}

	payload, err := json.Marshal(map[string]string{
		"session": st.PeerSession,
		"message": base58.Encode([]byte(req.Message)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sign payload: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate box nonce: %w", err)
	}

	ciphertext := box.SealAfterPrecomputation(nil, payload, &nonce, shared)

	st.Stage = StageSignRequested
	st.SignMessage = req.Message
	st.SignChainID = req.ChainID
	if err := m.store.Update(ctx, st); err != nil {
		return "", apperrors.StorageUnavailable(err)
	}

	q := url.Values{}
	q.Set("dapp_encryption_public_key", base58.Encode(st.PublicKey))
	q.Set("nonce", base58.Encode(nonce[:]))
	q.Set("redirect_link", redirectURL(req.RedirectBase, token))
	q.Set("payload", base58.Encode(ciphertext))

	return m.linkBase + "/v1/signMessage?" + q.Encode(), nil
}

// SignContext returns the message and chain recorded by BuildSignURL, so the
// sign-stage callback can verify the exact text the wallet was asked to sign.
func (m *Manager) SignContext(ctx context.Context, token string) (message, chainID string, err error) {
	st, err := m.getLive(ctx, token)
	if err != nil {
		return "", "", err
	}
	if st.SignMessage == "" {
		return "", "", m.fail(ctx, token, apperrors.ErrHandshakeState)
	}
	return st.SignMessage, st.SignChainID, nil
}

// fail discards the handshake state before surfacing err. Every protocol-level
// failure is terminal for its state: the ephemeral keypair is single-use, and
// a failed attempt must not leave a decryption oracle behind. The wallet has
// to start a fresh handshake.
func (m *Manager) fail(ctx context.Context, token string, err error) error {
	_ = m.store.Delete(ctx, token)
	return err
}

func (m *Manager) getLive(ctx context.Context, token string) (*State, error) {
	st, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	if st == nil || !m.now().Before(st.ExpiresAt) {
		return nil, apperrors.ErrHandshakeState
	}
	return st, nil
}

func (m *Manager) resolvePeerKey(st *State, peerPublicKey string) ([]byte, error) {
	if peerPublicKey != "" {
		key, err := base58.Decode(peerPublicKey)
		if err != nil || len(key) != 32 {
			return nil, apperrors.MalformedPayload("invalid wallet public key")
		}
		return key, nil
	}
	if len(st.PeerPublicKey) == 32 {
		return st.PeerPublicKey, nil
	}
	return nil, apperrors.ErrHandshakeState
}

func sharedSecret(secretKey, peerPublicKey []byte) (*[32]byte, error) {
	if len(secretKey) != 32 || len(peerPublicKey) != 32 {
		return nil, fmt.Errorf("invalid key length")
	}
	var secret, peer, shared [32]byte
	copy(secret[:], secretKey)
	copy(peer[:], peerPublicKey)
	box.Precompute(&shared, &peer, &secret)
	return &shared, nil
}

func decodeNonce(nonceB58 string) (*[nonceSize]byte, error) {
	raw, err := base58.Decode(nonceB58)
	if err != nil || len(raw) != nonceSize {
		return nil, fmt.Errorf("invalid box nonce")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw)
	return &nonce, nil
}

func redirectURL(redirectBase, token string) string {
	sep := "?"
	if u, err := url.Parse(redirectBase); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return redirectBase + sep + "state=" + url.QueryEscape(token)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
