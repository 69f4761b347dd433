package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/volspike/wallet-auth/internal/deeplink"
	"github.com/volspike/wallet-auth/internal/events"
	"github.com/volspike/wallet-auth/internal/logger"
	"github.com/volspike/wallet-auth/internal/metrics"
	"github.com/volspike/wallet-auth/internal/nonce"
	"github.com/volspike/wallet-auth/internal/session"
	"github.com/volspike/wallet-auth/internal/siwe"
	"github.com/volspike/wallet-auth/internal/siws"
	"github.com/volspike/wallet-auth/internal/validation"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// AuthService orchestrates the login flows: nonce issuance, message
// preparation, signature verification, identity linking and session
// issuance. It owns no cryptography itself.
type AuthService struct {
	nonces     *nonce.Manager
	evm        *siwe.Verifier
	solana     *siws.Verifier
	linker     *Linker
	sessions   *session.Issuer
	handshakes *deeplink.Manager
	events     events.Publisher

	domain    string
	uri       string
	statement string
	now       func() time.Time
}

// AuthServiceParams collects the collaborators AuthService wires together.
type AuthServiceParams struct {
	Nonces     *nonce.Manager
	EVM        *siwe.Verifier
	Solana     *siws.Verifier
	Linker     *Linker
	Sessions   *session.Issuer
	Handshakes *deeplink.Manager
	Events     events.Publisher

	Domain    string
	URI       string
	Statement string
}

// NewAuthService creates the auth orchestration service.
func NewAuthService(p AuthServiceParams) *AuthService {
	ev := p.Events
	if ev == nil {
		ev = events.NopPublisher{}
	}
	return &AuthService{
		nonces:     p.Nonces,
		evm:        p.EVM,
		solana:     p.Solana,
		linker:     p.Linker,
		sessions:   p.Sessions,
		handshakes: p.Handshakes,
		events:     ev,
		domain:     p.Domain,
		uri:        p.URI,
		statement:  p.Statement,
		now:        time.Now,
	}
}

// LoginResult is what a successful verification hands back to the transport
// layer.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *types.User     `json:"user"`
	Identity  *types.Identity `json:"identity"`
}

// IssueNonce mints a challenge nonce for (address, family).
func (s *AuthService) IssueNonce(ctx context.Context, address string, family types.Provider) (*nonce.Record, error) {
	if !family.Valid() {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid request parameters", "unknown chain family", 400)
	}
	if err := validation.ValidateAddress(family, address); err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid request parameters", err.Error(), 400)
	}

	rec, err := s.nonces.Generate(ctx, address, family)
	if err != nil {
		return nil, err
	}
	metrics.NoncesIssued.WithLabelValues(string(family)).Inc()
	return rec, nil
}

// PrepareEVMMessage renders the canonical EIP-4361 message for the client to
// sign. The nonce must be live; validation here does not consume it.
func (s *AuthService) PrepareEVMMessage(ctx context.Context, address, chainID, nonceValue string) (string, error) {
	if _, err := s.nonces.Validate(ctx, nonceValue); err != nil {
		return "", err
	}
	msg := &siwe.Message{
		Domain:    s.domain,
		Address:   address,
		Statement: s.statement,
		URI:       s.uri,
		Version:   "1",
		ChainID:   chainID,
		Nonce:     nonceValue,
		IssuedAt:  s.now(),
	}
	return msg.Render(), nil
}

// PrepareSolanaMessage renders the canonical Solana sign-in message.
func (s *AuthService) PrepareSolanaMessage(ctx context.Context, address, chainID, nonceValue string) (string, error) {
	if _, err := s.nonces.Validate(ctx, nonceValue); err != nil {
		return "", err
	}
	msg := &siws.Message{
		Domain:    s.domain,
		Address:   address,
		Statement: s.statement,
		URI:       s.uri,
		Version:   "1",
		ChainID:   chainID,
		Nonce:     nonceValue,
		IssuedAt:  s.now(),
	}
	return msg.Render(), nil
}

// VerifyEVM verifies an EVM login and issues a session.
func (s *AuthService) VerifyEVM(ctx context.Context, message, signature string) (*LoginResult, error) {
	identity, err := s.evm.Verify(ctx, message, signature)
	if err != nil {
		metrics.Logins.WithLabelValues(string(types.ProviderEVM), metrics.ResultFailure).Inc()
		return nil, err
	}
	return s.finishLogin(ctx, identity)
}

// VerifySolana verifies a Solana login and issues a session.
func (s *AuthService) VerifySolana(ctx context.Context, message, signature, address, chainID string) (*LoginResult, error) {
	identity, err := s.solana.Verify(ctx, message, signature, address, chainID)
	if err != nil {
		metrics.Logins.WithLabelValues(string(types.ProviderSolana), metrics.ResultFailure).Inc()
		return nil, err
	}
	return s.finishLogin(ctx, identity)
}

func (s *AuthService) finishLogin(ctx context.Context, identity *types.Identity) (*LoginResult, error) {
	user, created, err := s.linker.Link(ctx, identity)
	if err != nil {
		metrics.Logins.WithLabelValues(string(identity.Provider), metrics.ResultFailure).Inc()
		return nil, err
	}

	token, err := s.sessions.Issue(user, identity)
	if err != nil {
		metrics.Logins.WithLabelValues(string(identity.Provider), metrics.ResultFailure).Inc()
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeInternalError, "Internal server error", err.Error(), 500)
	}

	metrics.Logins.WithLabelValues(string(identity.Provider), metrics.ResultSuccess).Inc()
	logger.FromContext(ctx).Info("wallet login",
		logger.Addr(identity.Address),
		"provider", string(identity.Provider),
		"chain_id", identity.ChainID,
		"new_user", created,
	)

	if created {
		if err := s.events.PublishUserCreated(ctx, user, identity); err != nil {
			logger.Warn(ctx, "failed to publish user created event", "error", err)
		}
	}
	if err := s.events.PublishLogin(ctx, user, identity); err != nil {
		logger.Warn(ctx, "failed to publish login event", "error", err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: s.now().Add(s.sessions.TTL()),
		User:      user,
		Identity:  identity,
	}, nil
}

// StartHandshake opens a deep-link handshake and returns the connect URL.
func (s *AuthService) StartHandshake(ctx context.Context, appURL, redirectBase string) (*deeplink.StartResult, error) {
	res, err := s.handshakes.Start(ctx, appURL, redirectBase)
	if err != nil {
		return nil, err
	}
	metrics.Handshakes.WithLabelValues(deeplink.StageStarted).Inc()
	return res, nil
}

// RequestSignature mints a fresh nonce, prepares a Solana sign-in message
// for the handshake's wallet, and builds the encrypted sign-message deep
// link.
func (s *AuthService) RequestSignature(ctx context.Context, state, address, chainID, appURL, redirectBase string) (string, error) {
	rec, err := s.IssueNonce(ctx, address, types.ProviderSolana)
	if err != nil {
		return "", err
	}

	message, err := s.PrepareSolanaMessage(ctx, address, chainID, rec.Value)
	if err != nil {
		return "", err
	}

	url, err := s.handshakes.BuildSignURL(ctx, state, &deeplink.SignRequest{
		Message:      message,
		ChainID:      chainID,
		AppURL:       appURL,
		RedirectBase: redirectBase,
	})
	if err != nil {
		return "", err
	}
	metrics.Handshakes.WithLabelValues(deeplink.StageSignRequested).Inc()
	return url, nil
}

// CallbackResult is the outcome of a handshake callback: either an
// intermediate connect acknowledgement or a completed login.
type CallbackResult struct {
	Stage deeplink.ResultStage `json:"stage"`
	Login *LoginResult         `json:"login,omitempty"`
}

// HandshakeCallback decrypts a wallet-app redirect payload. A connect
// payload advances the handshake; a sign payload completes authentication
// through the normal Solana verification path.
func (s *AuthService) HandshakeCallback(ctx context.Context, state, walletPublicKey, data, nonceB58 string) (*CallbackResult, error) {
	result, err := s.handshakes.Decrypt(ctx, state, walletPublicKey, data, nonceB58)
	if err != nil {
		return nil, err
	}

	switch result.Stage {
	case deeplink.ResultConnect:
		metrics.Handshakes.WithLabelValues(deeplink.StageConnected).Inc()
		return &CallbackResult{Stage: deeplink.ResultConnect}, nil

	case deeplink.ResultSign:
		message, chainID, err := s.handshakes.SignContext(ctx, state)
		if err != nil {
			return nil, err
		}

		address := result.Sign.PublicKey
		if address == "" {
			// The wallet may omit its signing key in the sign payload; the
			// prepared message already names the account.
			msg, err := siws.ParseMessage(message)
			if err != nil {
				return nil, err
			}
			address = msg.Address
		}

		login, err := s.VerifySolana(ctx, message, result.Sign.Signature, address, chainID)
		if err != nil {
			return nil, err
		}
		metrics.Handshakes.WithLabelValues("sign_received").Inc()
		return &CallbackResult{Stage: deeplink.ResultSign, Login: login}, nil
	}

	return nil, apperrors.ErrMalformedPayload
}

// VerifySession validates a bearer token and returns its claims.
func (s *AuthService) VerifySession(token string) (*session.Claims, error) {
	return s.sessions.Verify(token)
}

// ListWallets returns the wallet accounts linked to a user.
func (s *AuthService) ListWallets(ctx context.Context, userID uuid.UUID) ([]*types.WalletAccount, error) {
	return s.linker.Wallets(ctx, userID)
}
