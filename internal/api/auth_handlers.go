package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/volspike/wallet-auth/internal/middleware"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
	"github.com/volspike/wallet-auth/pkg/types"
)

// NonceRequest asks for a fresh challenge nonce.
type NonceRequest struct {
	Address     string `json:"address"`
	ChainFamily string `json:"chain_family"`
}

// NonceResponse carries the issued nonce.
type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MessageRequest asks for a canonical sign-in message.
type MessageRequest struct {
	Address     string `json:"address"`
	ChainID     string `json:"chain_id"`
	Nonce       string `json:"nonce"`
	ChainFamily string `json:"chain_family"`
}

// MessageResponse carries the rendered message text.
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyEVMRequest carries a signed EIP-4361 message.
type VerifyEVMRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// VerifySolanaRequest carries a signed Solana sign-in message.
type VerifySolanaRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	ChainID   string `json:"chain_id"`
}

// handleNonce issues a challenge nonce
func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req NonceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	rec, err := s.authService.IssueNonce(r.Context(), req.Address, types.Provider(req.ChainFamily))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, NonceResponse{
		Nonce:     rec.Value,
		ExpiresAt: rec.ExpiresAt,
	})
}

// handleMessage renders the canonical message for a live nonce
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req MessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var (
		message string
		err     error
	)
	switch types.Provider(req.ChainFamily) {
	case types.ProviderEVM:
		message, err = s.authService.PrepareEVMMessage(r.Context(), req.Address, req.ChainID, req.Nonce)
	case types.ProviderSolana:
		message, err = s.authService.PrepareSolanaMessage(r.Context(), req.Address, req.ChainID, req.Nonce)
	default:
		s.writeError(w, r, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid request parameters",
			"unknown chain family",
			http.StatusBadRequest,
		))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// handleVerifyEVM verifies an EVM login
func (s *Server) handleVerifyEVM(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req VerifyEVMRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" || req.Signature == "" {
		s.writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	result, err := s.authService.VerifyEVM(r.Context(), req.Message, req.Signature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleVerifySolana verifies a Solana login
func (s *Server) handleVerifySolana(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req VerifySolanaRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" || req.Signature == "" || req.Address == "" || req.ChainID == "" {
		s.writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	result, err := s.authService.VerifySolana(r.Context(), req.Message, req.Signature, req.Address, req.ChainID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// MeResponse echoes the verified session claims.
type MeResponse struct {
	UserID   string `json:"user_id"`
	Address  string `json:"address"`
	Provider string `json:"provider"`
	ChainID  string `json:"chain_id"`
	Tier     string `json:"tier"`
	Role     string `json:"role"`
}

// handleMe returns the claims of the authenticated session
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, apperrors.New(
			apperrors.ErrCodeBadRequest,
			"Method not allowed",
			http.StatusMethodNotAllowed,
		))
		return
	}

	claims, ok := middleware.GetSessionClaims(r.Context())
	if !ok {
		s.writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	s.writeJSON(w, http.StatusOK, MeResponse{
		UserID:   claims.Subject,
		Address:  claims.Address,
		Provider: claims.Provider,
		ChainID:  claims.ChainID,
		Tier:     claims.Tier,
		Role:     claims.Role,
	})
}

// WalletsResponse lists the wallet accounts linked to the session's user.
type WalletsResponse struct {
	Wallets []*types.WalletAccount `json:"wallets"`
}

// handleMeWallets returns the wallet accounts of the authenticated user
func (s *Server) handleMeWallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, apperrors.New(
			apperrors.ErrCodeBadRequest,
			"Method not allowed",
			http.StatusMethodNotAllowed,
		))
		return
	}

	claims, ok := middleware.GetSessionClaims(r.Context())
	if !ok {
		s.writeError(w, r, apperrors.ErrUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	wallets, err := s.authService.ListWallets(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []*types.WalletAccount{}
	}

	s.writeJSON(w, http.StatusOK, WalletsResponse{Wallets: wallets})
}
