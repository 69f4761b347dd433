package api

import (
	"net/http"
	"time"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

// DeepLinkStartRequest opens a new handshake.
type DeepLinkStartRequest struct {
	AppURL       string `json:"app_url"`
	RedirectBase string `json:"redirect_base"`
}

// DeepLinkStartResponse carries the connect deep link.
type DeepLinkStartResponse struct {
	State     string    `json:"state"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeepLinkCallbackRequest carries an encrypted payload the wallet app
// delivered via redirect.
type DeepLinkCallbackRequest struct {
	State           string `json:"state"`
	WalletPublicKey string `json:"wallet_public_key,omitempty"`
	Data            string `json:"data"`
	Nonce           string `json:"nonce"`
}

// DeepLinkSignURLRequest asks for an encrypted sign-message deep link.
type DeepLinkSignURLRequest struct {
	State        string `json:"state"`
	Address      string `json:"address"`
	ChainID      string `json:"chain_id"`
	AppURL       string `json:"app_url"`
	RedirectBase string `json:"redirect_base"`
}

// DeepLinkSignURLResponse carries the sign-message deep link.
type DeepLinkSignURLResponse struct {
	URL string `json:"url"`
}

// handleDeepLinkStart opens a handshake
func (s *Server) handleDeepLinkStart(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req DeepLinkStartRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.AppURL == "" || req.RedirectBase == "" {
		s.writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	result, err := s.authService.StartHandshake(r.Context(), req.AppURL, req.RedirectBase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, DeepLinkStartResponse{
		State:     result.State,
		URL:       result.URL,
		ExpiresAt: result.ExpiresAt,
	})
}

// handleDeepLinkCallback decrypts a wallet redirect payload. A connect
// payload acknowledges the stage; a sign payload returns the full login
// result.
func (s *Server) handleDeepLinkCallback(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req DeepLinkCallbackRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.State == "" || req.Data == "" || req.Nonce == "" {
		s.writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	result, err := s.authService.HandshakeCallback(r.Context(), req.State, req.WalletPublicKey, req.Data, req.Nonce)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleDeepLinkSignURL builds the encrypted sign-message link
func (s *Server) handleDeepLinkSignURL(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}

	var req DeepLinkSignURLRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.State == "" || req.Address == "" || req.ChainID == "" {
		s.writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	url, err := s.authService.RequestSignature(r.Context(), req.State, req.Address, req.ChainID, req.AppURL, req.RedirectBase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, DeepLinkSignURLResponse{URL: url})
}
