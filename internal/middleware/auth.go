package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/volspike/wallet-auth/internal/session"
	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

// ContextKey is a type for context keys
type ContextKey string

// SessionClaimsKey is the context key for the verified session claims.
const SessionClaimsKey ContextKey = "session_claims"

// AuthMiddleware validates bearer session tokens minted by the session
// issuer.
type AuthMiddleware struct {
	sessions *session.Issuer
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessions *session.Issuer) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			writeAuthError(w, apperrors.ErrUnauthorized)
			return
		}

		claims, err := m.sessions.Verify(parts[1])
		if err != nil {
			writeAuthError(w, apperrors.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SessionClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionClaims retrieves the verified claims from context.
func GetSessionClaims(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(SessionClaimsKey).(*session.Claims)
	return claims, ok
}

func writeAuthError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(appErr)
}
