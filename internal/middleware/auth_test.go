package middleware

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volspike/wallet-auth/internal/session"
	"github.com/volspike/wallet-auth/pkg/types"
)

func issueTestToken(t *testing.T, issuer *session.Issuer) string {
	t.Helper()
	token, err := issuer.Issue(
		&types.User{ID: uuid.New(), Tier: types.TierFree, Role: types.RoleUser},
		&types.Identity{
			Provider: types.ProviderEVM,
			CAIP10:   "eip155:1:0xabc0000000000000000000000000000000000001",
			Address:  "0xabc0000000000000000000000000000000000001",
			ChainID:  "1",
		},
	)
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	issuer := session.NewIssuer(key)
	mw := NewAuthMiddleware(issuer)

	var seenClaims *session.Claims
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetSessionClaims(r.Context())
		require.True(t, ok)
		seenClaims = claims
		w.WriteHeader(http.StatusOK)
	}))

	token := issueTestToken(t, issuer)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenClaims = nil
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seenClaims)
				assert.Equal(t, "evm", seenClaims.Provider)
			} else {
				assert.Nil(t, seenClaims)
				assert.Contains(t, rec.Body.String(), "unauthorized")
			}
		})
	}
}

func TestAuthenticateRejectsTokenFromOtherIssuer(t *testing.T) {
	keyA, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyB, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	mw := NewAuthMiddleware(session.NewIssuer(keyA))
	token := issueTestToken(t, session.NewIssuer(keyB))

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
