// Package integration exercises the full HTTP surface with real
// cryptography on both sides of the protocol: the test plays the wallet app.
package integration

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/volspike/wallet-auth/internal/api"
	"github.com/volspike/wallet-auth/internal/app"
	"github.com/volspike/wallet-auth/internal/chains"
	"github.com/volspike/wallet-auth/internal/config"
	"github.com/volspike/wallet-auth/internal/deeplink"
	"github.com/volspike/wallet-auth/internal/middleware"
	"github.com/volspike/wallet-auth/internal/nonce"
	"github.com/volspike/wallet-auth/internal/session"
	"github.com/volspike/wallet-auth/internal/siwe"
	"github.com/volspike/wallet-auth/internal/siws"
	"github.com/volspike/wallet-auth/tests/mocks"
)

const (
	authDomain = "app.example.com"
	appURL     = "https://app.example.com"
	redirectCB = "https://app.example.com/cb"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	nonceStore := nonce.NewMemoryStore(0)
	t.Cleanup(nonceStore.Close)
	nonces := nonce.NewManager(nonceStore)

	handshakeStore := deeplink.NewMemoryStore(0)
	t.Cleanup(handshakeStore.Close)
	handshakes := deeplink.NewManager(handshakeStore, "https://phantom.app/ul", "mainnet-beta")

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	sessions := session.NewIssuer(signKey)

	allowlist := chains.New([]string{"1"}, []string{"101"})

	service := app.NewAuthService(app.AuthServiceParams{
		Nonces:     nonces,
		EVM:        siwe.NewVerifier(nonces, allowlist, authDomain),
		Solana:     siws.NewVerifier(nonces, allowlist),
		Linker:     app.NewLinker(mocks.NewMemoryAccountStore()),
		Sessions:   sessions,
		Handshakes: handshakes,
		Domain:     authDomain,
		URI:        appURL,
		Statement:  "Sign in to Example",
	})

	server := api.NewServer(
		&config.Config{Port: 0},
		service,
		middleware.NewAuthMiddleware(sessions),
		middleware.NewRateLimiter(0, 0, false),
	)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// phantomWallet emulates the wallet-app side: an Ed25519 signing key, an
// X25519 encryption keypair, and a session handle it hands out on connect.
type phantomWallet struct {
	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey
	boxPub   *[32]byte
	boxPriv  *[32]byte
	session  string
}

func newPhantomWallet(t *testing.T) *phantomWallet {
	t.Helper()
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	boxPub, boxPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &phantomWallet{
		signPub:  signPub,
		signPriv: signPriv,
		boxPub:   boxPub,
		boxPriv:  boxPriv,
		session:  "wallet-session-xyz",
	}
}

func (w *phantomWallet) address() string {
	return base58.Encode(w.signPub)
}

func (w *phantomWallet) seal(t *testing.T, serverPubB58 string, payload any) (data, nonceB58 string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	serverPub, err := base58.Decode(serverPubB58)
	require.NoError(t, err)
	var peer [32]byte
	copy(peer[:], serverPub)

	var nonce [24]byte
	_, err = rand.Read(nonce[:])
	require.NoError(t, err)

	return base58.Encode(box.Seal(nil, raw, &nonce, &peer, w.boxPriv)), base58.Encode(nonce[:])
}

func (w *phantomWallet) open(t *testing.T, serverPubB58, payloadB58, nonceB58 string) []byte {
	t.Helper()
	serverPub, err := base58.Decode(serverPubB58)
	require.NoError(t, err)
	var peer [32]byte
	copy(peer[:], serverPub)

	rawNonce, err := base58.Decode(nonceB58)
	require.NoError(t, err)
	var nonce [24]byte
	copy(nonce[:], rawNonce)

	ciphertext, err := base58.Decode(payloadB58)
	require.NoError(t, err)

	plain, ok := box.Open(nil, ciphertext, &nonce, &peer, w.boxPriv)
	require.True(t, ok)
	return plain
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestDeepLinkLoginEndToEnd(t *testing.T) {
	ts := newServer(t)
	wallet := newPhantomWallet(t)

	// 1. The dapp opens a handshake.
	resp, body := postJSON(t, ts, "/v1/deeplink/start", api.DeepLinkStartRequest{
		AppURL:       appURL,
		RedirectBase: redirectCB,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var start api.DeepLinkStartResponse
	require.NoError(t, json.Unmarshal(body, &start))

	connectURL, err := url.Parse(start.URL)
	require.NoError(t, err)
	serverPub := connectURL.Query().Get("dapp_encryption_public_key")
	require.NotEmpty(t, serverPub)

	// 2. The wallet answers the connect link with an encrypted payload.
	data, nonceB58 := wallet.seal(t, serverPub, map[string]string{
		"public_key": base58.Encode(wallet.boxPub[:]),
		"session":    wallet.session,
	})
	resp, body = postJSON(t, ts, "/v1/deeplink/callback", api.DeepLinkCallbackRequest{
		State:           start.State,
		WalletPublicKey: base58.Encode(wallet.boxPub[:]),
		Data:            data,
		Nonce:           nonceB58,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var connectResult app.CallbackResult
	require.NoError(t, json.Unmarshal(body, &connectResult))
	assert.Equal(t, deeplink.ResultConnect, connectResult.Stage)
	assert.Nil(t, connectResult.Login)

	// 3. The dapp requests a sign-message link for the wallet's address.
	resp, body = postJSON(t, ts, "/v1/deeplink/sign-url", api.DeepLinkSignURLRequest{
		State:        start.State,
		Address:      wallet.address(),
		ChainID:      "101",
		AppURL:       appURL,
		RedirectBase: redirectCB,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var signURL api.DeepLinkSignURLResponse
	require.NoError(t, json.Unmarshal(body, &signURL))

	// 4. The wallet opens the sealed payload and signs the message text.
	u, err := url.Parse(signURL.URL)
	require.NoError(t, err)
	q := u.Query()
	plain := wallet.open(t, q.Get("dapp_encryption_public_key"), q.Get("payload"), q.Get("nonce"))

	var sealed struct {
		Session string `json:"session"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(plain, &sealed))
	assert.Equal(t, wallet.session, sealed.Session)

	messageBytes, err := base58.Decode(sealed.Message)
	require.NoError(t, err)
	signature := ed25519.Sign(wallet.signPriv, messageBytes)

	// 5. The sign callback completes the login.
	data, nonceB58 = wallet.seal(t, serverPub, map[string]string{
		"signature":  base58.Encode(signature),
		"public_key": wallet.address(),
	})
	resp, body = postJSON(t, ts, "/v1/deeplink/callback", api.DeepLinkCallbackRequest{
		State: start.State,
		Data:  data,
		Nonce: nonceB58,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var signResult app.CallbackResult
	require.NoError(t, json.Unmarshal(body, &signResult))
	require.Equal(t, deeplink.ResultSign, signResult.Stage)
	require.NotNil(t, signResult.Login)
	require.NotEmpty(t, signResult.Login.Token)
	assert.Equal(t, wallet.address(), signResult.Login.Identity.Address)
	assert.Equal(t, "solana:101:"+wallet.address(), signResult.Login.Identity.CAIP10)

	// 6. The issued token authenticates against /v1/me.
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signResult.Login.Token)
	meResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer meResp.Body.Close()
	require.Equal(t, http.StatusOK, meResp.StatusCode)

	var me api.MeResponse
	require.NoError(t, json.NewDecoder(meResp.Body).Decode(&me))
	assert.Equal(t, signResult.Login.User.ID.String(), me.UserID)
	assert.Equal(t, "solana", me.Provider)
	assert.Equal(t, wallet.address(), me.Address)
}

func TestDeepLinkReplayedSignCallbackFails(t *testing.T) {
	ts := newServer(t)
	wallet := newPhantomWallet(t)

	resp, body := postJSON(t, ts, "/v1/deeplink/start", api.DeepLinkStartRequest{
		AppURL:       appURL,
		RedirectBase: redirectCB,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var start api.DeepLinkStartResponse
	require.NoError(t, json.Unmarshal(body, &start))

	connectURL, err := url.Parse(start.URL)
	require.NoError(t, err)
	serverPub := connectURL.Query().Get("dapp_encryption_public_key")

	data, nonceB58 := wallet.seal(t, serverPub, map[string]string{
		"public_key": base58.Encode(wallet.boxPub[:]),
		"session":    wallet.session,
	})
	resp, _ = postJSON(t, ts, "/v1/deeplink/callback", api.DeepLinkCallbackRequest{
		State:           start.State,
		WalletPublicKey: base58.Encode(wallet.boxPub[:]),
		Data:            data,
		Nonce:           nonceB58,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = postJSON(t, ts, "/v1/deeplink/sign-url", api.DeepLinkSignURLRequest{
		State:        start.State,
		Address:      wallet.address(),
		ChainID:      "101",
		AppURL:       appURL,
		RedirectBase: redirectCB,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var signURL api.DeepLinkSignURLResponse
	require.NoError(t, json.Unmarshal(body, &signURL))

	u, err := url.Parse(signURL.URL)
	require.NoError(t, err)
	q := u.Query()
	plain := wallet.open(t, q.Get("dapp_encryption_public_key"), q.Get("payload"), q.Get("nonce"))

	var sealed struct {
		Session string `json:"session"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(plain, &sealed))
	messageBytes, err := base58.Decode(sealed.Message)
	require.NoError(t, err)
	signature := ed25519.Sign(wallet.signPriv, messageBytes)

	data, nonceB58 = wallet.seal(t, serverPub, map[string]string{
		"signature":  base58.Encode(signature),
		"public_key": wallet.address(),
	})
	callback := api.DeepLinkCallbackRequest{
		State: start.State,
		Data:  data,
		Nonce: nonceB58,
	}

	resp, _ = postJSON(t, ts, "/v1/deeplink/callback", callback)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Same encrypted payload again: the nonce inside the message is spent.
	resp, body = postJSON(t, ts, "/v1/deeplink/callback", callback)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "nonce_invalid")
}
