// Package deeplink runs the encrypted handshake used to authenticate wallet
// apps that can only talk via URL redirects. The server and the app exchange
// ephemeral X25519 public keys inside deep links; every payload that crosses
// the redirect boundary travels inside an authenticated NaCl box.
package deeplink

import (
	"time"
)

// Handshake stages. A handshake only ever moves forward; any failure is
// terminal for its state token and the client must start over.
const (
	StageStarted       = "started"
	StageConnected     = "connect_received"
	StageSignRequested = "sign_requested"
)

// State is one in-flight handshake, keyed by its opaque Token. The ephemeral
// keypair is minted at Start and never reused across attempts. Peer fields
// stay empty until the connect stage decrypts successfully; the sign stage
// requires them.
type State struct {
	Token     string    `json:"token"`
	Stage     string    `json:"stage"`
	PublicKey []byte    `json:"public_key"`
	SecretKey []byte    `json:"secret_key"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Set once the connect-stage payload has been opened.
	PeerSession   string `json:"peer_session,omitempty"`
	PeerPublicKey []byte `json:"peer_public_key,omitempty"`

	// Set by BuildSignURL so the sign-stage callback can verify the exact
	// message that was sent to the wallet.
	SignMessage string `json:"sign_message,omitempty"`
	SignChainID string `json:"sign_chain_id,omitempty"`
}
