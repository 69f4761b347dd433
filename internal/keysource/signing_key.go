package keysource

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// SigningKeyConfig describes where the ES256 session signing key comes from.
// Exactly one of KeyHex and EncryptedKeyB64 should be set; when neither is,
// an ephemeral key is generated and sessions do not survive a restart.
type SigningKeyConfig struct {
	// KeyHex is the plaintext P-256 scalar, hex encoded. Development only.
	KeyHex string

	// EncryptedKeyB64 is the base64 envelope holding the hex scalar,
	// decrypted by Source at boot.
	EncryptedKeyB64 string

	// Source decrypts EncryptedKeyB64.
	Source Provider
}

// LoadSigningKey resolves the session signing key per cfg.
func LoadSigningKey(ctx context.Context, cfg *SigningKeyConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case cfg.KeyHex != "":
		return parseP256Key(cfg.KeyHex)

	case cfg.EncryptedKeyB64 != "":
		if cfg.Source == nil {
			return nil, fmt.Errorf("encrypted signing key supplied without a keysource provider")
		}
		blob, err := base64.StdEncoding.DecodeString(cfg.EncryptedKeyB64)
		if err != nil {
			return nil, fmt.Errorf("encrypted signing key must be base64: %w", err)
		}
		keyHex, err := cfg.Source.Decrypt(ctx, blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
		}
		return parseP256Key(string(keyHex))

	default:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral signing key: %w", err)
		}
		return key, nil
	}
}

// parseP256Key rebuilds a P-256 private key from its hex-encoded scalar.
func parseP256Key(keyHex string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("signing key must be hex-encoded: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("signing key must be a 32-byte P-256 scalar, got %d bytes", len(raw))
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("signing key scalar out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(raw)
	return key, nil
}
