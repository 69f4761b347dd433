package keysource

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMasterKeyHex(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return hex.EncodeToString(key)
}

func TestLocalProviderRoundTrip(t *testing.T) {
	p, err := NewLocalProvider(testMasterKeyHex(t))
	require.NoError(t, err)
	ctx := context.Background()

	plaintext := []byte("the session signing key material")
	sealed, err := p.Encrypt(ctx, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := p.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestLocalProviderRejectsBadKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", "zz"},
		{"wrong length", "deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLocalProvider(tt.key)
			assert.Error(t, err)
		})
	}
}

func TestLocalProviderRejectsTamperedCiphertext(t *testing.T) {
	p, err := NewLocalProvider(testMasterKeyHex(t))
	require.NoError(t, err)
	ctx := context.Background()

	sealed, err := p.Encrypt(ctx, []byte("data"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = p.Decrypt(ctx, sealed)
	assert.Error(t, err)
}

func TestLocalProviderWrongKey(t *testing.T) {
	ctx := context.Background()
	a, err := NewLocalProvider(testMasterKeyHex(t))
	require.NoError(t, err)
	b, err := NewLocalProvider(testMasterKeyHex(t))
	require.NoError(t, err)

	sealed, err := a.Encrypt(ctx, []byte("data"))
	require.NoError(t, err)

	_, err = b.Decrypt(ctx, sealed)
	assert.Error(t, err)
}

func TestParseP256Key(t *testing.T) {
	generated, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyHex := hex.EncodeToString(generated.D.FillBytes(make([]byte, 32)))

	parsed, err := parseP256Key(keyHex)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.D.Cmp(generated.D))
	assert.Equal(t, 0, parsed.PublicKey.X.Cmp(generated.PublicKey.X))
	assert.Equal(t, 0, parsed.PublicKey.Y.Cmp(generated.PublicKey.Y))
}

func TestParseP256KeyRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		keyHex string
	}{
		{"not hex", "zz"},
		{"too short", "deadbeef"},
		{"zero scalar", strings.Repeat("00", 32)},
		{"scalar out of range", strings.Repeat("ff", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseP256Key(tt.keyHex)
			assert.Error(t, err)
		})
	}
}

func TestLoadSigningKeyPlaintextHex(t *testing.T) {
	generated, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyHex := hex.EncodeToString(generated.D.FillBytes(make([]byte, 32)))

	key, err := LoadSigningKey(context.Background(), &SigningKeyConfig{KeyHex: keyHex})
	require.NoError(t, err)
	assert.Equal(t, 0, key.D.Cmp(generated.D))
}

func TestLoadSigningKeyEncryptedEnvelope(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(testMasterKeyHex(t))
	require.NoError(t, err)

	generated, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyHex := hex.EncodeToString(generated.D.FillBytes(make([]byte, 32)))

	sealed, err := p.Encrypt(ctx, []byte(keyHex))
	require.NoError(t, err)

	key, err := LoadSigningKey(ctx, &SigningKeyConfig{
		EncryptedKeyB64: base64.StdEncoding.EncodeToString(sealed),
		Source:          p,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, key.D.Cmp(generated.D))
}

func TestLoadSigningKeyEncryptedWithoutSource(t *testing.T) {
	_, err := LoadSigningKey(context.Background(), &SigningKeyConfig{EncryptedKeyB64: "AAAA"})
	assert.Error(t, err)
}

func TestLoadSigningKeyEphemeral(t *testing.T) {
	a, err := LoadSigningKey(context.Background(), &SigningKeyConfig{})
	require.NoError(t, err)
	b, err := LoadSigningKey(context.Background(), &SigningKeyConfig{})
	require.NoError(t, err)
	assert.NotEqual(t, 0, a.D.Cmp(b.D), "ephemeral keys must be fresh per call")
}
