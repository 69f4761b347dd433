package siwe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

func TestRenderParseRoundTrip(t *testing.T) {
	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(10 * time.Minute)

	msg := &Message{
		Domain:         "app.example.com",
		Address:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Statement:      "Sign in to Example",
		URI:            "https://app.example.com",
		Version:        "1",
		ChainID:        "1",
		Nonce:          "dGVzdC1ub25jZQ",
		IssuedAt:       issued,
		ExpirationTime: &expires,
	}

	parsed, err := ParseMessage(msg.Render())
	require.NoError(t, err)

	assert.Equal(t, msg.Domain, parsed.Domain)
	assert.Equal(t, msg.Address, parsed.Address)
	assert.Equal(t, msg.Statement, parsed.Statement)
	assert.Equal(t, msg.URI, parsed.URI)
	assert.Equal(t, msg.Version, parsed.Version)
	assert.Equal(t, msg.ChainID, parsed.ChainID)
	assert.Equal(t, msg.Nonce, parsed.Nonce)
	assert.True(t, msg.IssuedAt.Equal(parsed.IssuedAt))
	require.NotNil(t, parsed.ExpirationTime)
	assert.True(t, expires.Equal(*parsed.ExpirationTime))
	assert.Nil(t, parsed.NotBefore)
}

func TestRenderWithoutStatement(t *testing.T) {
	msg := &Message{
		Domain:   "app.example.com",
		Address:  "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		URI:      "https://app.example.com",
		Version:  "1",
		ChainID:  "1",
		Nonce:    "abc",
		IssuedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	text := msg.Render()
	assert.NotContains(t, text, "\n\n\n")

	parsed, err := ParseMessage(text)
	require.NoError(t, err)
	assert.Empty(t, parsed.Statement)
}

func TestParseMessageMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"missing header", "hello\nworld"},
		{"missing domain", " wants you to sign in with your Ethereum account:\n0xabc"},
		{
			"missing nonce",
			"app.example.com wants you to sign in with your Ethereum account:\n" +
				"0x70997970C51812dc3A010C7d01b50e0d17dc79C8\n\n" +
				"URI: https://app.example.com\n" +
				"Version: 1\n" +
				"Chain ID: 1\n" +
				"Issued At: 2026-08-01T12:00:00Z",
		},
		{
			"bad issued at",
			"app.example.com wants you to sign in with your Ethereum account:\n" +
				"0x70997970C51812dc3A010C7d01b50e0d17dc79C8\n\n" +
				"URI: https://app.example.com\n" +
				"Version: 1\n" +
				"Chain ID: 1\n" +
				"Nonce: abc\n" +
				"Issued At: yesterday",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(tt.text)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeMalformedPayload), "got %v", err)
		})
	}
}

func TestParseMessageCRLF(t *testing.T) {
	text := "app.example.com wants you to sign in with your Ethereum account:\r\n" +
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8\r\n\r\n" +
		"URI: https://app.example.com\r\n" +
		"Version: 1\r\n" +
		"Chain ID: 1\r\n" +
		"Nonce: abc\r\n" +
		"Issued At: 2026-08-01T12:00:00Z"

	parsed, err := ParseMessage(text)
	require.NoError(t, err)
	assert.Equal(t, "abc", parsed.Nonce)
}
