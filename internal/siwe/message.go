// Package siwe implements EIP-4361 "Sign-In with Ethereum" message handling
// and signature verification over the EIP-191 personal-sign digest.
package siwe

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

const headerSuffix = " wants you to sign in with your Ethereum account:"

// Message is the structured form of an EIP-4361 sign-in message. Required
// fields per the standard: Domain, Address, URI, Version, ChainID, Nonce,
// IssuedAt.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        string
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
}

// Render produces the canonical message text the wallet signs. Verification
// recovers the signer over these exact bytes, so rendering must be
// deterministic.
func (m *Message) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", m.Domain, headerSuffix)
	fmt.Fprintf(&b, "%s\n", m.Address)
	b.WriteString("\n")
	if m.Statement != "" {
		fmt.Fprintf(&b, "%s\n", m.Statement)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %s\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339))
	if m.ExpirationTime != nil {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime.UTC().Format(time.RFC3339))
	}
	if m.NotBefore != nil {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// ParseMessage parses the EIP-4361 line grammar into a Message. Missing
// required fields yield ErrMalformedPayload.
func ParseMessage(text string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, apperrors.MalformedPayload("message too short")
	}

	msg := &Message{}

	if !strings.HasSuffix(lines[0], headerSuffix) {
		return nil, apperrors.MalformedPayload("missing sign-in header")
	}
	msg.Domain = strings.TrimSuffix(lines[0], headerSuffix)
	if msg.Domain == "" {
		return nil, apperrors.MalformedPayload("missing domain")
	}
	msg.Address = strings.TrimSpace(lines[1])

	// Optional statement block: everything between the address and the first
	// "Key: Value" field line, blank lines excluded.
	i := 2
	var statement []string
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		if isFieldLine(line) {
			break
		}
		statement = append(statement, line)
	}
	msg.Statement = strings.Join(statement, "\n")

	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, apperrors.MalformedPayload(fmt.Sprintf("unparseable line %d", i+1))
		}
		switch key {
		case "URI":
			msg.URI = value
		case "Version":
			msg.Version = value
		case "Chain ID":
			msg.ChainID = value
		case "Nonce":
			msg.Nonce = value
		case "Issued At":
			t, err := parseTimestamp(value)
			if err != nil {
				return nil, apperrors.MalformedPayload("invalid Issued At timestamp")
			}
			msg.IssuedAt = t
		case "Expiration Time":
			t, err := parseTimestamp(value)
			if err != nil {
				return nil, apperrors.MalformedPayload("invalid Expiration Time timestamp")
			}
			msg.ExpirationTime = &t
		case "Not Before":
			t, err := parseTimestamp(value)
			if err != nil {
				return nil, apperrors.MalformedPayload("invalid Not Before timestamp")
			}
			msg.NotBefore = &t
		}
	}

	if err := msg.validateRequired(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *Message) validateRequired() error {
	var missing []string
	if m.Domain == "" {
		missing = append(missing, "domain")
	}
	if m.Address == "" {
		missing = append(missing, "address")
	}
	if m.URI == "" {
		missing = append(missing, "uri")
	}
	if m.Version == "" {
		missing = append(missing, "version")
	}
	if m.ChainID == "" {
		missing = append(missing, "chain id")
	}
	if m.Nonce == "" {
		missing = append(missing, "nonce")
	}
	if m.IssuedAt.IsZero() {
		missing = append(missing, "issued at")
	}
	if len(missing) > 0 {
		return apperrors.MalformedPayload("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func isFieldLine(line string) bool {
	for _, prefix := range []string{"URI: ", "Version: ", "Chain ID: ", "Nonce: ", "Issued At: ", "Expiration Time: ", "Not Before: ", "Request ID: ", "Resources:"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// parseTimestamp accepts RFC 3339 with or without sub-second precision.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
