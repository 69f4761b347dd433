// Package siws implements Sign-In with Solana: a line-based sign-in message
// and Ed25519 detached-signature verification against a base58 public key.
package siws

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/volspike/wallet-auth/pkg/errors"
)

const headerSuffix = " wants you to sign in with your Solana account:"

// Message is the structured form of the sign-in text. The nonce is a typed
// field here; verification never pattern-matches it out of free text.
type Message struct {
	Domain    string
	Address   string
	Statement string
	URI       string
	Version   string
	ChainID   string
	Nonce     string
	IssuedAt  time.Time
}

// Render produces the ordered line-based text the wallet signs.
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
	return b.String()
}

// ParseMessage parses the line-based block back into a Message.
func ParseMessage(text string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, apperrors.MalformedPayload("message too short")
	}
	if !strings.HasSuffix(lines[0], headerSuffix) {
		return nil, apperrors.MalformedPayload("missing sign-in header")
	}

	msg := &Message{
		Domain:  strings.TrimSuffix(lines[0], headerSuffix),
		Address: strings.TrimSpace(lines[1]),
	}

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
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, apperrors.MalformedPayload("invalid Issued At timestamp")
			}
			msg.IssuedAt = t
		}
	}

	if msg.Domain == "" || msg.Address == "" || msg.Nonce == "" {
		return nil, apperrors.MalformedPayload("missing required fields")
	}
	return msg, nil
}

var fieldPrefixes = []string{
	"URI: ",
	"Version: ",
	"Chain ID: ",
	"Nonce: ",
	"Issued At: ",
}

// isFieldLine reports whether a line starts one of the known fields. The
// statement block ends at the first field line, so a statement sentence that
// happens to contain a colon stays part of the statement.
func isFieldLine(line string) bool {
	for _, p := range fieldPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
