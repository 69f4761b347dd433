package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider identifies a chain family. It doubles as the CAIP-2 namespace
// prefix for EVM chains ("eip155") lookup, see CAIP2.
type Provider string

const (
	ProviderEVM    Provider = "evm"
	ProviderSolana Provider = "solana"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderEVM || p == ProviderSolana
}

// Namespace returns the CAIP-2 chain namespace for the provider.
func (p Provider) Namespace() string {
	switch p {
	case ProviderEVM:
		return "eip155"
	case ProviderSolana:
		return "solana"
	}
	return string(p)
}

// User tier constants
const (
	TierFree = "free"
	TierPro  = "pro"
)

// User role constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the minimal identity record owned by this service.
// Users are created on first wallet contact; key ownership is already proven
// by signature verification, so no email confirmation step exists.
type User struct {
	ID        uuid.UUID `json:"id"`
	Tier      string    `json:"tier"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// WalletAccount links a proven on-chain account to a User.
// Unique on (provider, caip10); never deleted by this service.
type WalletAccount struct {
	ID          uuid.UUID `json:"id"`
	Provider    Provider  `json:"provider"`
	CAIP10      string    `json:"caip10"`
	Address     string    `json:"address"`
	ChainID     string    `json:"chain_id"`
	UserID      uuid.UUID `json:"user_id"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity is the result of a successful signature verification: a proven
// (provider, chain, address) triple. Address carries the canonical form
// (lowercase hex for EVM, base58 as supplied for Solana).
type Identity struct {
	Provider Provider `json:"provider"`
	CAIP10   string   `json:"caip10"`
	Address  string   `json:"address"`
	ChainID  string   `json:"chain_id"`
}

// CAIP2 builds a CAIP-2 chain identifier, e.g. "eip155:1" or "solana:101".
func CAIP2(provider Provider, chainID string) string {
	return provider.Namespace() + ":" + chainID
}

// CAIP10 builds a CAIP-10 account identifier, e.g.
// "eip155:1:0xab…" or "solana:101:4Nd1…". EVM addresses are lowercased so
// identical keys never produce two identities differing only in checksum
// casing.
func CAIP10(provider Provider, chainID, address string) string {
	if provider == ProviderEVM {
		address = strings.ToLower(address)
	}
	return fmt.Sprintf("%s:%s:%s", provider.Namespace(), chainID, address)
}

// ParseCAIP10 splits a CAIP-10 identifier into namespace, chain reference
// and address.
func ParseCAIP10(s string) (namespace, chainID, address string, err error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid CAIP-10 identifier: %q", s)
	}
	return parts[0], parts[1], parts[2], nil
}
