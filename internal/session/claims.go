package session

import "github.com/golang-jwt/jwt/v5"

// Audience identifies tokens minted by this service.
const Audience = "walletauth:session"

// Claims are the bearer-token claims issued after a successful login. The
// wallet identity rides alongside the standard claims so downstream services
// can authorize without a user lookup.
type Claims struct {
	jwt.RegisteredClaims
	Address  string `json:"address"`
	Provider string `json:"provider"`
	ChainID  string `json:"chain_id"`
	Tier     string `json:"tier"`
	Role     string `json:"role"`
}
