package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds infrastructure-level configuration loaded from the
// environment at boot.
type Config struct {
	// Server
	Port int

	// AuthDomain is the origin host (no scheme, no port) that sign-in
	// messages must be bound to.
	AuthDomain string
	// AuthURI is the canonical URI embedded in prepared sign-in messages.
	AuthURI string
	// AuthStatement is the human-readable statement shown by wallets.
	AuthStatement string

	// Chain allowlists, CAIP-2 identifiers or bare chain references.
	EVMChains    []string
	SolanaChains []string

	// TTLs
	NonceTTL     time.Duration
	HandshakeTTL time.Duration
	SessionTTL   time.Duration

	// Session signing key custody
	SessionSigningKeyHex string
	SessionSigningKeyEnc string
	KeysourceProvider    string
	KeysourceMasterKey   string
	KeysourceAWSKeyID    string
	KeysourceAWSRegion   string
	KeysourceVaultAddr   string
	KeysourceVaultToken  string
	KeysourceVaultKey    string

	// Storage
	PostgresDSN string
	RedisURL    string

	// Deep-link handshake
	WalletAppLinkBase string
	SolanaCluster     string

	// Rate limiting
	RateLimitRPS     int
	RateLimitBurst   int
	RateLimitEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		AuthDomain:           getEnv("AUTH_DOMAIN", ""),
		AuthURI:              getEnv("AUTH_URI", ""),
		AuthStatement:        getEnv("AUTH_STATEMENT", "Sign in to VolSpike"),
		EVMChains:            getEnvList("EVM_CHAINS", []string{"eip155:1", "eip155:8453"}),
		SolanaChains:         getEnvList("SOLANA_CHAINS", []string{"solana:101"}),
		NonceTTL:             getEnvDuration("NONCE_TTL", 5*time.Minute),
		HandshakeTTL:         getEnvDuration("HANDSHAKE_TTL", 10*time.Minute),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionSigningKeyHex: getEnv("SESSION_SIGNING_KEY", ""),
		SessionSigningKeyEnc: getEnv("SESSION_SIGNING_KEY_ENC", ""),
		KeysourceProvider:    getEnv("KEYSOURCE_PROVIDER", "local"),
		KeysourceMasterKey:   getEnv("KEYSOURCE_LOCAL_MASTER_KEY", ""),
		KeysourceAWSKeyID:    getEnv("KEYSOURCE_AWS_KMS_KEY_ID", ""),
		KeysourceAWSRegion:   getEnv("KEYSOURCE_AWS_REGION", ""),
		KeysourceVaultAddr:   getEnv("KEYSOURCE_VAULT_ADDR", ""),
		KeysourceVaultToken:  getEnv("KEYSOURCE_VAULT_TOKEN", ""),
		KeysourceVaultKey:    getEnv("KEYSOURCE_VAULT_TRANSIT_KEY", ""),
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		WalletAppLinkBase:    getEnv("WALLET_APP_LINK_BASE", "https://phantom.app/ul"),
		SolanaCluster:        getEnv("SOLANA_CLUSTER", "mainnet-beta"),
		RateLimitRPS:         getEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       getEnvInt("RATE_LIMIT_BURST", 20),
		RateLimitEnabled:     getEnvBool("RATE_LIMIT_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.AuthDomain == "" {
		return fmt.Errorf("AUTH_DOMAIN is required")
	}
	if strings.Contains(c.AuthDomain, "://") || strings.Contains(c.AuthDomain, ":") {
		return fmt.Errorf("AUTH_DOMAIN must be a bare host, no scheme or port: %s", c.AuthDomain)
	}
	if c.AuthURI == "" {
		c.AuthURI = "https://" + c.AuthDomain
	}

	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	if len(c.EVMChains) == 0 && len(c.SolanaChains) == 0 {
		return fmt.Errorf("at least one of EVM_CHAINS or SOLANA_CHAINS must be set")
	}

	if c.NonceTTL <= 0 || c.HandshakeTTL <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("TTLs must be positive")
	}

	if c.SessionSigningKeyEnc != "" {
		switch c.KeysourceProvider {
		case "local":
			if c.KeysourceMasterKey == "" {
				return fmt.Errorf("KEYSOURCE_LOCAL_MASTER_KEY is required when KEYSOURCE_PROVIDER is 'local'")
			}
		case "aws-kms":
			if c.KeysourceAWSKeyID == "" {
				return fmt.Errorf("KEYSOURCE_AWS_KMS_KEY_ID is required when KEYSOURCE_PROVIDER is 'aws-kms'")
			}
		case "vault":
			if c.KeysourceVaultAddr == "" || c.KeysourceVaultToken == "" || c.KeysourceVaultKey == "" {
				return fmt.Errorf("KEYSOURCE_VAULT_ADDR, KEYSOURCE_VAULT_TOKEN and KEYSOURCE_VAULT_TRANSIT_KEY are required when KEYSOURCE_PROVIDER is 'vault'")
			}
		default:
			return fmt.Errorf("KEYSOURCE_PROVIDER must be 'local', 'aws-kms' or 'vault', got: %s", c.KeysourceProvider)
		}
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvDuration gets a duration environment variable ("5m", "24h") with a
// default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList gets a comma-separated environment variable with a default value
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
