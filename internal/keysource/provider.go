// Package keysource handles custody of the session-token signing key. The
// key either arrives as plaintext hex (development) or as an envelope
// encrypted by a key-management backend and decrypted once at boot.
package keysource

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	vault "github.com/hashicorp/vault/api"
)

// Provider decrypts (and, for key rotation tooling, encrypts) the signing
// key envelope.
type Provider interface {
	Encrypt(ctx context.Context, data []byte) ([]byte, error)
	Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error)
	Provider() string
}

// ProviderType names the supported backends.
type ProviderType string

const (
	// ProviderLocal envelopes with a local AES-GCM master key.
	ProviderLocal ProviderType = "local"

	// ProviderAWSKMS envelopes with an AWS KMS key.
	ProviderAWSKMS ProviderType = "aws-kms"

	// ProviderVault envelopes with a HashiCorp Vault Transit key.
	ProviderVault ProviderType = "vault"
)

// Config selects and parameterizes a backend.
type Config struct {
	Provider string

	// local
	LocalMasterKeyHex string

	// aws-kms
	AWSKMSKeyID  string
	AWSKMSRegion string

	// vault
	VaultAddress    string
	VaultToken      string
	VaultTransitKey string
}

// New creates the provider named by cfg.Provider.
func New(cfg *Config) (Provider, error) {
	switch ProviderType(cfg.Provider) {
	case ProviderLocal:
		return NewLocalProvider(cfg.LocalMasterKeyHex)
	case ProviderAWSKMS:
		return NewAWSKMSProvider(cfg.AWSKMSKeyID, cfg.AWSKMSRegion)
	case ProviderVault:
		return NewVaultProvider(cfg.VaultAddress, cfg.VaultToken, cfg.VaultTransitKey)
	default:
		return nil, fmt.Errorf("unknown keysource provider: %q", cfg.Provider)
	}
}

// LocalProvider envelopes with AES-256-GCM under a locally held master key.
// Suitable for development and simple self-hosted deployments.
type LocalProvider struct {
	masterKey []byte
}

// NewLocalProvider creates a local provider from a hex-encoded 32-byte key.
func NewLocalProvider(masterKeyHex string) (*LocalProvider, error) {
	if masterKeyHex == "" {
		return nil, fmt.Errorf("master key is required for local keysource provider")
	}
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return &LocalProvider{masterKey: key}, nil
}

// Encrypt seals data with AES-GCM, prefixing the random nonce.
func (p *LocalProvider) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	gcm, err := p.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// Decrypt opens a nonce-prefixed AES-GCM envelope.
func (p *LocalProvider) Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error) {
	gcm, err := p.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := encryptedData[:nonceSize], encryptedData[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// Provider returns the provider name.
func (p *LocalProvider) Provider() string {
	return string(ProviderLocal)
}

func (p *LocalProvider) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// AWSKMSProvider envelopes with AWS KMS.
type AWSKMSProvider struct {
	keyID  string
	client *kms.Client
}

// NewAWSKMSProvider creates an AWS KMS provider. Credentials come from the
// default chain: env vars, shared config, IAM role.
func NewAWSKMSProvider(keyID, region string) (*AWSKMSProvider, error) {
	if keyID == "" {
		return nil, fmt.Errorf("AWS KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSKMSProvider{
		keyID:  keyID,
		client: kms.NewFromConfig(cfg),
	}, nil
}

// Encrypt encrypts data with the configured KMS key.
func (p *AWSKMSProvider) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	output, err := p.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(p.keyID),
		Plaintext: data,
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS encrypt failed: %w", err)
	}
	return output.CiphertextBlob, nil
}

// Decrypt decrypts a KMS ciphertext blob.
func (p *AWSKMSProvider) Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error) {
	output, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(p.keyID),
		CiphertextBlob: encryptedData,
	})
	if err != nil {
		return nil, fmt.Errorf("AWS KMS decrypt failed: %w", err)
	}
	return output.Plaintext, nil
}

// Provider returns the provider name.
func (p *AWSKMSProvider) Provider() string {
	return string(ProviderAWSKMS)
}

// VaultProvider envelopes with the HashiCorp Vault Transit engine.
type VaultProvider struct {
	transitKey string
	client     *vault.Client
}

// NewVaultProvider creates a Vault Transit provider.
func NewVaultProvider(address, token, transitKey string) (*VaultProvider, error) {
	if address == "" {
		return nil, fmt.Errorf("Vault address is required")
	}
	if token == "" {
		return nil, fmt.Errorf("Vault token is required")
	}
	if transitKey == "" {
		return nil, fmt.Errorf("Vault transit key name is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultProvider{
		transitKey: transitKey,
		client:     client,
	}, nil
}

// Encrypt encrypts data via the Transit engine. Vault expects base64
// plaintext and returns a "vault:v1:" prefixed ciphertext string.
func (p *VaultProvider) Encrypt(ctx context.Context, data []byte) ([]byte, error) {
	path := fmt.Sprintf("transit/encrypt/%s", p.transitKey)
	secret, err := p.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("Vault Transit encrypt failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault Transit encrypt returned empty response")
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("Vault Transit encrypt: ciphertext not found in response")
	}
	return []byte(ciphertext), nil
}

// Decrypt decrypts a Transit ciphertext string.
func (p *VaultProvider) Decrypt(ctx context.Context, encryptedData []byte) ([]byte, error) {
	path := fmt.Sprintf("transit/decrypt/%s", p.transitKey)
	secret, err := p.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"ciphertext": string(encryptedData),
	})
	if err != nil {
		return nil, fmt.Errorf("Vault Transit decrypt failed: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault Transit decrypt returned empty response")
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("Vault Transit decrypt: plaintext not found in response")
	}
	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, fmt.Errorf("Vault Transit decrypt: invalid base64 plaintext: %w", err)
	}
	return plaintext, nil
}

// Provider returns the provider name.
func (p *VaultProvider) Provider() string {
	return string(ProviderVault)
}
