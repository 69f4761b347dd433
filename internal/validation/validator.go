package validation

import (
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/volspike/wallet-auth/pkg/types"
)

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// chainIDPattern matches a bare CAIP-2 chain reference.
var chainIDPattern = regexp.MustCompile(`^[0-9a-zA-Z]{1,32}$`)

// ValidateEthereumAddress validates an Ethereum address format
func ValidateEthereumAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !EthereumAddressPattern.MatchString(address) {
		return fmt.Errorf("invalid Ethereum address format: must be 0x followed by 40 hex characters")
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid Ethereum address")
	}
	return nil
}

// ValidateSolanaAddress validates a base58-encoded Ed25519 public key.
func ValidateSolanaAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid Solana address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("invalid Solana address: expected 32-byte public key, got %d bytes", len(decoded))
	}
	return nil
}

// ValidateAddress dispatches on the chain family.
func ValidateAddress(family types.Provider, address string) error {
	switch family {
	case types.ProviderEVM:
		return ValidateEthereumAddress(address)
	case types.ProviderSolana:
		return ValidateSolanaAddress(address)
	default:
		return fmt.Errorf("unknown chain family: %q", family)
	}
}

// ValidateChainID validates a bare chain reference ("1", "8453", "101").
func ValidateChainID(chainID string) error {
	if chainID == "" {
		return fmt.Errorf("chain ID cannot be empty")
	}
	if !chainIDPattern.MatchString(chainID) {
		return fmt.Errorf("invalid chain ID format: %q", chainID)
	}
	return nil
}
