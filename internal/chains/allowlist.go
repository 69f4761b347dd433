// Package chains holds the static chain allow-list policy. The sets are
// fixed at boot; changing them requires a reconfigure and restart.
package chains

import (
	"strings"

	"github.com/volspike/wallet-auth/pkg/types"
)

// Allowlist is a per-provider set of CAIP-2 chain identifiers.
type Allowlist struct {
	evm    map[string]struct{}
	solana map[string]struct{}
}

// New builds an allowlist from CAIP-2 identifiers ("eip155:1", "solana:101").
// Entries given as bare chain references ("1", "101") are accepted and
// namespaced by position.
func New(evmChains, solanaChains []string) *Allowlist {
	a := &Allowlist{
		evm:    make(map[string]struct{}, len(evmChains)),
		solana: make(map[string]struct{}, len(solanaChains)),
	}
	for _, c := range evmChains {
		a.evm[normalize(types.ProviderEVM, c)] = struct{}{}
	}
	for _, c := range solanaChains {
		a.solana[normalize(types.ProviderSolana, c)] = struct{}{}
	}
	return a
}

// Allowed reports whether the chain is accepted for the given provider.
// chainID is the bare chain reference ("1" for Ethereum mainnet, "101" for
// Solana mainnet).
func (a *Allowlist) Allowed(provider types.Provider, chainID string) bool {
	caip2 := types.CAIP2(provider, strings.TrimSpace(chainID))
	switch provider {
	case types.ProviderEVM:
		_, ok := a.evm[caip2]
		return ok
	case types.ProviderSolana:
		_, ok := a.solana[caip2]
		return ok
	}
	return false
}

func normalize(provider types.Provider, chain string) string {
	chain = strings.TrimSpace(chain)
	if strings.Contains(chain, ":") {
		return chain
	}
	return types.CAIP2(provider, chain)
}
