package cosmos

import "github.com/chainsig-go/txfactory/internal/mpcerr"

// ChainParams are the per-chain_id parameters this assembler needs to
// derive addresses, compute fees, and reach a chain's REST endpoint.
type ChainParams struct {
	HRP         string
	NativeDenom string
	RPCURL      string
	RESTURL     string
	GasPrice    float64
	Decimals    int
}

// Registry resolves ChainParams by chain_id. The zero value is an empty
// registry; use NewRegistry or populate the map directly.
type Registry map[string]ChainParams

// NewRegistry constructs a Registry from a chainID -> ChainParams map.
func NewRegistry(chains map[string]ChainParams) Registry {
	return Registry(chains)
}

// Lookup resolves chainID, returning UnsupportedChain if absent or if any
// required field was left unset.
func (r Registry) Lookup(chainID string) (ChainParams, error) {
	params, ok := r[chainID]
	if !ok {
		return ChainParams{}, mpcerr.New(mpcerr.UnsupportedChain, "unknown cosmos chain_id: "+chainID)
	}
	if params.HRP == "" || params.NativeDenom == "" || params.RESTURL == "" || params.GasPrice <= 0 {
		return ChainParams{}, mpcerr.New(mpcerr.UnsupportedChain, "cosmos chain_id "+chainID+" is missing a required registry field")
	}
	return params, nil
}
