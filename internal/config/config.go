// Package config loads the caller-provided configuration object named in
// spec.md §6: coordinator network, signer contract ID, relayer URL,
// per-chain provider/network parameters, and the Cosmos chain registry.
// This package and cmd/txfactory are the only code in this module
// permitted to touch process environment or the filesystem directly,
// every other package receives already-parsed Go values.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/chainsig-go/txfactory/internal/chain/cosmos"
	"github.com/chainsig-go/txfactory/internal/derive"
)

// CoordinatorNetwork selects which coordinator-chain environment to talk
// to.
type CoordinatorNetwork string

const (
	Mainnet CoordinatorNetwork = "mainnet"
	Testnet CoordinatorNetwork = "testnet"
)

// LoggerConfig controls process-level logging setup, matching the
// teacher's command.Config.Logger knob.
type LoggerConfig struct {
	PrettyPrintConsole bool   `toml:"pretty_print_console"`
	Level              string `toml:"level"`
}

// EVMChainConfig is one entry of the evm_chains table.
type EVMChainConfig struct {
	ChainID     int64  `toml:"chain_id"`
	RPCEndpoint string `toml:"rpc_endpoint"`
}

// BitcoinConfig holds the single Bitcoin provider this library is
// configured against.
type BitcoinConfig struct {
	ProviderURL string `toml:"provider_url"`
	Network     string `toml:"network"` // "mainnet", "testnet", "regtest"
}

// CosmosChainConfig is one entry of the cosmos_chains table, keyed by
// chain_id in the parsed Config.
type CosmosChainConfig struct {
	HRP         string  `toml:"hrp"`
	NativeDenom string  `toml:"native_denom"`
	RPCURL      string  `toml:"rpc_url"`
	RESTURL     string  `toml:"rest_url"`
	GasPrice    float64 `toml:"gas_price"`
	Decimals    int     `toml:"decimals"`
}

// Config is the fully parsed, environment-independent configuration this
// module needs to run.
type Config struct {
	CoordinatorNetwork CoordinatorNetwork           `toml:"coordinator_network"`
	SignerContractID   string                       `toml:"signer_contract_id"`
	CoordinatorRPCURL  string                       `toml:"coordinator_rpc_url"`
	RelayerURL         string                       `toml:"relayer_url"`
	Logger             LoggerConfig                 `toml:"logger"`
	EVMChains          map[string]EVMChainConfig    `toml:"evm_chains"`
	Bitcoin            BitcoinConfig                `toml:"bitcoin"`
	CosmosChains       map[string]CosmosChainConfig `toml:"cosmos_chains"`
}

// BitcoinNetwork maps the configured network string to derive.BitcoinNetwork.
func (c BitcoinConfig) BitcoinNetwork() derive.BitcoinNetwork {
	switch c.Network {
	case "testnet":
		return derive.BitcoinTestnet
	case "regtest":
		return derive.BitcoinRegtest
	default:
		return derive.BitcoinMainnet
	}
}

// CosmosRegistry builds a cosmos.Registry from the configured chain table.
func (c Config) CosmosRegistry() cosmos.Registry {
	params := make(map[string]cosmos.ChainParams, len(c.CosmosChains))
	for chainID, chainCfg := range c.CosmosChains {
		params[chainID] = cosmos.ChainParams{
			HRP:         chainCfg.HRP,
			NativeDenom: chainCfg.NativeDenom,
			RPCURL:      chainCfg.RPCURL,
			RESTURL:     chainCfg.RESTURL,
			GasPrice:    chainCfg.GasPrice,
			Decimals:    chainCfg.Decimals,
		}
	}
	return cosmos.NewRegistry(params)
}

// envPrefix is the prefix viper binds environment overrides under, e.g.
// TXFACTORY_RELAYER_URL overrides relayer_url.
const envPrefix = "TXFACTORY"

// Load reads path as TOML into a Config, then overlays any matching
// TXFACTORY_* environment variables via viper. path must name a file on
// disk; there is no implicit search path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode config file %q", path)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if override := v.GetString("RELAYER_URL"); override != "" {
		cfg.RelayerURL = override
	}
	if override := v.GetString("SIGNER_CONTRACT_ID"); override != "" {
		cfg.SignerContractID = override
	}
	if override := v.GetString("COORDINATOR_RPC_URL"); override != "" {
		cfg.CoordinatorRPCURL = override
	}
	if override := v.GetString("COORDINATOR_NETWORK"); override != "" {
		cfg.CoordinatorNetwork = CoordinatorNetwork(override)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.CoordinatorNetwork {
	case Mainnet, Testnet:
	default:
		return errors.Errorf("coordinator_network must be %q or %q, got %q", Mainnet, Testnet, c.CoordinatorNetwork)
	}
	if c.SignerContractID == "" {
		return errors.New("signer_contract_id must not be empty")
	}
	return nil
}
