package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/derive"
)

const sampleTOML = `
coordinator_network = "testnet"
signer_contract_id = "v1.signer.testnet"
coordinator_rpc_url = "https://rpc.testnet.example"
relayer_url = "https://relayer.testnet.example"

[logger]
pretty_print_console = true
level = "info"

[bitcoin]
provider_url = "https://blockstream.info/testnet/api"
network = "testnet"

[evm_chains.sepolia]
chain_id = 11155111
rpc_endpoint = "https://sepolia.example/rpc"

[cosmos_chains.cosmoshub-4]
hrp = "cosmos"
native_denom = "uatom"
rpc_url = "https://rpc.cosmos.example"
rest_url = "https://rest.cosmos.example"
gas_price = 0.025
decimals = 6
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Testnet, cfg.CoordinatorNetwork)
	assert.Equal(t, "v1.signer.testnet", cfg.SignerContractID)
	assert.True(t, cfg.Logger.PrettyPrintConsole)
	assert.Equal(t, "https://blockstream.info/testnet/api", cfg.Bitcoin.ProviderURL)
	assert.Equal(t, derive.BitcoinTestnet, cfg.Bitcoin.BitcoinNetwork())

	sepolia, ok := cfg.EVMChains["sepolia"]
	require.True(t, ok)
	assert.EqualValues(t, 11155111, sepolia.ChainID)

	registry := cfg.CosmosRegistry()
	params, err := registry.Lookup("cosmoshub-4")
	require.NoError(t, err)
	assert.Equal(t, "cosmos", params.HRP)
	assert.Equal(t, 0.025, params.GasPrice)
}

func TestLoadRejectsMissingSignerContractID(t *testing.T) {
	path := writeTempConfig(t, `coordinator_network = "testnet"`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidCoordinatorNetwork(t *testing.T) {
	path := writeTempConfig(t, `
coordinator_network = "devnet"
signer_contract_id = "v1.signer.testnet"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadOverlaysEnvironmentOverride(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)
	t.Setenv("TXFACTORY_RELAYER_URL", "https://relayer.override.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://relayer.override.example", cfg.RelayerURL)
}
