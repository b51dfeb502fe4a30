package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chainsig-go/txfactory/internal/coordinator"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcsign"
)

// signerCommand and signerPublicKey are registered as local flags on each
// subcommand that talks to the signer contract, rather than on the root
// command. Every such subcommand, address derivation included, fetches the
// root key through newAdapter and so requires both flags.
func addSignerFlags(cmd *cobra.Command, command, publicKey *string) {
	cmd.Flags().StringVar(command, "signer-command", "", "path to an external helper program implementing the coordinator Signer protocol")
	cmd.Flags().StringVar(publicKey, "signer-public-key", "", "NAJ-encoded public key the signer helper signs with")
}

func newAdapter(state *rootState, signerCommand, signerPublicKey string) (coordinator.Adapter, error) {
	if signerCommand == "" || signerPublicKey == "" {
		return nil, errors.New("--signer-command and --signer-public-key are required for this subcommand")
	}
	signer := NewExecSigner(signerCommand, signerPublicKey)
	return coordinator.NewHTTPAdapter(coordinator.Config{
		ContractID:  state.cfg.SignerContractID,
		ProviderURL: state.cfg.CoordinatorRPCURL,
		RelayerURL:  state.cfg.RelayerURL,
	}, signer), nil
}

// fetchRootPublicKey resolves the network-wide root public key via the
// signer contract's public_key view call, which needs no Signer identity
// beyond whatever CallView transport the helper program provides.
func fetchRootPublicKey(ctx context.Context, adapter coordinator.Adapter) (*derive.RootPublicKey, error) {
	naj, err := adapter.GetRootPublicKey(ctx)
	if err != nil {
		return nil, err
	}
	return derive.ParseRootPublicKey(naj)
}

func newSignClient(adapter coordinator.Adapter) *mpcsign.Client {
	return mpcsign.NewClient(adapter)
}
