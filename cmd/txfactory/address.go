package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chainsig-go/txfactory/internal/chain/bitcoin"
	"github.com/chainsig-go/txfactory/internal/chain/cosmos"
	"github.com/chainsig-go/txfactory/internal/chain/evm"
	"github.com/pkg/errors"
)

func newAddressCommand(state *rootState) *cobra.Command {
	var (
		family          string
		callerID        string
		path            string
		cosmosChainID   string
		signerCommand   string
		signerPublicKey string
	)

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive the per-(caller,path) address for a chain family",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := newAdapter(state, signerCommand, signerPublicKey)
			if err != nil {
				return err
			}
			root, err := fetchRootPublicKey(cmd.Context(), adapter)
			if err != nil {
				return err
			}

			var address string
			switch family {
			case "evm":
				address, err = evm.DeriveAddress(root, callerID, path)
			case "bitcoin":
				address, err = bitcoin.DeriveAddress(root, state.cfg.Bitcoin.BitcoinNetwork(), callerID, path)
			case "cosmos":
				if cosmosChainID == "" {
					return errors.New("--cosmos-chain-id is required when --chain=cosmos")
				}
				address, err = cosmos.DeriveAddress(root, state.cfg.CosmosRegistry(), callerID, path, cosmosChainID)
			default:
				return errors.Errorf("unknown --chain %q, must be evm, bitcoin, or cosmos", family)
			}
			if err != nil {
				return err
			}

			fmt.Println(address)
			return nil
		},
	}

	cmd.Flags().StringVar(&family, "chain", "", "chain family: evm, bitcoin, or cosmos")
	cmd.Flags().StringVar(&callerID, "caller-id", "", "caller identifier used in derivation")
	cmd.Flags().StringVar(&path, "path", "", "derivation path")
	cmd.Flags().StringVar(&cosmosChainID, "cosmos-chain-id", "", "registered cosmos chain_id (only for --chain=cosmos)")
	addSignerFlags(cmd, &signerCommand, &signerPublicKey)
	cmd.MarkFlagRequired("chain")     //nolint:errcheck // cobra reports this at parse time.
	cmd.MarkFlagRequired("caller-id") //nolint:errcheck
	cmd.MarkFlagRequired("path")      //nolint:errcheck

	return cmd
}
