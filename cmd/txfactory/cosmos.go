package main

import (
	"fmt"

	"github.com/spf13/cobra"

	chaincosmos "github.com/chainsig-go/txfactory/internal/chain/cosmos"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcsign"
)

func newCosmosCommand(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cosmos",
		Short: "Cosmos SDK operations",
	}
	cmd.AddCommand(newCosmosSignSendCommand(state))
	return cmd
}

func newCosmosSignSendCommand(state *rootState) *cobra.Command {
	var (
		chainID         string
		callerID        string
		path            string
		toAddress       string
		amount          string
		memo            string
		relayerURL      string
		proposedDeposit string
		signerCommand   string
		signerPublicKey string
	)

	cmd := &cobra.Command{
		Use:   "sign-send",
		Short: "Derive the sender address, assemble a bank MsgSend, sign it, and broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := state.cfg.CosmosRegistry()
			params, err := registry.Lookup(chainID)
			if err != nil {
				return err
			}

			adapter, err := newAdapter(state, signerCommand, signerPublicKey)
			if err != nil {
				return err
			}
			root, err := fetchRootPublicKey(cmd.Context(), adapter)
			if err != nil {
				return err
			}
			child, err := derive.DeriveChildPublicKey(root, callerID, path)
			if err != nil {
				return err
			}
			fromAddress, err := derive.CosmosBech32Address(child, params.HRP)
			if err != nil {
				return err
			}

			assembler := chaincosmos.NewAssembler(chaincosmos.Config{Registry: registry})

			msg := &chaincosmos.MsgSend{
				To:     toAddress,
				Amount: []chaincosmos.Coin{{Denom: params.NativeDenom, Amount: amount}},
			}

			unsigned, err := assembler.PrepareUnsignedTx(cmd.Context(), chaincosmos.TxRequest{
				ChainID:          chainID,
				Address:          fromAddress,
				CompressedPubKey: child.Compressed(),
				Messages:         []chaincosmos.Message{msg},
				Memo:             memo,
			})
			if err != nil {
				return err
			}

			if relayerURL == "" {
				relayerURL = state.cfg.RelayerURL
			}
			sig, err := newSignClient(adapter).Sign(cmd.Context(), mpcsign.Request{
				Payload:         unsigned.Payloads()[0].Payload,
				Path:            path,
				CallerID:        callerID,
				RelayerURL:      relayerURL,
				ProposedDeposit: proposedDeposit,
				Lifecycle:       &unsigned.Lifecycle,
			})
			if err != nil {
				return err
			}

			txHash, err := assembler.AttachAndBroadcast(cmd.Context(), unsigned, sig)
			if err != nil {
				return err
			}
			fmt.Println(txHash)
			return nil
		},
	}

	cmd.Flags().StringVar(&chainID, "chain-id", "", "registered cosmos chain_id")
	cmd.Flags().StringVar(&callerID, "caller-id", "", "caller identifier used in derivation")
	cmd.Flags().StringVar(&path, "path", "", "derivation path")
	cmd.Flags().StringVar(&toAddress, "to", "", "recipient bech32 address")
	cmd.Flags().StringVar(&amount, "amount", "", "transfer amount in the chain's smallest denom unit")
	cmd.Flags().StringVar(&memo, "memo", "", "transaction memo")
	cmd.Flags().StringVar(&relayerURL, "relayer", "", "relayer URL, overriding the configured default (empty means direct call)")
	cmd.Flags().StringVar(&proposedDeposit, "deposit", "", "proposed signature deposit, overriding the live fee quote")
	addSignerFlags(cmd, &signerCommand, &signerPublicKey)
	cmd.MarkFlagRequired("chain-id")  //nolint:errcheck
	cmd.MarkFlagRequired("caller-id") //nolint:errcheck
	cmd.MarkFlagRequired("path")      //nolint:errcheck
	cmd.MarkFlagRequired("to")        //nolint:errcheck
	cmd.MarkFlagRequired("amount")    //nolint:errcheck

	return cmd
}
