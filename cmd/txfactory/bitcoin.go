package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chainsig-go/txfactory/internal/chain/bitcoin"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcsign"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

func newBitcoinCommand(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "btc",
		Short: "Bitcoin P2WPKH operations",
	}
	cmd.AddCommand(newBitcoinSignTransferCommand(state))
	return cmd
}

func newBitcoinSignTransferCommand(state *rootState) *cobra.Command {
	var (
		callerID        string
		path            string
		toAddress       string
		amountSats      int64
		relayerURL      string
		proposedDeposit string
		signerCommand   string
		signerPublicKey string
	)

	cmd := &cobra.Command{
		Use:   "sign-transfer",
		Short: "Derive the sender address, assemble a P2WPKH transfer, sign each input, and broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			network := state.cfg.Bitcoin.BitcoinNetwork()

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
			fromPubKey := child.Compressed()
			fromAddress, err := derive.BitcoinP2WPKHAddress(child, network)
			if err != nil {
				return err
			}

			assembler := bitcoin.NewAssembler(bitcoin.Config{
				Network:     network,
				ProviderURL: state.cfg.Bitcoin.ProviderURL,
			})

			unsigned, err := assembler.PrepareUnsignedTx(cmd.Context(), bitcoin.TxRequest{
				FromAddress: fromAddress,
				FromPubKey:  fromPubKey,
				Outputs:     []bitcoin.Output{{Address: toAddress, ValueSats: amountSats}},
			})
			if err != nil {
				return err
			}

			if relayerURL == "" {
				relayerURL = state.cfg.RelayerURL
			}
			signClient := newSignClient(adapter)
			payloads := unsigned.Payloads()
			sigs := make([]sigconvert.MPCSignature, len(payloads))
			for _, payload := range payloads {
				sig, err := signClient.Sign(cmd.Context(), mpcsign.Request{
					Payload:         payload.Payload,
					Path:            path,
					CallerID:        callerID,
					RelayerURL:      relayerURL,
					ProposedDeposit: proposedDeposit,
					Lifecycle:       &unsigned.Lifecycle,
				})
				if err != nil {
					return err
				}
				sigs[payload.Index] = sig
			}

			txid, err := assembler.AttachAndBroadcast(cmd.Context(), unsigned, sigs)
			if err != nil {
				return err
			}
			fmt.Println(txid)
			return nil
		},
	}

	cmd.Flags().StringVar(&callerID, "caller-id", "", "caller identifier used in derivation")
	cmd.Flags().StringVar(&path, "path", "", "derivation path")
	cmd.Flags().StringVar(&toAddress, "to", "", "recipient bech32 address")
	cmd.Flags().Int64Var(&amountSats, "amount-sats", 0, "transfer amount in satoshis")
	cmd.Flags().StringVar(&relayerURL, "relayer", "", "relayer URL, overriding the configured default (empty means direct call)")
	cmd.Flags().StringVar(&proposedDeposit, "deposit", "", "proposed signature deposit, overriding the live fee quote")
	addSignerFlags(cmd, &signerCommand, &signerPublicKey)
	cmd.MarkFlagRequired("caller-id")   //nolint:errcheck
	cmd.MarkFlagRequired("path")        //nolint:errcheck
	cmd.MarkFlagRequired("to")          //nolint:errcheck
	cmd.MarkFlagRequired("amount-sats") //nolint:errcheck

	return cmd
}
