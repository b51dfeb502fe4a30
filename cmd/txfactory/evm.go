package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chainsig-go/txfactory/internal/chain/evm"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcsign"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

func newEVMCommand(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evm",
		Short: "EVM-family (Ethereum and compatible chains) operations",
	}
	cmd.AddCommand(newEVMSignTransferCommand(state))
	return cmd
}

func newEVMSignTransferCommand(state *rootState) *cobra.Command {
	var (
		chainID         string
		callerID        string
		path            string
		to              string
		valueWei        string
		relayerURL      string
		proposedDeposit string
		signerCommand   string
		signerPublicKey string
	)

	cmd := &cobra.Command{
		Use:   "sign-transfer",
		Short: "Derive the sender address, assemble a native-value transfer, sign it, and broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			chainCfg, ok := state.cfg.EVMChains[chainID]
			if !ok {
				return errors.Errorf("unconfigured evm chain_id %q", chainID)
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
			from := derive.EVMAddress(child)

			value, ok := new(big.Int).SetString(valueWei, 10)
			if !ok {
				return errors.Errorf("invalid --value-wei %q", valueWei)
			}

			assembler := evm.NewAssembler(evm.Config{
				ChainID:     big.NewInt(chainCfg.ChainID),
				RPCEndpoint: chainCfg.RPCEndpoint,
			})

			var toAddr [20]byte
			copy(toAddr[:], common.HexToAddress(to).Bytes())

			unsigned, err := assembler.PrepareUnsignedTx(cmd.Context(), evm.TxRequest{
				From:  from,
				To:    toAddr,
				Value: value,
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
			rsv, err := sigconvert.ToRSV(sig)
			if err != nil {
				return err
			}

			txHash, err := assembler.AttachAndBroadcast(cmd.Context(), unsigned, rsv)
			if err != nil {
				return err
			}
			fmt.Println(txHash)
			return nil
		},
	}

	cmd.Flags().StringVar(&chainID, "chain-id", "", "configured evm_chains key")
	cmd.Flags().StringVar(&callerID, "caller-id", "", "caller identifier used in derivation")
	cmd.Flags().StringVar(&path, "path", "", "derivation path")
	cmd.Flags().StringVar(&to, "to", "", "recipient address (0x...)")
	cmd.Flags().StringVar(&valueWei, "value-wei", "0", "transfer amount in wei")
	cmd.Flags().StringVar(&relayerURL, "relayer", "", "relayer URL, overriding the configured default (empty means direct call)")
	cmd.Flags().StringVar(&proposedDeposit, "deposit", "", "proposed signature deposit, overriding the live fee quote")
	addSignerFlags(cmd, &signerCommand, &signerPublicKey)
	cmd.MarkFlagRequired("chain-id")  //nolint:errcheck
	cmd.MarkFlagRequired("caller-id") //nolint:errcheck
	cmd.MarkFlagRequired("path")      //nolint:errcheck
	cmd.MarkFlagRequired("to")        //nolint:errcheck

	return cmd
}
