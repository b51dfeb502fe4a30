package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chainsig-go/txfactory/internal/mpcsign"
)

// newSignPayloadCommand exposes the raw sign primitive directly, for
// callers that have already assembled their own 32-byte sighash outside
// any chain package here.
func newSignPayloadCommand(state *rootState) *cobra.Command {
	var (
		payloadHex      string
		callerID        string
		path            string
		relayerURL      string
		proposedDeposit string
		signerCommand   string
		signerPublicKey string
	)

	cmd := &cobra.Command{
		Use:   "sign-payload",
		Short: "Sign an arbitrary 32-byte payload via the coordinator-chain MPC signer",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(payloadHex)
			if err != nil {
				return errors.Wrap(err, "invalid --payload hex")
			}
			if len(raw) != 32 {
				return errors.New("--payload must decode to exactly 32 bytes")
			}
			var payload [32]byte
			copy(payload[:], raw)

			adapter, err := newAdapter(state, signerCommand, signerPublicKey)
			if err != nil {
				return err
			}

			if relayerURL == "" {
				relayerURL = state.cfg.RelayerURL
			}
			sig, err := newSignClient(adapter).Sign(cmd.Context(), mpcsign.Request{
				Payload:         payload,
				Path:            path,
				CallerID:        callerID,
				RelayerURL:      relayerURL,
				ProposedDeposit: proposedDeposit,
			})
			if err != nil {
				return err
			}

			out, err := json.Marshal(sig)
			if err != nil {
				return errors.Wrap(err, "failed to marshal signature")
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadHex, "payload", "", "32-byte payload to sign, as hex")
	cmd.Flags().StringVar(&callerID, "caller-id", "", "caller identifier used in derivation")
	cmd.Flags().StringVar(&path, "path", "", "derivation path")
	cmd.Flags().StringVar(&relayerURL, "relayer", "", "relayer URL, overriding the configured default (empty means direct call)")
	cmd.Flags().StringVar(&proposedDeposit, "deposit", "", "proposed signature deposit, overriding the live fee quote")
	addSignerFlags(cmd, &signerCommand, &signerPublicKey)
	cmd.MarkFlagRequired("payload")   //nolint:errcheck
	cmd.MarkFlagRequired("caller-id") //nolint:errcheck
	cmd.MarkFlagRequired("path")      //nolint:errcheck

	return cmd
}
