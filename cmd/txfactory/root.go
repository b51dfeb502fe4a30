package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chainsig-go/txfactory/internal/config"
)

// rootState holds the flags and lazily-loaded config shared by every
// subcommand.
type rootState struct {
	configPath string
	jsonLogs   bool
	verbose    bool
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	state := &rootState{}

	root := &cobra.Command{
		Use:           "txfactory",
		Short:         "Derive addresses and sign/broadcast transactions via the coordinator-chain MPC signer",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(state)
			cfg, err := config.Load(state.configPath)
			if err != nil {
				return err
			}
			state.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "txfactory.toml", "path to the TOML configuration file")
	root.PersistentFlags().BoolVar(&state.jsonLogs, "json-logs", false, "emit structured JSON logs instead of a pretty console writer")
	root.PersistentFlags().BoolVar(&state.verbose, "verbose", false, "enable debug-level logging")

	root.AddCommand(
		newAddressCommand(state),
		newEVMCommand(state),
		newBitcoinCommand(state),
		newCosmosCommand(state),
		newSignPayloadCommand(state),
	)
	return root
}

// setupLogging mirrors the teacher's PrettyPrintConsole knob: a
// zerolog.ConsoleWriter by default, plain JSON when --json-logs is set.
func setupLogging(state *rootState) {
	level := zerolog.InfoLevel
	if state.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if state.jsonLogs {
		log.Logger = log.Output(os.Stderr)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
