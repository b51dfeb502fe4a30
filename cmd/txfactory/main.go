// Command txfactory is a cobra CLI front end over the core library:
// address derivation, per-chain transaction assembly, MPC signing, and
// broadcast, driven from the shell rather than an HTTP server.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("txfactory command failed")
		os.Exit(1)
	}
}
