package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewRootCommandRegistersEverySubcommand(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	assert.ElementsMatch(t, []string{"address", "evm", "btc", "cosmos", "sign-payload"}, names)
}

func TestSetupLoggingRespectsVerboseFlag(t *testing.T) {
	state := &rootState{verbose: true}
	assert.NotPanics(t, func() { setupLogging(state) })
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
