package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNoSideChannelOutsideConfigAndCLI asserts spec.md §8's "no side
// channel" invariant: no package under internal/ other than this one
// reads os.Getenv, os.LookupEnv, or viper directly. cmd/txfactory is the
// other permitted caller but lives outside internal/ entirely, so this
// walk doesn't need to special-case it.
func TestNoSideChannelOutsideConfigAndCLI(t *testing.T) {
	root := ".." // internal/

	forbidden := []string{"os.Getenv(", "os.LookupEnv(", "viper."}

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		if strings.Contains(path, string(filepath.Separator)+"config"+string(filepath.Separator)) {
			return nil // this package is the one permitted exception
		}

		contents, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		for _, needle := range forbidden {
			assert.NotContains(t, string(contents), needle, "%s must not touch process environment directly", path)
		}
		return nil
	})
	require.NoError(t, err)
}
