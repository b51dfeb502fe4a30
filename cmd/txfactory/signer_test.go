package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/coordinator"
)

// writeFakeSignerScript writes a minimal shell script implementing the
// ExecSigner helper protocol and returns its path.
func writeFakeSignerScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell helper scripts are posix-only")
	}
	path := filepath.Join(t.TempDir(), "signer.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExecSignerCallViewRoundTrips(t *testing.T) {
	script := writeFakeSignerScript(t, `cat <<'EOF'
"secp256k1:11111111111111111111111111111111111111111111111111"
EOF
`)
	signer := NewExecSigner(script, "secp256k1:stub")

	raw, err := signer.CallView(context.Background(), "public_key", nil)
	require.NoError(t, err)

	var key string
	require.NoError(t, json.Unmarshal(raw, &key))
	assert.Contains(t, key, "secp256k1:")
}

func TestExecSignerSignMetaTransactionParsesDelegate(t *testing.T) {
	script := writeFakeSignerScript(t, `cat <<'EOF'
{"delegate_action":{"actions":[],"nonce":1,"max_block_height":100,"public_key":"secp256k1:stub","receiver_id":"signer.testnet","sender_id":"caller.testnet"},"signature":"ed25519:deadbeef"}
EOF
`)
	signer := NewExecSigner(script, "secp256k1:stub")

	delegate, err := signer.SignMetaTransaction(context.Background(), []coordinator.Action{
		{Method: "sign", Args: json.RawMessage(`{}`), Gas: 1, Deposit: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), delegate.DelegateAction.Nonce)
	assert.Equal(t, "signer.testnet", delegate.DelegateAction.ReceiverID)
}

func TestExecSignerSurfacesHelperFailure(t *testing.T) {
	script := writeFakeSignerScript(t, `echo "contract rejected: insufficient deposit" >&2
exit 1
`)
	signer := NewExecSigner(script, "secp256k1:stub")

	_, err := signer.CallView(context.Background(), "sign", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient deposit")
}

func TestExecSignerPublicKey(t *testing.T) {
	signer := NewExecSigner("/bin/true", "secp256k1:abc")
	assert.Equal(t, "secp256k1:abc", signer.PublicKey())
}
