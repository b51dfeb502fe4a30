package evm

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil/base58"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/derive"
)

func testRoot(t *testing.T) (*derive.RootPublicKey, *btcec.PrivateKey) {
	t.Helper()
	priv, pub := btcec.PrivKeyFromBytes([]byte{
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1,
	})
	xy := pub.SerializeUncompressed()[1:]
	naj := "secp256k1:" + base58.Encode(xy)
	root, err := derive.ParseRootPublicKey(naj)
	require.NoError(t, err)
	return root, priv
}

// TestDeriveAndRecoverRoundTrip implements the EVM derive-and-recover
// scenario: derive a child key, sign a 32-byte message with the
// corresponding private scalar (root scalar + epsilon mod n), and confirm
// ecrecover on the resulting RSV signature yields exactly the address
// derived from the child public key.
func TestDeriveAndRecoverRoundTrip(t *testing.T) {
	root, rootPriv := testRoot(t)
	callerID := "alice.testnet"
	path := "m/44'/60'/0'/0/0"

	child, err := derive.DeriveChildPublicKey(root, callerID, path)
	require.NoError(t, err)
	wantAddr := derive.EVMAddressHex(child)

	eps := derive.Epsilon(callerID, path)
	childScalar := new(big.Int).Add(new(big.Int).SetBytes(rootPriv.Serialize()), eps)
	childScalar.Mod(childScalar, btcec.S256().N)
	childScalarBytes := make([]byte, 32)
	childScalar.FillBytes(childScalarBytes)
	childPriv, err := gethcrypto.ToECDSA(childScalarBytes)
	require.NoError(t, err)

	message := [32]byte{}
	for i := range message {
		message[i] = 0x11
	}

	sig, err := gethcrypto.Sign(message[:], childPriv)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recoveredPub, err := gethcrypto.SigToPub(message[:], sig)
	require.NoError(t, err)
	recoveredAddr := gethcrypto.PubkeyToAddress(*recoveredPub).Hex()

	assert.Equal(t, wantAddr, normalizeHex(recoveredAddr))
}

func normalizeHex(s string) string {
	out := make([]byte, len(s))
	for i, c := range []byte(s) {
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}
