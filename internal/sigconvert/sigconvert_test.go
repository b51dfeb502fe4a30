package sigconvert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertSignatureExampleToRSVAndRaw64(t *testing.T) {
	// A representative MPCSignature literal in the contract's wire shape.
	sig := MPCSignature{
		BigRAffinePoint: "03aa" + repeat("11", 31),
		SScalar:         repeat("bb", 32),
		RecoveryID:      1,
	}

	rsv, err := ToRSV(sig)
	require.NoError(t, err)
	assert.Equal(t, byte(1), rsv.V)
	assert.Len(t, rsv.Bytes65(), 65)

	raw64, err := ToRaw64(sig)
	require.NoError(t, err)
	assert.Len(t, raw64.Bytes64(), 64)

	assert.Equal(t, rsv.R, raw64.R)
	assert.Equal(t, rsv.S, raw64.S)
}

func TestToRSVRejectsBadRecoveryID(t *testing.T) {
	sig := MPCSignature{
		BigRAffinePoint: "02" + repeat("11", 32),
		SScalar:         repeat("22", 32),
		RecoveryID:      2,
	}
	_, err := ToRSV(sig)
	require.Error(t, err)
}

func TestDecomposeRSRejectsShortPoint(t *testing.T) {
	sig := MPCSignature{
		BigRAffinePoint: "0211",
		SScalar:         repeat("22", 32),
	}
	_, err := ToRaw64(sig)
	require.Error(t, err)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
