package coordinator

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

func successValue(json string) string {
	return base64.StdEncoding.EncodeToString([]byte(json))
}

func TestParseReceiptFirstSuccessValueWins(t *testing.T) {
	receipts := []ReceiptOutcome{
		{ID: "r1", Outcome: OutcomeBody{Status: OutcomeStatus{SuccessValue: ""}}},
		{ID: "r2", Outcome: OutcomeBody{Status: OutcomeStatus{SuccessValue: ""}}},
		{
			ID: "r3",
			Outcome: OutcomeBody{Status: OutcomeStatus{
				SuccessValue: successValue(`{"Ok":{"big_r":{"affine_point":"03aabbccdd"},"s":{"scalar":"bb11"},"recovery_id":1}}`),
			}},
		},
		{
			ID: "r4",
			Outcome: OutcomeBody{Status: OutcomeStatus{
				SuccessValue: successValue(`{"Ok":{"big_r":{"affine_point":"029999"},"s":{"scalar":"2222"},"recovery_id":0}}`),
			}},
		},
	}

	raw, err := ParseFirstSuccessValue(receipts)
	require.NoError(t, err)

	sig, err := DecodeMPCSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, "03aabbccdd", sig.BigRAffinePoint)
	assert.Equal(t, "bb11", sig.SScalar)
	assert.Equal(t, byte(1), sig.RecoveryID)
}

func TestParseReceiptNoSuccessValueIsTerminal(t *testing.T) {
	receipts := []ReceiptOutcome{
		{ID: "r1", Outcome: OutcomeBody{Status: OutcomeStatus{SuccessValue: ""}}},
	}

	_, err := ParseFirstSuccessValue(receipts)
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.SignatureUnavailable))
}

func TestParseReceiptSkipsUndecodableEntries(t *testing.T) {
	receipts := []ReceiptOutcome{
		{ID: "r1", Outcome: OutcomeBody{Status: OutcomeStatus{SuccessValue: "not-base64!!"}}},
		{
			ID: "r2",
			Outcome: OutcomeBody{Status: OutcomeStatus{
				SuccessValue: successValue(`{"Ok":{"big_r":{"affine_point":"02aa"},"s":{"scalar":"bb"},"recovery_id":0}}`),
			}},
		},
	}

	raw, err := ParseFirstSuccessValue(receipts)
	require.NoError(t, err)
	sig, err := DecodeMPCSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, "02aa", sig.BigRAffinePoint)
}
