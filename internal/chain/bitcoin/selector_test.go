package bitcoin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

func TestLargestFirstAddsChangeWhenFeasible(t *testing.T) {
	utxos := []UTXO{
		{TxID: "a", Vout: 0, Value: 100_000},
		{TxID: "b", Vout: 0, Value: 50_000},
	}
	outputs := []Output{{Address: "dest", ValueSats: 60_000}}

	result, err := LargestFirstSelector{}.Select(utxos, outputs, 10, "change")
	require.NoError(t, err)

	require.Len(t, result.Inputs, 1)
	assert.Equal(t, int64(100_000), result.Inputs[0].Value)
	require.Len(t, result.Outputs, 2)
	assert.Equal(t, "change", result.Outputs[1].Address)
	assert.Equal(t, result.Inputs[0].Value-outputs[0].ValueSats-result.FeeSats, result.Outputs[1].ValueSats)
}

func TestLargestFirstOmitsDustChange(t *testing.T) {
	utxos := []UTXO{{TxID: "a", Vout: 0, Value: 60_150}}
	outputs := []Output{{Address: "dest", ValueSats: 60_000}}

	result, err := LargestFirstSelector{}.Select(utxos, outputs, 1, "change")
	require.NoError(t, err)

	require.Len(t, result.Outputs, 1, "change below the dust limit must not produce a second output")
}

func TestLargestFirstFailsInsufficientFunds(t *testing.T) {
	utxos := []UTXO{{TxID: "a", Vout: 0, Value: 1_000}}
	outputs := []Output{{Address: "dest", ValueSats: 60_000}}

	_, err := LargestFirstSelector{}.Select(utxos, outputs, 10, "change")
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.InsufficientFunds))
}

func TestBranchAndBoundLiteFindsChangelessMatch(t *testing.T) {
	utxos := []UTXO{
		{TxID: "a", Vout: 0, Value: 30_000},
		{TxID: "b", Vout: 0, Value: 31_000},
		{TxID: "c", Vout: 0, Value: 9_000_000},
	}
	outputs := []Output{{Address: "dest", ValueSats: 60_000}}

	result, err := BranchAndBoundLiteSelector{}.Select(utxos, outputs, 5, "change")
	require.NoError(t, err)

	require.Len(t, result.Outputs, 1, "an exact match should not add a change output")
	var total int64
	for _, in := range result.Inputs {
		total += in.Value
	}
	assert.Less(t, total-outputs[0].ValueSats-result.FeeSats, DustLimit)
	assert.GreaterOrEqual(t, total-outputs[0].ValueSats, result.FeeSats)
}

func TestBranchAndBoundLiteFallsBackToLargestFirst(t *testing.T) {
	utxos := []UTXO{
		{TxID: "a", Vout: 0, Value: 5_000},
		{TxID: "b", Vout: 0, Value: 200_000},
	}
	outputs := []Output{{Address: "dest", ValueSats: 60_000}}

	result, err := BranchAndBoundLiteSelector{}.Select(utxos, outputs, 10, "change")
	require.NoError(t, err)
	require.Len(t, result.Inputs, 1)
	assert.Equal(t, int64(200_000), result.Inputs[0].Value)
}
