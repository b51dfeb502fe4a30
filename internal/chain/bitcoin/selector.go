package bitcoin

import (
	"sort"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// DustLimit is the minimum value a P2WPKH output may carry. Below this a
// change output is dropped rather than created, per the caller-deferred
// dust policy named by the selector's contract.
const DustLimit int64 = 546

const (
	inputVBytes    = 68 // P2WPKH input: outpoint + sequence + witness
	outputVBytes   = 31 // P2WPKH output
	overheadVBytes = 11 // version + locktime + segwit marker/flag + varints
)

// Output is a single transaction output: destination address and value.
type Output struct {
	Address   string
	ValueSats int64
}

// SelectionResult is the outcome of a coin-selection pass: the inputs
// consumed, the final output set (including change, if one was added),
// and the fee paid.
type SelectionResult struct {
	Inputs  []UTXO
	Outputs []Output
	FeeSats int64
}

// Selector picks a UTXO subset covering outputs plus fees at feeRate
// (sat/vB), optionally appending a change output paying changeAddress.
type Selector interface {
	Select(utxos []UTXO, outputs []Output, feeRateSatPerVByte int64, changeAddress string) (SelectionResult, error)
}

func estimateVBytes(numInputs, numOutputs int) int64 {
	return overheadVBytes + int64(numInputs)*inputVBytes + int64(numOutputs)*outputVBytes
}

func sumOutputs(outputs []Output) int64 {
	var total int64
	for _, o := range outputs {
		total += o.ValueSats
	}
	return total
}

// LargestFirstSelector accumulates UTXOs from largest to smallest until the
// target amount plus estimated fee is covered.
type LargestFirstSelector struct{}

func (LargestFirstSelector) Select(utxos []UTXO, outputs []Output, feeRate int64, changeAddress string) (SelectionResult, error) {
	sorted := append([]UTXO(nil), utxos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	target := sumOutputs(outputs)

	var chosen []UTXO
	var total int64
	for _, u := range sorted {
		chosen = append(chosen, u)
		total += u.Value

		feeNoChange := feeRate * estimateVBytes(len(chosen), len(outputs))
		if total >= target+feeNoChange {
			feeWithChange := feeRate * estimateVBytes(len(chosen), len(outputs)+1)
			change := total - target - feeWithChange
			if change >= DustLimit && changeAddress != "" {
				return SelectionResult{
					Inputs:  chosen,
					Outputs: append(append([]Output(nil), outputs...), Output{Address: changeAddress, ValueSats: change}),
					FeeSats: feeWithChange,
				}, nil
			}
			return SelectionResult{
				Inputs:  chosen,
				Outputs: outputs,
				FeeSats: total - target,
			}, nil
		}
	}
	return SelectionResult{}, mpcerr.New(mpcerr.InsufficientFunds, "no feasible coin selection covers the requested outputs and fee")
}

// BranchAndBoundLiteSelector tries every subset up to a small bound in
// search of an exact (changeless) match before falling back to
// LargestFirstSelector. It is "lite" because it does not implement the
// full Bitcoin Core waste-metric branch-and-bound search, only an
// exhaustive search over small UTXO sets, which is the case this protocol
// actually exercises (a handful of UTXOs per caller address).
type BranchAndBoundLiteSelector struct {
	// MaxSubsetSize is the largest UTXO count the exhaustive search runs
	// on; above it Select goes straight to largest-first. 0 means a
	// default of 20.
	MaxSubsetSize int
}

func (s BranchAndBoundLiteSelector) Select(utxos []UTXO, outputs []Output, feeRate int64, changeAddress string) (SelectionResult, error) {
	bound := s.MaxSubsetSize
	if bound == 0 {
		bound = 20
	}
	target := sumOutputs(outputs)

	if len(utxos) <= bound {
		if best, ok := exactSubset(utxos, target, feeRate, len(outputs)); ok {
			return SelectionResult{Inputs: best, Outputs: outputs, FeeSats: sumValues(best) - target}, nil
		}
	}
	return LargestFirstSelector{}.Select(utxos, outputs, feeRate, changeAddress)
}

func sumValues(utxos []UTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// exactSubset searches for the subset with the smallest surplus whose value
// lands within [target+fee, target+fee+DustLimit), i.e. a changeless match.
func exactSubset(utxos []UTXO, target, feeRate int64, numOutputs int) ([]UTXO, bool) {
	sorted := append([]UTXO(nil), utxos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var best []UTXO
	var bestSurplus int64 = -1

	var walk func(start int, chosen []UTXO, total int64)
	walk = func(start int, chosen []UTXO, total int64) {
		if len(chosen) > 0 {
			fee := feeRate * estimateVBytes(len(chosen), numOutputs)
			need := target + fee
			if total >= need && total-need < DustLimit {
				surplus := total - need
				if bestSurplus == -1 || surplus < bestSurplus {
					best = append([]UTXO(nil), chosen...)
					bestSurplus = surplus
				}
			}
		}
		if start >= len(sorted) {
			return
		}
		for i := start; i < len(sorted); i++ {
			walk(i+1, append(chosen, sorted[i]), total+sorted[i].Value)
		}
	}
	walk(0, nil, 0)

	return best, best != nil
}
