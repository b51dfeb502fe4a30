// Package bitcoin implements the Bitcoin P2WPKH transaction assembler:
// UTXO selection, PSBT assembly, BIP-143 sighash extraction, witness
// attachment, and broadcast.
//
// Address generation is adapted from internal/mpc/chain/bitcoin.go, which
// built P2PKH/base58 addresses; this package generalizes that to
// P2WPKH/bech32 via internal/derive.BitcoinP2WPKHAddress and
// github.com/btcsuite/btcd/btcutil's witness address/script helpers.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/rs/zerolog/log"

	"github.com/chainsig-go/txfactory/internal/chain"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcerr"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

// defaultConfirmationTarget is the confirmation target used for the fee
// recommendation lookup when the caller does not override it.
const defaultConfirmationTarget = 6

// sequenceRBF is the nSequence value used on every input, signaling
// opt-in replace-by-fee per BIP-125 without disabling locktime.
const sequenceRBF = 0xfffffffd

// Config holds the network and provider parameters this assembler needs.
type Config struct {
	Network     derive.BitcoinNetwork
	ProviderURL string
	Selector    Selector // nil means LargestFirstSelector
}

func (c Config) params() *chaincfg.Params {
	switch c.Network {
	case derive.BitcoinTestnet:
		return &chaincfg.TestNet3Params
	case derive.BitcoinRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func (c Config) selector() Selector {
	if c.Selector != nil {
		return c.Selector
	}
	return LargestFirstSelector{}
}

// Assembler builds and broadcasts Bitcoin P2WPKH transactions signed by
// the coordinator-chain MPC signer.
type Assembler struct {
	cfg      Config
	provider Provider
}

// NewAssembler constructs an Assembler. With an empty ProviderURL the
// Assembler has no provider: caller-supplied inputs/outputs skip coin
// selection, but PrepareUnsignedTx still looks up each input's previous
// output through the provider, so it and AttachAndBroadcast fail with
// ConfigInvalid.
func NewAssembler(cfg Config) *Assembler {
	var provider Provider
	if cfg.ProviderURL != "" {
		provider = NewHTTPProvider(cfg.ProviderURL)
	}
	return &Assembler{cfg: cfg, provider: provider}
}

// DeriveAddress derives the P2WPKH bech32 address for (callerID, path)
// from root.
func DeriveAddress(root *derive.RootPublicKey, network derive.BitcoinNetwork, callerID, path string) (string, error) {
	child, err := derive.DeriveChildPublicKey(root, callerID, path)
	if err != nil {
		return "", err
	}
	return derive.BitcoinP2WPKHAddress(child, network)
}

// TxRequest describes a Bitcoin transfer to assemble. If Inputs and
// Outputs are both non-empty, UTXO selection is skipped entirely and the
// caller-supplied set is used verbatim.
type TxRequest struct {
	FromAddress        string
	FromPubKey         [33]byte
	ChangeAddress      string // defaults to FromAddress when empty
	Outputs            []Output
	Inputs             []UTXO
	ConfirmationTarget int // 0 means defaultConfirmationTarget
	FeeRateSatPerVByte *int64 // overrides the provider's recommendation
}

// UnsignedTx wraps the assembled PSBT packet and the per-input
// MPCPayloads the MPC must sign.
type UnsignedTx struct {
	chain.Lifecycle
	packet     *psbt.Packet
	fromPubKey [33]byte
	fee        int64
	payloads   []chain.MPCPayload
}

// ChainFamily implements chain.UnsignedTx.
func (u *UnsignedTx) ChainFamily() string { return "bitcoin" }

// Payloads implements chain.UnsignedTx.
func (u *UnsignedTx) Payloads() []chain.MPCPayload { return u.payloads }

// FeeSats reports the fee paid by the assembled transaction, for caller
// display.
func (u *UnsignedTx) FeeSats() int64 { return u.fee }

// PrepareUnsignedTx runs UTXO selection (unless the caller supplied a
// fixed input/output set), assembles the unsigned transaction, and
// computes the BIP-143 sighash each input requires using the caller's
// actual compressed pubkey and each input's prevout amount.
func (a *Assembler) PrepareUnsignedTx(ctx context.Context, req TxRequest) (*UnsignedTx, error) {
	inputs, outputs, fee, err := a.selectCoins(ctx, req)
	if err != nil {
		return nil, err
	}

	prevOuts := make([]*wire.TxOut, len(inputs))
	tx := wire.NewMsgTx(2)

	for i, in := range inputs {
		txHash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid utxo txid")
		}
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: *txHash, Index: in.Vout},
			Sequence:         sequenceRBF,
		})

		prevOut, err := a.fetchPrevOut(ctx, in)
		if err != nil {
			return nil, err
		}
		prevOuts[i] = prevOut
	}

	for _, out := range outputs {
		pkScript, err := addressScript(out.Address, a.cfg.params())
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(&wire.TxOut{Value: out.ValueSats, PkScript: pkScript})
	}

	payloads, err := sighashesForInputs(tx, prevOuts, req.FromPubKey)
	if err != nil {
		return nil, err
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to build PSBT packet")
	}
	for i, prevOut := range prevOuts {
		packet.Inputs[i].WitnessUtxo = prevOut
		packet.Inputs[i].SighashType = txscript.SigHashAll
	}

	log.Debug().Int("inputs", len(inputs)).Int("outputs", len(outputs)).Int64("fee_sats", fee).Msg("prepared bitcoin unsigned transaction")

	unsigned := &UnsignedTx{
		packet:     packet,
		fromPubKey: req.FromPubKey,
		fee:        fee,
		payloads:   payloads,
	}
	if err := unsigned.MarkPayloadExtracted(); err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after payload extraction")
	}
	return unsigned, nil
}

func (a *Assembler) selectCoins(ctx context.Context, req TxRequest) (inputs []UTXO, outputs []Output, fee int64, err error) {
	if len(req.Inputs) > 0 && len(req.Outputs) > 0 {
		return req.Inputs, req.Outputs, 0, nil
	}
	if a.provider == nil {
		return nil, nil, 0, mpcerr.New(mpcerr.ConfigInvalid, "no provider configured and no explicit inputs/outputs supplied")
	}

	utxos, err := a.provider.ListUTXOs(ctx, req.FromAddress)
	if err != nil {
		return nil, nil, 0, err
	}

	target := req.ConfirmationTarget
	if target == 0 {
		target = defaultConfirmationTarget
	}

	var feeRate int64
	if req.FeeRateSatPerVByte != nil {
		feeRate = *req.FeeRateSatPerVByte
	} else {
		rec, err := a.provider.RecommendedFees(ctx)
		if err != nil {
			return nil, nil, 0, err
		}
		feeRate = rec.ForTarget(target)
	}

	changeAddr := req.ChangeAddress
	if changeAddr == "" {
		changeAddr = req.FromAddress
	}

	result, err := a.cfg.selector().Select(utxos, req.Outputs, feeRate, changeAddr)
	if err != nil {
		return nil, nil, 0, err
	}
	return result.Inputs, result.Outputs, result.FeeSats, nil
}

func (a *Assembler) fetchPrevOut(ctx context.Context, in UTXO) (*wire.TxOut, error) {
	if a.provider == nil {
		return nil, mpcerr.New(mpcerr.ConfigInvalid, "no provider configured to resolve previous output")
	}
	detail, err := a.provider.GetTx(ctx, in.TxID)
	if err != nil {
		return nil, err
	}
	if int(in.Vout) >= len(detail.Vout) {
		return nil, mpcerr.New(mpcerr.ProtocolInvariantViolated, "utxo vout index out of range for fetched transaction")
	}
	out := detail.Vout[in.Vout]
	script, err := hex.DecodeString(out.ScriptPubKeyHex)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid scriptpubkey hex")
	}
	return &wire.TxOut{Value: out.Value, PkScript: script}, nil
}

func addressScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid bitcoin address")
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to build pay-to-address script")
	}
	return script, nil
}

// p2wpkhScriptCode builds the P2PKH-equivalent script BIP-143 uses as the
// "script code" for a witness v0 key-hash input.
func p2wpkhScriptCode(pubKey [33]byte) ([]byte, error) {
	hash := btcutil.Hash160(pubKey[:])
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func sighashesForInputs(tx *wire.MsgTx, prevOuts []*wire.TxOut, fromPubKey [33]byte) ([]chain.MPCPayload, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, out := range prevOuts {
		fetcher.AddPrevOut(tx.TxIn[i].PreviousOutPoint, out)
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	scriptCode, err := p2wpkhScriptCode(fromPubKey)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to build witness script code")
	}

	payloads := make([]chain.MPCPayload, len(prevOuts))
	for i, out := range prevOuts {
		hash, err := txscript.CalcWitnessSigHash(scriptCode, sigHashes, txscript.SigHashAll, tx, i, out.Value)
		if err != nil {
			return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to compute BIP-143 sighash")
		}
		var payload [32]byte
		copy(payload[:], hash)
		payloads[i] = chain.MPCPayload{Index: uint32(i), Payload: payload}
	}
	return payloads, nil
}

// AttachAndBroadcast attaches a compressed P2WPKH witness
// ([DER(sig)||SIGHASH_ALL, pubkey]) for each input as a PSBT partial
// signature, finalizes every input in ascending index order, extracts
// the raw transaction, and broadcasts it.
func (a *Assembler) AttachAndBroadcast(ctx context.Context, u *UnsignedTx, sigs []sigconvert.MPCSignature) (string, error) {
	if err := u.BeginBroadcasting(); err != nil {
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state for broadcasting")
	}

	if len(sigs) != len(u.packet.Inputs) {
		u.MarkFailed()
		return "", mpcerr.New(mpcerr.ProtocolInvariantViolated, "signature count does not match input count")
	}

	for i, sig := range sigs {
		raw64, err := sigconvert.ToRaw64(sig)
		if err != nil {
			u.MarkFailed()
			return "", err
		}
		der := encodeDERLowS(raw64)
		sigWithType := append(der, byte(txscript.SigHashAll))
		u.packet.Inputs[i].PartialSigs = []*psbt.PartialSig{{
			PubKey:    append([]byte(nil), u.fromPubKey[:]...),
			Signature: sigWithType,
		}}
	}

	for i := range u.packet.Inputs {
		if err := psbt.Finalize(u.packet, i); err != nil {
			u.MarkFailed()
			return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to finalize PSBT input")
		}
	}

	signedTx, err := psbt.Extract(u.packet)
	if err != nil {
		u.MarkFailed()
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to extract signed transaction from PSBT")
	}

	var buf bytes.Buffer
	if err := signedTx.Serialize(&buf); err != nil {
		u.MarkFailed()
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to serialize signed transaction")
	}

	if a.provider == nil {
		u.MarkFailed()
		return "", mpcerr.New(mpcerr.ConfigInvalid, "no provider configured for broadcast")
	}
	txid, err := a.provider.BroadcastTx(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		u.MarkFailed()
		return "", err
	}

	if err := u.MarkBroadcast(); err != nil {
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after broadcast")
	}
	return txid, nil
}

// encodeDERLowS encodes a raw (r, s) signature as DER, normalizing s to
// the lower half of the curve order (BIP-62 low-S), which standard
// Bitcoin relay policy requires.
//
// Uses github.com/decred/dcrd/dcrec/secp256k1/v4's ecdsa.Signature.Serialize.
// internal/infra/signing/service.go only parses DER signatures; this is
// the first place in this module that also produces one.
func encodeDERLowS(sig sigconvert.Raw64Signature) []byte {
	var r, s secp256k1.ModNScalar
	r.SetByteSlice(sig.R[:])
	s.SetByteSlice(sig.S[:])
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	return ecdsa.NewSignature(&r, &s).Serialize()
}

// EstimateDisplayFee returns feeRateSatPerVByte * estimated vbytes for
// caller display before signing, mirroring evm.EstimateDisplayFee.
func EstimateDisplayFee(feeRateSatPerVByte int64, numInputs, numOutputs int) int64 {
	return feeRateSatPerVByte * estimateVBytes(numInputs, numOutputs)
}
