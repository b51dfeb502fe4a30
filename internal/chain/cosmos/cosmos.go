// Package cosmos implements the Cosmos SDK transaction assembler:
// SIGN_MODE_DIRECT unsigned-transaction construction over hand-encoded
// proto messages, SHA-256 sighash extraction, signature attachment, and
// broadcast.
package cosmos

import (
	"context"
	"crypto/sha256"

	"github.com/rs/zerolog/log"

	"github.com/chainsig-go/txfactory/internal/chain"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcerr"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

const defaultGasLimit = 200_000

// Config holds the chain registry and REST collaborator this assembler
// needs.
type Config struct {
	Registry Registry
	Provider Provider
}

// Assembler builds and broadcasts Cosmos SDK transactions signed by the
// coordinator-chain MPC signer.
type Assembler struct {
	cfg Config
}

// NewAssembler constructs an Assembler. A nil Provider is replaced by
// NewHTTPProvider().
func NewAssembler(cfg Config) *Assembler {
	if cfg.Provider == nil {
		cfg.Provider = NewHTTPProvider()
	}
	return &Assembler{cfg: cfg}
}

// DeriveAddress derives the bech32 address for (callerID, path) under the
// HRP registered for chainID.
func DeriveAddress(root *derive.RootPublicKey, registry Registry, callerID, path, chainID string) (string, error) {
	params, err := registry.Lookup(chainID)
	if err != nil {
		return "", err
	}
	child, err := derive.DeriveChildPublicKey(root, callerID, path)
	if err != nil {
		return "", err
	}
	return derive.CosmosBech32Address(child, params.HRP)
}

// TxRequest describes a Cosmos SDK transaction to assemble.
type TxRequest struct {
	ChainID          string
	Address          string
	CompressedPubKey [33]byte
	Messages         []Message
	Memo             string
	Gas              *uint64 // nil means defaultGasLimit
}

// UnsignedTx carries the encoded body/auth-info bytes, the account
// metadata needed to rebuild SignDoc, and the single MPCPayload the
// SIGN_MODE_DIRECT sighash requires.
type UnsignedTx struct {
	chain.Lifecycle
	chainID       string
	restURL       string
	bodyBytes     []byte
	authInfoBytes []byte
	payload       chain.MPCPayload
}

// ChainFamily implements chain.UnsignedTx.
func (u *UnsignedTx) ChainFamily() string { return "cosmos" }

// Payloads implements chain.UnsignedTx.
func (u *UnsignedTx) Payloads() []chain.MPCPayload { return []chain.MPCPayload{u.payload} }

// PrepareUnsignedTx fetches the on-chain account, normalizes messages that
// implement FromAddressSetter, computes the fee, encodes TxBody/AuthInfo,
// and extracts the single SHA-256(SignDoc) MPCPayload.
func (a *Assembler) PrepareUnsignedTx(ctx context.Context, req TxRequest) (*UnsignedTx, error) {
	params, err := a.cfg.Registry.Lookup(req.ChainID)
	if err != nil {
		return nil, err
	}

	account, err := a.cfg.Provider.GetAccount(ctx, params.RESTURL, req.Address)
	if err != nil {
		return nil, err
	}

	normalizeFromAddress(req.Messages, req.Address)

	gasLimit := uint64(defaultGasLimit)
	if req.Gas != nil {
		gasLimit = *req.Gas
	}
	feeCoin := computeFee(params.GasPrice, gasLimit, params.NativeDenom)

	body := txBody{Messages: req.Messages, Memo: req.Memo}
	bodyBytes := body.marshal()

	auth := authInfo{
		SignerInfo: signerInfo{
			PublicKey: secp256k1PubKey{Key: req.CompressedPubKey},
			Sequence:  account.Sequence,
		},
		Fee: fee{Amount: []Coin{feeCoin}, GasLimit: gasLimit},
	}
	authInfoBytes := auth.marshal()

	doc := signDoc{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		ChainID:       req.ChainID,
		AccountNumber: account.AccountNumber,
	}
	sighash := sha256.Sum256(doc.marshal())

	log.Debug().Str("chain_id", req.ChainID).Uint64("sequence", account.Sequence).Uint64("account_number", account.AccountNumber).Str("fee", feeCoin.Amount+feeCoin.Denom).Msg("prepared cosmos unsigned transaction")

	unsigned := &UnsignedTx{
		chainID:       req.ChainID,
		restURL:       params.RESTURL,
		bodyBytes:     bodyBytes,
		authInfoBytes: authInfoBytes,
		payload:       chain.MPCPayload{Index: 0, Payload: sighash},
	}
	if err := unsigned.MarkPayloadExtracted(); err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after payload extraction")
	}
	return unsigned, nil
}

// AttachAndBroadcast serializes TxRaw with the MPC-produced raw 64-byte
// R||S signature and broadcasts it via BROADCAST_MODE_SYNC.
func (a *Assembler) AttachAndBroadcast(ctx context.Context, u *UnsignedTx, sig sigconvert.MPCSignature) (string, error) {
	if err := u.BeginBroadcasting(); err != nil {
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state for broadcasting")
	}

	raw, err := sigconvert.ToRaw64(sig)
	if err != nil {
		u.MarkFailed()
		return "", err
	}

	tx := txRaw{
		BodyBytes:     u.bodyBytes,
		AuthInfoBytes: u.authInfoBytes,
		Signatures:    [][]byte{raw.Bytes64()},
	}

	txHash, err := a.cfg.Provider.BroadcastTx(ctx, u.restURL, tx.marshal())
	if err != nil {
		u.MarkFailed()
		return "", err
	}

	if err := u.MarkBroadcast(); err != nil {
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after broadcast")
	}
	return txHash, nil
}

// EstimateDisplayFee returns ceil(gasPrice * gasLimit) in the chain's
// native denom, for caller display before signing.
func EstimateDisplayFee(registry Registry, chainID string, gasLimit uint64) (Coin, error) {
	params, err := registry.Lookup(chainID)
	if err != nil {
		return Coin{}, err
	}
	return computeFee(params.GasPrice, gasLimit, params.NativeDenom), nil
}
