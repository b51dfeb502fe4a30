package evm

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/chainsig-go/txfactory/internal/chain"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcerr"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

const gweiToWei = 1_000_000_000

// Config holds the per-chain parameters this assembler needs. The
// fee-fallback defaults below preserve the documented
// maxFeePerGas ?? 10 gwei behavior; callers may configure a different
// default.
type Config struct {
	ChainID                     *big.Int
	RPCEndpoint                 string
	DefaultMaxFeePerGas         *big.Int
	DefaultMaxPriorityFeePerGas *big.Int
}

func (c Config) maxFeeDefault() *big.Int {
	if c.DefaultMaxFeePerGas != nil {
		return c.DefaultMaxFeePerGas
	}
	return new(big.Int).Mul(big.NewInt(10), big.NewInt(gweiToWei))
}

func (c Config) maxPriorityFeeDefault() *big.Int {
	if c.DefaultMaxPriorityFeePerGas != nil {
		return c.DefaultMaxPriorityFeePerGas
	}
	return new(big.Int).Mul(big.NewInt(10), big.NewInt(gweiToWei))
}

// Assembler builds and broadcasts EVM EIP-1559 transactions signed by the
// coordinator-chain MPC signer.
type Assembler struct {
	cfg Config
	rpc *RPCClient
}

// NewAssembler constructs an Assembler. A nil or empty RPCEndpoint yields
// an Assembler usable only for pure operations (DeriveAddress,
// PrepareUnsignedTx with caller-supplied nonce/fees).
func NewAssembler(cfg Config) *Assembler {
	var rpc *RPCClient
	if cfg.RPCEndpoint != "" {
		rpc = NewRPCClient(cfg.RPCEndpoint)
	}
	return &Assembler{cfg: cfg, rpc: rpc}
}

// TxRequest describes a transfer or contract call to assemble.
type TxRequest struct {
	From                 [20]byte
	To                   [20]byte
	Value                *big.Int
	Data                 []byte
	Nonce                *uint64  // nil means fetch via eth_getTransactionCount
	GasLimit             *uint64  // nil means fetch via eth_estimateGas
	MaxFeePerGas         *big.Int // nil means fee-history derived or default
	MaxPriorityFeePerGas *big.Int // nil means fee-history derived or default
}

// UnsignedTx wraps a *gethtypes.Transaction (unsigned) along with the
// payload the MPC must sign.
type UnsignedTx struct {
	chain.Lifecycle
	tx      *gethtypes.Transaction
	signer  gethtypes.Signer
	payload chain.MPCPayload
}

// ChainFamily implements chain.UnsignedTx.
func (u *UnsignedTx) ChainFamily() string { return "evm" }

// Payloads implements chain.UnsignedTx.
func (u *UnsignedTx) Payloads() []chain.MPCPayload { return []chain.MPCPayload{u.payload} }

// DeriveAddress derives the EVM address for (callerID, path) from root.
func DeriveAddress(root *derive.RootPublicKey, callerID, path string) (string, error) {
	child, err := derive.DeriveChildPublicKey(root, callerID, path)
	if err != nil {
		return "", err
	}
	return derive.EVMAddressHex(child), nil
}

// PrepareUnsignedTx builds the unsigned EIP-1559 transaction and extracts
// its single MPCPayload (the keccak256 sighash over the unsigned RLP
// encoding, computed by go-ethereum's own Signer so the exact EIP-1559
// signing-hash rules are inherited rather than hand-rolled).
func (a *Assembler) PrepareUnsignedTx(ctx context.Context, req TxRequest) (*UnsignedTx, error) {
	if a.cfg.ChainID == nil {
		return nil, mpcerr.New(mpcerr.ConfigInvalid, "evm assembler requires a chain id")
	}

	nonce, err := a.resolveNonce(ctx, req)
	if err != nil {
		return nil, err
	}
	gasLimit, err := a.resolveGasLimit(ctx, req)
	if err != nil {
		return nil, err
	}
	maxFee, maxPriority, err := a.resolveFees(ctx, req)
	if err != nil {
		return nil, err
	}

	toAddr := common.Address(req.To)
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   a.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: maxPriority,
		GasFeeCap: maxFee,
		Gas:       gasLimit,
		To:        &toAddr,
		Value:     req.Value,
		Data:      req.Data,
	})

	signer := gethtypes.LatestSignerForChainID(a.cfg.ChainID)
	hash := signer.Hash(tx)

	log.Debug().Uint64("nonce", nonce).Uint64("gas_limit", gasLimit).Str("max_fee", maxFee.String()).Msg("prepared EIP-1559 unsigned transaction")

	unsigned := &UnsignedTx{
		tx:     tx,
		signer: signer,
		payload: chain.MPCPayload{
			Index:   0,
			Payload: [32]byte(hash),
		},
	}
	if err := unsigned.MarkPayloadExtracted(); err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after payload extraction")
	}
	return unsigned, nil
}

func (a *Assembler) resolveNonce(ctx context.Context, req TxRequest) (uint64, error) {
	if req.Nonce != nil {
		return *req.Nonce, nil
	}
	if a.rpc == nil {
		return 0, mpcerr.New(mpcerr.ConfigInvalid, "nonce not supplied and no RPC endpoint configured")
	}
	n, err := a.rpc.GetTransactionCount(ctx, hexAddress(req.From))
	if err != nil {
		return 0, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "failed to fetch nonce")
	}
	return n, nil
}

func (a *Assembler) resolveGasLimit(ctx context.Context, req TxRequest) (uint64, error) {
	if req.GasLimit != nil {
		return *req.GasLimit, nil
	}
	if a.rpc == nil {
		return 21000, nil
	}
	g, err := a.rpc.EstimateGas(ctx, hexAddress(req.From), hexAddress(req.To), req.Value, req.Data)
	if err != nil {
		return 0, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "failed to estimate gas")
	}
	return g, nil
}

func (a *Assembler) resolveFees(ctx context.Context, req TxRequest) (maxFee, maxPriority *big.Int, err error) {
	if req.MaxFeePerGas != nil && req.MaxPriorityFeePerGas != nil {
		return req.MaxFeePerGas, req.MaxPriorityFeePerGas, nil
	}

	maxFee, maxPriority = a.cfg.maxFeeDefault(), a.cfg.maxPriorityFeeDefault()
	if a.rpc != nil {
		fh, ferr := a.rpc.FeeHistory(ctx, 1, 0.5)
		if ferr != nil || len(fh.BaseFeePerGas) == 0 {
			log.Warn().Err(ferr).Msg("eth_feeHistory unavailable, falling back to configured default fee")
		} else {
			baseFee := fh.BaseFeePerGas[len(fh.BaseFeePerGas)-1]
			if len(fh.Reward) > 0 && len(fh.Reward[len(fh.Reward)-1]) > 0 {
				maxPriority = fh.Reward[len(fh.Reward)-1][0]
			}
			maxFee = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), maxPriority)
		}
	}

	if req.MaxFeePerGas != nil {
		maxFee = req.MaxFeePerGas
	}
	if req.MaxPriorityFeePerGas != nil {
		maxPriority = req.MaxPriorityFeePerGas
	}
	return maxFee, maxPriority, nil
}

// AttachAndBroadcast applies the MPC-produced RSV signature to the
// unsigned transaction and broadcasts the resulting raw transaction.
func (a *Assembler) AttachAndBroadcast(ctx context.Context, u *UnsignedTx, sig sigconvert.RSVSignature) (string, error) {
	if err := u.BeginBroadcasting(); err != nil {
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state for broadcasting")
	}

	signedTx, err := u.tx.WithSignature(u.signer, sig.Bytes65())
	if err != nil {
		u.MarkFailed()
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to attach signature to EIP-1559 transaction")
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		u.MarkFailed()
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to marshal signed transaction")
	}

	if a.rpc == nil {
		u.MarkFailed()
		return "", mpcerr.New(mpcerr.ConfigInvalid, "no RPC endpoint configured for broadcast")
	}
	txHash, err := a.rpc.SendRawTransaction(ctx, "0x"+hex.EncodeToString(raw))
	if err != nil {
		u.MarkFailed()
		return "", err
	}

	// Only a provider-acknowledged broadcast (a returned hash) advances
	// Broadcasting to Broadcast.
	if err := u.MarkBroadcast(); err != nil {
		return "", mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after broadcast")
	}
	return txHash, nil
}

// EstimateDisplayFee returns maxFeePerGas * gasLimit for caller display.
func EstimateDisplayFee(maxFeePerGas *big.Int, gasLimit uint64) *big.Int {
	return new(big.Int).Mul(maxFeePerGas, new(big.Int).SetUint64(gasLimit))
}

func hexAddress(b [20]byte) string {
	return common.Address(b).Hex()
}
