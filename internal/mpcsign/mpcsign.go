// Package mpcsign implements the MPC signing client: fee quoting, direct
// vs relayed dispatch, and translation of the contract's signature back to
// a typed value for the caller.
//
// Grounded on internal/infra/signing/service.go's ThresholdSign control
// flow (resolve key, quote or compose request, call out, parse result),
// simplified to a single attempt per call: the signer contract's `sign`
// method is a fundamentally simpler protocol than the node-to-node TSS
// session that file orchestrates, and no multi-attempt polling loop is
// carried over.
package mpcsign

import (
	"context"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/chainsig-go/txfactory/internal/chain"
	"github.com/chainsig-go/txfactory/internal/coordinator"
	"github.com/chainsig-go/txfactory/internal/derive"
	"github.com/chainsig-go/txfactory/internal/mpcerr"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

// Request bundles sign's parameters.
type Request struct {
	Payload         [32]byte
	Path            interface{} // string or derive.StructuredPath
	CallerID        string
	RelayerURL      string // empty ⇒ direct call
	ProposedDeposit string // optional; falls back to the live fee quote

	// Lifecycle, when set, is advanced through Signing and Signed (or
	// Failed) around this call. Callers that don't track per-tx state
	// may leave it nil.
	Lifecycle *chain.Lifecycle
}

// Client wraps a coordinator.Adapter with the fee-then-sign algorithm.
type Client struct {
	adapter coordinator.Adapter
}

// NewClient constructs a signing client over the given coordinator
// adapter.
func NewClient(adapter coordinator.Adapter) *Client {
	return &Client{adapter: adapter}
}

const (
	signGas       = 300_000_000_000_000 // 300 Tgas
	defaultKeyVer = uint32(0)
)

// Sign executes the one-attempt fee-then-sign algorithm:
//  1. canonicalize the path
//  2. quote (or accept the caller's proposed) deposit
//  3. dispatch the change call, directly or via relayer
//  4. decode the contract's MPCSignature
func (c *Client) Sign(ctx context.Context, req Request) (sigconvert.MPCSignature, error) {
	canonicalPath, err := derive.CanonicalPath(req.Path)
	if err != nil {
		return sigconvert.MPCSignature{}, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to canonicalize path")
	}

	if req.Lifecycle != nil {
		if err := req.Lifecycle.BeginSigning(); err != nil {
			return sigconvert.MPCSignature{}, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state for signing")
		}
	}

	deposit, err := c.quoteDeposit(ctx, req.ProposedDeposit)
	if err != nil {
		c.failLifecycle(req.Lifecycle)
		return sigconvert.MPCSignature{}, err
	}

	log.Debug().Str("caller_id", req.CallerID).Str("path", canonicalPath).Str("deposit", deposit).Msg("requesting MPC signature")

	raw, err := c.adapter.SubmitSign(ctx, coordinator.SubmitSignRequest{
		Payload:    req.Payload,
		Path:       canonicalPath,
		KeyVersion: defaultKeyVer,
		Gas:        signGas,
		Deposit:    deposit,
		RelayerURL: req.RelayerURL,
	})
	if err != nil {
		c.failLifecycle(req.Lifecycle)
		return sigconvert.MPCSignature{}, err
	}

	// Only a successfully decoded MPCSignature counts as the terminal-success
	// receipt parse that allows Signing to advance to Signed.
	sig, err := coordinator.DecodeMPCSignature(raw)
	if err != nil {
		c.failLifecycle(req.Lifecycle)
		return sigconvert.MPCSignature{}, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to decode MPC signature")
	}

	if req.Lifecycle != nil {
		if err := req.Lifecycle.MarkSigned(); err != nil {
			return sigconvert.MPCSignature{}, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "invalid state after signing")
		}
	}
	return sig, nil
}

func (c *Client) failLifecycle(l *chain.Lifecycle) {
	if l != nil {
		l.MarkFailed()
	}
}

// quoteDeposit returns proposed if non-empty, else the live fee quote,
// floored at 1 yocto-unit per the "deposit must be at least 1" rule.
func (c *Client) quoteDeposit(ctx context.Context, proposed string) (string, error) {
	if proposed != "" {
		return proposed, nil
	}

	fee, err := c.adapter.GetCurrentFee(ctx)
	if err != nil {
		return "", err
	}

	n, ok := new(big.Int).SetString(fee, 10)
	if !ok {
		return "", mpcerr.New(mpcerr.ProtocolInvariantViolated, "current fee quote is not a valid integer")
	}
	if n.Sign() < 1 {
		n = big.NewInt(1)
	}
	return n.String(), nil
}
