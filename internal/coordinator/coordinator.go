// Package coordinator implements the coordinator-chain RPC adapter: view
// calls against the signer contract, direct and relayed change calls, and
// execution-receipt parsing.
//
// Grounded on the request/response and terminal-status-polling shape of
// internal/infra/signing/service.go, generalized from a multi-node TSS
// session to a single smart-contract call. The HTTP client plumbing follows
// the same hand-rolled client pattern used elsewhere in this module: a small
// hand-rolled net/http JSON client rather than a generic RPC SDK.
package coordinator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// Signer is the caller-supplied credential adapter for the coordinator
// chain. Coordinator-chain account/keystore bootstrap is treated as
// an out-of-scope external collaborator; this is that collaborator's
// contract. The core never holds or derives a coordinator-chain private
// key itself.
type Signer interface {
	// CallView invokes a view method on the signer contract and returns its
	// raw JSON result.
	CallView(ctx context.Context, method string, args interface{}) (json.RawMessage, error)
	// SignMetaTransaction signs a set of actions as a NEP-366-style
	// DelegateAction and returns the signed envelope ready to POST to a
	// relayer.
	SignMetaTransaction(ctx context.Context, actions []Action) (*SignedDelegate, error)
	// PublicKey returns the NAJ-encoded public key this signer signs with,
	// used as the nonce-cache key.
	PublicKey() string
}

// Action is a single coordinator-chain action, currently always a
// FunctionCall against the signer contract.
type Action struct {
	Method  string
	Args    json.RawMessage
	Gas     uint64
	Deposit string
}

// SignedDelegate is the signed-delegate envelope the relayer protocol expects.
type SignedDelegate struct {
	DelegateAction DelegateAction `json:"delegate_action"`
	Signature      string         `json:"signature"`
}

// DelegateAction is the unsigned body of a SignedDelegate.
type DelegateAction struct {
	Actions        []DelegateFunctionCall `json:"actions"`
	Nonce          uint64                 `json:"nonce"`
	MaxBlockHeight uint64                 `json:"max_block_height"`
	PublicKey      string                 `json:"public_key"`
	ReceiverID     string                 `json:"receiver_id"`
	SenderID       string                 `json:"sender_id"`
}

// DelegateFunctionCall is the wire shape of a single delegated FunctionCall
// action.
type DelegateFunctionCall struct {
	Method  string `json:"method_name"`
	Args    string `json:"args"` // base64(json)
	Gas     uint64 `json:"gas"`
	Deposit string `json:"deposit"`
}

// Adapter is the coordinator-chain RPC surface: view calls plus direct and relayed change calls.
type Adapter interface {
	GetRootPublicKey(ctx context.Context) (string, error)
	GetCurrentFee(ctx context.Context) (string, error)
	GetDerivedPublicKey(ctx context.Context, path, predecessor string) (string, error)
	SubmitSign(ctx context.Context, req SubmitSignRequest) (json.RawMessage, error)
}

// SubmitSignRequest bundles submit_sign's parameters.
type SubmitSignRequest struct {
	Payload    [32]byte
	Path       string
	KeyVersion uint32
	Gas        uint64
	Deposit    string
	RelayerURL string // empty means direct call
}

// Config holds the static addressing information needed to reach the
// signer contract and (optionally) a relayer. Populated by internal/config,
// never read from the environment by this package directly.
type Config struct {
	ContractID  string
	ProviderURL string
	RelayerURL  string
}

// HTTPAdapter is the production Adapter implementation: view calls and
// direct change calls go through signer.CallView, relayed change calls go
// through a relayerClient that polls ProviderURL for transaction status.
type HTTPAdapter struct {
	cfg    Config
	signer Signer
	relay  *relayerClient
	nonces *NonceCache
}

// NewHTTPAdapter constructs the production adapter.
func NewHTTPAdapter(cfg Config, signer Signer) *HTTPAdapter {
	return &HTTPAdapter{
		cfg:    cfg,
		signer: signer,
		relay:  newRelayerClient(cfg.RelayerURL, cfg.ProviderURL),
		nonces: NewNonceCache(),
	}
}

type signArgs struct {
	Request signArgsRequest `json:"request"`
}

type signArgsRequest struct {
	Payload    [32]byte `json:"payload"`
	Path       string   `json:"path"`
	KeyVersion uint32   `json:"key_version"`
}

// GetRootPublicKey issues the public_key view call.
func (a *HTTPAdapter) GetRootPublicKey(ctx context.Context) (string, error) {
	raw, err := a.signer.CallView(ctx, "public_key", nil)
	if err != nil {
		return "", mpcerr.Wrap(mpcerr.RootKeyUnavailable, err, "public_key view call failed")
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", mpcerr.Wrap(mpcerr.RootKeyUnavailable, err, "public_key view call returned unexpected shape")
	}
	if key == "" {
		return "", mpcerr.New(mpcerr.RootKeyUnavailable, "public_key view call returned an empty key")
	}
	return key, nil
}

// GetCurrentFee issues the experimental_signature_deposit view call.
func (a *HTTPAdapter) GetCurrentFee(ctx context.Context) (string, error) {
	raw, err := a.signer.CallView(ctx, "experimental_signature_deposit", nil)
	if err != nil {
		return "", mpcerr.Wrap(mpcerr.FeeQuoteUnavailable, err, "experimental_signature_deposit view call failed")
	}
	var fee string
	if err := json.Unmarshal(raw, &fee); err != nil {
		// Some deployments return the deposit as a JSON number rather than
		// a quoted u128 string; tolerate both.
		var n json.Number
		if err2 := json.Unmarshal(raw, &n); err2 != nil {
			return "", mpcerr.Wrap(mpcerr.FeeQuoteUnavailable, err, "experimental_signature_deposit returned unexpected shape")
		}
		fee = n.String()
	}
	return fee, nil
}

// GetDerivedPublicKey issues the optional derived_public_key view call.
func (a *HTTPAdapter) GetDerivedPublicKey(ctx context.Context, path, predecessor string) (string, error) {
	args := map[string]string{"path": path, "predecessor": predecessor}
	raw, err := a.signer.CallView(ctx, "derived_public_key", args)
	if err != nil {
		return "", mpcerr.Wrap(mpcerr.RootKeyUnavailable, err, "derived_public_key view call failed")
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", mpcerr.Wrap(mpcerr.RootKeyUnavailable, err, "derived_public_key view call returned unexpected shape")
	}
	return key, nil
}

// SubmitSign dispatches a change call to sign, either directly or via a
// relayer.
func (a *HTTPAdapter) SubmitSign(ctx context.Context, req SubmitSignRequest) (json.RawMessage, error) {
	args := signArgs{Request: signArgsRequest{
		Payload:    req.Payload,
		Path:       req.Path,
		KeyVersion: req.KeyVersion,
	}}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to marshal sign args")
	}

	if req.RelayerURL == "" {
		return a.submitDirect(ctx, argsJSON, req)
	}
	return a.submitRelayed(ctx, argsJSON, req)
}

func (a *HTTPAdapter) submitDirect(ctx context.Context, argsJSON json.RawMessage, req SubmitSignRequest) (json.RawMessage, error) {
	log.Debug().Str("contract", a.cfg.ContractID).Uint64("gas", req.Gas).Str("deposit", req.Deposit).Msg("submitting direct sign change call")
	raw, err := a.signer.CallView(ctx, "sign", json.RawMessage(argsJSON))
	if err != nil {
		return nil, classifySignRejection(err)
	}
	return UnwrapDirectResult(raw)
}

func (a *HTTPAdapter) submitRelayed(ctx context.Context, argsJSON json.RawMessage, req SubmitSignRequest) (json.RawMessage, error) {
	nonce, err := a.nonces.Next(ctx, a.signer.PublicKey(), a.fetchNonce)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("public_key", a.signer.PublicKey()).Uint64("nonce", nonce).Msg("building signed delegate")

	action := Action{
		Method:  "sign",
		Args:    argsJSON,
		Gas:     req.Gas,
		Deposit: req.Deposit,
	}

	delegate, err := a.signer.SignMetaTransaction(ctx, []Action{action})
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to sign meta transaction")
	}
	// Once a signed-delegate has been emitted, the nonce it consumed must
	// never be reused; drop it so the next sign refetches.
	a.nonces.Invalidate(a.signer.PublicKey())

	relay := a.relay
	if req.RelayerURL != a.cfg.RelayerURL {
		relay = newRelayerClient(req.RelayerURL, a.cfg.ProviderURL)
	}
	txHash, err := relay.submit(ctx, delegate)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "relayer submission failed")
	}

	outcome, err := relay.pollTxStatus(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if len(outcome.Status.Failure) > 0 {
		return nil, classifySignRejection(errors.Errorf("coordinator-chain transaction failed: %s", outcome.Status.Failure))
	}

	return ParseFirstSuccessValue(outcome.ReceiptsOutcome)
}

// classifySignRejection maps a contract rejection surfaced through Signer
// into the closed error taxonomy. The signer contract's own rejection
// reasons are plain-text messages, not a structured error code, so this
// does a narrow substring match for the one case the caller needs to
// distinguish: an insufficient attached deposit.
func classifySignRejection(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "deposit") || strings.Contains(msg, "insufficient") {
		return mpcerr.Wrap(mpcerr.FeeTooLow, err, "signer contract rejected the attached deposit")
	}
	return mpcerr.Wrap(mpcerr.SignatureUnavailable, err, "direct sign call failed")
}

func (a *HTTPAdapter) fetchNonce(ctx context.Context, publicKey string) (uint64, error) {
	raw, err := a.signer.CallView(ctx, "__access_key_nonce", map[string]string{"public_key": publicKey})
	if err != nil {
		return 0, errors.Wrap(err, "failed to refresh access key nonce")
	}
	var nonce uint64
	if err := json.Unmarshal(raw, &nonce); err != nil {
		return 0, errors.Wrap(err, "access key nonce view call returned unexpected shape")
	}
	return nonce, nil
}
