package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// UTXO is one entry of the provider's address UTXO listing.
type UTXO struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value int64  `json:"value"`
}

// TxOutput is one output of a fetched transaction, used to recover the
// previous output (scriptpubkey, value) an input spends.
type TxOutput struct {
	ScriptPubKeyHex string `json:"scriptpubkey"`
	Value           int64  `json:"value"`
}

// TxDetail is the subset of the provider's transaction JSON this package
// consumes: version, locktime, and outputs.
type TxDetail struct {
	Version  int32      `json:"version"`
	Locktime uint32     `json:"locktime"`
	Vout     []TxOutput `json:"vout"`
}

// FeeRecommendation is the provider's sat/vB fee recommendation, keyed by
// confirmation target.
type FeeRecommendation struct {
	FastestFee  int64 `json:"fastestFee"`
	HalfHourFee int64 `json:"halfHourFee"`
	HourFee     int64 `json:"hourFee"`
	EconomyFee  int64 `json:"economyFee"`
	MinimumFee  int64 `json:"minimumFee"`
}

// ForTarget maps a confirmation-block target to the matching bucket.
// Targets above an hour fall back to the economy fee.
func (f FeeRecommendation) ForTarget(blocks int) int64 {
	switch {
	case blocks <= 1:
		return f.FastestFee
	case blocks <= 3:
		return f.HalfHourFee
	case blocks <= 6:
		return f.HourFee
	default:
		return f.EconomyFee
	}
}

// Provider is the Bitcoin REST collaborator: UTXO listing, transaction
// lookup, fee recommendation, and broadcast.
type Provider interface {
	ListUTXOs(ctx context.Context, address string) ([]UTXO, error)
	GetTx(ctx context.Context, txid string) (*TxDetail, error)
	RecommendedFees(ctx context.Context) (*FeeRecommendation, error)
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)
}

// HTTPProvider is the production Provider, adapted from the
// request/response style of internal/mpc/chain/ethereum/rpc.go but over a
// plain REST API rather than JSON-RPC.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider constructs a provider against baseURL (no trailing
// slash expected, e.g. "https://blockstream.info/testnet/api").
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "bitcoin provider request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode >= 400 {
		return nil, mpcerr.New(mpcerr.ProviderUnreachable, "bitcoin provider returned "+resp.Status+": "+string(body))
	}
	return body, nil
}

// ListUTXOs calls GET /address/{addr}/utxo.
func (p *HTTPProvider) ListUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	body, err := p.get(ctx, "/address/"+address+"/utxo")
	if err != nil {
		return nil, err
	}
	var utxos []UTXO
	if err := json.Unmarshal(body, &utxos); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal utxo list")
	}
	return utxos, nil
}

// GetTx calls GET /tx/{txid}.
func (p *HTTPProvider) GetTx(ctx context.Context, txid string) (*TxDetail, error) {
	body, err := p.get(ctx, "/tx/"+txid)
	if err != nil {
		return nil, err
	}
	var detail TxDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal transaction detail")
	}
	return &detail, nil
}

// RecommendedFees calls GET /v1/fees/recommended.
func (p *HTTPProvider) RecommendedFees(ctx context.Context) (*FeeRecommendation, error) {
	body, err := p.get(ctx, "/v1/fees/recommended")
	if err != nil {
		return nil, err
	}
	var fees FeeRecommendation
	if err := json.Unmarshal(body, &fees); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal fee recommendation")
	}
	return &fees, nil
}

// BroadcastTx POSTs the raw transaction hex body to /tx and returns the
// resulting txid (plain text response).
func (p *HTTPProvider) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/tx", bytes.NewReader([]byte(rawTxHex)))
	if err != nil {
		return "", errors.Wrap(err, "failed to create broadcast request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "failed to broadcast transaction")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read broadcast response")
	}
	if resp.StatusCode >= 400 {
		return "", mpcerr.New(mpcerr.BroadcastRejected, strconv.Itoa(resp.StatusCode)+": "+string(body))
	}
	return string(bytes.TrimSpace(body)), nil
}
