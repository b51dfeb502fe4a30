package cosmos

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// Account is the subset of a Cosmos BaseAccount this package needs to
// build a SignDoc: its account number and current sequence.
type Account struct {
	AccountNumber uint64
	Sequence      uint64
}

// Provider is the Cosmos REST collaborator: account lookup, balance
// lookup, and broadcast.
type Provider interface {
	GetAccount(ctx context.Context, restURL, address string) (*Account, error)
	GetBalance(ctx context.Context, restURL, address, denom string) (string, error)
	BroadcastTx(ctx context.Context, restURL string, txBytes []byte) (string, error)
}

// HTTPProvider is the production Provider, following the same
// get()-then-unmarshal shape as internal/chain/bitcoin.HTTPProvider, since
// both are plain JSON REST APIs over a caller-supplied base URL (here the
// base URL varies per call because each Cosmos chain_id has its own
// rest_url, unlike Bitcoin's single configured provider).
type HTTPProvider struct {
	client *http.Client
}

// NewHTTPProvider constructs a provider shared across all configured
// Cosmos chains.
func NewHTTPProvider() *HTTPProvider {
	return &HTTPProvider{client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *HTTPProvider) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "cosmos provider request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode >= 400 {
		return nil, mpcerr.New(mpcerr.ProviderUnreachable, "cosmos provider returned "+resp.Status+": "+string(body))
	}
	return body, nil
}

type baseAccountResponse struct {
	Account struct {
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
	} `json:"account"`
}

// GetAccount calls GET {restURL}/cosmos/auth/v1beta1/accounts/{address}. A
// 404 response (no on-chain account yet) surfaces as AccountNotFound.
func (p *HTTPProvider) GetAccount(ctx context.Context, restURL, address string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, restURL+"/cosmos/auth/v1beta1/accounts/"+address, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "cosmos provider request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, mpcerr.New(mpcerr.AccountNotFound, "no on-chain account for "+address)
	}
	if resp.StatusCode >= 400 {
		return nil, mpcerr.New(mpcerr.ProviderUnreachable, "cosmos provider returned "+resp.Status+": "+string(body))
	}

	var parsed baseAccountResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal account response")
	}
	accountNumber, err := strconv.ParseUint(parsed.Account.AccountNumber, 10, 64)
	if err != nil {
		return nil, mpcerr.New(mpcerr.AccountNotFound, "no on-chain account for "+address)
	}
	sequence, err := strconv.ParseUint(parsed.Account.Sequence, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse account sequence")
	}
	return &Account{AccountNumber: accountNumber, Sequence: sequence}, nil
}

type balancesResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

// GetBalance calls GET {restURL}/cosmos/bank/v1beta1/balances/{address} and
// returns the amount held in denom, or "0" if the address holds none.
func (p *HTTPProvider) GetBalance(ctx context.Context, restURL, address, denom string) (string, error) {
	body, err := p.get(ctx, restURL+"/cosmos/bank/v1beta1/balances/"+address)
	if err != nil {
		return "", err
	}
	var parsed balancesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal balances response")
	}
	for _, b := range parsed.Balances {
		if b.Denom == denom {
			return b.Amount, nil
		}
	}
	return "0", nil
}

type broadcastRequest struct {
	TxBytes string `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

type broadcastResponse struct {
	TxResponse struct {
		Code   int    `json:"code"`
		TxHash string `json:"txhash"`
		RawLog string `json:"raw_log"`
	} `json:"tx_response"`
}

// BroadcastTx calls POST {restURL}/cosmos/tx/v1beta1/txs with
// BROADCAST_MODE_SYNC. A non-zero tx_response.code is a BroadcastRejected
// error carrying the chain's raw_log.
func (p *HTTPProvider) BroadcastTx(ctx context.Context, restURL string, txBytes []byte) (string, error) {
	reqBody, err := json.Marshal(broadcastRequest{
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
		Mode:    "BROADCAST_MODE_SYNC",
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal broadcast request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, restURL+"/cosmos/tx/v1beta1/txs", bytes.NewReader(reqBody))
	if err != nil {
		return "", errors.Wrap(err, "failed to create broadcast request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "failed to broadcast cosmos transaction")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read broadcast response")
	}
	if resp.StatusCode >= 400 {
		return "", mpcerr.New(mpcerr.ProviderUnreachable, "cosmos provider returned "+resp.Status+": "+string(body))
	}

	var parsed broadcastResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal broadcast response")
	}
	if parsed.TxResponse.Code != 0 {
		return "", mpcerr.BroadcastRejection(strconv.Itoa(parsed.TxResponse.Code), parsed.TxResponse.RawLog)
	}
	return parsed.TxResponse.TxHash, nil
}
