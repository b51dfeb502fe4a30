package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// relayerClient POSTs signed delegates to a meta-transaction relayer and
// polls the coordinator-chain provider (not the relayer) for the
// resulting transaction's terminal status. Hand-rolled net/http client,
// same shape as the teacher's ethereum.RPCClient.
type relayerClient struct {
	relayerURL  string
	providerURL string
	client      *http.Client
	pollEvery   time.Duration
}

func newRelayerClient(relayerURL, providerURL string) *relayerClient {
	return &relayerClient{
		relayerURL:  relayerURL,
		providerURL: providerURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		pollEvery:   500 * time.Millisecond,
	}
}

// submit POSTs the signed delegate to <relayerURL>/send_meta_tx_async and
// returns the plaintext transaction hash from the response body.
func (r *relayerClient) submit(ctx context.Context, delegate *SignedDelegate) (string, error) {
	body, err := json.Marshal(delegate)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal signed delegate")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.relayerURL+"/send_meta_tx_async", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create relayer request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "relayer request failed")
	}
	defer resp.Body.Close()

	txHash, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read relayer response")
	}
	if resp.StatusCode >= 300 {
		return "", errors.Errorf("relayer returned status %d: %s", resp.StatusCode, string(txHash))
	}

	return string(bytes.TrimSpace(txHash)), nil
}

// pollTxStatus polls the coordinator-chain provider's tx_status view until
// a terminal outcome is observed or ctx is done.
func (r *relayerClient) pollTxStatus(ctx context.Context, txHash string) (*ExecutionOutcome, error) {
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		outcome, terminal, err := r.fetchTxStatus(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if terminal {
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "tx_status polling cancelled")
		case <-ticker.C:
		}
	}
}

func (r *relayerClient) fetchTxStatus(ctx context.Context, txHash string) (*ExecutionOutcome, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.providerURL+"/tx_status/"+txHash, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to create tx_status request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, errors.Wrap(err, "tx_status request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}

	var outcome ExecutionOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, false, errors.Wrap(err, "failed to decode tx_status response")
	}

	terminal := outcome.Status.SuccessValue != "" || len(outcome.Status.Failure) > 0
	return &outcome, terminal, nil
}
