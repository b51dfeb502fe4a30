// Package evm implements the EVM transaction assembler: EIP-1559 unsigned
// transaction construction, keccak sighash extraction, signature
// attachment, and broadcast.
package evm

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// RPCClient is the production JSON-RPC client, adapted from
// internal/mpc/chain/ethereum.RPCClient with eth_chainId, eth_estimateGas,
// and eth_feeHistory added for EIP-1559 fee resolution.
type RPCClient struct {
	endpoint string
	client   *http.Client
}

// NewRPCClient constructs a client against endpoint.
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := &rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal RPC request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProviderUnreachable, err, "failed to execute EVM RPC request")
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, errors.Wrap(err, "failed to decode RPC response")
	}
	if rpcResp.Error != nil {
		return nil, errors.Errorf("RPC error: %s (code: %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	return rpcResp.Result, nil
}

func decodeHexUint64(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.Wrap(err, "failed to unmarshal hex-quantity result")
	}
	if len(s) > 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if s == "" {
		return 0, nil
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return 0, errors.Errorf("invalid hex quantity %q", s)
	}
	return n.Uint64(), nil
}

func decodeHexBigInt(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal hex-quantity result")
	}
	if len(s) > 2 && s[:2] == "0x" {
		s = s[2:]
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return nil, errors.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

// ChainID calls eth_chainId.
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	result, err := c.call(ctx, "eth_chainId", []interface{}{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to call eth_chainId")
	}
	return decodeHexBigInt(result)
}

// GetTransactionCount calls eth_getTransactionCount against "latest".
func (c *RPCClient) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	result, err := c.call(ctx, "eth_getTransactionCount", []interface{}{address, "latest"})
	if err != nil {
		return 0, errors.Wrap(err, "failed to call eth_getTransactionCount")
	}
	return decodeHexUint64(result)
}

// EstimateGas calls eth_estimateGas for a transfer/call.
func (c *RPCClient) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	params := map[string]interface{}{
		"from":  from,
		"to":    to,
		"value": fmt.Sprintf("0x%x", value),
	}
	if len(data) > 0 {
		params["data"] = "0x" + hex.EncodeToString(data)
	}
	result, err := c.call(ctx, "eth_estimateGas", []interface{}{params})
	if err != nil {
		return 0, errors.Wrap(err, "failed to call eth_estimateGas")
	}
	return decodeHexUint64(result)
}

// FeeHistory carries the subset of eth_feeHistory this assembler uses to
// derive default EIP-1559 fee caps.
type FeeHistory struct {
	BaseFeePerGas []*big.Int
	Reward        [][]*big.Int
}

type feeHistoryRaw struct {
	BaseFeePerGas []string   `json:"baseFeePerGas"`
	Reward        [][]string `json:"reward"`
}

// FeeHistory calls eth_feeHistory over the last blockCount blocks at the
// given reward percentile.
func (c *RPCClient) FeeHistory(ctx context.Context, blockCount int, percentile float64) (*FeeHistory, error) {
	result, err := c.call(ctx, "eth_feeHistory", []interface{}{
		fmt.Sprintf("0x%x", blockCount), "latest", []float64{percentile},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to call eth_feeHistory")
	}

	var raw feeHistoryRaw
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal eth_feeHistory result")
	}

	fh := &FeeHistory{}
	for _, s := range raw.BaseFeePerGas {
		n, err := decodeHexBigInt(json.RawMessage(`"` + s + `"`))
		if err != nil {
			return nil, err
		}
		fh.BaseFeePerGas = append(fh.BaseFeePerGas, n)
	}
	for _, row := range raw.Reward {
		var parsedRow []*big.Int
		for _, s := range row {
			n, err := decodeHexBigInt(json.RawMessage(`"` + s + `"`))
			if err != nil {
				return nil, err
			}
			parsedRow = append(parsedRow, n)
		}
		fh.Reward = append(fh.Reward, parsedRow)
	}
	return fh, nil
}

// SendRawTransaction calls eth_sendRawTransaction with 0x-prefixed hex.
func (c *RPCClient) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	result, err := c.call(ctx, "eth_sendRawTransaction", []interface{}{rawTxHex})
	if err != nil {
		return "", mpcerr.Wrap(mpcerr.BroadcastRejected, err, "eth_sendRawTransaction failed")
	}
	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal transaction hash")
	}
	return txHash, nil
}
