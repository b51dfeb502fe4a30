package mpcsign

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/coordinator"
	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

type fakeAdapter struct {
	fee          string
	submitCalls  []coordinator.SubmitSignRequest
	submitResult json.RawMessage
	submitErr    error
}

func (f *fakeAdapter) GetRootPublicKey(ctx context.Context) (string, error) { return "", nil }

func (f *fakeAdapter) GetCurrentFee(ctx context.Context) (string, error) { return f.fee, nil }

func (f *fakeAdapter) GetDerivedPublicKey(ctx context.Context, path, predecessor string) (string, error) {
	return "", nil
}

func (f *fakeAdapter) SubmitSign(ctx context.Context, req coordinator.SubmitSignRequest) (json.RawMessage, error) {
	f.submitCalls = append(f.submitCalls, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResult, nil
}

func signatureJSON(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"big_r": map[string]string{"affine_point": "02aabbcc"},
		"s":     map[string]string{"scalar": "112233"},
		"recovery_id": 0,
	})
	require.NoError(t, err)
	return raw
}

func TestSignUsesLiveFeeQuoteWhenNoneProposed(t *testing.T) {
	adapter := &fakeAdapter{fee: "5000", submitResult: signatureJSON(t)}
	client := NewClient(adapter)

	sig, err := client.Sign(context.Background(), Request{
		Payload:  [32]byte{1, 2, 3},
		Path:     "m/44'/60'/0'/0/0",
		CallerID: "alice.testnet",
	})
	require.NoError(t, err)
	assert.Equal(t, "02aabbcc", sig.BigRAffinePoint)

	require.Len(t, adapter.submitCalls, 1)
	assert.Equal(t, "5000", adapter.submitCalls[0].Deposit)
	assert.Equal(t, "m/44'/60'/0'/0/0", adapter.submitCalls[0].Path)
}

func TestSignFloorsZeroFeeQuoteToOne(t *testing.T) {
	adapter := &fakeAdapter{fee: "0", submitResult: signatureJSON(t)}
	client := NewClient(adapter)

	_, err := client.Sign(context.Background(), Request{Payload: [32]byte{1}, Path: "p", CallerID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "1", adapter.submitCalls[0].Deposit)
}

func TestSignHonorsProposedDepositOverQuote(t *testing.T) {
	adapter := &fakeAdapter{fee: "5000", submitResult: signatureJSON(t)}
	client := NewClient(adapter)

	_, err := client.Sign(context.Background(), Request{
		Payload:         [32]byte{1},
		Path:            "p",
		CallerID:        "x",
		ProposedDeposit: "9999",
	})
	require.NoError(t, err)
	assert.Equal(t, "9999", adapter.submitCalls[0].Deposit)
}

func TestSignPropagatesUnderlyingFailureKind(t *testing.T) {
	adapter := &fakeAdapter{fee: "1", submitErr: mpcerr.New(mpcerr.SignatureUnavailable, "no receipt")}
	client := NewClient(adapter)

	_, err := client.Sign(context.Background(), Request{Payload: [32]byte{1}, Path: "p", CallerID: "x"})
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.SignatureUnavailable))
}

func TestSignCanonicalizesStructuredPath(t *testing.T) {
	adapter := &fakeAdapter{fee: "1", submitResult: signatureJSON(t)}
	client := NewClient(adapter)

	type structuredPath = interface{}
	var path structuredPath = map[string]interface{}{"chain": 60, "domain": "example.com"}

	_, err := client.Sign(context.Background(), Request{Payload: [32]byte{1}, Path: path, CallerID: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"chain":60,"domain":"example.com"}`, adapter.submitCalls[0].Path)
}
