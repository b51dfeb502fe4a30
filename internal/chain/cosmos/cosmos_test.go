package cosmos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

func TestComputeFee(t *testing.T) {
	coin := computeFee(0.025, 200_000, "uatom")
	assert.Equal(t, "uatom", coin.Denom)
	assert.Equal(t, "5000", coin.Amount)
}

func TestComputeFeeRoundsUp(t *testing.T) {
	coin := computeFee(0.0001, 1, "uatom") // 0.0001 rounds up to 1 unit
	assert.Equal(t, "1", coin.Amount)
}

func TestRegistryLookupMissingChain(t *testing.T) {
	registry := NewRegistry(map[string]ChainParams{})
	_, err := registry.Lookup("cosmoshub-4")
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.UnsupportedChain))
}

func TestRegistryLookupMissingField(t *testing.T) {
	registry := NewRegistry(map[string]ChainParams{
		"cosmoshub-4": {HRP: "cosmos", NativeDenom: "uatom"}, // RESTURL and GasPrice unset
	})
	_, err := registry.Lookup("cosmoshub-4")
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.UnsupportedChain))
}

func TestNormalizeFromAddressOnlySetsMsgSend(t *testing.T) {
	msg := &MsgSend{To: "cosmos1dest"}
	normalizeFromAddress([]Message{msg}, "cosmos1sender")
	assert.Equal(t, "cosmos1sender", msg.From)
}

func TestNormalizeFromAddressLeavesNonEmptyUntouched(t *testing.T) {
	msg := &MsgSend{From: "cosmos1original", To: "cosmos1dest"}
	normalizeFromAddress([]Message{msg}, "cosmos1sender")
	assert.Equal(t, "cosmos1original", msg.From)
}

type stubProvider struct {
	account       *Account
	accountErr    error
	broadcastCode int
	broadcastHash string
	broadcastLog  string
}

func (s *stubProvider) GetAccount(ctx context.Context, restURL, address string) (*Account, error) {
	return s.account, s.accountErr
}

func (s *stubProvider) GetBalance(ctx context.Context, restURL, address, denom string) (string, error) {
	return "0", nil
}

func (s *stubProvider) BroadcastTx(ctx context.Context, restURL string, txBytes []byte) (string, error) {
	if s.broadcastCode != 0 {
		return "", mpcerr.BroadcastRejection("4", s.broadcastLog)
	}
	return s.broadcastHash, nil
}

func testRegistry() Registry {
	return NewRegistry(map[string]ChainParams{
		"cosmoshub-4": {
			HRP:         "cosmos",
			NativeDenom: "uatom",
			RESTURL:     "https://rest.cosmos.example",
			GasPrice:    0.025,
			Decimals:    6,
		},
	})
}

func TestPrepareUnsignedTxProducesStableSighash(t *testing.T) {
	provider := &stubProvider{account: &Account{AccountNumber: 12, Sequence: 3}}
	asm := NewAssembler(Config{Registry: testRegistry(), Provider: provider})

	req := TxRequest{
		ChainID: "cosmoshub-4",
		Address: "cosmos1sender",
		Messages: []Message{
			&MsgSend{To: "cosmos1dest", Amount: []Coin{{Denom: "uatom", Amount: "1000"}}},
		},
	}

	first, err := asm.PrepareUnsignedTx(context.Background(), req)
	require.NoError(t, err)

	req.Messages = []Message{
		&MsgSend{To: "cosmos1dest", Amount: []Coin{{Denom: "uatom", Amount: "1000"}}},
	}
	second, err := asm.PrepareUnsignedTx(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.payload.Payload, second.payload.Payload, "identical requests against identical account state must produce identical sighashes")
	assert.Equal(t, uint32(0), first.payload.Index)
}

func TestPrepareUnsignedTxNormalizesEmptyFromAddress(t *testing.T) {
	provider := &stubProvider{account: &Account{AccountNumber: 1, Sequence: 0}}
	asm := NewAssembler(Config{Registry: testRegistry(), Provider: provider})

	msg := &MsgSend{To: "cosmos1dest", Amount: []Coin{{Denom: "uatom", Amount: "500"}}}
	_, err := asm.PrepareUnsignedTx(context.Background(), TxRequest{
		ChainID:  "cosmoshub-4",
		Address:  "cosmos1sender",
		Messages: []Message{msg},
	})
	require.NoError(t, err)
	assert.Equal(t, "cosmos1sender", msg.From)
}

func TestPrepareUnsignedTxAccountNotFound(t *testing.T) {
	provider := &stubProvider{accountErr: mpcerr.New(mpcerr.AccountNotFound, "no account")}
	asm := NewAssembler(Config{Registry: testRegistry(), Provider: provider})

	_, err := asm.PrepareUnsignedTx(context.Background(), TxRequest{
		ChainID: "cosmoshub-4",
		Address: "cosmos1sender",
	})
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.AccountNotFound))
}

func TestAttachAndBroadcastSurfacesBroadcastRejected(t *testing.T) {
	provider := &stubProvider{broadcastCode: 5, broadcastLog: "insufficient fee"}
	asm := NewAssembler(Config{Registry: testRegistry(), Provider: provider})

	u := &UnsignedTx{chainID: "cosmoshub-4", restURL: "https://rest.cosmos.example"}
	require.NoError(t, u.MarkPayloadExtracted())
	require.NoError(t, u.BeginSigning())
	require.NoError(t, u.MarkSigned())
	sig := sigconvert.MPCSignature{
		BigRAffinePoint: "02" + strings0(64),
		SScalar:         strings0(64),
		RecoveryID:      0,
	}
	_, err := asm.AttachAndBroadcast(context.Background(), u, sig)
	require.Error(t, err)
	assert.True(t, mpcerr.Is(err, mpcerr.BroadcastRejected))
}

func strings0(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
