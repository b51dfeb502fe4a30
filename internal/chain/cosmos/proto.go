package cosmos

import (
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// This file hand-encodes the handful of Cosmos SDK proto messages this
// assembler needs (Any, Coin, TxBody, SignerInfo/ModeInfo/Fee, AuthInfo,
// SignDoc, TxRaw) directly with google.golang.org/protobuf/encoding/
// protowire, rather than depending on the cosmos-sdk proto package tree.
// Field numbers below match the public cosmos.tx.v1beta1 / cosmos.base.v1beta1
// proto definitions.

const signModeDirect = 1 // SIGN_MODE_DIRECT

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	return appendBytesField(b, num, []byte(v))
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Coin is cosmos.base.v1beta1.Coin: {denom string = 1; amount string = 2}.
type Coin struct {
	Denom  string
	Amount string
}

func (c Coin) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, c.Denom)
	b = appendStringField(b, 2, c.Amount)
	return b
}

// any is google.protobuf.Any: {type_url string = 1; value bytes = 2}.
type any struct {
	TypeURL string
	Value   []byte
}

func (a any) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, a.TypeURL)
	b = appendBytesField(b, 2, a.Value)
	return b
}

// Message is a Cosmos SDK sdk.Msg this package knows how to marshal into
// an Any. FromAddressSetter is implemented separately by message types
// whose sender field happens to be literally named fromAddress.
type Message interface {
	typeURL() string
	marshal() []byte
}

// FromAddressSetter is implemented by message types whose sender field is
// literally named "fromAddress". prepare_payload's message-normalization
// step only recognizes this interface: messages with a differently named
// sender field (MsgDelegate.DelegatorAddress, MsgExec.Grantee, ...) are
// left untouched, reproducing the narrow normalization behavior of the
// system this package replaces rather than generalizing it.
type FromAddressSetter interface {
	FromAddress() string
	SetFromAddress(addr string)
}

// MsgSend is cosmos.bank.v1beta1.MsgSend:
// {from_address string = 1; to_address string = 2; amount []Coin = 3}.
type MsgSend struct {
	From   string
	To     string
	Amount []Coin
}

func (m *MsgSend) typeURL() string { return "/cosmos.bank.v1beta1.MsgSend" }

func (m *MsgSend) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.From)
	b = appendStringField(b, 2, m.To)
	for _, c := range m.Amount {
		b = appendBytesField(b, 3, c.marshal())
	}
	return b
}

// FromAddress implements FromAddressSetter.
func (m *MsgSend) FromAddress() string { return m.From }

// SetFromAddress implements FromAddressSetter.
func (m *MsgSend) SetFromAddress(addr string) { m.From = addr }

// normalizeFromAddress sets From on any message implementing
// FromAddressSetter whose From is currently empty. Messages that don't
// implement the interface, or whose sender field is named something else
// entirely, are left exactly as the caller supplied them.
func normalizeFromAddress(messages []Message, address string) {
	for _, m := range messages {
		setter, ok := m.(FromAddressSetter)
		if !ok {
			continue
		}
		if setter.FromAddress() == "" {
			setter.SetFromAddress(address)
		}
	}
}

// txBody is cosmos.tx.v1beta1.TxBody: {messages []Any = 1; memo string = 2}.
type txBody struct {
	Messages []Message
	Memo     string
}

func (t txBody) marshal() []byte {
	var b []byte
	for _, m := range t.Messages {
		a := any{TypeURL: m.typeURL(), Value: m.marshal()}
		b = appendBytesField(b, 1, a.marshal())
	}
	b = appendStringField(b, 2, t.Memo)
	return b
}

// secp256k1PubKey is cosmos.crypto.secp256k1.PubKey: {key bytes = 1}.
type secp256k1PubKey struct {
	Key [33]byte
}

func (k secp256k1PubKey) marshal() []byte {
	return appendBytesField(nil, 1, k.Key[:])
}

func (k secp256k1PubKey) any() any {
	return any{TypeURL: "/cosmos.crypto.secp256k1.PubKey", Value: k.marshal()}
}

// modeInfoSingle is cosmos.tx.v1beta1.ModeInfo.Single: {mode SignMode = 1}.
type modeInfoSingle struct {
	Mode int32
}

func (m modeInfoSingle) marshal() []byte {
	return appendVarintField(nil, 1, uint64(m.Mode))
}

// signerInfo is cosmos.tx.v1beta1.SignerInfo:
// {public_key Any = 1; mode_info ModeInfo = 2; sequence uint64 = 3}.
// ModeInfo itself is {single ModeInfo_Single = 1} (oneof; this package
// only ever produces the single/direct variant).
type signerInfo struct {
	PublicKey secp256k1PubKey
	Sequence  uint64
}

func (s signerInfo) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, s.PublicKey.any().marshal())
	modeInfo := appendBytesField(nil, 1, modeInfoSingle{Mode: signModeDirect}.marshal())
	b = appendBytesField(b, 2, modeInfo)
	b = appendVarintField(b, 3, s.Sequence)
	return b
}

// fee is cosmos.tx.v1beta1.Fee:
// {amount []Coin = 1; gas_limit uint64 = 2; payer string = 3; granter string = 4}.
type fee struct {
	Amount   []Coin
	GasLimit uint64
}

func (f fee) marshal() []byte {
	var b []byte
	for _, c := range f.Amount {
		b = appendBytesField(b, 1, c.marshal())
	}
	b = appendVarintField(b, 2, f.GasLimit)
	return b
}

// authInfo is cosmos.tx.v1beta1.AuthInfo:
// {signer_infos []SignerInfo = 1; fee Fee = 2}.
type authInfo struct {
	SignerInfo signerInfo
	Fee        fee
}

func (a authInfo) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, a.SignerInfo.marshal())
	b = appendBytesField(b, 2, a.Fee.marshal())
	return b
}

// signDoc is cosmos.tx.v1beta1.SignDoc:
// {body_bytes bytes = 1; auth_info_bytes bytes = 2; chain_id string = 3;
//  account_number uint64 = 4}.
type signDoc struct {
	BodyBytes     []byte
	AuthInfoBytes []byte
	ChainID       string
	AccountNumber uint64
}

func (s signDoc) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, s.BodyBytes)
	b = appendBytesField(b, 2, s.AuthInfoBytes)
	b = appendStringField(b, 3, s.ChainID)
	b = appendVarintField(b, 4, s.AccountNumber)
	return b
}

// txRaw is cosmos.tx.v1beta1.TxRaw:
// {body_bytes bytes = 1; auth_info_bytes bytes = 2; signatures []bytes = 3}.
type txRaw struct {
	BodyBytes     []byte
	AuthInfoBytes []byte
	Signatures    [][]byte
}

func (t txRaw) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, t.BodyBytes)
	b = appendBytesField(b, 2, t.AuthInfoBytes)
	for _, sig := range t.Signatures {
		b = appendBytesField(b, 3, sig)
	}
	return b
}

// computeFee rounds gasPrice*gasLimit up to the nearest integer unit of
// the chain's native denom, per the ceil(gas_price · gas_limit) rule.
func computeFee(gasPrice float64, gasLimit uint64, denom string) Coin {
	amount := gasPrice * float64(gasLimit)
	rounded := int64(amount)
	if float64(rounded) < amount {
		rounded++
	}
	return Coin{Denom: denom, Amount: strconv.FormatInt(rounded, 10)}
}
