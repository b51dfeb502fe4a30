package coordinator

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
	"github.com/chainsig-go/txfactory/internal/sigconvert"
)

// ExecutionOutcome is the subset of a coordinator-chain transaction's
// final execution outcome this package needs: the ordered list of receipt
// outcomes produced by the transaction and any actions it triggered.
type ExecutionOutcome struct {
	Status          TxStatus         `json:"status"`
	ReceiptsOutcome []ReceiptOutcome `json:"receipts_outcome"`
}

// TxStatus carries the terminal status payload; this package inspects
// Failure to detect a failed transaction, and the shape is kept open for
// forward compatibility with the provider's status JSON.
type TxStatus struct {
	SuccessValue string          `json:"SuccessValue,omitempty"`
	Failure      json.RawMessage `json:"Failure,omitempty"`
}

// ReceiptOutcome is one entry of receipts_outcome.
type ReceiptOutcome struct {
	ID      string      `json:"id"`
	Outcome OutcomeBody `json:"outcome"`
}

// OutcomeBody carries the receipt's status, narrowed to the SuccessValue
// case this package cares about.
type OutcomeBody struct {
	Status OutcomeStatus `json:"status"`
}

// OutcomeStatus is the receipt-level status union, narrowed to
// SuccessValue(base64 string).
type OutcomeStatus struct {
	SuccessValue string `json:"SuccessValue,omitempty"`
}

type mpcSignatureEnvelope struct {
	Ok *contractMPCSignature `json:"Ok"`
}

type contractMPCSignature struct {
	BigR struct {
		AffinePoint string `json:"affine_point"`
	} `json:"big_r"`
	S struct {
		Scalar string `json:"scalar"`
	} `json:"s"`
	RecoveryID byte `json:"recovery_id"`
}

// ParseFirstSuccessValue implements this package's receipt-parsing
// algorithm: scan receipts_outcome in order and return the first
// SuccessValue that base64-decodes and unmarshals as {"Ok": MPCSignature}.
// Receipts with an empty or absent SuccessValue, or one that does not
// decode to an Ok envelope, are skipped. Absence of any matching receipt is
// a terminal SignatureUnavailable error.
//
// Reimplemented as an explicit scan rather than a fold-with-accumulator:
// the intent ("first match wins") is the same, the control flow is
// clearer.
func ParseFirstSuccessValue(receipts []ReceiptOutcome) (json.RawMessage, error) {
	for _, r := range receipts {
		sv := r.Outcome.Status.SuccessValue
		if sv == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sv)
		if err != nil {
			continue
		}
		var envelope mpcSignatureEnvelope
		if err := json.Unmarshal(decoded, &envelope); err != nil {
			continue
		}
		if envelope.Ok == nil {
			continue
		}
		sig, err := json.Marshal(envelope.Ok)
		if err != nil {
			return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to re-marshal parsed MPCSignature")
		}
		return sig, nil
	}
	return nil, mpcerr.New(mpcerr.SignatureUnavailable, "no receipt carried a SuccessValue with a signature")
}

// UnwrapDirectResult accepts the raw return value of a direct sign change
// call, which the contract serializes the same way as a receipt
// SuccessValue payload ({"Ok": MPCSignature} or {"Err": ...}), and returns
// the inner MPCSignature JSON.
func UnwrapDirectResult(raw json.RawMessage) (json.RawMessage, error) {
	var envelope mpcSignatureEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to decode direct sign result")
	}
	if envelope.Ok == nil {
		return nil, mpcerr.New(mpcerr.SignatureUnavailable, "direct sign call returned no signature")
	}
	sig, err := json.Marshal(envelope.Ok)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to re-marshal direct sign result")
	}
	return sig, nil
}

// DecodeMPCSignature converts the raw JSON this package's callers get back
// from SubmitSign/ParseFirstSuccessValue into a sigconvert.MPCSignature.
func DecodeMPCSignature(raw json.RawMessage) (sigconvert.MPCSignature, error) {
	var c contractMPCSignature
	if err := json.Unmarshal(raw, &c); err != nil {
		return sigconvert.MPCSignature{}, errors.Wrap(err, "failed to decode contract MPCSignature")
	}
	return sigconvert.MPCSignature{
		BigRAffinePoint: c.BigR.AffinePoint,
		SScalar:         c.S.Scalar,
		RecoveryID:      c.RecoveryID,
	}, nil
}
