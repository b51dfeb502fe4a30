// Package mpcerr defines the closed error taxonomy shared by every
// subsystem of the transaction factory.
package mpcerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which of the closed set of error conditions occurred.
type Kind string

const (
	ConfigInvalid             Kind = "config_invalid"
	RootKeyUnavailable        Kind = "root_key_unavailable"
	DerivationFailed          Kind = "derivation_failed"
	FeeQuoteUnavailable       Kind = "fee_quote_unavailable"
	NonceConflict             Kind = "nonce_conflict"
	SignatureUnavailable      Kind = "signature_unavailable"
	FeeTooLow                 Kind = "fee_too_low"
	AccountNotFound           Kind = "account_not_found"
	InsufficientFunds         Kind = "insufficient_funds"
	BroadcastRejected         Kind = "broadcast_rejected"
	ProviderUnreachable       Kind = "provider_unreachable"
	ProtocolInvariantViolated Kind = "protocol_invariant_violated"
	UnsupportedChain          Kind = "unsupported_chain"
)

// Error is the concrete error type of the closed taxonomy, used by the
// packages under internal/ for their classified failures; some lower-level
// helpers (JSON canonicalization, signature decoding) return plain wrapped
// errors that carry no Kind. It carries a Kind plus optional
// broadcast-rejection detail.
type Error struct {
	kind    Kind
	code    string
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	if e.message != "" {
		return fmt.Sprintf("%s: %s", e.kind, e.message)
	}
	return string(e.kind)
}

// Unwrap lets errors.Is / errors.As traverse to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports the closed-taxonomy category of this error.
func (e *Error) Kind() Kind { return e.kind }

// Code is populated only for BroadcastRejected, carrying the foreign-chain
// rejection code (an RPC error code, a Cosmos tx_response.code, etc).
func (e *Error) Code() string { return e.code }

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap constructs an Error of the given kind, preserving cause for
// errors.Is/As and for %v formatting via github.com/pkg/errors semantics.
func Wrap(kind Kind, cause error, message string) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{kind: kind, message: message, cause: errors.WithStack(cause)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return Wrap(kind, cause, fmt.Sprintf(format, args...))
}

// BroadcastRejection builds a BroadcastRejected error carrying the
// foreign-chain's rejection code and raw message/log.
func BroadcastRejection(code string, message string) *Error {
	return &Error{kind: BroadcastRejected, code: code, message: message}
}

// Is reports whether err carries the given Kind, unwrapping through any
// github.com/pkg/errors or stdlib wrapping in between.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}
