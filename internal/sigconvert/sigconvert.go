// Package sigconvert translates between the signer contract's wire-level
// MPCSignature and the per-chain formats each chain requires: RSV for
// EVM, raw 64-byte R||S for Bitcoin and Cosmos.
//
// Grounded on internal/infra/signing/service.go's signature-format
// handling (verifySignatureStandard and friends), generalized from that
// file's DER/Schnorr detection to this spec's fixed contract-return shape.
package sigconvert

import (
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// MPCSignature is the signer contract's return shape:
// {big_r.affine_point, s.scalar, recovery_id}.
type MPCSignature struct {
	// BigRAffinePoint is the hex-encoded 33-byte compressed nonce point.
	BigRAffinePoint string
	// SScalar is the 32-byte hex-encoded s component.
	SScalar string
	// RecoveryID is 0 or 1.
	RecoveryID byte
}

// RSVSignature is the EVM-native {r, s, v} signature form.
type RSVSignature struct {
	R [32]byte
	S [32]byte
	V byte
}

// Raw64Signature is the 64-byte R||S form used by Bitcoin (after DER
// encoding, see internal/chain/bitcoin) and Cosmos.
type Raw64Signature struct {
	R [32]byte
	S [32]byte
}

// ToRSV converts the contract form to RSV: r is big_r.affine_point with the
// leading parity byte dropped, s is s.scalar verbatim, v is recovery_id.
func ToRSV(sig MPCSignature) (RSVSignature, error) {
	r, s, err := decomposeRS(sig)
	if err != nil {
		return RSVSignature{}, err
	}
	if sig.RecoveryID > 1 {
		return RSVSignature{}, mpcerr.New(mpcerr.ProtocolInvariantViolated, "recovery_id must be 0 or 1")
	}
	return RSVSignature{R: r, S: s, V: sig.RecoveryID}, nil
}

// ToRaw64 converts the contract form to the raw 64-byte R||S form used by
// Bitcoin and Cosmos, which carry no recovery id on the wire.
func ToRaw64(sig MPCSignature) (Raw64Signature, error) {
	r, s, err := decomposeRS(sig)
	if err != nil {
		return Raw64Signature{}, err
	}
	return Raw64Signature{R: r, S: s}, nil
}

func decomposeRS(sig MPCSignature) (r, s [32]byte, err error) {
	pointBytes, err := hex.DecodeString(sig.BigRAffinePoint)
	if err != nil {
		return r, s, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to decode big_r.affine_point hex")
	}
	if len(pointBytes) != 33 {
		return r, s, mpcerr.New(mpcerr.ProtocolInvariantViolated, "big_r.affine_point must be a 33-byte compressed point")
	}
	// Raw r is the compressed point with the parity byte dropped.
	copy(r[:], pointBytes[1:])

	sBytes, err := hex.DecodeString(sig.SScalar)
	if err != nil {
		return r, s, mpcerr.Wrap(mpcerr.ProtocolInvariantViolated, err, "failed to decode s.scalar hex")
	}
	if len(sBytes) != 32 {
		return r, s, mpcerr.New(mpcerr.ProtocolInvariantViolated, "s.scalar must be 32 bytes")
	}
	copy(s[:], sBytes)

	return r, s, nil
}

// Bytes65 serializes an RSVSignature as the 65-byte R||S||V form go-ethereum
// expects for tx.WithSignature.
func (sig RSVSignature) Bytes65() []byte {
	out := make([]byte, 65)
	copy(out[0:32], sig.R[:])
	copy(out[32:64], sig.S[:])
	out[64] = sig.V
	return out
}

// Bytes64 serializes a Raw64Signature as R||S.
func (sig Raw64Signature) Bytes64() []byte {
	out := make([]byte, 64)
	copy(out[0:32], sig.R[:])
	copy(out[32:64], sig.S[:])
	return out
}

// ParseAffinePointParity returns the compressed point's parity byte (0x02
// or 0x03) for callers that need to cross-check the recovery id against the
// actual nonce point, e.g. during test vector validation.
func ParseAffinePointParity(sig MPCSignature) (byte, error) {
	pointBytes, err := hex.DecodeString(sig.BigRAffinePoint)
	if err != nil {
		return 0, errors.Wrap(err, "failed to decode big_r.affine_point hex")
	}
	if len(pointBytes) == 0 {
		return 0, mpcerr.New(mpcerr.ProtocolInvariantViolated, "big_r.affine_point is empty")
	}
	return pointBytes[0], nil
}
