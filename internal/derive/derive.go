// Package derive implements the deterministic mapping from
// (root_public_key, caller_id, path) to a child secp256k1 public key, and
// from that key to per-chain addresses. Every exported function here is
// pure and side-effect free.
package derive

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is required by the Bitcoin/Cosmos address format, not a choice of this package.
	"golang.org/x/crypto/sha3"

	"github.com/chainsig-go/txfactory/internal/mpcerr"
)

// EpsilonPrefix is the literal wire-contract prefix. It MUST never change:
// every implementation of this protocol hashes the same bytes, and a
// byte-for-byte difference here silently derives different keys.
const EpsilonPrefix = "near-mpc-recovery v0.1.0 epsilon derivation:"

// RootPublicKey wraps the network-wide root point published by the signer
// contract.
type RootPublicKey struct {
	point *btcec.PublicKey
}

// ParseRootPublicKey parses the NAJ wire form "secp256k1:<base58 XY>".
func ParseRootPublicKey(naj string) (*RootPublicKey, error) {
	const prefix = "secp256k1:"
	if len(naj) <= len(prefix) || naj[:len(prefix)] != prefix {
		return nil, mpcerr.New(mpcerr.ProtocolInvariantViolated, "root public key missing secp256k1: prefix")
	}
	raw := base58.Decode(naj[len(prefix):])
	if len(raw) != 64 {
		return nil, mpcerr.New(mpcerr.ProtocolInvariantViolated, "root public key must decode to 64 bytes (X||Y)")
	}
	uncompressed := append([]byte{0x04}, raw...)
	point, err := btcec.ParsePubKey(uncompressed)
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.RootKeyUnavailable, err, "root public key is not a valid secp256k1 point")
	}
	return &RootPublicKey{point: point}, nil
}

// Point exposes the underlying secp256k1 point.
func (r *RootPublicKey) Point() *btcec.PublicKey { return r.point }

// String re-serializes to the NAJ wire form.
func (r *RootPublicKey) String() string {
	xy := r.point.SerializeUncompressed()[1:] // drop 0x04
	return "secp256k1:" + base58.Encode(xy)
}

// ChildPublicKey is a derived per-(caller,path) secp256k1 public key.
type ChildPublicKey struct {
	point *btcec.PublicKey
}

// Point exposes the underlying secp256k1 point.
func (c *ChildPublicKey) Point() *btcec.PublicKey { return c.point }

// Uncompressed returns the 65-byte 0x04||X||Y serialization.
func (c *ChildPublicKey) Uncompressed() [65]byte {
	var out [65]byte
	copy(out[:], c.point.SerializeUncompressed())
	return out
}

// Compressed returns the 33-byte 0x02/0x03||X serialization.
func (c *ChildPublicKey) Compressed() [33]byte {
	var out [33]byte
	copy(out[:], c.point.SerializeCompressed())
	return out
}

// Epsilon computes ε = SHA3-256(prefix || caller_id || "," || canonical_path)
// interpreted big-endian, reduced mod the secp256k1 curve order.
//
// Grounded on internal/mpc/protocol/derivation_utils.go's computeIL, which
// computes an analogous intermediate scalar for BIP-32-style derivation;
// this function replaces that HMAC-SHA512 tree step with a single
// SHA3-256 hash (golang.org/x/crypto/sha3, distinct from the Keccak-256
// used for EVM addressing, see EVMAddress below).
func Epsilon(callerID, canonicalPath string) *big.Int {
	h := sha3.Sum256([]byte(EpsilonPrefix + callerID + "," + canonicalPath))
	eps := new(big.Int).SetBytes(h[:])
	return eps.Mod(eps, btcec.S256().N)
}

// DeriveChildPublicKey computes Q = P + ε·G and rejects an identity result.
func DeriveChildPublicKey(root *RootPublicKey, callerID, canonicalPath string) (*ChildPublicKey, error) {
	eps := Epsilon(callerID, canonicalPath)

	epsBytes := make([]byte, 32)
	eps.FillBytes(epsBytes)

	curve := btcec.S256()
	dx, dy := curve.ScalarBaseMult(epsBytes)
	qx, qy := curve.Add(root.point.X(), root.point.Y(), dx, dy)

	if qx.Sign() == 0 && qy.Sign() == 0 {
		return nil, mpcerr.New(mpcerr.DerivationFailed, "epsilon derivation produced the identity point")
	}

	point, err := btcec.ParsePubKey(append([]byte{0x04}, append(pad32(qx), pad32(qy)...)...))
	if err != nil {
		return nil, mpcerr.Wrap(mpcerr.DerivationFailed, err, "failed to construct derived public key point")
	}
	return &ChildPublicKey{point: point}, nil
}

func pad32(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// EVMAddress derives the 20-byte Ethereum-family address: Keccak-256 of the
// uncompressed point (sans 0x04 prefix), last 20 bytes.
//
// Grounded on internal/mpc/chain/ethereum.go's GenerateAddress.
func EVMAddress(child *ChildPublicKey) [20]byte {
	uncompressed := child.Uncompressed()
	hash := crypto.Keccak256(uncompressed[1:])
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// EVMAddressHex renders an EVMAddress with the conventional 0x prefix.
func EVMAddressHex(child *ChildPublicKey) string {
	addr := EVMAddress(child)
	return "0x" + hex.EncodeToString(addr[:])
}

// BitcoinNetwork selects which bech32 human-readable prefix to use.
type BitcoinNetwork int

const (
	BitcoinMainnet BitcoinNetwork = iota
	BitcoinTestnet
	BitcoinRegtest
)

func (n BitcoinNetwork) hrp() string {
	switch n {
	case BitcoinTestnet:
		return "tb"
	case BitcoinRegtest:
		return "bcrt"
	default:
		return "bc"
	}
}

// hash160 is SHA-256 followed by RIPEMD-160, as used by both the Bitcoin
// P2WPKH program and Cosmos bech32 addresses.
//
// Grounded on internal/mpc/chain/bitcoin.go's GenerateAddress hashing step.
func hash160(pubKey []byte) []byte {
	sha := sha256.Sum256(pubKey)
	r := ripemd160.New()
	r.Write(sha[:]) //nolint:errcheck // ripemd160.Write never returns an error.
	return r.Sum(nil)
}

// BitcoinP2WPKHAddress derives the witness-v0 bech32 address for a child
// public key: hash160 of the compressed point, bech32-encoded with
// witness version 0 under the network's HRP.
func BitcoinP2WPKHAddress(child *ChildPublicKey, network BitcoinNetwork) (string, error) {
	compressed := child.Compressed()
	program := hash160(compressed[:])

	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert witness program to 5-bit groups")
	}
	data := append([]byte{0x00}, converted...) // witness version 0

	addr, err := bech32.Encode(network.hrp(), data)
	if err != nil {
		return "", errors.Wrap(err, "failed to bech32-encode P2WPKH address")
	}
	return addr, nil
}

// CosmosBech32Address derives a Cosmos SDK bech32 account address: hash160
// of the compressed point, bech32-encoded (no witness version byte) under
// the chain-specific HRP (e.g. "cosmos", "osmo").
func CosmosBech32Address(child *ChildPublicKey, hrp string) (string, error) {
	compressed := child.Compressed()
	program := hash160(compressed[:])

	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert address hash to 5-bit groups")
	}
	addr, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", errors.Wrap(err, "failed to bech32-encode Cosmos address")
	}
	return addr, nil
}
