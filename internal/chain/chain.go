// Package chain defines the shared value types and per-sign state machine
// implemented by each per-chain assembler (evm, bitcoin, cosmos).
//
// Grounded on internal/mpc/chain's BitcoinAdapter/EthereumAdapter pair:
// per-chain structs with GenerateAddress/BuildTransaction methods,
// generalized from that ad hoc pair of unrelated methods into the shared
// MPCPayload/UnsignedTx/Lifecycle types every assembler now builds on.
package chain

import "fmt"

// MPCPayload is one 32-byte sighash the MPC signer must produce a
// signature for, tagged with its position in the eventual signed
// artifact. A transaction may require more than one (Bitcoin, one per
// input); ordering is by Index ascending.
type MPCPayload struct {
	Index   uint32
	Payload [32]byte
}

// UnsignedTx is the tagged union over chain families: EVM, Bitcoin, and
// Cosmos each implement this with their own concrete unsigned-transaction
// type. It exists so callers can hold a chain-agnostic handle between
// PrepareUnsignedTx and AttachAndBroadcast, and so every assembler exposes
// its Lifecycle state through the same accessor.
type UnsignedTx interface {
	// ChainFamily reports which concrete chain family produced this value,
	// for logging and for callers that need to branch on it explicitly.
	ChainFamily() string
	// Payloads returns the MPCPayloads that must be signed, in ascending
	// Index order.
	Payloads() []MPCPayload
	// State reports the current position in the Lifecycle state machine.
	State() State
}

// State is the per-sign state machine shared by every assembler.
type State int

const (
	Assembled State = iota
	PayloadExtracted
	Signing
	Signed
	Broadcasting
	Broadcast
	Failed
)

func (s State) String() string {
	switch s {
	case Assembled:
		return "assembled"
	case PayloadExtracted:
		return "payload_extracted"
	case Signing:
		return "signing"
	case Signed:
		return "signed"
	case Broadcasting:
		return "broadcasting"
	case Broadcast:
		return "broadcast"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle tracks the Assembled -> PayloadExtracted -> Signing -> Signed ->
// Broadcasting -> Broadcast state machine for one UnsignedTx. Every
// per-chain UnsignedTx embeds a Lifecycle by value, which promotes these
// methods and State() onto it at zero cost (the zero value is Assembled).
//
// Guards live here rather than in each chain package so the invariant is
// enforced once: Signing only advances to Signed from internal/mpcsign
// once the signer's result has been parsed as a terminal success, and
// Broadcasting only advances to Broadcast from a chain assembler once the
// provider has acknowledged the broadcast.
type Lifecycle struct {
	state State
}

// State reports the current state.
func (l *Lifecycle) State() State { return l.state }

// MarkPayloadExtracted moves Assembled -> PayloadExtracted, called by a
// chain assembler once PrepareUnsignedTx has computed the sighash(es) to
// be signed.
func (l *Lifecycle) MarkPayloadExtracted() error {
	return l.move(Assembled, PayloadExtracted)
}

// BeginSigning moves PayloadExtracted -> Signing, or is a no-op while
// already Signing so that a multi-payload transaction (Bitcoin, one
// signing attempt per input) can call it once per payload without
// tripping the guard.
func (l *Lifecycle) BeginSigning() error {
	switch l.state {
	case PayloadExtracted, Signing:
		l.state = Signing
		return nil
	default:
		return fmt.Errorf("chain: cannot begin signing from state %s", l.state)
	}
}

// MarkSigned moves Signing -> Signed, or is a no-op while already Signed.
// Callers must only call this once the signer's result has been parsed as
// a terminal success (a decoded MPCSignature), not merely once a response
// was received.
func (l *Lifecycle) MarkSigned() error {
	switch l.state {
	case Signing, Signed:
		l.state = Signed
		return nil
	default:
		return fmt.Errorf("chain: cannot mark signed from state %s", l.state)
	}
}

// BeginBroadcasting moves Signed -> Broadcasting.
func (l *Lifecycle) BeginBroadcasting() error {
	return l.move(Signed, Broadcasting)
}

// MarkBroadcast moves Broadcasting -> Broadcast. Callers must only call
// this once the provider has acknowledged the broadcast (a transaction
// hash was returned), not merely once the request was sent.
func (l *Lifecycle) MarkBroadcast() error {
	return l.move(Broadcasting, Broadcast)
}

// MarkFailed forces a transition to Failed from any state, used when a
// signing or broadcasting step returns an error.
func (l *Lifecycle) MarkFailed() {
	l.state = Failed
}

func (l *Lifecycle) move(from, to State) error {
	if l.state != from {
		return fmt.Errorf("chain: cannot move to %s from %s, expected %s", to, l.state, from)
	}
	l.state = to
	return nil
}
