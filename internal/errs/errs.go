// Package errs defines the protocol-violation error family. These are
// distinct from programmer errors (which panic): a protocol violation
// means some peer sent something that contradicts the causal-delivery
// contract, and the right response is to fail fast with enough context
// to decide whether to quarantine the offending peer.
package errs

import (
	"errors"
	"fmt"

	"github.com/jabolina/rga-sync/internal/ids"
)

// Kind distinguishes the possible protocol violations.
type Kind string

const (
	ContradictoryMapping Kind = "contradictory_mapping"
	NonConsecutiveIndex  Kind = "non_consecutive_index"
	NewIndexMissingId    Kind = "new_index_missing_id"
	ClockWentBackwards   Kind = "clock_went_backwards"
	MsgCountBackwards    Kind = "msg_count_backwards"
	MsgCountJumped       Kind = "msg_count_jumped"
	UnknownReference     Kind = "unknown_reference"
	DuplicateItemId      Kind = "duplicate_item_id"
	UnknownRemoteIndex   Kind = "unknown_remote_index"
)

// ProtocolError is returned whenever a peer (local or remote) is
// observed violating one of the causal-delivery invariants. It always
// names the offending peer and, where applicable, the expected and
// actual values that disagreed.
type ProtocolError struct {
	Kind     Kind
	PeerID   ids.PeerID
	Expected any
	Actual   any
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation %s from peer %s: expected %v, got %v: %v",
			e.Kind, e.PeerID, e.Expected, e.Actual, e.Err)
	}
	return fmt.Sprintf("protocol violation %s from peer %s: expected %v, got %v",
		e.Kind, e.PeerID, e.Expected, e.Actual)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is lets callers write errors.Is(err, errs.New(ContradictoryMapping, ...))
// or, more commonly, check the Kind directly via errors.As.
func (e *ProtocolError) Is(target error) bool {
	var other *ProtocolError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a ProtocolError of the given kind for the given peer.
func New(kind Kind, peer ids.PeerID, expected, actual any) *ProtocolError {
	return &ProtocolError{Kind: kind, PeerID: peer, Expected: expected, Actual: actual}
}

// Wrap constructs a ProtocolError that also carries an underlying cause.
func Wrap(kind Kind, peer ids.PeerID, expected, actual any, cause error) *ProtocolError {
	return &ProtocolError{Kind: kind, PeerID: peer, Expected: expected, Actual: actual, Err: cause}
}

// OfKind reports whether err is a *ProtocolError of the given kind.
func OfKind(err error, kind Kind) bool {
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == kind
}
