// Package types defines the wire-level data model shared between
// Peer, PeerMatrix and OrderedList: the tagged-union Op, the Message
// envelope, and the vector-clock entries exchanged between peers.
//
// The application value type V is opaque to this package and to every
// package in this module; serializing V is the transport's job. Op
// and Message are generic over V so the core never needs to know what
// it is.
package types

import (
	"fmt"

	"github.com/jabolina/rga-sync/internal/ids"
)

// LocalIndex is the small integer a peer assigns to another peer the
// first time it learns about it. Every vector-clock entry carries it
// alongside the full PeerID.
type LocalIndex int

// PeerVClockEntry records, for some (observer, subject) pair, the
// subject's locally assigned index at the observer and how many
// messages the observer has processed from the subject.
type PeerVClockEntry struct {
	PeerID    ids.PeerID
	PeerIndex LocalIndex
	MsgCount  uint64
}

// ClockUpdate is a frozen, ordered sequence of PeerVClockEntry values,
// either packaged for transmission or received from a remote peer.
// Entries of a received update are ordered by the sender's PeerIndex
// ascending. It must never be mutated in place once frozen; doing so
// is a programmer error, not a protocol violation, which is why
// ClockUpdate exposes no mutating methods at all; the updates a Peer
// sends are produced by PeerMatrix's internal builder.
type ClockUpdate []PeerVClockEntry

// Empty reports whether the update carries no entries.
func (c ClockUpdate) Empty() bool {
	return len(c) == 0
}

// Op is the tagged union of everything that can appear in a Message's
// operation stream: inserts, deletes, embedded clock diffs, and the
// synthetic MessageProcessed marker. Dispatch is by type switch in
// Peer's causal delivery loop.
type Op[V any] interface {
	isOp()
}

// InsertOp inserts Value with identity NewID immediately after the
// element identified by ReferenceID, or at the list head when
// ReferenceID is the zero ItemID.
type InsertOp[V any] struct {
	ReferenceID ids.ItemID
	NewID       ids.ItemID
	Value       V
}

func (InsertOp[V]) isOp() {}

func (op InsertOp[V]) String() string {
	if op.ReferenceID.IsZero() {
		return fmt.Sprintf("Insert(%v after <head>)", op.NewID)
	}
	return fmt.Sprintf("Insert(%v after %v)", op.NewID, op.ReferenceID)
}

// DeleteOp tombstones the element identified by DeleteID. DeleteTS is
// a fresh ItemID minted at the origin purely to advance the Lamport
// clock and give the delete event its own causal identity; it plays no
// role in ordering or tie-breaking deletes.
type DeleteOp struct {
	DeleteID ids.ItemID
	DeleteTS ids.ItemID
}

func (DeleteOp) isOp() {}

func (op DeleteOp) String() string {
	return fmt.Sprintf("Delete(%v)", op.DeleteID)
}

// ClockUpdateOp carries a clock diff as a control op inside the
// operation stream, positioned immediately before the ops whose causal
// dependencies it establishes.
type ClockUpdateOp struct {
	Entries ClockUpdate
}

func (ClockUpdateOp) isOp() {}

// MessageProcessedOp is a synthetic marker the receiver inserts into a
// peer's inbound queue between messages, so that the message-count
// bump in PeerMatrix happens at the right boundary in the delivery
// order. It is never sent over the wire.
type MessageProcessedOp struct {
	MsgCount uint64
}

func (MessageProcessedOp) isOp() {}

// Message is the envelope a Peer hands to the network: the origin's
// identity, that origin's monotonically increasing send count, and the
// ordered operation stream (which may itself contain embedded
// ClockUpdateOps). ProtocolVersion lets a receiver reject a message
// from an incompatible wire format before touching its payload.
type Message[V any] struct {
	Origin          ids.PeerID
	MsgCount        uint64
	Operations      []Op[V]
	ProtocolVersion string
}
