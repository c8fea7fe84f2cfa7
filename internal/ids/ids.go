// Package ids defines the identity primitives shared by every other
// package in this module: peer identities, logical timestamps, and the
// item identifiers that give every inserted element in the ordered list
// a globally unique, totally ordered name.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// PeerID is an opaque, globally unique identifier for a replica.
// In practice it is a 256-bit random value rendered as lowercase hex.
// Its total order is used only as a tie-breaker, never as a notion of
// "importance" between peers.
type PeerID string

// NewPeerID draws a fresh 256-bit random value from crypto/rand and
// renders it as lowercase hex. Callers that already have an identity
// (e.g. restored from storage) should not call this; it is only for
// minting a brand-new replica identity.
func NewPeerID() (PeerID, error) {
	return NewPeerIDFrom(rand.Reader)
}

// NewPeerIDFrom mints a PeerID from the given entropy source instead
// of crypto/rand, so tests and hosts with their own randomness policy
// can produce reproducible identities.
func NewPeerIDFrom(random io.Reader) (PeerID, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("generating peer id: %w", err)
	}
	return PeerID(hex.EncodeToString(buf)), nil
}

// Less reports whether p sorts before other. Used only to break ties
// between ItemIDs minted with the same LogicalTimestamp.
func (p PeerID) Less(other PeerID) bool {
	return p < other
}

// LogicalTimestamp is a peer's local Lamport counter. It is always
// non-negative and strictly increasing for a single peer's own events.
type LogicalTimestamp uint64

// ItemID uniquely identifies any element ever inserted into an
// OrderedList. It totally orders first by LogicalTimestamp ascending,
// then by PeerID ascending.
type ItemID struct {
	Logical LogicalTimestamp
	Peer    PeerID
}

// Zero is the sentinel "no id" value, used as the reference for an
// insert at the head of the list. It is never a valid minted ItemID
// since real timestamps start at 1.
var Zero = ItemID{}

// IsZero reports whether id is the sentinel "no reference" value.
func (id ItemID) IsZero() bool {
	return id == Zero
}

// Less reports whether id sorts strictly before other: first by
// Logical ascending, then by Peer ascending.
func (id ItemID) Less(other ItemID) bool {
	if id.Logical != other.Logical {
		return id.Logical < other.Logical
	}
	return id.Peer.Less(other.Peer)
}

// Greater reports whether id sorts strictly after other. This is the
// comparison the RGA placement rule actually wants: concurrent inserts
// at the same anchor are ordered in descending ItemID order, so a
// "does this sibling sort after me" check reads more naturally than
// double-negating Less.
func (id ItemID) Greater(other ItemID) bool {
	return other.Less(id)
}

// String renders an ItemID for logging.
func (id ItemID) String() string {
	return fmt.Sprintf("%d@%s", id.Logical, id.Peer)
}
