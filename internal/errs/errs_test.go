package errs

import (
	"errors"
	"testing"

	"github.com/jabolina/rga-sync/internal/ids"
)

func TestProtocolErrorIsMatchesKind(t *testing.T) {
	a := New(ClockWentBackwards, ids.PeerID("p1"), uint64(5), uint64(3))
	b := New(ClockWentBackwards, ids.PeerID("p2"), uint64(1), uint64(0))
	c := New(MsgCountJumped, ids.PeerID("p1"), uint64(5), uint64(3))

	if !errors.Is(a, b) {
		t.Error("errors of the same Kind should match via errors.Is, regardless of peer/values")
	}
	if errors.Is(a, c) {
		t.Error("errors of different Kind must not match")
	}
}

func TestProtocolErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(UnknownReference, ids.PeerID("p1"), nil, nil, cause)
	if !errors.Is(wrapped, cause) {
		t.Error("Wrap should preserve the underlying cause for errors.Is")
	}
}

func TestOfKind(t *testing.T) {
	err := New(NonConsecutiveIndex, ids.PeerID("p1"), 2, 5)
	if !OfKind(err, NonConsecutiveIndex) {
		t.Error("OfKind should report true for a matching kind")
	}
	if OfKind(err, ClockWentBackwards) {
		t.Error("OfKind should report false for a non-matching kind")
	}
	if OfKind(errors.New("plain"), NonConsecutiveIndex) {
		t.Error("OfKind should report false for a non-ProtocolError")
	}
}
