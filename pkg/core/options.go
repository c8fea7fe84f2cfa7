package core

import (
	"crypto/rand"
	"io"

	"github.com/jabolina/rga-sync/internal/logging"
)

// PeerOption configures a Peer at construction time. The
// configuration surface is intentionally small: everything about a
// Peer's behavior is deterministic given its inputs, so only the
// logger and the entropy source behind NewRandomPeer are injectable.
type PeerOption func(*peerOptions)

type peerOptions struct {
	log    logging.Logger
	random io.Reader
}

// WithLogger overrides the Peer's logger. Defaults to
// logging.NewDefaultLogger() when not supplied.
func WithLogger(log logging.Logger) PeerOption {
	return func(o *peerOptions) {
		o.log = log
	}
}

// WithRandomSource overrides the entropy source NewRandomPeer mints
// its identity from. Defaults to crypto/rand. Peers constructed with
// an explicit identity via NewPeer never read from it.
func WithRandomSource(random io.Reader) PeerOption {
	return func(o *peerOptions) {
		o.random = random
	}
}

func resolveOptions(opts []PeerOption) *peerOptions {
	o := &peerOptions{
		log:    logging.NewDefaultLogger(),
		random: rand.Reader,
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}
