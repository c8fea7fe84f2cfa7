// Package core implements Peer, the single-threaded cooperative state
// machine tying everything together: it owns a peer's Lamport clock,
// its PeerMatrix, its OrderedList, and the send/receive buffering that
// turns a stream of Messages into causally-ordered delivery into the
// list.
//
// A Peer spawns no goroutines of its own: every exported method runs
// to completion and returns, and the causal delivery fixpoint is a
// single in-line loop driven directly from ProcessMessage. Concurrency
// exists only between distinct Peer instances, mediated by message
// passing.
package core

import (
	"sync"

	"github.com/jabolina/rga-sync/internal/ids"
	"github.com/jabolina/rga-sync/internal/logging"
	"github.com/jabolina/rga-sync/pkg/matrix"
	"github.com/jabolina/rga-sync/pkg/rga"
	"github.com/jabolina/rga-sync/pkg/types"
)

// Peer owns one replica's view of the ordered list: its own Lamport
// clock, its knowledge of every other peer's vector clock, and the
// per-origin inbound buffers that hold operations until they are
// causally ready to apply. A Peer is not safe for concurrent use from
// multiple goroutines without external synchronization; that is the
// host's responsibility.
type Peer[V any] struct {
	mu sync.Mutex

	log       logging.Logger
	own       ids.PeerID
	logicalTS ids.LogicalTimestamp

	matrix *matrix.PeerMatrix
	list   *rga.OrderedList[V]

	outbound []types.Op[V]
	recvBuf  map[ids.PeerID][]types.Op[V]
}

// NewPeer constructs a Peer with the given identity, for hosts that
// already have one (e.g. restored from storage).
func NewPeer[V any](own ids.PeerID, opts ...PeerOption) *Peer[V] {
	o := resolveOptions(opts)
	p := &Peer[V]{
		log:     o.log,
		own:     own,
		matrix:  matrix.New(own, o.log),
		recvBuf: map[ids.PeerID][]types.Op[V]{},
	}
	p.list = rga.New[V](p, p, o.log)
	return p
}

// NewRandomPeer constructs a Peer with a freshly minted 256-bit random
// identity, drawn from the configured entropy source (crypto/rand
// unless WithRandomSource overrides it).
func NewRandomPeer[V any](opts ...PeerOption) (*Peer[V], error) {
	o := resolveOptions(opts)
	own, err := ids.NewPeerIDFrom(o.random)
	if err != nil {
		return nil, err
	}
	return NewPeer[V](own, opts...), nil
}

// List returns the peer's OrderedList, the application's handle for
// inserting, deleting and reading the visible sequence.
func (p *Peer[V]) List() *rga.OrderedList[V] {
	return p.list
}

// Matrix returns the peer's PeerMatrix, exposed for introspection and
// testing.
func (p *Peer[V]) Matrix() *matrix.PeerMatrix {
	return p.matrix
}

// OwnPeerID implements rga.ClockSource.
func (p *Peer[V]) OwnPeerID() ids.PeerID {
	return p.own
}

// NextID implements rga.ClockSource: advances logical_ts by one and
// mints a fresh ItemID identifying the local peer.
func (p *Peer[V]) NextID() ids.ItemID {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logicalTS++
	return ids.ItemID{Logical: p.logicalTS, Peer: p.own}
}

// SendOperation implements rga.OpSink: buffers op for the next
// outbound message. If the PeerMatrix has a pending clock diff it is
// snapshotted into the buffer immediately before op, so every
// operation in the stream is preceded by the clock state reflecting
// its own causal dependencies.
func (p *Peer[V]) SendOperation(op types.Op[V]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.flushPendingClockUpdateLocked()
	p.outbound = append(p.outbound, op)
	p.log.Debugf("peer %s: buffered %v for transmission", p.own, op)
}

func (p *Peer[V]) flushPendingClockUpdateLocked() {
	if !p.matrix.HasPendingClockUpdate() {
		return
	}
	update := p.matrix.SnapshotClockUpdate()
	p.outbound = append(p.outbound, types.ClockUpdateOp{Entries: update})
	p.matrix.ResetClockUpdate()
	p.log.Debugf("peer %s: flushed clock update with %d entries", p.own, len(update))
}

// MakeMessage flushes any remaining pending clock update, packages the
// buffered operation stream as a Message, and resets the buffer.
// The message count is assigned here, at send time, not when each op
// was created.
func (p *Peer[V]) MakeMessage() types.Message[V] {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.flushPendingClockUpdateLocked()
	ops := p.outbound
	p.outbound = nil

	msgCount := p.matrix.IncrementSentMessages()
	p.log.Debugf("peer %s: packaged message %d with %d ops", p.own, msgCount, len(ops))
	return types.Message[V]{
		Origin:          p.own,
		MsgCount:        msgCount,
		Operations:      ops,
		ProtocolVersion: types.ProtocolVersion,
	}
}

// HasPendingOutbound reports whether a call to MakeMessage would
// produce a non-trivial message.
func (p *Peer[V]) HasPendingOutbound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.outbound) > 0 || p.matrix.HasPendingClockUpdate()
}

// ProcessMessage consumes a deserialized Message received from the
// network: it rejects an incompatible protocol version outright,
// otherwise it appends the message's operations (followed by a
// synthetic MessageProcessedOp marker) to the origin's inbound queue,
// then drains every queue to fixpoint, repeatedly delivering from
// whichever origin is causally ready until none is.
func (p *Peer[V]) ProcessMessage(message types.Message[V]) error {
	if err := types.CheckProtocolVersion(message.ProtocolVersion); err != nil {
		p.log.Warnf("peer %s: rejected message %d from %s: %v", p.own, message.MsgCount, message.Origin, err)
		return err
	}

	p.log.Debugf("peer %s: queued message %d from %s with %d ops", p.own, message.MsgCount, message.Origin, len(message.Operations))
	p.mu.Lock()
	queue := append(p.recvBuf[message.Origin], message.Operations...)
	queue = append(queue, types.MessageProcessedOp{MsgCount: message.MsgCount})
	p.recvBuf[message.Origin] = queue
	p.mu.Unlock()

	return p.drain()
}

// drain repeatedly picks any origin whose queue head is causally
// ready and drains it, until no origin qualifies. Running to fixpoint
// here (rather than draining once per ProcessMessage call) is what
// lets delivering one message unblock operations buffered earlier from
// a different origin.
func (p *Peer[V]) drain() error {
	for {
		origin, ready := p.pickReadyOrigin()
		if !ready {
			return nil
		}
		if err := p.drainOrigin(origin); err != nil {
			p.log.Errorf("peer %s: failed delivering from %s: %v", p.own, origin, err)
			return err
		}
	}
}

func (p *Peer[V]) pickReadyOrigin() (ids.PeerID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for origin, queue := range p.recvBuf {
		if len(queue) == 0 {
			continue
		}
		if p.matrix.CausallyReady(origin) {
			return origin, true
		}
	}
	return "", false
}

// drainOrigin dispatches ops from origin's queue in order until the
// queue empties or a ClockUpdateOp is applied, at which point it
// returns early so the caller's fixpoint loop re-evaluates readiness
// from scratch: applying a clock update may make subsequent ops from
// this very origin newly dependent on other origins that haven't
// caught up yet.
func (p *Peer[V]) drainOrigin(origin ids.PeerID) error {
	for {
		p.mu.Lock()
		queue := p.recvBuf[origin]
		if len(queue) == 0 {
			p.mu.Unlock()
			return nil
		}
		op := queue[0]
		p.recvBuf[origin] = queue[1:]
		p.mu.Unlock()

		switch o := op.(type) {
		case types.ClockUpdateOp:
			if err := p.matrix.ApplyClockUpdate(origin, o.Entries); err != nil {
				return err
			}
			return nil

		case types.MessageProcessedOp:
			if err := p.matrix.ProcessedIncomingMsg(origin, o.MsgCount); err != nil {
				return err
			}

		case types.InsertOp[V]:
			p.observeRemoteTimestamp(o.NewID.Logical)
			if err := p.list.ApplyOperation(origin, o); err != nil {
				return err
			}

		case types.DeleteOp:
			p.observeRemoteTimestamp(o.DeleteTS.Logical)
			if err := p.list.ApplyOperation(origin, o); err != nil {
				return err
			}

		default:
			panic("core: unknown op kind in receive buffer")
		}
	}
}

// observeRemoteTimestamp implements the Lamport-receive rule:
// logical_ts <- max(logical_ts, observed).
func (p *Peer[V]) observeRemoteTimestamp(observed ids.LogicalTimestamp) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if observed > p.logicalTS {
		p.logicalTS = observed
		p.log.Debugf("peer %s: advanced clock to %d", p.own, observed)
	}
}
