// Package matrix implements the PeerMatrix: a compact, locally-indexed
// representation of every peer's vector clock, able to answer
// causal-readiness queries and to emit an incremental diff of what has
// changed since the last flush instead of a full vector on every
// message.
package matrix

import (
	"sort"
	"sync"

	"github.com/jabolina/rga-sync/internal/errs"
	"github.com/jabolina/rga-sync/internal/ids"
	"github.com/jabolina/rga-sync/internal/logging"
	"github.com/jabolina/rga-sync/pkg/types"
)

// PeerMatrix tracks, for the local peer and for every remote peer it
// has exchanged clock updates with, a view of that peer's vector
// clock: how many messages it has processed from every peer it knows
// about.
//
// Storage model: a PeerVClockEntry always carries the subject's PeerID
// alongside its locally-assigned index, never compressed away, so the
// actual clock comparisons in this package are keyed directly by
// PeerID. The LocalIndex bookkeeping (ownIndex/ownPeers, remoteAssign)
// upholds the index-assignment contract (indices strictly sequential
// per observer, mappings never contradicted), while the
// wire-compactness benefit those indices exist for is the serializer's
// concern.
type PeerMatrix struct {
	mu  sync.Mutex
	log logging.Logger
	own ids.PeerID

	// Our own index assignment, in assignment order. ownPeers[0] is
	// always own.
	ownPeers []ids.PeerID
	ownIndex map[ids.PeerID]types.LocalIndex

	// remoteAssign[origin] is the index->peerID table origin has
	// declared for itself through its clock updates.
	remoteAssign map[ids.PeerID][]ids.PeerID

	// clocks[observer][subject] = msg_count, the 2-D table collapsed
	// to PeerID keys. clocks[own][p] is our own knowledge of
	// p; clocks[origin][p] is origin's self-reported knowledge of p,
	// learned from a ClockUpdate origin sent us.
	clocks map[ids.PeerID]map[ids.PeerID]uint64

	// lastSeenMsgCount[p] is the last msg_count accepted from p via
	// ProcessedIncomingMsg, used to enforce the +1 invariant.
	lastSeenMsgCount map[ids.PeerID]uint64

	pending *clockUpdateBuilder
}

// New creates a PeerMatrix for own, with own pre-registered at local
// index 0. Every peer occupies slot 0 of its own vector.
func New(own ids.PeerID, log logging.Logger) *PeerMatrix {
	m := &PeerMatrix{
		log:              log,
		own:              own,
		ownPeers:         []ids.PeerID{own},
		ownIndex:         map[ids.PeerID]types.LocalIndex{own: 0},
		remoteAssign:     map[ids.PeerID][]ids.PeerID{},
		clocks:           map[ids.PeerID]map[ids.PeerID]uint64{own: {own: 0}},
		lastSeenMsgCount: map[ids.PeerID]uint64{},
		pending:          newClockUpdateBuilder(),
	}
	return m
}

// OwnPeerID returns the local peer's identity.
func (m *PeerMatrix) OwnPeerID() ids.PeerID {
	return m.own
}

// PeerIDToIndex returns peerID's existing local index, assigning the
// next sequential one if this is the first time peerID is seen.
// Assigning a new index records the assignment in the pending local
// clock update, so it is eventually announced to remote peers.
func (m *PeerMatrix) PeerIDToIndex(peerID ids.PeerID) types.LocalIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peerIDToIndexLocked(peerID)
}

func (m *PeerMatrix) peerIDToIndexLocked(peerID ids.PeerID) types.LocalIndex {
	if idx, ok := m.ownIndex[peerID]; ok {
		return idx
	}
	idx := types.LocalIndex(len(m.ownPeers))
	m.ownPeers = append(m.ownPeers, peerID)
	m.ownIndex[peerID] = idx
	if m.clocks[m.own] == nil {
		m.clocks[m.own] = map[ids.PeerID]uint64{}
	}
	m.pending.record(peerID, idx, m.clocks[m.own][peerID])
	m.log.Debugf("peer matrix: assigned local index %d to %s", idx, peerID)
	return idx
}

// RemoteIndexToPeerID translates an index as used by origin back to a
// global PeerID.
func (m *PeerMatrix) RemoteIndexToPeerID(origin ids.PeerID, remoteIndex types.LocalIndex) (ids.PeerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.remoteAssign[origin]
	if int(remoteIndex) < 0 || int(remoteIndex) >= len(row) {
		m.log.Warnf("peer matrix: %s has no mapping for index %d", origin, remoteIndex)
		return "", errs.New(errs.UnknownRemoteIndex, origin, nil, remoteIndex)
	}
	return row[remoteIndex], nil
}

// PeerIndexMapping records that origin has assigned subjectIndex to
// subjectID. subjectID may be nil when the caller only wants to assert
// the index is already known (e.g. while replaying an entry that
// should already have an established mapping).
func (m *PeerMatrix) PeerIndexMapping(origin ids.PeerID, subjectID *ids.PeerID, subjectIndex types.LocalIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peerIndexMappingLocked(origin, subjectID, subjectIndex)
}

func (m *PeerMatrix) peerIndexMappingLocked(origin ids.PeerID, subjectID *ids.PeerID, subjectIndex types.LocalIndex) error {
	m.seedOriginLocked(origin)
	row := m.remoteAssign[origin]

	if int(subjectIndex) < len(row) {
		existing := row[subjectIndex]
		if subjectID != nil && existing != *subjectID {
			m.log.Warnf("peer matrix: %s remapped index %d from %s to %s", origin, subjectIndex, existing, *subjectID)
			return errs.New(errs.ContradictoryMapping, origin, existing, *subjectID)
		}
		return nil
	}

	if int(subjectIndex) != len(row) {
		m.log.Warnf("peer matrix: %s skipped from index %d to %d", origin, len(row), subjectIndex)
		return errs.New(errs.NonConsecutiveIndex, origin, types.LocalIndex(len(row)), subjectIndex)
	}
	if subjectID == nil {
		m.log.Warnf("peer matrix: %s announced new index %d without a peer id", origin, subjectIndex)
		return errs.New(errs.NewIndexMissingId, origin, "peer id", nil)
	}

	m.remoteAssign[origin] = append(row, *subjectID)
	return nil
}

// seedOriginLocked pre-populates origin's own index-0 slot with
// itself. Every peer holds index 0 of its own vector unconditionally:
// an origin's own identity at its own index 0 is never transmitted as
// a clock-update entry (there is nothing to diff: it's always itself),
// so a receiver must seed this fact rather than wait to observe it, or
// the first real entry (index 1, the origin's first known peer) would
// look non-consecutive.
func (m *PeerMatrix) seedOriginLocked(origin ids.PeerID) {
	if _, ok := m.remoteAssign[origin]; ok {
		return
	}
	m.remoteAssign[origin] = []ids.PeerID{origin}
}

// ApplyClockUpdate installs/confirms the index mapping for each entry
// in update (in the order given), then advances the corresponding
// msg_count. Going backwards is a ClockWentBackwards violation.
func (m *PeerMatrix) ApplyClockUpdate(origin ids.PeerID, update types.ClockUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range update {
		id := entry.PeerID
		if err := m.peerIndexMappingLocked(origin, &id, entry.PeerIndex); err != nil {
			return err
		}

		if m.clocks[origin] == nil {
			m.clocks[origin] = map[ids.PeerID]uint64{}
		}
		old := m.clocks[origin][entry.PeerID]
		if entry.MsgCount < old {
			m.log.Warnf("peer matrix: %s rewound its clock for %s from %d to %d", origin, entry.PeerID, old, entry.MsgCount)
			return errs.New(errs.ClockWentBackwards, origin, old, entry.MsgCount)
		}
		m.clocks[origin][entry.PeerID] = entry.MsgCount
		m.log.Debugf("peer matrix: %s's knowledge of %s advanced to %d", origin, entry.PeerID, entry.MsgCount)
	}
	return nil
}

// IncrementSentMessages bumps our own send counter and returns the
// new value. Called exactly once per outbound message, from
// Peer.MakeMessage.
func (m *PeerMatrix) IncrementSentMessages() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.clocks[m.own] == nil {
		m.clocks[m.own] = map[ids.PeerID]uint64{}
	}
	m.clocks[m.own][m.own]++
	return m.clocks[m.own][m.own]
}

// ProcessedIncomingMsg records that msgCount is the most recent
// message processed from origin. Requires msgCount == last_seen + 1.
// Updates both our own knowledge of origin and origin's slot for
// itself, and records the change in the pending local clock update.
func (m *PeerMatrix) ProcessedIncomingMsg(origin ids.PeerID, msgCount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := m.lastSeenMsgCount[origin]
	if msgCount > last+1 {
		m.log.Warnf("peer matrix: %s jumped from message %d to %d", origin, last, msgCount)
		return errs.New(errs.MsgCountJumped, origin, last+1, msgCount)
	}
	if msgCount <= last {
		m.log.Warnf("peer matrix: %s replayed message %d, already at %d", origin, msgCount, last)
		return errs.New(errs.MsgCountBackwards, origin, last+1, msgCount)
	}

	m.lastSeenMsgCount[origin] = msgCount

	idx := m.peerIDToIndexLocked(origin)
	if m.clocks[m.own] == nil {
		m.clocks[m.own] = map[ids.PeerID]uint64{}
	}
	m.clocks[m.own][origin] = msgCount // our row

	if m.clocks[origin] == nil {
		m.clocks[origin] = map[ids.PeerID]uint64{}
	}
	m.clocks[origin][origin] = msgCount // origin's own slot

	m.pending.record(origin, idx, msgCount)
	m.log.Debugf("peer matrix: processed message %d from %s", msgCount, origin)
	return nil
}

// CausallyReady reports whether every op currently buffered for
// remotePeerID can be safely delivered: for every peer p known to
// either side (except remotePeerID itself), our knowledge of p is at
// least as current as remotePeerID's own reported knowledge of p.
// Unknown peers are treated as count 0 on either side.
func (m *PeerMatrix) CausallyReady(remotePeerID ids.PeerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	local := m.clocks[m.own]
	remote := m.clocks[remotePeerID]

	known := map[ids.PeerID]struct{}{}
	for p := range local {
		known[p] = struct{}{}
	}
	for p := range remote {
		known[p] = struct{}{}
	}

	for p := range known {
		if p == remotePeerID {
			continue
		}
		if local[p] < remote[p] {
			return false
		}
	}
	return true
}

// Clocks returns a read-only snapshot of the local peer's own vector
// clock, keyed by PeerID. Debug/introspection view, not a wire format.
func (m *PeerMatrix) Clocks() map[ids.PeerID]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[ids.PeerID]uint64, len(m.clocks[m.own]))
	for p, c := range m.clocks[m.own] {
		out[p] = c
	}
	return out
}

// HasPendingClockUpdate reports whether the local clock diff
// accumulated since the last ResetClockUpdate is non-empty.
func (m *PeerMatrix) HasPendingClockUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.pending.empty()
}

// SnapshotClockUpdate freezes the pending local diff into an ordered
// ClockUpdate without clearing it.
func (m *PeerMatrix) SnapshotClockUpdate() types.ClockUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.freeze()
}

// ResetClockUpdate clears the pending local diff. Called immediately
// after the diff is packaged into an outbound message.
func (m *PeerMatrix) ResetClockUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.reset()
}

// clockUpdateBuilder accumulates the local peer's pending clock diff:
// the (peer, index, msg_count) triples that have changed since the
// last flush, deduplicated per peer (only the latest value before a
// flush matters).
type clockUpdateBuilder struct {
	entries map[ids.PeerID]types.PeerVClockEntry
}

func newClockUpdateBuilder() *clockUpdateBuilder {
	return &clockUpdateBuilder{entries: map[ids.PeerID]types.PeerVClockEntry{}}
}

func (b *clockUpdateBuilder) record(peer ids.PeerID, index types.LocalIndex, msgCount uint64) {
	b.entries[peer] = types.PeerVClockEntry{PeerID: peer, PeerIndex: index, MsgCount: msgCount}
}

func (b *clockUpdateBuilder) empty() bool {
	return len(b.entries) == 0
}

func (b *clockUpdateBuilder) freeze() types.ClockUpdate {
	out := make(types.ClockUpdate, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerIndex < out[j].PeerIndex })
	return out
}

func (b *clockUpdateBuilder) reset() {
	b.entries = map[ids.PeerID]types.PeerVClockEntry{}
}
