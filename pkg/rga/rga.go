// Package rga implements the replicated ordered list: an RGA
// (Replicated Growable Array) keyed by ItemID, where concurrent
// inserts at the same anchor are broken by a deterministic
// descending-ItemID order and deletions leave tombstones forever.
package rga

import (
	"sync"

	"github.com/jabolina/rga-sync/internal/errs"
	"github.com/jabolina/rga-sync/internal/ids"
	"github.com/jabolina/rga-sync/internal/logging"
	"github.com/jabolina/rga-sync/pkg/types"
)

// ClockSource mints fresh ItemIDs on behalf of the list's owner. In
// practice this is the owning Peer, but OrderedList depends only on
// this narrow interface so the two packages don't import each other.
type ClockSource interface {
	NextID() ids.ItemID
	OwnPeerID() ids.PeerID
}

// OpSink receives freshly produced local operations for buffering and
// eventual transmission.
type OpSink[V any] interface {
	SendOperation(op types.Op[V])
}

// node is one element ever inserted into the list, live or tombstoned.
// Nodes are arranged in a singly linked list in RGA linearization
// order; next is nil at the tail. Nodes are create-only: after
// construction only deleted changes, plus next when a later insert is
// linked in right after this node.
type node[V any] struct {
	id        ids.ItemID
	reference ids.ItemID // the anchor this node was inserted after
	value     V
	deleted   bool
	next      *node[V]
}

// OrderedList is the RGA-ordered sequence of values of type V. V is
// opaque to this package; callers are responsible for whatever
// serialization their transport needs.
type OrderedList[V any] struct {
	mu       sync.RWMutex
	log      logging.Logger
	clock    ClockSource
	sink     OpSink[V]
	root     *node[V]
	registry map[ids.ItemID]*node[V]
}

// New creates an empty OrderedList. clock and sink are typically the
// same Peer instance, satisfying both narrow interfaces.
func New[V any](clock ClockSource, sink OpSink[V], log logging.Logger) *OrderedList[V] {
	root := &node[V]{id: ids.Zero}
	return &OrderedList[V]{
		log:      log,
		clock:    clock,
		sink:     sink,
		root:     root,
		registry: map[ids.ItemID]*node[V]{ids.Zero: root},
	}
}

// Insert places value at visible position index (0-based over
// non-deleted nodes), mints a fresh ItemID for it, applies the
// resulting InsertOp locally, and enqueues it for transmission.
// index must be in [0, Len()]; anything else panics.
func (l *OrderedList[V]) Insert(index int, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	anchor := l.visibleNodeBefore(index)
	if index != 0 && anchor == nil {
		panic("rga: Insert index out of range")
	}
	newID := l.clock.NextID()
	refID := ids.Zero
	if anchor != nil {
		refID = anchor.id
	}
	op := types.InsertOp[V]{ReferenceID: refID, NewID: newID, Value: value}

	if err := l.integrateInsert(refID, newID, value); err != nil {
		// refID was just read from the live list under the same lock,
		// so this can only be a bug in integrateInsert, not a protocol
		// violation: a local operation can never reference an unknown id.
		panic(err)
	}
	l.log.Debugf("rga: inserted %v at visible index %d", newID, index)
	l.sink.SendOperation(op)
}

// Delete tombstones the visible element at index, mints a fresh
// ItemID purely to advance the Lamport clock and give the delete event
// its own causal identity (DeleteTS has no ordering role), and
// enqueues the resulting DeleteOp. index must be in [0, Len());
// anything else panics.
func (l *OrderedList[V]) Delete(index int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	target := l.visibleNodeAt(index)
	if target == nil {
		panic("rga: Delete index out of range")
	}
	deleteTS := l.clock.NextID()
	target.deleted = true
	l.log.Debugf("rga: tombstoned %v at visible index %d", target.id, index)
	l.sink.SendOperation(types.DeleteOp{DeleteID: target.id, DeleteTS: deleteTS})
}

// ToSequence materializes the current visible sequence.
func (l *OrderedList[V]) ToSequence() []V {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []V
	for n := l.root.next; n != nil; n = n.next {
		if !n.deleted {
			out = append(out, n.value)
		}
	}
	return out
}

// Len returns the number of currently visible (non-tombstoned)
// elements.
func (l *OrderedList[V]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for cur := l.root.next; cur != nil; cur = cur.next {
		if !cur.deleted {
			n++
		}
	}
	return n
}

// ApplyOperation applies a remote insert or delete received from
// origin. ClockUpdateOp and MessageProcessedOp never reach here; the
// causal delivery loop in Peer handles those itself.
func (l *OrderedList[V]) ApplyOperation(origin ids.PeerID, op types.Op[V]) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch o := op.(type) {
	case types.InsertOp[V]:
		return l.applyRemoteInsert(origin, o)
	case types.DeleteOp:
		return l.applyRemoteDelete(origin, o)
	default:
		panic("rga: ApplyOperation called with a non-list op")
	}
}

func (l *OrderedList[V]) applyRemoteInsert(origin ids.PeerID, op types.InsertOp[V]) error {
	if _, exists := l.registry[op.NewID]; exists {
		l.log.Warnf("rga: %s replayed insert of %v", origin, op.NewID)
		return errs.New(errs.DuplicateItemId, origin, nil, op.NewID)
	}
	if _, ok := l.registry[op.ReferenceID]; !ok {
		l.log.Warnf("rga: insert %v from %s references unknown %v", op.NewID, origin, op.ReferenceID)
		return errs.New(errs.UnknownReference, origin, nil, op.ReferenceID)
	}
	if err := l.integrateInsert(op.ReferenceID, op.NewID, op.Value); err != nil {
		return err
	}
	l.log.Debugf("rga: applied insert %v from %s", op.NewID, origin)
	return nil
}

func (l *OrderedList[V]) applyRemoteDelete(origin ids.PeerID, op types.DeleteOp) error {
	target, ok := l.registry[op.DeleteID]
	if !ok {
		l.log.Warnf("rga: delete from %s targets unknown %v", origin, op.DeleteID)
		return errs.New(errs.UnknownReference, origin, nil, op.DeleteID)
	}
	target.deleted = true // idempotent: re-applying a delete is a no-op
	l.log.Debugf("rga: applied delete of %v from %s", op.DeleteID, origin)
	return nil
}

// integrateInsert performs the RGA placement rule: starting from the
// successor of the reference node, skip forward over any node whose id
// sorts after newID, and insert immediately before the first node that
// doesn't, or at the end of that run.
//
// The walk is deliberately not scoped to direct siblings (nodes
// sharing the same reference); it compares against every node in the
// successor chain regardless of anchor. Restricting to same-reference
// siblings does not converge: with two peers each building an
// independent two-element chain off the list head and then
// cross-delivering, a sibling-scoped walk stops at the first node
// belonging to the other peer's chain (its reference differs), leaving
// one peer's insert wedged inside the other's chain, so the two
// replicas linearize the four elements in different orders. The
// unscoped walk keeps comparing down the full successor chain until an
// ItemID sorts lower, so both replicas produce the same order
// independent of delivery order.
func (l *OrderedList[V]) integrateInsert(refID, newID ids.ItemID, value V) error {
	ref, ok := l.registry[refID]
	if !ok {
		l.log.Warnf("rga: integrate of %v lost its reference %v", newID, refID)
		return errs.New(errs.UnknownReference, l.clock.OwnPeerID(), nil, refID)
	}

	prev := ref
	cur := ref.next
	for cur != nil && cur.id.Greater(newID) {
		prev = cur
		cur = cur.next
	}

	n := &node[V]{id: newID, reference: refID, value: value}
	n.next = cur
	prev.next = n
	l.registry[newID] = n
	return nil
}

// visibleNodeAt returns the node currently at visible position index,
// or nil if out of range.
func (l *OrderedList[V]) visibleNodeAt(index int) *node[V] {
	i := 0
	for n := l.root.next; n != nil; n = n.next {
		if n.deleted {
			continue
		}
		if i == index {
			return n
		}
		i++
	}
	return nil
}

// visibleNodeBefore returns the visible node at position index-1, or
// nil when index==0 (insert at head).
func (l *OrderedList[V]) visibleNodeBefore(index int) *node[V] {
	if index == 0 {
		return nil
	}
	return l.visibleNodeAt(index - 1)
}
