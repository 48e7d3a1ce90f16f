// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip implements the per-creator event DAG consumed by virtual
// voting: self-parent/other-parent linked events, out-of-order buffering,
// and equivocation detection. This DAG is distinct from the lattice DAG —
// an event's Strings field is the bridge between the two.
package gossip

import (
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/hash"
	"github.com/luxfi/rope/utils/set"
)

// Event is a single node's gossip-event DAG vertex.
type Event struct {
	ID          ids.ID
	Creator     ids.NodeID
	SelfParent  ids.ID // zero value = genesis event for this creator
	OtherParent ids.ID // zero value = no cross-link yet
	Strings     []ids.ID
	Timestamp   clock.LamportClock
	Round       uint64 // derived, not authored; filled in by the voting package
}

// ComputeID derives the event's content-addressed id from its fields
// other than Round (which is derived after acceptance).
func (e *Event) ComputeID() ids.ID {
	var buf []byte
	buf = append(buf, e.Creator[:]...)
	buf = append(buf, e.SelfParent[:]...)
	buf = append(buf, e.OtherParent[:]...)
	for _, s := range e.Strings {
		buf = append(buf, s[:]...)
	}
	buf = append(buf, e.Timestamp.Bytes()...)
	digest := hash.Sum256(buf)
	return ids.ID(digest)
}

// DAG is the process-wide gossip-event DAG: accepted events plus the
// current head (latest accepted self-parent) per creator, buffered
// out-of-order arrivals, and the forked-creator set.
type DAG struct {
	mu sync.RWMutex

	events map[ids.ID]*Event
	heads  map[ids.NodeID]ids.ID // latest accepted event per creator
	// pending holds events whose self_parent has not yet been accepted.
	pending map[ids.ID][]*Event
	// selfParentSeen tracks, per creator, which self_parent ids have
	// already produced an accepted child — a second child flags a fork.
	selfParentSeen map[ids.NodeID]map[ids.ID]ids.ID
	forked         set.Set[ids.NodeID]
}

// NewDAG returns an empty gossip-event DAG.
func NewDAG() *DAG {
	return &DAG{
		events:         make(map[ids.ID]*Event),
		heads:          make(map[ids.NodeID]ids.ID),
		pending:        make(map[ids.ID][]*Event),
		selfParentSeen: make(map[ids.NodeID]map[ids.ID]ids.ID),
		forked:         set.NewSet[ids.NodeID](0),
	}
}

// Add submits an event for acceptance. An event is accepted immediately if
// its self_parent and other_parent are both already present (or zero,
// marking a per-creator genesis / missing cross-link). Otherwise it is
// buffered until its self_parent arrives. Returns the list of events
// (possibly more than one, via cascading buffered descendants) that
// became accepted as a result of this call.
func (d *DAG) Add(e *Event) []*Event {
	if e.ID == (ids.ID{}) {
		e.ID = e.ComputeID()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.readyLocked(e) {
		d.pending[e.SelfParent] = append(d.pending[e.SelfParent], e)
		return nil
	}

	accepted := []*Event{e}
	d.acceptLocked(e)

	// Re-evaluate buffered descendants whose self_parent is now this
	// event's id.
	queue := []ids.ID{e.ID}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		waiting := d.pending[parentID]
		delete(d.pending, parentID)
		for _, w := range waiting {
			if d.readyLocked(w) {
				d.acceptLocked(w)
				accepted = append(accepted, w)
				queue = append(queue, w.ID)
			} else {
				d.pending[w.SelfParent] = append(d.pending[w.SelfParent], w)
			}
		}
	}
	return accepted
}

func (d *DAG) readyLocked(e *Event) bool {
	if e.SelfParent != (ids.ID{}) {
		if _, ok := d.events[e.SelfParent]; !ok {
			return false
		}
	}
	if e.OtherParent != (ids.ID{}) {
		if _, ok := d.events[e.OtherParent]; !ok {
			return false
		}
	}
	return true
}

func (d *DAG) acceptLocked(e *Event) {
	d.events[e.ID] = e

	seen, ok := d.selfParentSeen[e.Creator]
	if !ok {
		seen = make(map[ids.ID]ids.ID)
		d.selfParentSeen[e.Creator] = seen
	}
	if existing, ok := seen[e.SelfParent]; ok && existing != e.ID {
		// Equivocation: two events from this creator share a
		// self_parent. The creator is flagged forked; existing
		// consensus assignments are unaffected (§4.7 failure
		// semantics) — the voting package consults IsForked.
		d.forked.Add(e.Creator)
	} else {
		seen[e.SelfParent] = e.ID
	}

	d.heads[e.Creator] = e.ID
}

// Get returns an accepted event by id.
func (d *DAG) Get(id ids.ID) (*Event, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.events[id]
	return e, ok
}

// Head returns the latest accepted event for creator, if any.
func (d *DAG) Head(creator ids.NodeID) (ids.ID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.heads[creator]
	return id, ok
}

// IsForked reports whether creator has been flagged for equivocation.
func (d *DAG) IsForked(creator ids.NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.forked.Contains(creator)
}

// AllEvents returns every accepted event, for callers (the voting
// package) that need to scan the full DAG.
func (d *DAG) AllEvents() []*Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Event, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e)
	}
	return out
}

// Batch bounds a single gossip frame to config.MaxGossipBatch events, as
// required by the admission control referenced in §5/§6.
func Batch(events []*Event) [][]*Event {
	var batches [][]*Event
	for len(events) > 0 {
		n := config.MaxGossipBatch
		if n > len(events) {
			n = len(events)
		}
		batches = append(batches, events[:n])
		events = events[n:]
	}
	return batches
}
