// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clock implements Lamport logical clocks with causal parent-set
// tracking, used to stamp strings and gossip events with a happened-before
// relation independent of wall-clock time.
package clock

import (
	"bytes"
	"sync"

	"github.com/luxfi/ids"
)

// ParentObservation records that this clock last observed nodeID at the
// given logical time.
type ParentObservation struct {
	NodeID ids.NodeID
	Time   uint64
}

// LamportClock is a single node's logical clock plus the set of
// (creator, time) pairs it has observed since the last increment.
type LamportClock struct {
	LogicalTime   uint64
	NodeID        ids.NodeID
	CausalParents []ParentObservation
}

// New returns a clock for nodeID starting at logical time 0.
func New(nodeID ids.NodeID) LamportClock {
	return LamportClock{NodeID: nodeID}
}

// WithTime returns a clock for nodeID starting at the given logical time.
func WithTime(nodeID ids.NodeID, t uint64) LamportClock {
	return LamportClock{NodeID: nodeID, LogicalTime: t}
}

// Increment advances the clock for a local event with no cross-node
// observation and clears the causal parent set (the new event's own
// parent set is built fresh by subsequent Observe calls, if any).
func (c *LamportClock) Increment() {
	c.LogicalTime++
	c.CausalParents = nil
}

// Observe merges in another clock's reading: logical_time becomes
// max(self, other)+1, and (other.NodeID, other.LogicalTime) is appended to
// the causal parent set.
func (c *LamportClock) Observe(other LamportClock) {
	if other.LogicalTime > c.LogicalTime {
		c.LogicalTime = other.LogicalTime
	}
	c.LogicalTime++
	c.CausalParents = append(c.CausalParents, ParentObservation{NodeID: other.NodeID, Time: other.LogicalTime})
}

// ObserveMany merges in several clocks in sequence.
func (c *LamportClock) ObserveMany(others []LamportClock) {
	for _, other := range others {
		c.Observe(other)
	}
}

// HappenedBefore reports whether a happened-before b: a.LogicalTime <
// b.LogicalTime and b's causal parent set records having observed a's
// creator at a time at least a's logical time.
func HappenedBefore(a, b LamportClock) bool {
	if a.LogicalTime >= b.LogicalTime {
		return false
	}
	for _, p := range b.CausalParents {
		if p.NodeID == a.NodeID && p.Time >= a.LogicalTime {
			return true
		}
	}
	return false
}

// Concurrent reports whether neither a happened-before b nor b
// happened-before a.
func Concurrent(a, b LamportClock) bool {
	return !HappenedBefore(a, b) && !HappenedBefore(b, a)
}

// Compare orders two clocks primarily by logical time, tie-broken by
// byte-lexicographic node id — the total order used for consensus
// tie-breaking.
func Compare(a, b LamportClock) int {
	if a.LogicalTime != b.LogicalTime {
		if a.LogicalTime < b.LogicalTime {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.NodeID[:], b.NodeID[:])
}

// Bytes returns a canonical encoding of the clock's logical time and node
// id, used when the clock itself is hashed (e.g. as part of a string's
// canonical encoding).
func (c LamportClock) Bytes() []byte {
	out := make([]byte, 8+len(c.NodeID))
	out[0] = byte(c.LogicalTime >> 56)
	out[1] = byte(c.LogicalTime >> 48)
	out[2] = byte(c.LogicalTime >> 40)
	out[3] = byte(c.LogicalTime >> 32)
	out[4] = byte(c.LogicalTime >> 24)
	out[5] = byte(c.LogicalTime >> 16)
	out[6] = byte(c.LogicalTime >> 8)
	out[7] = byte(c.LogicalTime)
	copy(out[8:], c.NodeID[:])
	return out
}

// Manager wraps a LamportClock behind a mutex for concurrent use by
// multiple subsystems (gossip ingest, string submission).
type Manager struct {
	mu    sync.Mutex
	clock LamportClock
}

// NewManager returns a Manager for nodeID.
func NewManager(nodeID ids.NodeID) *Manager {
	return &Manager{clock: New(nodeID)}
}

// Now returns a snapshot of the current clock.
func (m *Manager) Now() LamportClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// Tick advances the clock for a purely local event and returns the new
// reading.
func (m *Manager) Tick() LamportClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock.Increment()
	return m.clock
}

// ObserveOne merges in a remote clock reading and returns the new local
// reading.
func (m *Manager) ObserveOne(other LamportClock) LamportClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock.Observe(other)
	return m.clock
}

// ObserveMany merges in several remote clock readings and returns the new
// local reading.
func (m *Manager) ObserveMany(others []LamportClock) LamportClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock.ObserveMany(others)
	return m.clock
}
