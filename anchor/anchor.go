// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package anchor implements anchor string emission and finality tracking.
// An anchor is the hashgraph-equivalent of a decided round's famous
// witnesses: an immutable string whose parents are the previous anchor
// plus the round's famous-witness-carried string ids.
package anchor

import (
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/crypto/hash"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/lattice"
)

// Anchor is the in-memory record of an emitted anchor string, carrying
// the evidence trail for why its round was decided.
type Anchor struct {
	StringID      ids.ID
	Round         uint64
	StronglySees  []ids.ID // witness ids this anchor's round strongly saw
	TestimonyCount uint32
	IsFamous      bool // always true for an emitted anchor; kept for symmetry with AnchorString's source shape
}

// ID returns the anchor's StringId.
func (a *Anchor) ID() ids.ID {
	return a.StringID
}

// Chain tracks the ordered sequence of emitted anchors and each covered
// string's finality confirmations.
type Chain struct {
	mu       sync.Mutex
	store    *lattice.Store
	anchors  []*Anchor
	byRound  map[uint64]*Anchor
	// confirmedAt records, for every string included in some anchor, the
	// index (into anchors) of the anchor that first included it.
	confirmedAt map[ids.ID]int
}

// NewChain returns an empty anchor chain bound to store.
func NewChain(store *lattice.Store) *Chain {
	return &Chain{
		store:       store,
		byRound:     make(map[uint64]*Anchor),
		confirmedAt: make(map[ids.ID]int),
	}
}

// Emit builds, signs, and records the anchor for a newly-decided round.
// Anchors must be emitted in strictly ascending round order (§5).
func (c *Chain) Emit(round uint64, orderedStrings []ids.ID, stronglySees []ids.ID, reading clock.LamportClock, pub *envelope.PublicKey, sk *envelope.SecretKey) (*Anchor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.anchors) > 0 && round <= c.anchors[len(c.anchors)-1].Round {
		return nil, errs.Newf(errs.InvalidAnchor, "round %d is not strictly greater than last emitted round %d", round, c.anchors[len(c.anchors)-1].Round)
	}

	leaves := make([][hash.Size]byte, len(orderedStrings))
	for i, id := range orderedStrings {
		leaves[i] = hash.Sum256(id[:])
	}
	root := hash.ComputeRoot(leaves)

	parents := make([]ids.ID, 0, len(orderedStrings)+1)
	if len(c.anchors) > 0 {
		parents = append(parents, c.anchors[len(c.anchors)-1].StringID)
	}
	parents = append(parents, orderedStrings...)

	s := lattice.NewAnchor(round, root, uint32(len(orderedStrings)), parents, reading, pub, sk)
	id, err := c.store.Insert(s, reading.NodeID)
	if err != nil {
		return nil, err
	}

	a := &Anchor{StringID: id, Round: round, StronglySees: stronglySees, IsFamous: true}
	c.anchors = append(c.anchors, a)
	c.byRound[round] = a

	idx := len(c.anchors) - 1
	for _, sid := range orderedStrings {
		if _, seen := c.confirmedAt[sid]; !seen {
			c.confirmedAt[sid] = idx
		}
	}
	// the anchor itself is also confirmed as of its own emission
	c.confirmedAt[id] = idx

	return a, nil
}

// Anchors returns every emitted anchor, in ascending round order.
func (c *Chain) Anchors() []*Anchor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Anchor, len(c.anchors))
	copy(out, c.anchors)
	return out
}

// Status is the finality status exposed to callers.
type Status struct {
	Final               bool
	AnchorConfirmations int
	Required            int
}

// FinalityStatus reports whether id is final: it has FinalityAnchors
// anchor confirmations, the anchor that includes it counting as the first
// (so FinalityAnchors-1 later anchors must follow that one). Finality is
// monotone — once true for id, later calls never report false.
func (c *Chain) FinalityStatus(id ids.ID) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.confirmedAt[id]
	if !ok {
		return Status{Final: false, AnchorConfirmations: 0, Required: config.FinalityAnchors}
	}
	confirmations := len(c.anchors) - idx
	return Status{
		Final:               confirmations >= config.FinalityAnchors,
		AnchorConfirmations: confirmations,
		Required:            config.FinalityAnchors,
	}
}

// CurrentEpoch returns the OES epoch index implied by the number of
// anchors emitted so far (§4.2: an epoch boundary every
// OESEvolutionInterval anchors).
func (c *Chain) CurrentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.anchors)) / config.OESEvolutionInterval
}

// AnchorAtEpochBoundary returns the anchor that closed epoch e (the
// (e*OESEvolutionInterval)-th anchor, 1-indexed), or false if it has not
// been emitted yet.
func (c *Chain) AnchorAtEpochBoundary(e uint64) (*Anchor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := e*config.OESEvolutionInterval - 1
	if idx >= uint64(len(c.anchors)) {
		return nil, false
	}
	return c.anchors[idx], true
}
