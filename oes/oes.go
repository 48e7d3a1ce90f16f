// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oes implements the Organic Encryption State: a public,
// deterministic key ratchet bound to anchor cadence rather than to any
// secret share. Epoch keys evolve once per config.OESEvolutionInterval
// anchors and bind authorisation tokens to a consensus-finalised era.
package oes

import (
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/hash"
	"github.com/luxfi/rope/errs"
)

// Ratchet holds the evolving chain of epoch keys.
type Ratchet struct {
	mu      sync.RWMutex
	keys    [][hash.Size]byte // keys[e] is epoch e's key; keys[0] is the genesis key
	anchors []ids.ID          // anchors[e] is the boundary anchor that produced keys[e+1]
}

// New returns a ratchet seeded with genesisKey as epoch 0's key.
func New(genesisKey [hash.Size]byte) *Ratchet {
	return &Ratchet{keys: [][hash.Size]byte{genesisKey}}
}

// Evolve advances the ratchet to the next epoch given the anchor id that
// closed it. It must be called once per config.OESEvolutionInterval
// anchors, in order; anchorID is the boundary anchor's StringId.
func (r *Ratchet) Evolve(anchorID ids.ID) [hash.Size]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.keys[len(r.keys)-1]
	material := append(append([]byte(nil), anchorID[:]...), prev[:]...)
	next := hash.DeriveKey(config.DomainOESEpoch, material)

	r.keys = append(r.keys, next)
	r.anchors = append(r.anchors, anchorID)
	return next
}

// CurrentEpoch returns the highest epoch index the ratchet has evolved to.
func (r *Ratchet) CurrentEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.keys) - 1)
}

// KeyForEpoch returns the derived key for epoch e, if it has been reached.
func (r *Ratchet) KeyForEpoch(e uint64) ([hash.Size]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e >= uint64(len(r.keys)) {
		return [hash.Size]byte{}, errs.Newf(errs.InvalidOESGeneration, "epoch %d has not been reached (current %d)", e, len(r.keys)-1)
	}
	return r.keys[e], nil
}

// Valid reports whether epoch lies within config.GenerationWindow of the
// ratchet's current epoch. It implements testimony.EpochValidator.
func (r *Ratchet) Valid(epoch uint64) bool {
	current := r.CurrentEpoch()
	var diff uint64
	if epoch > current {
		diff = epoch - current
	} else {
		diff = current - epoch
	}
	return diff <= config.GenerationWindow
}

// AnchorCountToEpoch returns how many anchors must be emitted before
// epoch e is reached, given the evolution interval.
func AnchorCountToEpoch(e uint64) uint64 {
	return e * config.OESEvolutionInterval
}
