// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quorum implements the supermajority-of-active-validators
// threshold arithmetic shared by round decision, CEP erasure, and
// testimony quorum counting. Unlike a sampling-based consensus threshold
// (k/alpha/beta), every active validator is in scope and the threshold is
// always the exact integer ceil(2n/3).
package quorum

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/errs"
)

// Set is the active validator set consulted for thresholding. It holds
// NodeIDs only and carries no stake; counting is per-validator
// (one validator, one vote), matching the original protocol's NodeId-keyed
// majority rather than a stake-weighted one.
type Set struct {
	validators map[ids.NodeID]struct{}
}

// NewSet returns a validator set, rejecting sizes outside
// [MinValidators, MaxValidators].
func NewSet(members []ids.NodeID) (*Set, error) {
	if len(members) < config.MinValidators {
		return nil, errs.Newf(errs.InvalidInput, "validator set size %d below minimum %d", len(members), config.MinValidators)
	}
	if len(members) > config.MaxValidators {
		return nil, errs.Newf(errs.InvalidInput, "validator set size %d above maximum %d", len(members), config.MaxValidators)
	}
	m := make(map[ids.NodeID]struct{}, len(members))
	for _, id := range members {
		m[id] = struct{}{}
	}
	return &Set{validators: m}, nil
}

// NewSetUnchecked builds a Set without enforcing MinValidators/
// MaxValidators, for test harnesses exercising small validator counts
// (e.g. the four-validator scenarios in spec §8).
func NewSetUnchecked(members []ids.NodeID) *Set {
	m := make(map[ids.NodeID]struct{}, len(members))
	for _, id := range members {
		m[id] = struct{}{}
	}
	return &Set{validators: m}
}

// Len returns n, the active validator count.
func (s *Set) Len() int {
	return len(s.validators)
}

// Contains reports whether id is an active validator.
func (s *Set) Contains(id ids.NodeID) bool {
	_, ok := s.validators[id]
	return ok
}

// Members returns every active validator, in no particular order.
func (s *Set) Members() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(s.validators))
	for id := range s.validators {
		out = append(out, id)
	}
	return out
}

// Threshold returns t = ceil(2n/3) for this set's size.
func (s *Set) Threshold() int {
	return config.SupermajorityThreshold(s.Len())
}

// Tally counts distinct validator votes and reports whether the
// supermajority threshold has been met.
type Tally struct {
	set    *Set
	voters map[ids.NodeID]struct{}
}

// NewTally starts a fresh vote tally against set.
func NewTally(set *Set) *Tally {
	return &Tally{set: set, voters: make(map[ids.NodeID]struct{})}
}

// Vote records a vote from voter, ignoring voters outside the active set
// and duplicate votes from the same voter.
func (t *Tally) Vote(voter ids.NodeID) {
	if !t.set.Contains(voter) {
		return
	}
	t.voters[voter] = struct{}{}
}

// Count returns the number of distinct validators that have voted.
func (t *Tally) Count() int {
	return len(t.voters)
}

// Met reports whether the tally has reached the set's supermajority
// threshold.
func (t *Tally) Met() bool {
	return t.Count() >= t.set.Threshold()
}

// RequireMet returns QuorumNotMet if the tally has not reached threshold.
func (t *Tally) RequireMet() error {
	if t.Met() {
		return nil
	}
	return errs.Newf(errs.QuorumNotMet, "%d of required %d votes", t.Count(), t.set.Threshold()).WithQuorum(t.set.Threshold(), t.Count())
}
