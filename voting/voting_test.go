// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package voting

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/gossip"
	"github.com/luxfi/rope/quorum"
	"github.com/stretchr/testify/require"
)

// buildFourValidatorGenesisOnly returns four validators that have each
// emitted only their genesis event: no round-1 cross-links exist at all,
// so every round-0 witness has zero witnesses to consult at r+1 and
// DecideFamous must fall straight through to the deterministic tie-break.
func buildFourValidatorGenesisOnly(t *testing.T) (*Engine, []ids.ID) {
	t.Helper()

	names := []string{"A", "B", "C", "D"}
	nodeIDs := map[string]ids.NodeID{}
	for _, n := range names {
		nodeIDs[n] = ids.GenerateTestNodeID()
	}

	dag := gossip.NewDAG()
	var genesisIDs []ids.ID
	for _, n := range names {
		e := &gossip.Event{Creator: nodeIDs[n], Timestamp: clock.New(nodeIDs[n])}
		dag.Add(e)
		genesisIDs = append(genesisIDs, e.ID)
	}

	members := make([]ids.NodeID, 0, 4)
	for _, n := range names {
		members = append(members, nodeIDs[n])
	}
	set := quorum.NewSetUnchecked(members)

	eng := NewEngine(dag, set)
	for _, id := range genesisIDs {
		eng.AssignRound(id)
	}
	return eng, genesisIDs
}

// buildFourValidatorRound1 builds the layout of spec scenario 1: four
// validators {A,B,C,D} each emit a genesis event, then each emits one
// event cross-linked to a neighbour's genesis. One cross-link puts a single
// creator on the path to each genesis witness, short of the
// ceil(2*4/3)=3 distinct creators strong-seeing needs, so these
// cross-linked events stay in round 0.
func buildFourValidatorRound1(t *testing.T) (*Engine, map[string]ids.ID) {
	t.Helper()

	names := []string{"A", "B", "C", "D"}
	nodeIDs := map[string]ids.NodeID{}
	for _, n := range names {
		nodeIDs[n] = ids.GenerateTestNodeID()
	}

	dag := gossip.NewDAG()
	genesis := map[string]*gossip.Event{}
	for _, n := range names {
		e := &gossip.Event{Creator: nodeIDs[n], Timestamp: clock.New(nodeIDs[n])}
		dag.Add(e)
		genesis[n] = e
	}

	members := make([]ids.NodeID, 0, 4)
	for _, n := range names {
		members = append(members, nodeIDs[n])
	}
	set := quorum.NewSetUnchecked(members)

	eng := NewEngine(dag, set)
	for _, n := range names {
		eng.AssignRound(genesis[n].ID)
	}

	// Round-1 cross-links: A1=(A0,B0), B1=(B0,C0), C1=(C0,D0), D1=(D0,A0).
	links := map[string][2]string{
		"A": {"A", "B"},
		"B": {"B", "C"},
		"C": {"C", "D"},
		"D": {"D", "A"},
	}
	round1 := map[string]*gossip.Event{}
	for _, n := range names {
		self, other := links[n][0], links[n][1]
		e := &gossip.Event{
			Creator:     nodeIDs[n],
			SelfParent:  genesis[self].ID,
			OtherParent: genesis[other].ID,
			Timestamp:   clock.WithTime(nodeIDs[n], 1),
		}
		dag.Add(e)
		round1[n] = e
	}
	for _, n := range names {
		eng.AssignRound(round1[n].ID)
	}

	out := map[string]ids.ID{}
	for _, n := range names {
		out[n] = genesis[n].ID
	}
	return eng, out
}

func TestSingleCrossLinkKeepsWitnessRoundsWithinZeroAndOne(t *testing.T) {
	eng, _ := buildFourValidatorRound1(t)
	for r, byCreator := range eng.witnesses {
		require.Contains(t, []uint64{0, 1}, r)
		require.NotEmpty(t, byCreator)
	}
}

// TestDecideFamousFallsBackToLexicographicTieBreak exercises DecideFamous,
// RoundDecided and FamousWitnesses end to end against a round with no
// round-1 witnesses at all: every witness exhausts its vote window with
// zero recorded votes and lands on the tie-break fallback. Witnesses() and
// FamousWitnesses() both sort ascending, so regardless of the actual random
// event ids, exactly the lexicographically largest witness compares >= to
// every other witness and is the only one decided famous.
func TestDecideFamousFallsBackToLexicographicTieBreak(t *testing.T) {
	eng, _ := buildFourValidatorGenesisOnly(t)

	require.True(t, eng.RoundDecided(0))

	witnesses := eng.Witnesses(0)
	require.Len(t, witnesses, 4)
	maxWitness := witnesses[len(witnesses)-1]

	require.Equal(t, []ids.ID{maxWitness}, eng.FamousWitnesses(0))

	for _, w := range witnesses {
		decided, famous := eng.DecideFamous(0, w)
		require.True(t, decided)
		require.Equal(t, w == maxWitness, famous)
	}
}

// TestDecideFamousResolvesViaSupermajorityAcrossTwoRounds drives a single
// validator's self-parent chain through two rounds of increment so that a
// genuine round-2 witness strongly sees a round-1 witness that in turn saw
// the round-0 genesis: with one validator the quorum threshold is 1, so
// every strongly-sees check along the chain is trivially satisfied and the
// genesis witness is decided famous by actual supermajority vote rather
// than by tie-break.
func TestDecideFamousResolvesViaSupermajorityAcrossTwoRounds(t *testing.T) {
	dag := gossip.NewDAG()
	node := ids.GenerateTestNodeID()
	set := quorum.NewSetUnchecked([]ids.NodeID{node})
	eng := NewEngine(dag, set)

	genesis := &gossip.Event{Creator: node, Timestamp: clock.New(node)}
	dag.Add(genesis)
	eng.AssignRound(genesis.ID)

	e1 := &gossip.Event{Creator: node, SelfParent: genesis.ID, Timestamp: clock.WithTime(node, 1)}
	dag.Add(e1)
	eng.AssignRound(e1.ID)

	e2 := &gossip.Event{Creator: node, SelfParent: e1.ID, Timestamp: clock.WithTime(node, 2)}
	dag.Add(e2)
	eng.AssignRound(e2.ID)

	require.True(t, eng.RoundDecided(0))

	decided, famous := eng.DecideFamous(0, genesis.ID)
	require.True(t, decided)
	require.True(t, famous)
	require.Equal(t, []ids.ID{genesis.ID}, eng.FamousWitnesses(0))
}

func TestOrderingIsDeterministicAcrossCalls(t *testing.T) {
	a := ids.GenerateTestID()
	b := ids.GenerateTestID()
	seed := RoundSeed([]ids.ID{a, b})

	times := []StringSeenTime{
		{StringID: a, Times: []uint64{5, 6, 7}},
		{StringID: b, Times: []uint64{1, 2, 3}},
	}
	order1 := Order(times, seed)
	order2 := Order(times, seed)
	require.Equal(t, order1, order2)
	require.Equal(t, b, order1[0].StringID)
}
