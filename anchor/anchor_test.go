// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package anchor

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/lattice"
	"github.com/stretchr/testify/require"
)

func newChainWithIdentity(t *testing.T) (*Chain, *envelope.PublicKey, *envelope.SecretKey, ids.NodeID) {
	t.Helper()
	store := lattice.NewStore()
	pub, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)
	node := ids.GenerateTestNodeID()
	return NewChain(store), pub, sk, node
}

func insertOrdered(t *testing.T, store *lattice.Store, node ids.NodeID, pub *envelope.PublicKey, sk *envelope.SecretKey, n int) []ids.ID {
	t.Helper()
	c := clock.New(node)
	out := make([]ids.ID, n)
	for i := 0; i < n; i++ {
		c.Increment()
		s, err := lattice.NewBuilder([]byte{byte(i)}).Build(c, pub, sk)
		require.NoError(t, err)
		id, err := store.Insert(s, node)
		require.NoError(t, err)
		out[i] = id
	}
	return out
}

func TestEmitRequiresAscendingRounds(t *testing.T) {
	chain, pub, sk, node := newChainWithIdentity(t)
	reading := clock.New(node)

	_, err := chain.Emit(1, nil, nil, reading, pub, sk)
	require.NoError(t, err)

	_, err = chain.Emit(1, nil, nil, reading, pub, sk)
	require.Error(t, err)

	_, err = chain.Emit(0, nil, nil, reading, pub, sk)
	require.Error(t, err)
}

func TestEmitChainsToPreviousAnchor(t *testing.T) {
	chain, pub, sk, node := newChainWithIdentity(t)
	reading := clock.New(node)

	a1, err := chain.Emit(1, nil, nil, reading, pub, sk)
	require.NoError(t, err)
	a2, err := chain.Emit(2, nil, nil, reading, pub, sk)
	require.NoError(t, err)
	require.NotEqual(t, a1.StringID, a2.StringID)
	require.Len(t, chain.Anchors(), 2)
}

func TestFinalityRequiresSubsequentAnchors(t *testing.T) {
	store := lattice.NewStore()
	pub, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)
	node := ids.GenerateTestNodeID()
	chain := NewChain(store)
	reading := clock.New(node)

	covered := insertOrdered(t, store, node, pub, sk, 2)

	_, err = chain.Emit(1, covered, nil, reading, pub, sk)
	require.NoError(t, err)

	status := chain.FinalityStatus(covered[0])
	require.False(t, status.Final)
	require.Equal(t, config.FinalityAnchors, status.Required)

	for r := uint64(2); r <= uint64(config.FinalityAnchors); r++ {
		_, err = chain.Emit(r, nil, nil, reading, pub, sk)
		require.NoError(t, err)
	}

	status = chain.FinalityStatus(covered[0])
	require.True(t, status.Final)
}

func TestCurrentEpochTracksAnchorCount(t *testing.T) {
	chain, pub, sk, node := newChainWithIdentity(t)
	reading := clock.New(node)
	require.Equal(t, uint64(0), chain.CurrentEpoch())

	for r := uint64(1); r <= config.OESEvolutionInterval; r++ {
		_, err := chain.Emit(r, nil, nil, reading, pub, sk)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(1), chain.CurrentEpoch())

	boundary, ok := chain.AnchorAtEpochBoundary(1)
	require.True(t, ok)
	require.Equal(t, uint64(config.OESEvolutionInterval), boundary.Round)

	_, ok = chain.AnchorAtEpochBoundary(2)
	require.False(t, ok)
}
