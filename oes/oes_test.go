// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oes

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestEvolveIsDeterministicGivenSameAnchor(t *testing.T) {
	anchor := ids.GenerateTestID()
	r1 := New([32]byte{})
	r2 := New([32]byte{})
	require.Equal(t, r1.Evolve(anchor), r2.Evolve(anchor))
}

func TestEpochWindowAcceptsAndRejects(t *testing.T) {
	r := New([32]byte{})

	// Drive the ratchet to 1000 anchors worth of epochs: with
	// OESEvolutionInterval=100 that is 10 epoch evolutions, landing at
	// current_epoch = 10, matching the scenario literally.
	for i := 0; i < 10; i++ {
		r.Evolve(ids.GenerateTestID())
	}
	require.Equal(t, uint64(10), r.CurrentEpoch())

	require.True(t, r.Valid(5))

	for i := 0; i < 6; i++ {
		r.Evolve(ids.GenerateTestID())
	}
	require.Equal(t, uint64(16), r.CurrentEpoch())
	require.False(t, r.Valid(5))
}

func TestKeyForEpochRejectsUnreached(t *testing.T) {
	r := New([32]byte{})
	_, err := r.KeyForEpoch(1)
	require.Error(t, err)

	r.Evolve(ids.GenerateTestID())
	k, err := r.KeyForEpoch(1)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, k)
}

func TestAnchorCountToEpoch(t *testing.T) {
	require.Equal(t, uint64(1000), AnchorCountToEpoch(10))
}
