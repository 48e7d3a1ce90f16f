// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erasure

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/stretchr/testify/require"
)

func TestShardCountsMatchSpecExample(t *testing.T) {
	d, p := shardCounts(5)
	require.Equal(t, 3, d)
	require.Equal(t, 2, p)
}

func TestComplementRoundTripNoDamage(t *testing.T) {
	_, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)

	payload := make([]byte, 128)
	primaryID := ids.GenerateTestID()

	c, err := Generate(primaryID, payload, 5, sk, time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, 3, c.DataShards)
	require.Equal(t, 2, c.ParityShards)

	present := make([]bool, c.DataShards+c.ParityShards)
	for i := range present {
		present[i] = true
	}
	out, err := Regenerate(c, payload, present)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestRegenerateOneDataShardLost(t *testing.T) {
	_, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)

	payload := make([]byte, 128)
	primaryID := ids.GenerateTestID()

	c, err := Generate(primaryID, payload, 5, sk, time.Unix(0, 0))
	require.NoError(t, err)

	damaged := make([]byte, len(payload))
	copy(damaged, payload)
	for i := 0; i < c.ShardSize; i++ {
		damaged[i] = 0xFF
	}

	present := []bool{false, true, true, true, true}
	out, err := Regenerate(c, damaged, present)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestRegenerateTwoDataShardsLostStillRecovers(t *testing.T) {
	_, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)

	payload := make([]byte, 128)
	primaryID := ids.GenerateTestID()

	c, err := Generate(primaryID, payload, 5, sk, time.Unix(0, 0))
	require.NoError(t, err)

	present := []bool{false, false, true, true, true}
	out, err := Regenerate(c, payload, present)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestGenerateRecordsNucleotides(t *testing.T) {
	_, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)

	payload := make([]byte, 70) // three 32-byte chunks, last partial
	primaryID := ids.GenerateTestID()

	c, err := Generate(primaryID, payload, 5, sk, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, c.Nucleotides, 3)
	require.Equal(t, uint64(0), c.Nucleotides[0].Position)
	require.Equal(t, uint64(2), c.Nucleotides[2].Position)
}

func TestFirstCorruptChunkLocatesDivergence(t *testing.T) {
	_, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)

	payload := make([]byte, 96)
	for i := range payload {
		payload[i] = byte(i)
	}
	primaryID := ids.GenerateTestID()

	c, err := Generate(primaryID, payload, 5, sk, time.Unix(0, 0))
	require.NoError(t, err)

	corrupted := append([]byte(nil), payload...)
	corrupted[40] = ^corrupted[40]

	pos, ok := firstCorruptChunk(c.Nucleotides, corrupted)
	require.True(t, ok)
	require.Equal(t, uint64(1), pos)
}

func TestRegenerateThreeDataShardsLostFails(t *testing.T) {
	_, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)

	payload := make([]byte, 128)
	primaryID := ids.GenerateTestID()

	c, err := Generate(primaryID, payload, 5, sk, time.Unix(0, 0))
	require.NoError(t, err)

	present := []bool{false, false, false, true, true}
	_, err = Regenerate(c, payload, present)
	require.Error(t, err)
}
