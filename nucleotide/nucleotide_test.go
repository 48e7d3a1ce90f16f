// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nucleotide

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for good measure")
	chunks := Split(payload)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.True(t, c.Verify())
	}
	require.Equal(t, payload, Join(chunks, len(payload)))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	payload := make([]byte, Size*3)
	for i := range payload {
		payload[i] = byte(i)
	}
	chunks := Split(payload)
	chunks[1].Value[5] ^= 0xFF
	require.False(t, chunks[1].Verify())
	require.True(t, chunks[0].Verify())
}

func TestPositionAffectsChecksum(t *testing.T) {
	var value [Size]byte
	for i := range value {
		value[i] = byte(i)
	}
	n0 := Nucleotide{Position: 0, Value: value, CRC: checksum(0, value[:])}
	n1 := Nucleotide{Position: 1, Value: value, CRC: checksum(1, value[:])}
	require.NotEqual(t, n0.CRC, n1.CRC)
}
