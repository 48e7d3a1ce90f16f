// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package nucleotide splits a string's payload into fixed-size chunks, each
// carrying a small integrity checksum, for cheap single-byte corruption
// detection ahead of the heavier Reed-Solomon complement check.
package nucleotide

import (
	"hash/crc32"
)

// Size is the payload chunk length in bytes.
const Size = 32

// Nucleotide is one 32-byte chunk of a string's payload plus a checksum
// derived from the chunk's value and its position, so two identical chunks
// at different offsets carry different checksums.
type Nucleotide struct {
	Position uint64
	Value    [Size]byte
	CRC      uint32
}

func checksum(position uint64, value []byte) uint32 {
	buf := make([]byte, 8+len(value))
	buf[0] = byte(position >> 56)
	buf[1] = byte(position >> 48)
	buf[2] = byte(position >> 40)
	buf[3] = byte(position >> 32)
	buf[4] = byte(position >> 24)
	buf[5] = byte(position >> 16)
	buf[6] = byte(position >> 8)
	buf[7] = byte(position)
	copy(buf[8:], value)
	return crc32.ChecksumIEEE(buf)
}

// Split partitions payload into a sequence of Nucleotides. The final chunk
// is zero-padded to Size if payload's length is not a multiple of Size.
func Split(payload []byte) []Nucleotide {
	n := (len(payload) + Size - 1) / Size
	if n == 0 {
		return nil
	}
	out := make([]Nucleotide, n)
	for i := 0; i < n; i++ {
		var chunk [Size]byte
		start := i * Size
		end := start + Size
		if end > len(payload) {
			end = len(payload)
		}
		copy(chunk[:], payload[start:end])
		out[i] = Nucleotide{
			Position: uint64(i),
			Value:    chunk,
			CRC:      checksum(uint64(i), chunk[:]),
		}
	}
	return out
}

// Verify reports whether a chunk's stored CRC matches its recomputed
// checksum, detecting any single-byte (or larger) corruption.
func (n Nucleotide) Verify() bool {
	return n.CRC == checksum(n.Position, n.Value[:])
}

// Join reassembles the original payload from chunks, truncating the final
// chunk's padding to originalLen.
func Join(chunks []Nucleotide, originalLen int) []byte {
	out := make([]byte, 0, len(chunks)*Size)
	for _, c := range chunks {
		out = append(out, c.Value[:]...)
	}
	if originalLen < len(out) {
		out = out[:originalLen]
	}
	return out
}
