// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hash implements the BLAKE3 hashing surface used throughout rope:
// fixed-output, keyed, XOF, incremental, and domain-separated derivation.
package hash

import (
	"github.com/zeebo/blake3"
)

// Size is the canonical output length of every hash produced by this
// package (StringId, NodeId, and all derived digests are this long).
const Size = 32

// Sum256 returns the fixed-length BLAKE3-256 digest of data.
func Sum256(data []byte) [Size]byte {
	return blake3.Sum256(data)
}

// Keyed returns the BLAKE3 digest of data under the given 32-byte key.
func Keyed(key [Size]byte, data []byte) [Size]byte {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails on a malformed key length, which cannot
		// happen given the fixed-size key parameter.
		panic(err)
	}
	h.Write(data)
	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// Concat hashes the ordered concatenation of items without allocating an
// intermediate buffer.
func Concat(items ...[]byte) [Size]byte {
	h := blake3.New()
	for _, item := range items {
		h.Write(item)
	}
	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// DeriveKey derives a context-bound key from keyMaterial, following BLAKE3's
// key-derivation mode. context should be one of the module's fixed
// domain-separation strings (config.DomainString, config.DomainOESEpoch,
// ...) and must never be reused across unrelated purposes.
func DeriveKey(context string, keyMaterial []byte) [Size]byte {
	h := blake3.NewDeriveKey(context)
	h.Write(keyMaterial)
	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// IncrementalHasher accumulates input across multiple Write calls before a
// final Sum/XOF read, for callers that build a digest incrementally (e.g.
// canonical string encoding).
type IncrementalHasher struct {
	h *blake3.Hasher
}

// NewIncremental returns an unkeyed incremental hasher.
func NewIncremental() *IncrementalHasher {
	return &IncrementalHasher{h: blake3.New()}
}

// NewIncrementalKeyed returns a keyed incremental hasher.
func NewIncrementalKeyed(key [Size]byte) *IncrementalHasher {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic(err)
	}
	return &IncrementalHasher{h: h}
}

// Write appends data to the running hash state.
func (ih *IncrementalHasher) Write(data []byte) {
	ih.h.Write(data)
}

// Sum returns the fixed-length digest of everything written so far.
func (ih *IncrementalHasher) Sum() [Size]byte {
	var out [Size]byte
	ih.h.Sum(out[:0])
	return out
}

// XOF returns n arbitrary-length output bytes derived from everything
// written so far (extendable-output mode).
func (ih *IncrementalHasher) XOF(n int) []byte {
	d := ih.h.Digest()
	out := make([]byte, n)
	_, _ = d.Read(out)
	return out
}
