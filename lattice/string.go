// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lattice implements the append-only DAG of content-addressed
// strings: construction, canonical encoding, verification, and the
// content-addressed store with parent/child/creator indexes.
package lattice

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/crypto/hash"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/utils/wrappers"
)

// MutabilityKind is the tag of the μ sum type.
type MutabilityKind uint8

const (
	Immutable MutabilityKind = iota
	OwnerErasable
	TimeBound
	ConditionalErasure
	GDPRCompliant
	// Erased is the terminal state reached via the Controlled Erasure
	// Protocol; it is never an initial value chosen by a caller.
	Erased
)

// Mutability is the tagged variant μ with its per-variant payload.
type Mutability struct {
	Kind MutabilityKind

	// TimeBoundUntil is set only when Kind == TimeBound.
	TimeBoundUntil time.Time

	// Condition describes the predicate only when Kind ==
	// ConditionalErasure; evaluated by the caller, not this package.
	Condition string

	// ErasureReason is set only when Kind == Erased.
	ErasureReason string
}

func (m Mutability) encode() []byte {
	out := []byte{byte(m.Kind)}
	switch m.Kind {
	case TimeBound:
		t := uint64(m.TimeBoundUntil.Unix())
		out = append(out,
			byte(t>>56), byte(t>>48), byte(t>>40), byte(t>>32),
			byte(t>>24), byte(t>>16), byte(t>>8), byte(t))
	case ConditionalErasure:
		out = append(out, []byte(m.Condition)...)
	}
	return out
}

// String is the fundamental content-addressed record S = (σ, τ, π, ρ, μ,
// κ, ε).
type String struct {
	Payload     []byte               // σ
	Clock       clock.LamportClock   // τ
	Parents     []ids.ID             // π
	Replication int                  // ρ
	Mutability  Mutability           // μ
	Creator     *envelope.PublicKey  // κ
	Signature   *envelope.Signature  // ε
}

// canonicalEncoding returns the length-prefixed, field-ordered encoding of
// every field preceding ε, byte-exact so StringId is reproducible.
func (s *String) canonicalEncoding() []byte {
	p := wrappers.NewPacker(len(s.Payload) + 256)
	p.PackInt(uint32(len(s.Payload)))
	p.PackBytes(s.Payload)

	clockBytes := s.Clock.Bytes()
	p.PackInt(uint32(len(clockBytes)))
	p.PackBytes(clockBytes)

	p.PackInt(uint32(len(s.Parents)))
	for _, parent := range s.Parents {
		p.PackBytes(parent[:])
	}

	p.PackInt(uint32(s.Replication))

	mutBytes := s.Mutability.encode()
	p.PackInt(uint32(len(mutBytes)))
	p.PackBytes(mutBytes)

	creatorBytes := s.Creator.Bytes()
	p.PackInt(uint32(len(creatorBytes)))
	p.PackBytes(creatorBytes)

	return p.Bytes
}

// ID computes StringId = BLAKE3(canonical encoding), domain-separated
// under "rope/string".
func (s *String) ID() ids.ID {
	digest := hash.Concat([]byte(config.DomainString), s.canonicalEncoding())
	return ids.ID(digest)
}

// Sign computes the canonical encoding and signs it with sk, setting ε.
func (s *String) Sign(sk *envelope.SecretKey) {
	s.Signature = envelope.Sign(sk, s.canonicalEncoding())
}

// Verify checks the verification contract of §4.3: the stored id matches
// the recomputed hash, ε verifies under κ, and every declared parent is
// present in the supplied observed set (callers pass the set of ids the
// lattice store has already accepted).
func Verify(s *String, id ids.ID, observedParents func(ids.ID) bool) error {
	if s.ID() != id {
		return errs.New(errs.InvalidSignature, id, "recomputed StringId does not match stored id")
	}
	if s.Signature == nil || !envelope.Verify(s.Creator, s.canonicalEncoding(), s.Signature) {
		return errs.New(errs.InvalidSignature, id, "hybrid signature verification failed")
	}
	for _, parent := range s.Parents {
		if !observedParents(parent) {
			return errs.New(errs.ParentErased, parent, "parent string not yet observed")
		}
	}
	return nil
}

// Builder assembles a new String and signs it.
type Builder struct {
	payload     []byte
	parents     []ids.ID
	replication int
	mutability  Mutability
}

// NewBuilder starts a builder with the default replication factor and
// OwnerErasable mutability.
func NewBuilder(payload []byte) *Builder {
	return &Builder{
		payload:     payload,
		replication: config.DefaultReplicationFactor,
		mutability:  Mutability{Kind: OwnerErasable},
	}
}

func (b *Builder) WithParents(parents ...ids.ID) *Builder {
	b.parents = parents
	return b
}

func (b *Builder) WithReplication(rho int) *Builder {
	b.replication = rho
	return b
}

func (b *Builder) WithMutability(m Mutability) *Builder {
	b.mutability = m
	return b
}

// Build assembles, stamps, and signs the string using the provided clock
// reading and keypair. The returned String's ID() is the StringId to use
// as the lattice key.
func (b *Builder) Build(reading clock.LamportClock, pub *envelope.PublicKey, sk *envelope.SecretKey) (*String, error) {
	if len(b.payload) > config.MaxStringSize {
		return nil, errs.Newf(errs.ContentTooLarge, "payload %d bytes exceeds max %d", len(b.payload), config.MaxStringSize).WithLimit(config.MaxStringSize)
	}
	s := &String{
		Payload:     b.payload,
		Clock:       reading,
		Parents:     b.parents,
		Replication: b.replication,
		Mutability:  b.mutability,
		Creator:     pub,
	}
	s.Sign(sk)
	return s, nil
}

// NewAnchor builds the immutable anchor string whose payload encodes
// (round, merkle_root, count) per §4.7/§6, with parents = {previous anchor
// id, famous witnesses' first-seen string ids}.
func NewAnchor(round uint64, merkleRoot [hash.Size]byte, count uint32, parents []ids.ID, reading clock.LamportClock, pub *envelope.PublicKey, sk *envelope.SecretKey) *String {
	payload := make([]byte, 8+hash.Size+4)
	payload[0] = byte(round >> 56)
	payload[1] = byte(round >> 48)
	payload[2] = byte(round >> 40)
	payload[3] = byte(round >> 32)
	payload[4] = byte(round >> 24)
	payload[5] = byte(round >> 16)
	payload[6] = byte(round >> 8)
	payload[7] = byte(round)
	copy(payload[8:8+hash.Size], merkleRoot[:])
	off := 8 + hash.Size
	payload[off] = byte(count >> 24)
	payload[off+1] = byte(count >> 16)
	payload[off+2] = byte(count >> 8)
	payload[off+3] = byte(count)

	s := &String{
		Payload:     payload,
		Clock:       reading,
		Parents:     parents,
		Replication: config.DefaultReplicationFactor,
		Mutability:  Mutability{Kind: Immutable},
		Creator:     pub,
	}
	s.Sign(sk)
	return s
}
