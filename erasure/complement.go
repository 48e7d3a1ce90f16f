// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package erasure implements complement generation and regeneration: the
// Reed-Solomon verification partner of a string, and recovery of a
// damaged payload from a mix of surviving data shards and stored parity.
package erasure

import (
	"strconv"
	"time"

	"github.com/klauspost/reedsolomon"
	"github.com/luxfi/ids"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/binding"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/crypto/hash"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/nucleotide"
	safemath "github.com/luxfi/rope/utils/math"
)

// RelationshipType tags how a regeneration hint's related string relates
// to the string being recovered.
type RelationshipType uint8

const (
	Parent RelationshipType = iota
	Child
	Sibling
	ContentRelated
	PreviousVersion
)

// RegenerationHint seeds multi-source recovery by pointing at a related
// string that may hold overlapping content.
type RegenerationHint struct {
	RelatedID    ids.ID
	Relationship RelationshipType
	SegmentStart int
	SegmentEnd   int
}

// Complement is the verification/regeneration partner of a string: it
// stores only the Reed-Solomon parity shards, never the data shards
// (those are reconstructable from σ when healthy).
type Complement struct {
	PrimaryID         ids.ID
	DataShards        int
	ParityShards      int
	ShardSize         int
	OriginalLength    int
	Parity            [][]byte
	VerificationHash  [hash.Size]byte
	EntanglementProof []byte
	CreatedAt         time.Time
	CreatorSignature  []byte
	RegenerationHints []RegenerationHint
	Nucleotides       []nucleotide.Nucleotide
}

// shardCounts returns (d, p) for replication factor ρ: d = floor(3ρ/5)
// clamped to ≥1, p = ρ-d clamped to ≥1.
func shardCounts(rho int) (d, p int) {
	d = int(safemath.Max64(uint64((3*rho)/5), 1))
	p = int(safemath.Max64(uint64(rho-d), 1))
	return d, p
}

// Generate computes the Reed-Solomon complement of payload under
// replication factor rho, binding it to primaryID via an entanglement
// proof signed by sk.
func Generate(primaryID ids.ID, payload []byte, rho int, sk *envelope.SecretKey, now time.Time) (*Complement, error) {
	d, p := shardCounts(rho)
	shardSize := (len(payload) + d - 1) / d
	if shardSize == 0 {
		shardSize = 1
	}

	padded := make([]byte, shardSize*d)
	copy(padded, payload)

	shards := make([][]byte, d+p)
	for i := 0; i < d; i++ {
		shards[i] = padded[i*shardSize : (i+1)*shardSize]
	}
	for i := d; i < d+p; i++ {
		shards[i] = make([]byte, shardSize)
	}

	enc, err := reedsolomon.New(d, p)
	if err != nil {
		return nil, errs.Newf(errs.Internal, "reed-solomon init failed: %v", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, errs.Newf(errs.Internal, "reed-solomon encode failed: %v", err)
	}

	parity := make([][]byte, p)
	for i := 0; i < p; i++ {
		parity[i] = append([]byte(nil), shards[d+i]...)
	}

	verificationHash := hash.Sum256(payload)
	bindingHash := hash.Concat([]byte(config.DomainComplement), primaryID[:], flatten(parity))
	sig := envelope.Sign(sk, bindingHash[:])

	c := &Complement{
		PrimaryID:        primaryID,
		DataShards:       d,
		ParityShards:     p,
		ShardSize:        shardSize,
		OriginalLength:   len(payload),
		Parity:           parity,
		VerificationHash: verificationHash,
		CreatedAt:        now,
		CreatorSignature: sig.Bytes(),
		Nucleotides:      nucleotide.Split(payload),
	}
	c.EntanglementProof = binding.Merkle3(bindingHash[:], nil, sig.SigPQ)
	return c, nil
}

func flatten(shards [][]byte) []byte {
	var out []byte
	for _, s := range shards {
		out = append(out, s...)
	}
	return out
}

// VerifyEntanglement recomputes the entanglement proof binder and compares
// it to the stored one, detecting complement substitution.
func (c *Complement) VerifyEntanglement(pub *envelope.PublicKey, sig *envelope.Signature) bool {
	bindingHash := hash.Concat([]byte(config.DomainComplement), c.PrimaryID[:], flatten(c.Parity))
	if !envelope.Verify(pub, bindingHash[:], sig) {
		return false
	}
	recomputed := binding.Merkle3(bindingHash[:], nil, sig.SigPQ)
	return string(recomputed) == string(c.EntanglementProof)
}

// Regenerate reconstructs the original payload from a possibly-damaged
// buffer and c's stored parity. damaged may contain zeroed-out or
// truncated shards; up to c.ParityShards of the d+p shards may be
// missing. Regeneration fails with InsufficientSources if fewer than d
// shards are available, and with RegenerationFailed if the reconstructed
// payload's hash does not match c.VerificationHash.
func Regenerate(c *Complement, damaged []byte, shardPresent []bool) ([]byte, error) {
	total := c.DataShards + c.ParityShards
	if len(shardPresent) != total {
		shardPresent = make([]bool, total)
		for i := range shardPresent {
			shardPresent[i] = true
		}
	}

	present := 0
	for _, ok := range shardPresent {
		if ok {
			present++
		}
	}
	if present < c.DataShards {
		return nil, errs.Newf(errs.InsufficientSources, "have %d shards, need at least %d", present, c.DataShards).WithQuorum(c.DataShards, present)
	}

	padded := make([]byte, c.ShardSize*c.DataShards)
	copy(padded, damaged)

	shards := make([][]byte, total)
	for i := 0; i < c.DataShards; i++ {
		if shardPresent[i] {
			start := i * c.ShardSize
			end := start + c.ShardSize
			if end <= len(padded) {
				shards[i] = append([]byte(nil), padded[start:end]...)
			}
		}
	}
	for i := 0; i < c.ParityShards; i++ {
		if shardPresent[c.DataShards+i] {
			shards[c.DataShards+i] = append([]byte(nil), c.Parity[i]...)
		}
	}

	enc, err := reedsolomon.New(c.DataShards, c.ParityShards)
	if err != nil {
		return nil, errs.Newf(errs.Internal, "reed-solomon init failed: %v", err)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, errs.New(errs.RegenerationFailed, c.PrimaryID, err.Error())
	}

	var result []byte
	for i := 0; i < c.DataShards; i++ {
		result = append(result, shards[i]...)
	}
	if c.OriginalLength < len(result) {
		result = result[:c.OriginalLength]
	}

	if hash.Sum256(result) != c.VerificationHash {
		if pos, ok := firstCorruptChunk(c.Nucleotides, result); ok {
			return nil, errs.New(errs.RegenerationFailed, c.PrimaryID, "reconstructed payload hash mismatch, first corrupt chunk at position "+strconv.FormatUint(pos, 10))
		}
		return nil, errs.New(errs.RegenerationFailed, c.PrimaryID, "reconstructed payload hash mismatch")
	}
	return result, nil
}

// firstCorruptChunk compares recomputed nucleotide chunks of result against
// the generation-time recording, returning the position of the first chunk
// whose checksum no longer matches.
func firstCorruptChunk(recorded []nucleotide.Nucleotide, result []byte) (uint64, bool) {
	actual := nucleotide.Split(result)
	for i, n := range recorded {
		if i >= len(actual) || actual[i].CRC != n.CRC {
			return n.Position, true
		}
	}
	return 0, false
}
