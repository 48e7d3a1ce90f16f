// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package binding implements the entanglement-proof binder between a
// string and its Reed-Solomon complement: three domain-tagged leaves
// (content root, BLS testimony aggregate, post-quantum signature batch)
// folded into one digest over the module's own BLAKE3 primitives, so the
// binder carries the same domain-separation discipline as string ids and
// OES epoch derivation rather than a bare general-purpose hash.
package binding

import (
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/hash"
)

// leaf domain tags, each a suffixed variant of config.DomainBinding so the
// three leaves never collide with each other or with any other derivation
// in the module.
const (
	leafRoot    = config.DomainBinding + "/root"
	leafBLSAgg  = config.DomainBinding + "/bls"
	leafPQBatch = config.DomainBinding + "/pq"
)

// Merkle3 binds msgRoot (a string's canonical-encoding hash), blsAgg (the
// BLS aggregate over collected testimonies, or nil if none yet collected),
// and pqBatch (a batch digest of the hybrid signature's post-quantum half)
// into a single entanglement proof.
func Merkle3(msgRoot, blsAgg, pqBatch []byte) []byte {
	l0 := hash.DeriveKey(leafRoot, msgRoot)
	l1 := hash.DeriveKey(leafBLSAgg, blsAgg)
	l2 := hash.DeriveKey(leafPQBatch, pqBatch)
	out := hash.Concat(l0[:], l1[:], l2[:])
	return out[:]
}
