// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package testimony implements signed validator attestations and the
// Controlled Erasure Protocol (CEP) state machine built atop them.
package testimony

import (
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/crypto/bls"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/lattice"
	"github.com/luxfi/rope/quorum"
)

// AttestationType is the kind of claim a Testimony makes.
type AttestationType uint8

const (
	Existence AttestationType = iota
	Validity
	Ordering
	Finality
	Erasure
	Regeneration
)

// ErasureReason is the trigger carried by an erasure request.
type ErasureReason uint8

const (
	OwnerRequest ErasureReason = iota
	GDPRRequest
	TimeBoundExpiry
	ConditionalTrigger
	CourtOrder
)

// Testimony is a signed, out-of-band attestation about a target string,
// distinct from (and not a substitute for) virtual-voting-derived
// finality.
type Testimony struct {
	TargetID    ids.ID
	ValidatorID ids.NodeID
	Type        AttestationType
	Timestamp   clock.LamportClock
	OESEpoch    uint64
	Signature   *envelope.Signature

	// BLSSignature is an optional BLS12-381 signature over the same
	// signing payload, carried alongside the hybrid signature so a
	// coordinator can aggregate many validators' testimonies into one
	// compact proof instead of shipping n individual signatures.
	BLSSignature []byte
}

func (t *Testimony) signingPayload() []byte {
	buf := append([]byte(nil), t.TargetID[:]...)
	buf = append(buf, t.ValidatorID[:]...)
	buf = append(buf, byte(t.Type))
	buf = append(buf, t.Timestamp.Bytes()...)
	return buf
}

// New builds and signs a Testimony.
func New(targetID ids.ID, validatorID ids.NodeID, kind AttestationType, reading clock.LamportClock, oesEpoch uint64, sk *envelope.SecretKey) *Testimony {
	t := &Testimony{TargetID: targetID, ValidatorID: validatorID, Type: kind, Timestamp: reading, OESEpoch: oesEpoch}
	t.Signature = envelope.Sign(sk, t.signingPayload())
	return t
}

// SignBLS attaches a BLS12-381 signature over t's signing payload, in
// addition to the hybrid signature set by New.
func (t *Testimony) SignBLS(sk *bls.SecretKey) {
	t.BLSSignature = sk.Sign(t.signingPayload()).Bytes()
}

// EpochValidator checks the OES generation-window constraint of §4.2/§4.8.
type EpochValidator interface {
	// Valid reports whether epoch is within the accepted window of the
	// current epoch.
	Valid(epoch uint64) bool
}

// Verify checks a Testimony's signature and OES epoch window.
func Verify(t *Testimony, pub *envelope.PublicKey, epochs EpochValidator) error {
	if t.Signature == nil || !envelope.Verify(pub, t.signingPayload(), t.Signature) {
		return errs.New(errs.TestimonyVerificationFailed, t.TargetID, "testimony signature invalid")
	}
	if epochs != nil && !epochs.Valid(t.OESEpoch) {
		return errs.Newf(errs.InvalidOESGeneration, "testimony epoch %d outside validity window", t.OESEpoch)
	}
	return nil
}

// erasureCase tracks an in-flight CEP request for one string.
type erasureCase struct {
	reason     ErasureReason
	tally      *quorum.Tally
	testimonies []*Testimony
	resolved   bool
}

// CEP drives the Controlled Erasure Protocol against a lattice store.
type CEP struct {
	mu         sync.Mutex
	store      *lattice.Store
	validators *quorum.Set
	cases      map[ids.ID]*erasureCase
}

// NewCEP returns a CEP coordinator bound to store and validators.
func NewCEP(store *lattice.Store, validators *quorum.Set) *CEP {
	return &CEP{store: store, validators: validators, cases: make(map[ids.ID]*erasureCase)}
}

// RequestErasure begins CEP for id by opening a testimony tally. The
// string is not marked at this point: reads keep returning it until the
// quorum is reached in SubmitTestimony and the store marks it Erased.
// Immutable strings are rejected with ImmutableString; a second request
// while one is pending returns NotConfirmed.
func (c *CEP) RequestErasure(id ids.ID, reason ErasureReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.cases[id]; ok {
		if !existing.resolved {
			return errs.New(errs.NotConfirmed, id, "erasure already pending")
		}
	}

	s, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if s.Mutability.Kind == lattice.Immutable {
		return errs.New(errs.ImmutableString, id, "immutable strings cannot be erased")
	}

	c.cases[id] = &erasureCase{reason: reason, tally: quorum.NewTally(c.validators)}
	return nil
}

// SubmitTestimony records a validator's Erasure testimony towards the
// quorum required to finalise erasure. Once testimonies from at least
// ceil(2n/3) active validators are collected, the string transitions to
// terminal Erased and the store is told to mark it so.
func (c *CEP) SubmitTestimony(t *Testimony) error {
	if t.Type != Erasure {
		return errs.New(errs.InvalidInput, t.TargetID, "CEP only accepts Erasure testimonies")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kase, ok := c.cases[t.TargetID]
	if !ok || kase.resolved {
		return errs.New(errs.InvalidInput, t.TargetID, "no pending erasure case")
	}

	kase.tally.Vote(t.ValidatorID)
	kase.testimonies = append(kase.testimonies, t)

	if kase.tally.Met() {
		if err := c.store.MarkErased(t.TargetID, reasonString(kase.reason)); err != nil {
			return err
		}
		kase.resolved = true
	}
	return nil
}

// Tombstone is the retained evidence of a completed erasure: the id, the
// reason, and the aggregated testimony signatures — σ and complement
// parity are destroyed, but this record survives.
type Tombstone struct {
	ID                 ids.ID
	Reason             ErasureReason
	Signatures         [][]byte
	AggregateBLS       []byte
	AggregateBLSQuorum int
}

// TombstoneFor returns the retained tombstone for a resolved erasure case,
// or false if the case is not yet resolved. When every contributing
// testimony carried a BLS signature, AggregateBLS holds their aggregate;
// otherwise it is nil and callers fall back to the per-testimony hybrid
// signatures.
func (c *CEP) TombstoneFor(id ids.ID) (Tombstone, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kase, ok := c.cases[id]
	if !ok || !kase.resolved {
		return Tombstone{}, false
	}
	sigs := make([][]byte, len(kase.testimonies))
	blsSigs := make([]*bls.Signature, 0, len(kase.testimonies))
	for i, t := range kase.testimonies {
		sigs[i] = t.Signature.Bytes()
		if len(t.BLSSignature) == 0 {
			continue
		}
		if s, err := bls.SignatureFromBytes(t.BLSSignature); err == nil {
			blsSigs = append(blsSigs, s)
		}
	}

	tomb := Tombstone{ID: id, Reason: kase.reason, Signatures: sigs}
	if len(blsSigs) == len(kase.testimonies) && len(blsSigs) > 0 {
		if agg, err := bls.Aggregate(blsSigs); err == nil {
			tomb.AggregateBLS = agg.Bytes()
			tomb.AggregateBLSQuorum = len(blsSigs)
		}
	}
	return tomb, true
}

// VerifyAggregateBLS checks tomb's aggregate BLS signature against the
// testimony payloads it covers, one (publicKey, message) pair per
// contributing validator in msgs/pks order.
func VerifyAggregateBLS(tomb Tombstone, pks []*bls.PublicKey, msgs [][]byte) (bool, error) {
	if len(tomb.AggregateBLS) == 0 {
		return false, errs.New(errs.InvalidInput, tomb.ID, "tombstone carries no aggregate BLS signature")
	}
	sig, err := bls.SignatureFromBytes(tomb.AggregateBLS)
	if err != nil {
		return false, err
	}
	return sig.AggregateVerify(pks, msgs), nil
}

func reasonString(r ErasureReason) string {
	switch r {
	case OwnerRequest:
		return "owner_request"
	case GDPRRequest:
		return "gdpr_request"
	case TimeBoundExpiry:
		return "time_bound_expiry"
	case ConditionalTrigger:
		return "conditional_trigger"
	case CourtOrder:
		return "court_order"
	default:
		return "unknown"
	}
}
