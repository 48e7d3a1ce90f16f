// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bls implements BLS12-381 aggregate signatures over
// github.com/supranational/blst, used to cheaply aggregate and batch-verify
// validator testimony signatures (one aggregate check in place of n
// individual verifications) layered atop the per-testimony hybrid
// signature in crypto/envelope.
package bls

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"

	blst "github.com/supranational/blst/bindings/go"
)

var dst = []byte("rope-testimony-bls12381-v1")

// ErrInvalidKey is returned when key material cannot be parsed.
var ErrInvalidKey = errors.New("bls: invalid key material")

// SecretKey is a BLS12-381 scalar secret key.
type SecretKey struct {
	sk blst.SecretKey
}

// PublicKey is a compressed BLS12-381 G1 public key.
type PublicKey struct {
	pk blst.P1Affine
}

// Signature is a compressed BLS12-381 G2 signature.
type Signature struct {
	sig blst.P2Affine
}

// GenerateKey derives a new secret key from 32 bytes of entropy read from r.
func GenerateKey(r io.Reader) (*SecretKey, error) {
	if r == nil {
		r = rand.Reader
	}
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(r, ikm); err != nil {
		return nil, err
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, ErrInvalidKey
	}
	return &SecretKey{sk: *sk}, nil
}

// PublicKey derives the corresponding public key.
func (sk *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{pk: *new(blst.P1Affine).From(&sk.sk)}
}

// Sign signs msg, returning a compressed G2 signature.
func (sk *SecretKey) Sign(msg []byte) *Signature {
	sig := new(blst.P2Affine).Sign(&sk.sk, msg, dst)
	return &Signature{sig: *sig}
}

// Bytes returns the compressed secret scalar.
func (sk *SecretKey) Bytes() []byte {
	return sk.sk.Serialize()
}

// SecretKeyFromBytes parses a compressed secret scalar.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	sk := new(blst.SecretKey).Deserialize(b)
	if sk == nil {
		return nil, ErrInvalidKey
	}
	return &SecretKey{sk: *sk}, nil
}

// Bytes returns the compressed public key (48 bytes).
func (pk *PublicKey) Bytes() []byte {
	return pk.pk.Compress()
}

// String returns the hex-encoded compressed public key.
func (pk *PublicKey) String() string {
	return hex.EncodeToString(pk.Bytes())
}

// PublicKeyFromBytes parses a compressed G1 public key.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	pk := new(blst.P1Affine).Uncompress(b)
	if pk == nil || !pk.KeyValidate() {
		return nil, ErrInvalidKey
	}
	return &PublicKey{pk: *pk}, nil
}

// Bytes returns the compressed signature (96 bytes).
func (sig *Signature) Bytes() []byte {
	return sig.sig.Compress()
}

// SignatureFromBytes parses a compressed G2 signature.
func SignatureFromBytes(b []byte) (*Signature, error) {
	sig := new(blst.P2Affine).Uncompress(b)
	if sig == nil {
		return nil, ErrInvalidKey
	}
	return &Signature{sig: *sig}, nil
}

// Verify checks sig against msg under pk.
func (sig *Signature) Verify(pk *PublicKey, msg []byte) bool {
	return sig.sig.Verify(true, &pk.pk, true, msg, dst)
}

// Aggregate combines signatures into a single aggregate signature. All
// inputs must be valid signatures over (possibly distinct) messages under
// (possibly distinct) keys; use AggregateVerify to check the result.
func Aggregate(sigs []*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, errors.New("bls: no signatures to aggregate")
	}
	agg := new(blst.P2Aggregate)
	compressed := make([][]byte, len(sigs))
	for i, s := range sigs {
		compressed[i] = s.Bytes()
	}
	if !agg.AggregateCompressed(compressed, true) {
		return nil, ErrInvalidKey
	}
	out := agg.ToAffine()
	if out == nil {
		return nil, ErrInvalidKey
	}
	return &Signature{sig: *out}, nil
}

// AggregateVerify verifies an aggregate signature against distinct
// (publicKey, message) pairs — the shape of a batch of testimony
// signatures, one per validator, each over its own testimony payload.
func (sig *Signature) AggregateVerify(pks []*PublicKey, msgs [][]byte) bool {
	if len(pks) != len(msgs) || len(pks) == 0 {
		return false
	}
	rawPks := make([]*blst.P1Affine, len(pks))
	for i, pk := range pks {
		rawPks[i] = &pk.pk
	}
	return sig.sig.AggregateVerify(true, rawPks, true, msgs, dst)
}
