// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package envelope implements the hybrid classical+post-quantum signature
// and KEM envelope that signs and binds lattice contents: Ed25519 paired
// with Dilithium3 for signing, X25519 paired with Kyber768 for key
// encapsulation, matching the NIST PQ round-3 selections.
package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/luxfi/rope/crypto/hash"
	"golang.org/x/crypto/curve25519"
)

// ErrInvalidPublicKey is returned when key material has the wrong length
// or fails internal validation.
var ErrInvalidPublicKey = errors.New("envelope: invalid public key")

// ErrRNGFailed is returned when entropy could not be read.
var ErrRNGFailed = errors.New("envelope: rng failed")

// ErrVerificationFailed signals an AND-policy failure: one or both halves
// of a hybrid signature did not verify.
var ErrVerificationFailed = errors.New("envelope: signature verification failed")

// PublicKey is the tuple (ed, dil, x, kyb): classical signing key, PQ
// signing key, classical KEM key, PQ KEM key. PQ halves are optional —
// a nil Dilithium/Kyber half marks a legacy classical-only identity.
type PublicKey struct {
	Ed  ed25519.PublicKey
	Dil *mode3.PublicKey

	X   [32]byte
	Kyb *kyber768.PublicKey
}

// SecretKey holds the corresponding private halves. Never serialized in
// plaintext outside of local key storage.
type SecretKey struct {
	Ed  ed25519.PrivateKey
	Dil *mode3.PrivateKey

	X   [32]byte
	Kyb *kyber768.PrivateKey
}

// Signature is the pair (sig_classical, sig_pq). SigPQ is nil for a
// legacy classical-only identity.
type Signature struct {
	SigClassical []byte
	SigPQ        []byte
}

// GenerateHybridKey produces a fresh keypair with both PQ halves present.
func GenerateHybridKey() (*PublicKey, *SecretKey, error) {
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, ErrRNGFailed
	}
	dilPub, dilPriv, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, ErrRNGFailed
	}

	var xPriv [32]byte
	if _, err := rand.Read(xPriv[:]); err != nil {
		return nil, nil, ErrRNGFailed
	}
	var xPub [32]byte
	curve25519.ScalarBaseMult(&xPub, &xPriv)

	kybPub, kybPriv, err := kyber768.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, nil, ErrRNGFailed
	}

	pub := &PublicKey{Ed: edPub, Dil: dilPub, X: xPub, Kyb: kybPub}
	priv := &SecretKey{Ed: edPriv, Dil: dilPriv, X: xPriv, Kyb: kybPriv}
	return pub, priv, nil
}

// GenerateClassicalKey produces a legacy keypair with no PQ halves.
func GenerateClassicalKey() (*PublicKey, *SecretKey, error) {
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, ErrRNGFailed
	}
	var xPriv [32]byte
	if _, err := rand.Read(xPriv[:]); err != nil {
		return nil, nil, ErrRNGFailed
	}
	var xPub [32]byte
	curve25519.ScalarBaseMult(&xPub, &xPriv)
	return &PublicKey{Ed: edPub, X: xPub}, &SecretKey{Ed: edPriv, X: xPriv}, nil
}

// HasPQ reports whether this identity carries PQ signing material.
func (pk *PublicKey) HasPQ() bool {
	return pk.Dil != nil
}

// Bytes returns a canonical, length-prefixed encoding of the public key
// tuple (ed, dil, x, kyb), used both for wire transmission and as part of
// a string's canonical encoding when computing its StringId. Absent PQ
// halves encode as a zero-length field.
func (pk *PublicKey) Bytes() []byte {
	var dilBytes, kybBytes []byte
	if pk.Dil != nil {
		dilBytes, _ = pk.Dil.MarshalBinary()
	}
	if pk.Kyb != nil {
		kybBytes, _ = pk.Kyb.MarshalBinary()
	}

	out := make([]byte, 0, len(pk.Ed)+len(dilBytes)+32+len(kybBytes)+16)
	out = appendLenPrefixed(out, pk.Ed)
	out = appendLenPrefixed(out, dilBytes)
	out = appendLenPrefixed(out, pk.X[:])
	out = appendLenPrefixed(out, kybBytes)
	return out
}

func appendLenPrefixed(dst, field []byte) []byte {
	n := uint32(len(field))
	dst = append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(dst, field...)
}

// Bytes returns a canonical, length-prefixed encoding of a
// Signature pair.
func (sig *Signature) Bytes() []byte {
	out := make([]byte, 0, len(sig.SigClassical)+len(sig.SigPQ)+8)
	out = appendLenPrefixed(out, sig.SigClassical)
	out = appendLenPrefixed(out, sig.SigPQ)
	return out
}

// Sign signs msg with both halves present on the secret key. If sk has no
// PQ half, SigPQ is left nil (legacy classical-only signing).
func Sign(sk *SecretKey, msg []byte) *Signature {
	sig := &Signature{SigClassical: ed25519.Sign(sk.Ed, msg)}
	if sk.Dil != nil {
		sig.SigPQ = mode3.Scheme().Sign(sk.Dil, msg, nil)
	}
	return sig
}

// Verify checks sig against msg under pk. Policy: if pk carries a PQ half,
// a signature missing SigPQ is rejected outright — legacy classical-only
// identities are the only accepted fallback.
func Verify(pk *PublicKey, msg []byte, sig *Signature) bool {
	if len(sig.SigClassical) == 0 || !ed25519.Verify(pk.Ed, msg, sig.SigClassical) {
		return false
	}
	if pk.Dil == nil {
		return true
	}
	if len(sig.SigPQ) == 0 {
		return false
	}
	return mode3.Scheme().Verify(pk.Dil, msg, sig.SigPQ, nil)
}

// EncapResult is the output of hybrid encapsulation.
type EncapResult struct {
	EphemeralClassical [32]byte
	CiphertextPQ       []byte
	SharedSecret       [hash.Size]byte
}

// Encapsulate produces a hybrid shared secret bound to recipient pk and a
// domain-separation context. ss = H(ss_classical || ss_pq || context).
// If pk has no PQ half, ss_pq is empty and the result degrades to plain
// X25519 KEM (still IND-CCA under the classical component only).
func Encapsulate(pk *PublicKey, context string) (*EncapResult, error) {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, ErrRNGFailed
	}
	var ephPub [32]byte
	curve25519.ScalarBaseMult(&ephPub, &ephPriv)

	ssClassical, err := curve25519.X25519(ephPriv[:], pk.X[:])
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	var ssPQ []byte
	var ctPQ []byte
	if pk.Kyb != nil {
		ct, ss, err := kyber768.Scheme().Encapsulate(pk.Kyb)
		if err != nil {
			return nil, ErrRNGFailed
		}
		ctPQ = ct
		ssPQ = ss
	}

	combined := hash.Concat([]byte(ssClassical), ssPQ, []byte(context))
	return &EncapResult{EphemeralClassical: ephPub, CiphertextPQ: ctPQ, SharedSecret: combined}, nil
}

// Decapsulate recovers the shared secret using sk. A caller decapsulating
// with the wrong key recovers a value that will not equal the
// encapsulating party's SharedSecret (by construction, since the X25519
// and Kyber shared secrets differ per-key).
func Decapsulate(sk *SecretKey, eph [32]byte, ctPQ []byte, context string) ([hash.Size]byte, error) {
	ssClassical, err := curve25519.X25519(sk.X[:], eph[:])
	if err != nil {
		return [hash.Size]byte{}, ErrInvalidPublicKey
	}

	var ssPQ []byte
	if sk.Kyb != nil && len(ctPQ) > 0 {
		ss, err := kyber768.Scheme().Decapsulate(sk.Kyb, ctPQ)
		if err != nil {
			return [hash.Size]byte{}, ErrInvalidPublicKey
		}
		ssPQ = ss
	}

	return hash.Concat([]byte(ssClassical), ssPQ, []byte(context)), nil
}
