// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the constants and tunable Parameters of the rope
// lattice, virtual-voting, and OES subsystems.
package config

import "time"

// Protocol constants (§6, §9 of the design notes).
const (
	// StringRateLimit is the default per-identity string creation rate.
	StringRateLimit = 1000 // per second

	// AnchorInterval is the target wall-clock cadence between anchors.
	AnchorInterval = 3 * time.Second

	// FinalityAnchors is the number of anchor confirmations a string needs
	// before it is reported final; its containing anchor counts as the first.
	FinalityAnchors = 3

	// MinValidators and MaxValidators bound the active validator set size.
	MinValidators = 21
	MaxValidators = 100

	// DefaultReplicationFactor is ρ when a caller does not specify one.
	DefaultReplicationFactor = 5

	// ErasureThresholdNumerator/Denominator express the supermajority
	// fraction as an exact rational, never a float comparison: a quorum
	// requires ceil(Numerator*n/Denominator) participants.
	ErasureThresholdNumerator   = 2
	ErasureThresholdDenominator = 3

	// OESEvolutionInterval is the number of anchors between OES epoch
	// boundaries.
	OESEvolutionInterval = 100

	// GenerationWindow bounds how far an OES epoch may drift from the
	// current one and still validate.
	GenerationWindow = 10

	// GenomeDimension and MutationRate are carried from the original
	// OES genome-derivation parameters; no code in this module reads them.
	GenomeDimension = 992
	MutationRate    = 0.10

	// MaxStringSize bounds payload σ.
	MaxStringSize = 10 * 1024 * 1024 // 10 MiB

	// RDPPieceSize is the chunk size used when streaming large payloads
	// to peers (regeneration/distribution protocol).
	RDPPieceSize = 256 * 1024 // 256 KiB

	// DHTReplication and GossipFanout bound peer-distribution breadth;
	// MaxGossipBatch bounds the number of events a single frame carries.
	DHTReplication  = 20
	GossipFanout    = 10
	MaxGossipBatch  = 1000

	// RoundDecideLimit bounds how many rounds famousness voting runs
	// before falling back to the deterministic tie-break (§4.7).
	RoundDecideLimit = 10
)

// Domain-separation strings, never mixed across uses.
const (
	DomainString     = "rope/string"
	DomainComplement = "rope/complement"
	DomainAnchor     = "rope/anchor"
	DomainOrder      = "rope/order"
	DomainOESEpoch   = "oes/epoch"
	DomainBinding    = "rope/binding"
)

// Parameters is the tunable subset of the constants above, exposed so a
// deployment can select a preset or override individual values.
type Parameters struct {
	ReplicationFactor int
	FinalityAnchors   int
	MinValidators     int
	MaxValidators     int
	AnchorInterval    time.Duration
	StringRateLimit   int
	OESEvolutionInterval uint64
	GenerationWindow     uint64
	RoundDecideLimit     int
}

// Mainnet returns the production parameter set.
func Mainnet() Parameters {
	return Parameters{
		ReplicationFactor:    DefaultReplicationFactor,
		FinalityAnchors:      FinalityAnchors,
		MinValidators:        MinValidators,
		MaxValidators:        MaxValidators,
		AnchorInterval:       AnchorInterval,
		StringRateLimit:      StringRateLimit,
		OESEvolutionInterval: OESEvolutionInterval,
		GenerationWindow:     GenerationWindow,
		RoundDecideLimit:     RoundDecideLimit,
	}
}

// Testnet relaxes validator bounds and shortens anchor cadence for faster
// iteration.
func Testnet() Parameters {
	p := Mainnet()
	p.MinValidators = 4
	p.AnchorInterval = 1 * time.Second
	return p
}

// Local is a single-process development preset.
func Local() Parameters {
	p := Testnet()
	p.MinValidators = 1
	p.MaxValidators = 4
	p.AnchorInterval = 250 * time.Millisecond
	return p
}

// SupermajorityThreshold returns ceil(2n/3) as an exact integer, never a
// floating-point comparison.
func SupermajorityThreshold(n int) int {
	num := ErasureThresholdNumerator * n
	t := num / ErasureThresholdDenominator
	if num%ErasureThresholdDenominator != 0 {
		t++
	}
	return t
}
