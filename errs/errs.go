// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs implements the error taxonomy shared by every rope subsystem.
package errs

import (
	"fmt"

	"github.com/luxfi/ids"
)

// Kind identifies an error category. Kinds are stable across releases; the
// numeric Code derived from a Kind is part of the wire-visible contract.
type Kind int

const (
	Unknown Kind = iota

	// Lookup
	StringNotFound
	ComplementNotFound
	NodeNotFound

	// State
	StringErased
	ImmutableString
	ErasureInProgress
	ParentErased
	NotConfirmed

	// Validation
	InvalidSignature
	ContentTooLarge
	InvalidOESGeneration
	InvalidEntanglementProof
	InvalidPublicKey
	RNGFailed
	InvalidInput

	// Consensus
	QuorumNotMet
	InvalidAnchor
	TestimonyVerificationFailed

	// Integrity
	ComplementVerificationFailed
	RegenerationFailed
	InsufficientSources
	RegenerationBlocked

	// Resource
	RateLimitExceeded
	Timeout
	ConnectionFailed

	// Infrastructure
	StorageError
	SerializationError
	Internal
)

var kindNames = map[Kind]string{
	Unknown:                      "Unknown",
	StringNotFound:               "StringNotFound",
	ComplementNotFound:           "ComplementNotFound",
	NodeNotFound:                 "NodeNotFound",
	StringErased:                 "StringErased",
	ImmutableString:              "ImmutableString",
	ErasureInProgress:            "ErasureInProgress",
	ParentErased:                 "ParentErased",
	NotConfirmed:                 "NotConfirmed",
	InvalidSignature:             "InvalidSignature",
	ContentTooLarge:              "ContentTooLarge",
	InvalidOESGeneration:         "InvalidOESGeneration",
	InvalidEntanglementProof:     "InvalidEntanglementProof",
	InvalidPublicKey:             "InvalidPublicKey",
	RNGFailed:                    "RNGFailed",
	InvalidInput:                 "InvalidInput",
	QuorumNotMet:                 "QuorumNotMet",
	InvalidAnchor:                "InvalidAnchor",
	TestimonyVerificationFailed:  "TestimonyVerificationFailed",
	ComplementVerificationFailed: "ComplementVerificationFailed",
	RegenerationFailed:           "RegenerationFailed",
	InsufficientSources:          "InsufficientSources",
	RegenerationBlocked:          "RegenerationBlocked",
	RateLimitExceeded:            "RateLimitExceeded",
	Timeout:                      "Timeout",
	ConnectionFailed:             "ConnectionFailed",
	StorageError:                 "StorageError",
	SerializationError:           "SerializationError",
	Internal:                     "Internal",
}

// code maps a Kind to the stable numeric code surfaced to callers. Kinds not
// present here fall back to 9999.
var code = map[Kind]int{
	StringNotFound:     1001,
	ComplementNotFound: 1002,
	NodeNotFound:       1003,

	StringErased:      1101,
	ImmutableString:   1102,
	ErasureInProgress: 1103,
	ParentErased:      1104,
	NotConfirmed:       1105,

	InvalidSignature:         1201,
	ContentTooLarge:          1202,
	InvalidOESGeneration:     1203,
	InvalidEntanglementProof: 1204,
	InvalidPublicKey:         1205,
	RNGFailed:                1206,
	InvalidInput:             1207,

	QuorumNotMet:                1301,
	InvalidAnchor:               1302,
	TestimonyVerificationFailed: 1303,

	ComplementVerificationFailed: 1401,
	RegenerationFailed:           1402,
	InsufficientSources:          1403,
	RegenerationBlocked:          1404,

	RateLimitExceeded: 1501,
	Timeout:            1502,
	ConnectionFailed:   1503,

	StorageError:        1601,
	SerializationError:  1602,
	Internal:            1603,
}

// recoverable lists the kinds the propagation policy of §7 classes as
// recoverable. The core does not retry them itself; they are returned to
// the caller like any other error.
var recoverable = map[Kind]bool{
	RateLimitExceeded:   true,
	QuorumNotMet:        true,
	InsufficientSources: true,
	ConnectionFailed:    true,
}

// RopeError is the single structured error type used across the module. It
// carries a stable numeric code, an optional target id, and structured
// context fields used by a handful of kinds (ContentTooLarge,
// InsufficientSources, QuorumNotMet, RateLimitExceeded).
type RopeError struct {
	Kind    Kind
	Target  ids.ID
	Message string

	// Context, populated only by the kinds that need it.
	Required int
	Received int
	Limit    int
}

func (e *RopeError) Error() string {
	name := kindNames[e.Kind]
	if e.Target != ids.Empty {
		return fmt.Sprintf("%s: %s (%s)", name, e.Message, e.Target)
	}
	return fmt.Sprintf("%s: %s", name, e.Message)
}

// Code returns the stable numeric code for this error's Kind.
func (e *RopeError) Code() int {
	if c, ok := code[e.Kind]; ok {
		return c
	}
	return 9999
}

// Recoverable reports whether this error's Kind is classed as recoverable.
// The core performs no internal retry for such errors.
func (e *RopeError) Recoverable() bool {
	return recoverable[e.Kind]
}

// Is supports errors.Is by comparing Kind, ignoring context.
func (e *RopeError) Is(target error) bool {
	other, ok := target.(*RopeError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New builds a RopeError with the given Kind, target id, and message.
func New(kind Kind, target ids.ID, message string) *RopeError {
	return &RopeError{Kind: kind, Target: target, Message: message}
}

// Newf builds a RopeError with a formatted message and no target.
func Newf(kind Kind, format string, args ...any) *RopeError {
	return &RopeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithQuorum attaches required/received counts for QuorumNotMet-style errors.
func (e *RopeError) WithQuorum(required, received int) *RopeError {
	e.Required = required
	e.Received = received
	return e
}

// WithLimit attaches a limit value for RateLimitExceeded/ContentTooLarge.
func (e *RopeError) WithLimit(limit int) *RopeError {
	e.Limit = limit
	return e
}
