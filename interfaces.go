// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rope wires the lattice, virtual-voting, OES, and testimony
// subsystems behind a single facade, the way the teacher's top-level
// engine struct exposes a protocol's external API.
package rope

import (
	"context"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/gossip"
	"github.com/luxfi/rope/quorum"
)

// PeerChannel is the abstract gossip transport Core consumes. It never
// mandates a concrete P2P stack: callers (RPC servers, libp2p adapters,
// in-process test harnesses) supply their own.
type PeerChannel interface {
	// Broadcast announces a batch of locally-accepted events to peers.
	Broadcast(ctx context.Context, batch []*gossip.Event) error

	// Recv blocks until a remote batch of events arrives, or ctx is done.
	Recv(ctx context.Context) ([]*gossip.Event, error)
}

// IdentityProvider returns the local node's hybrid keypair and the
// current validator set.
type IdentityProvider interface {
	NodeID() ids.NodeID
	KeyPair() (*envelope.PublicKey, *envelope.SecretKey)
	Validators() *quorum.Set
}

// Clock is a wall-clock source used for OES epoch boundaries, rate-limit
// timeouts, and anchor-interval targeting. It is never consulted for
// consensus ordering, which runs entirely on Lamport logical time.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the default wall-clock source.
func SystemClock() Clock { return systemClock{} }
