// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rope

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/config"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/gossip"
	"github.com/luxfi/rope/lattice"
	"github.com/luxfi/rope/quorum"
	"github.com/luxfi/rope/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// loopbackIdentity is a fixed single-node IdentityProvider for tests.
type loopbackIdentity struct {
	node ids.NodeID
	pub  *envelope.PublicKey
	sk   *envelope.SecretKey
	set  *quorum.Set
}

func newLoopbackIdentity(t *testing.T) *loopbackIdentity {
	t.Helper()
	pub, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)
	node := ids.GenerateTestNodeID()
	return &loopbackIdentity{
		node: node,
		pub:  pub,
		sk:   sk,
		set:  quorum.NewSetUnchecked([]ids.NodeID{node}),
	}
}

func (l *loopbackIdentity) NodeID() ids.NodeID { return l.node }
func (l *loopbackIdentity) KeyPair() (*envelope.PublicKey, *envelope.SecretKey) {
	return l.pub, l.sk
}
func (l *loopbackIdentity) Validators() *quorum.Set { return l.set }

// discardPeers never delivers remote events; Recv blocks until ctx is done.
type discardPeers struct{}

func (discardPeers) Broadcast(ctx context.Context, batch []*gossip.Event) error { return nil }
func (discardPeers) Recv(ctx context.Context) ([]*gossip.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	identity := newLoopbackIdentity(t)
	c, err := New(identity, discardPeers{}, SystemClock(), config.Local(), prometheus.NewRegistry(), nil)
	require.NoError(t, err)
	return c
}

func TestSubmitStringAndGetString(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	id, err := c.SubmitString(ctx, []byte("hello rope"), nil, lattice.Mutability{Kind: lattice.OwnerErasable})
	require.NoError(t, err)

	s, err := c.GetString(id)
	require.NoError(t, err)
	require.Equal(t, []byte("hello rope"), s.Payload)
}

func TestSubmitStringGeneratesComplement(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	id, err := c.SubmitString(ctx, []byte("data to protect"), nil, lattice.Mutability{Kind: lattice.OwnerErasable})
	require.NoError(t, err)

	comp, err := c.GetComplement(id)
	require.NoError(t, err)
	require.Equal(t, id, comp.PrimaryID)

	recovered, err := c.Regenerate(id, []byte("data to protect"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("data to protect"), recovered)
}

func TestRateLimitRejectsBurstAboveCapacity(t *testing.T) {
	identity := newLoopbackIdentity(t)
	params := config.Local()
	params.StringRateLimit = 1
	c, err := New(identity, discardPeers{}, SystemClock(), params, prometheus.NewRegistry(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.SubmitString(ctx, []byte("first"), nil, lattice.Mutability{Kind: lattice.OwnerErasable})
	require.NoError(t, err)

	_, err = c.SubmitString(ctx, []byte("second"), nil, lattice.Mutability{Kind: lattice.OwnerErasable})
	require.Error(t, err)
}

func TestSubscribeReceivesStringCreated(t *testing.T) {
	c := newTestCore(t)
	ch, cancel := c.Subscribe(StringCreated)
	defer cancel()

	ctx := context.Background()
	id, err := c.SubmitString(ctx, []byte("watch me"), nil, lattice.Mutability{Kind: lattice.OwnerErasable})
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, StringCreated, ev.Kind)
		require.Equal(t, id, ev.StringID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for StringCreated event")
	}
}

func TestRequestErasureOnImmutableFails(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	id, err := c.SubmitString(ctx, []byte("permanent"), nil, lattice.Mutability{Kind: lattice.Immutable})
	require.NoError(t, err)

	require.Error(t, c.RequestErasure(id, 0))
}

func TestFinalityStatusUnknownStringNotFinal(t *testing.T) {
	c := newTestCore(t)
	status := c.FinalityStatus(ids.GenerateTestID())
	require.False(t, status.Final)
}

func TestSubmitStringPersistsPayload(t *testing.T) {
	identity := newLoopbackIdentity(t)
	mem := storage.NewMemStore()
	c, err := New(identity, discardPeers{}, SystemClock(), config.Local(), prometheus.NewRegistry(), mem)
	require.NoError(t, err)

	ctx := context.Background()
	id, err := c.SubmitString(ctx, []byte("durable"), nil, lattice.Mutability{Kind: lattice.OwnerErasable})
	require.NoError(t, err)

	key := append(append([]byte{}, persistStringPrefix...), id[:]...)
	stored, err := mem.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("durable"), stored)

	require.NoError(t, c.Close())
}
