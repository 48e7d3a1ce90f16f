// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lattice

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/luxfi/rope/crypto/envelope"
	"github.com/luxfi/rope/errs"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) (*envelope.PublicKey, *envelope.SecretKey) {
	t.Helper()
	pub, sk, err := envelope.GenerateHybridKey()
	require.NoError(t, err)
	return pub, sk
}

func TestInsertGetRoundTrip(t *testing.T) {
	store := NewStore()
	pub, sk := mustKey(t)
	creator := ids.GenerateTestNodeID()
	c := clock.New(creator)
	c.Increment()

	s, err := NewBuilder([]byte("hello")).Build(c, pub, sk)
	require.NoError(t, err)

	id, err := store.Insert(s, creator)
	require.NoError(t, err)
	require.Equal(t, s.ID(), id)

	got, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got.Payload)
}

func TestInsertMissingParentFails(t *testing.T) {
	store := NewStore()
	pub, sk := mustKey(t)
	creator := ids.GenerateTestNodeID()
	c := clock.New(creator)
	c.Increment()

	missing := ids.GenerateTestID()
	s, err := NewBuilder([]byte("child")).WithParents(missing).Build(c, pub, sk)
	require.NoError(t, err)

	_, err = store.Insert(s, creator)
	require.Error(t, err)
}

func TestInsertIsIdempotent(t *testing.T) {
	store := NewStore()
	pub, sk := mustKey(t)
	creator := ids.GenerateTestNodeID()
	c := clock.New(creator)
	c.Increment()

	s, err := NewBuilder([]byte("dup")).Build(c, pub, sk)
	require.NoError(t, err)

	id1, err := store.Insert(s, creator)
	require.NoError(t, err)
	id2, err := store.Insert(s, creator)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestMarkErasedRejectsImmutable(t *testing.T) {
	store := NewStore()
	pub, sk := mustKey(t)
	creator := ids.GenerateTestNodeID()
	c := clock.New(creator)
	c.Increment()

	s, err := NewBuilder([]byte("anchor-like")).WithMutability(Mutability{Kind: Immutable}).Build(c, pub, sk)
	require.NoError(t, err)
	id, err := store.Insert(s, creator)
	require.NoError(t, err)

	err = store.MarkErased(id, "test")
	require.ErrorIs(t, err, errs.New(errs.ImmutableString, ids.ID{}, ""))
}

func TestMarkErasedThenGetReturnsErased(t *testing.T) {
	store := NewStore()
	pub, sk := mustKey(t)
	creator := ids.GenerateTestNodeID()
	c := clock.New(creator)
	c.Increment()

	s, err := NewBuilder([]byte("erasable")).Build(c, pub, sk)
	require.NoError(t, err)
	id, err := store.Insert(s, creator)
	require.NoError(t, err)

	require.NoError(t, store.MarkErased(id, "owner request"))
	_, err = store.Get(id)
	require.Error(t, err)
	require.True(t, store.IsErased(id))
}
