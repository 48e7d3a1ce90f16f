// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/clock"
	"github.com/stretchr/testify/require"
)

func TestGenesisEventsAcceptImmediately(t *testing.T) {
	d := NewDAG()
	a := ids.GenerateTestNodeID()
	e := &Event{Creator: a, Timestamp: clock.New(a)}
	accepted := d.Add(e)
	require.Len(t, accepted, 1)
	head, ok := d.Head(a)
	require.True(t, ok)
	require.Equal(t, e.ID, head)
}

func TestOutOfOrderEventsBufferThenCascade(t *testing.T) {
	d := NewDAG()
	a := ids.GenerateTestNodeID()

	genesis := &Event{Creator: a, Timestamp: clock.New(a)}
	genesis.ID = genesis.ComputeID()

	child := &Event{Creator: a, SelfParent: genesis.ID, Timestamp: clock.WithTime(a, 1)}
	child.ID = child.ComputeID()

	// Submit child before genesis: it must buffer, not accept.
	accepted := d.Add(child)
	require.Empty(t, accepted)
	_, ok := d.Get(child.ID)
	require.False(t, ok)

	// Submitting genesis should cascade-accept the buffered child.
	accepted = d.Add(genesis)
	require.Len(t, accepted, 2)
	_, ok = d.Get(child.ID)
	require.True(t, ok)
}

func TestEquivocationFlagsForked(t *testing.T) {
	d := NewDAG()
	a := ids.GenerateTestNodeID()

	parent := &Event{Creator: a, Timestamp: clock.New(a)}
	d.Add(parent)

	e1 := &Event{Creator: a, SelfParent: parent.ID, Timestamp: clock.WithTime(a, 1), Strings: []ids.ID{ids.GenerateTestID()}}
	e2 := &Event{Creator: a, SelfParent: parent.ID, Timestamp: clock.WithTime(a, 1), Strings: []ids.ID{ids.GenerateTestID()}}

	d.Add(e1)
	require.False(t, d.IsForked(a))
	d.Add(e2)
	require.True(t, d.IsForked(a))
}

func TestBatchSplitsOnMaxSize(t *testing.T) {
	events := make([]*Event, 1500)
	for i := range events {
		events[i] = &Event{}
	}
	batches := Batch(events)
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 1000)
	require.Len(t, batches[1], 500)
}
