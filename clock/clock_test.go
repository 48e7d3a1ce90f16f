// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clock

import (
	"bytes"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestHappenedBeforeIrreflexive(t *testing.T) {
	a := ids.GenerateTestNodeID()
	b := ids.GenerateTestNodeID()

	ca := New(a)
	ca.Increment()
	cb := New(b)
	cb.Observe(ca)

	require.True(t, HappenedBefore(ca, cb))
	require.False(t, HappenedBefore(cb, ca))
	require.False(t, HappenedBefore(ca, ca))
}

func TestConcurrentEvents(t *testing.T) {
	a := ids.GenerateTestNodeID()
	b := ids.GenerateTestNodeID()

	ca := New(a)
	ca.Increment()
	cb := New(b)
	cb.Increment()

	require.True(t, Concurrent(ca, cb))
}

func TestManagerObserveAdvancesPastMax(t *testing.T) {
	local := ids.GenerateTestNodeID()
	remote := ids.GenerateTestNodeID()

	m := NewManager(local)
	m.Tick() // 1

	remoteClock := WithTime(remote, 10)
	got := m.ObserveOne(remoteClock)

	require.Equal(t, uint64(11), got.LogicalTime)
	require.Len(t, got.CausalParents, 1)
	require.Equal(t, remote, got.CausalParents[0].NodeID)
}

func TestCompareTieBreaksByNodeID(t *testing.T) {
	a := ids.GenerateTestNodeID()
	b := ids.GenerateTestNodeID()
	ca := WithTime(a, 5)
	cb := WithTime(b, 5)

	want := bytes.Compare(a[:], b[:])
	if want < 0 {
		want = -1
	} else if want > 0 {
		want = 1
	}
	require.Equal(t, want, Compare(ca, cb))
}
