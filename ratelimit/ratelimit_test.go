// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ratelimit

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBurstThenDenies(t *testing.T) {
	l := New(1)
	id := ids.GenerateTestNodeID()

	require.True(t, l.Allow(id))
	require.False(t, l.Allow(id))
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l := New(1)
	a := ids.GenerateTestNodeID()
	b := ids.GenerateTestNodeID()

	require.True(t, l.Allow(a))
	require.True(t, l.Allow(b))
}

func TestCheckReturnsRateLimitError(t *testing.T) {
	l := New(1)
	id := ids.GenerateTestNodeID()

	require.NoError(t, l.Check(id))
	require.Error(t, l.Check(id))
}

func TestDefaultUsesConfiguredRate(t *testing.T) {
	l := Default()
	require.NotNil(t, l)
}
