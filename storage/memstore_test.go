// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Put([]byte("a"), []byte("1")))

	ok, err := s.Has([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)

	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete([]byte("a")))
	ok, err = s.Has([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIteratePrefixSortedOrder(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Put([]byte("str/b"), []byte("2")))
	require.NoError(t, s.Put([]byte("str/a"), []byte("1")))
	require.NoError(t, s.Put([]byte("other/x"), []byte("9")))

	it := s.IteratePrefix([]byte("str/"))
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"str/a", "str/b"}, keys)
}

func TestBatchWriteAppliesQueuedPuts(t *testing.T) {
	s := NewMemStore()
	b := s.NewBatch()
	require.NoError(t, b.Put([]byte("x"), []byte("1")))
	require.NoError(t, b.Put([]byte("y"), []byte("2")))
	require.Equal(t, 2, b.Size())
	require.NoError(t, b.Write())

	v, err := s.Get([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

func TestOperationsFailAfterClose(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Close())
	require.Error(t, s.Put([]byte("a"), []byte("1")))
}
