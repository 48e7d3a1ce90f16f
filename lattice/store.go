// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lattice

import (
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/rope/errs"
	"github.com/luxfi/rope/utils/set"
)

// bucketCount is the number of StringId-prefix buckets writers serialise
// on, per §5: cross-bucket writes proceed in parallel, same-bucket writes
// serialise through that bucket's lock.
const bucketCount = 256

// Store is the content-addressed lattice: StringId -> String, plus a
// parent index (StringId -> set of child StringIds), a creator index
// (NodeId -> ordered StringIds), and an erasure-mark set.
type Store struct {
	bucketLocks [bucketCount]sync.Mutex

	mu       sync.RWMutex
	strings  map[ids.ID]*String
	children map[ids.ID]set.Set[ids.ID]
	creators map[ids.NodeID][]ids.ID
	erased   set.Set[ids.ID]
}

// NewStore returns an empty lattice store.
func NewStore() *Store {
	return &Store{
		strings:  make(map[ids.ID]*String),
		children: make(map[ids.ID]set.Set[ids.ID]),
		creators: make(map[ids.NodeID][]ids.ID),
		erased:   set.NewSet[ids.ID](0),
	}
}

func bucketOf(id ids.ID) int {
	return int(id[0])
}

// Insert validates and stores S, failing ParentErased if any declared
// parent is absent or erased, and updating the parent/creator
// indexes on success. Insertion is idempotent on duplicate StringId.
func (st *Store) Insert(s *String, creator ids.NodeID) (ids.ID, error) {
	id := s.ID()

	bucket := bucketOf(id)
	st.bucketLocks[bucket].Lock()
	defer st.bucketLocks[bucket].Unlock()

	st.mu.RLock()
	if _, exists := st.strings[id]; exists {
		st.mu.RUnlock()
		return id, nil // invariant 2: duplicates are deduplicated on insert
	}
	for _, parent := range s.Parents {
		if st.erased.Contains(parent) {
			st.mu.RUnlock()
			return id, errs.New(errs.ParentErased, parent, "parent string has been erased")
		}
		if _, ok := st.strings[parent]; !ok {
			st.mu.RUnlock()
			return id, errs.New(errs.ParentErased, parent, "parent string not present")
		}
	}
	st.mu.RUnlock()

	if err := Verify(s, id, func(p ids.ID) bool {
		st.mu.RLock()
		_, ok := st.strings[p]
		st.mu.RUnlock()
		return ok
	}); err != nil {
		return id, err
	}

	st.mu.Lock()
	st.strings[id] = s
	st.creators[creator] = append(st.creators[creator], id)
	for _, parent := range s.Parents {
		children, ok := st.children[parent]
		if !ok {
			children = set.NewSet[ids.ID](1)
			st.children[parent] = children
		}
		children.Add(id)
	}
	st.mu.Unlock()

	return id, nil
}

// Get returns the string for id, or StringNotFound / StringErased.
func (st *Store) Get(id ids.ID) (*String, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.erased.Contains(id) {
		return nil, errs.New(errs.StringErased, id, "string has been erased")
	}
	s, ok := st.strings[id]
	if !ok {
		return nil, errs.New(errs.StringNotFound, id, "string not present")
	}
	return s, nil
}

// Children returns the direct children of id.
func (st *Store) Children(id ids.ID) []ids.ID {
	st.mu.RLock()
	defer st.mu.RUnlock()
	children, ok := st.children[id]
	if !ok {
		return nil
	}
	return children.List()
}

// Ancestors returns a bounded BFS over id's parent chain, up to depth
// generations back.
func (st *Store) Ancestors(id ids.ID, depth int) []ids.ID {
	st.mu.RLock()
	defer st.mu.RUnlock()

	visited := set.NewSet[ids.ID](0)
	frontier := []ids.ID{id}
	var out []ids.ID
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []ids.ID
		for _, cur := range frontier {
			s, ok := st.strings[cur]
			if !ok {
				continue
			}
			for _, parent := range s.Parents {
				if visited.Contains(parent) {
					continue
				}
				visited.Add(parent)
				out = append(out, parent)
				next = append(next, parent)
			}
		}
		frontier = next
	}
	return out
}

// MarkErased transitions id's μ to the terminal Erased state. Idempotent;
// rejects Immutable strings with ImmutableString.
func (st *Store) MarkErased(id ids.ID, reason string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.erased.Contains(id) {
		return nil
	}
	s, ok := st.strings[id]
	if !ok {
		return errs.New(errs.StringNotFound, id, "string not present")
	}
	if s.Mutability.Kind == Immutable {
		return errs.New(errs.ImmutableString, id, "immutable strings cannot be erased")
	}
	s.Mutability = Mutability{Kind: Erased, ErasureReason: reason}
	for i := range s.Payload {
		s.Payload[i] = 0
	}
	s.Payload = nil // σ is destroyed; storage zeroed
	st.erased.Add(id)
	return nil
}

// IsErased reports whether id has reached the terminal Erased state.
func (st *Store) IsErased(id ids.ID) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.erased.Contains(id)
}

// CreatorStrings returns the ordered StringIds authored by creator.
func (st *Store) CreatorStrings(creator ids.NodeID) []ids.ID {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]ids.ID, len(st.creators[creator]))
	copy(out, st.creators[creator])
	return out
}
