// Package positions keeps the per-node model-space positions alive across
// data refreshes. A position is created by the layout engine the first time
// a node id is seen, mutated by drags, and dropped only when the node leaves
// the snapshot.
package positions

import (
	"sync"

	"topoviz/internal/layout"
)

// Merge combines stored positions with a fresh layout pass. For every id in
// current the existing position wins when present, otherwise the fresh one
// fills in; ids absent from current are dropped. This is what makes a manual
// drag durable across the periodic refetch: merge never overwrites an
// existing position, including one written mid-gesture.
func Merge(existing, fresh map[int64]layout.Position, current map[int64]struct{}) map[int64]layout.Position {
	out := make(map[int64]layout.Position, len(current))
	for id := range current {
		if p, ok := existing[id]; ok {
			out[id] = p
			continue
		}
		if p, ok := fresh[id]; ok {
			out[id] = p
		}
	}
	return out
}

// Store is the shared, mutex-guarded position map written by both the
// refresh pipeline (Apply) and drag gestures (Set).
type Store struct {
	mu        sync.RWMutex
	positions map[int64]layout.Position
}

func NewStore() *Store {
	return &Store{positions: make(map[int64]layout.Position)}
}

func (s *Store) Get(id int64) (layout.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	return p, ok
}

func (s *Store) Set(id int64, p layout.Position) {
	s.mu.Lock()
	s.positions[id] = p
	s.mu.Unlock()
}

// Apply merges a fresh layout result into the store under the current id
// set, in one critical section so a concurrent drag write either lands
// before the merge (and is preserved) or after it (and simply overwrites).
func (s *Store) Apply(fresh map[int64]layout.Position, current map[int64]struct{}) {
	s.mu.Lock()
	s.positions = Merge(s.positions, fresh, current)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current positions.
func (s *Store) Snapshot() map[int64]layout.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]layout.Position, len(s.positions))
	for id, p := range s.positions {
		out[id] = p
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}
