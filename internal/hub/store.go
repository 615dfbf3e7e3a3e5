package hub

import "sync"

// Store holds the process-wide hub value. It is instance-based (not a
// package-level variable) so tests can inject isolated instances.
//
// The store is shared across sessions: concurrent replacements from
// different sessions race and the last writer wins. That is a documented
// consistency gap of the domain, not a bug.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store seeded with the given state.
func NewStore(initial State) *Store {
	return &Store{state: initial.clone()}
}

// Snapshot returns a deep copy of the current hub value.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Replace swaps the hub value wholesale. The write is atomic: readers
// observe either the previous value or the new one, never a mix.
func (s *Store) Replace(next State) {
	cp := next.clone()
	s.mu.Lock()
	s.state = cp
	s.mu.Unlock()
}
