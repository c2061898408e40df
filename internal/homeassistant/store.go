package homeassistant

import "sync"

// Store holds the last known state of every entity. It is primed from a
// GetStates snapshot and kept current by the socket listener.
type Store struct {
	states map[string]State
	lock   sync.RWMutex
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Load replaces the store's content with a full snapshot.
func (s *Store) Load(states []State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.states = make(map[string]State, len(states))
	for _, state := range states {
		s.states[state.EntityID] = state
	}
}

// Set records the latest state of an entity.
func (s *Store) Set(state State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.states[state.EntityID] = state
}

// Get returns the last known state of an entity.
func (s *Store) Get(entityID string) (State, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	state, ok := s.states[entityID]
	return state, ok
}
