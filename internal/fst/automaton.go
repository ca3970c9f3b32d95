package fst

import "fmt"

// Automaton reads states from an immutable key region. It holds no mutable
// state and is safe for concurrent use.
type Automaton struct {
	keys     []byte
	start    uint64
	weighted bool
}

// NewAutomaton wraps a key region and checks that its start state decodes.
func NewAutomaton(keys []byte, start uint64, weighted bool) (*Automaton, error) {
	a := &Automaton{keys: keys, start: start, weighted: weighted}
	if _, err := a.State(start); err != nil {
		return nil, fmt.Errorf("start state: %w", err)
	}
	return a, nil
}

// Start returns the offset of the start state.
func (a *Automaton) Start() uint64 {
	return a.start
}

// Weighted reports whether states carry weights.
func (a *Automaton) Weighted() bool {
	return a.weighted
}

// State decodes the state at off.
func (a *Automaton) State(off uint64) (State, error) {
	return decodeState(a.keys, off, a.weighted)
}

// Walk follows key from the state at off. ok is false when a transition is
// missing.
func (a *Automaton) Walk(off uint64, key []byte) (State, bool, error) {
	s, err := a.State(off)
	if err != nil {
		return s, false, err
	}
	for _, b := range key {
		next, found := s.Find(b)
		if !found {
			return s, false, nil
		}
		if s, err = a.State(next); err != nil {
			return s, false, err
		}
	}
	return s, true, nil
}

// Lookup returns the final state reached by key from the start state.
func (a *Automaton) Lookup(key []byte) (State, bool, error) {
	s, ok, err := a.Walk(a.start, key)
	if err != nil || !ok || !s.Final {
		return s, false, err
	}
	return s, true, nil
}
