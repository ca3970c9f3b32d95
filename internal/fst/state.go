package fst

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

const (
	flagFinal = 1 << 0

	targetSize   = 4
	maxKeyRegion = math.MaxUint32
)

// State is a decoded view of one state. Labels and targets alias the key
// region and must not be modified.
type State struct {
	Offset uint64
	Final  bool
	// Value is the inline output of a final state.
	Value uint64
	// Weight is the entry weight of a final state in weighted automata.
	Weight uint64
	// Inner is the highest weight reachable from this state.
	Inner   uint64
	labels  []byte
	targets []byte
}

// NumTransitions returns the number of outgoing transitions.
func (s *State) NumTransitions() int {
	return len(s.labels)
}

// Label returns the label of transition i.
func (s *State) Label(i int) byte {
	return s.labels[i]
}

// Target returns the destination offset of transition i.
func (s *State) Target(i int) uint64 {
	return uint64(binary.LittleEndian.Uint32(s.targets[i*targetSize:]))
}

// Find returns the destination for label.
func (s *State) Find(label byte) (uint64, bool) {
	i := sort.Search(len(s.labels), func(i int) bool { return s.labels[i] >= label })
	if i < len(s.labels) && s.labels[i] == label {
		return s.Target(i), true
	}
	return 0, false
}

// decodeState reads the state at off. Every read is bounds checked so a
// damaged key region yields ErrCorruptState rather than a panic, and
// targets must lie below off so every walk terminates.
func decodeState(keys []byte, off uint64, weighted bool) (State, error) {
	s := State{Offset: off}
	if off >= uint64(len(keys)) {
		return s, fmt.Errorf("%w: offset %d outside key region", ErrCorruptState, off)
	}
	p := keys[off:]
	flags := p[0]
	p = p[1:]

	var ok bool
	if flags&flagFinal != 0 {
		s.Final = true
		if s.Value, p, ok = uvarint(p); !ok {
			return s, fmt.Errorf("%w: value at %d", ErrCorruptState, off)
		}
		if weighted {
			if s.Weight, p, ok = uvarint(p); !ok {
				return s, fmt.Errorf("%w: weight at %d", ErrCorruptState, off)
			}
		}
	}
	if weighted {
		if s.Inner, p, ok = uvarint(p); !ok {
			return s, fmt.Errorf("%w: inner weight at %d", ErrCorruptState, off)
		}
	}
	n, p, ok := uvarint(p)
	if !ok || n > 256 || uint64(len(p)) < n*(1+targetSize) {
		return s, fmt.Errorf("%w: transition table at %d", ErrCorruptState, off)
	}
	s.labels = p[:n]
	s.targets = p[n : n+n*targetSize]
	// States are written children first, so targets always point backwards.
	// Anything else would let a traversal cycle.
	for i := range int(n) {
		if t := s.Target(i); t >= off {
			return s, fmt.Errorf("%w: transition %d at %d points forward to %d", ErrCorruptState, i, off, t)
		}
	}
	return s, nil
}

func uvarint(p []byte) (uint64, []byte, bool) {
	v, n := binary.Uvarint(p)
	if n <= 0 {
		return 0, p, false
	}
	return v, p[n:], true
}

// transition is an edge of a state that has not been written yet.
type transition struct {
	label  byte
	target uint64
	inner  uint64
}

// encodeState appends the encoding of a state to buf.
func encodeState(buf []byte, final bool, value, weight, inner uint64, trans []transition, weighted bool) []byte {
	var flags byte
	if final {
		flags |= flagFinal
	}
	buf = append(buf, flags)
	if final {
		buf = binary.AppendUvarint(buf, value)
		if weighted {
			buf = binary.AppendUvarint(buf, weight)
		}
	}
	if weighted {
		buf = binary.AppendUvarint(buf, inner)
	}
	buf = binary.AppendUvarint(buf, uint64(len(trans)))
	for _, t := range trans {
		buf = append(buf, t.label)
	}
	for _, t := range trans {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(t.target))
	}
	return buf
}
