package fst

import (
	"bytes"
	"fmt"
)

// Output is what a key maps to.
type Output struct {
	Value  uint64
	Weight uint64
}

// BuildStats summarizes a finished automaton.
type BuildStats struct {
	Entries     uint64
	States      uint64
	Transitions uint64
}

type node struct {
	final bool
	out   Output
	trans []transition
}

// Builder compiles keys given in strictly increasing byte order into a
// minimal automaton. States are frozen as soon as no later key can reach
// them, and equal states are written once.
type Builder struct {
	weighted bool
	buf      []byte
	register map[string]uint64
	stack    []*node
	prev     []byte
	scratch  []byte
	stats    BuildStats
	done     bool
}

// NewBuilder returns an empty builder.
func NewBuilder(weighted bool) *Builder {
	return &Builder{
		weighted: weighted,
		register: make(map[string]uint64),
		stack:    []*node{{}},
	}
}

// Insert adds key. Keys must arrive in strictly increasing order.
func (b *Builder) Insert(key []byte, out Output) error {
	if b.done {
		return ErrBuilderFinished
	}
	if b.stats.Entries > 0 && bytes.Compare(key, b.prev) <= 0 {
		return fmt.Errorf("%w: %q after %q", ErrOutOfOrder, key, b.prev)
	}
	p := commonPrefix(b.prev, key)
	if b.stats.Entries == 0 {
		p = 0
	}
	if err := b.freezeTo(p); err != nil {
		return err
	}
	for _, c := range key[p:] {
		parent := b.stack[len(b.stack)-1]
		parent.trans = append(parent.trans, transition{label: c})
		b.stack = append(b.stack, &node{})
	}
	last := b.stack[len(b.stack)-1]
	last.final = true
	last.out = out
	if !b.weighted {
		last.out.Weight = 0
	}

	b.prev = append(b.prev[:0], key...)
	b.stats.Entries++
	return nil
}

// Finish freezes the remaining states and returns the key region together
// with the offset of the start state.
func (b *Builder) Finish() ([]byte, uint64, BuildStats, error) {
	if b.done {
		return nil, 0, b.stats, ErrBuilderFinished
	}
	if err := b.freezeTo(0); err != nil {
		return nil, 0, b.stats, err
	}
	start, _, err := b.freeze(b.stack[0])
	if err != nil {
		return nil, 0, b.stats, err
	}
	b.done = true
	b.register = nil
	return b.buf, start, b.stats, nil
}

// freezeTo freezes every stack node deeper than depth and links it into
// its parent.
func (b *Builder) freezeTo(depth int) error {
	for i := len(b.stack) - 1; i > depth; i-- {
		off, inner, err := b.freeze(b.stack[i])
		if err != nil {
			return err
		}
		parent := b.stack[i-1]
		t := &parent.trans[len(parent.trans)-1]
		t.target = off
		t.inner = inner
	}
	b.stack = b.stack[:depth+1]
	return nil
}

func (b *Builder) freeze(n *node) (uint64, uint64, error) {
	var inner uint64
	if n.final {
		inner = n.out.Weight
	}
	for _, t := range n.trans {
		inner = max(inner, t.inner)
	}
	if !b.weighted {
		inner = 0
	}

	b.scratch = encodeState(b.scratch[:0], n.final, n.out.Value, n.out.Weight, inner, n.trans, b.weighted)
	if off, ok := b.register[string(b.scratch)]; ok {
		return off, inner, nil
	}
	off := uint64(len(b.buf))
	if off+uint64(len(b.scratch)) > maxKeyRegion {
		return 0, 0, ErrTooLarge
	}
	b.buf = append(b.buf, b.scratch...)
	b.register[string(b.scratch)] = off
	b.stats.States++
	b.stats.Transitions += uint64(len(n.trans))
	return off, inner, nil
}

func commonPrefix(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
