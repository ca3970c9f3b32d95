package dictionary

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bastiangx/keyserve/internal/fst"
	"github.com/bastiangx/keyserve/internal/mmap"
	"github.com/charmbracelet/log"
)

// index is a mapped index file shared by a Dictionary and its iterators.
// The mapping is released when the last reference is dropped.
type index struct {
	refs    atomic.Int64
	mapping *mmap.Mapping
	path    string
	log     *log.Logger

	header      fst.Header
	fsa         *fst.Automaton
	values      []byte
	vt          ValueType
	compression Compression
	info        buildInfo
}

// acquire takes a reference. It fails once the count has dropped to zero.
func (x *index) acquire() bool {
	for {
		n := x.refs.Load()
		if n <= 0 {
			return false
		}
		if x.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (x *index) release() {
	n := x.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		x.log.Error("Index released too many times", "path", x.path)
		return
	}
	if err := x.mapping.Close(); err != nil {
		x.log.Warn("Failed to unmap index", "path", x.path, "error", err)
		return
	}
	x.log.Debug("Unmapped index", "path", x.path)
}

// guard runs fn, reporting faults on the mapped file as ErrIO.
func (x *index) guard(fn func()) error {
	return guard(x.mapping.Bytes(), fn)
}

// match builds an owned Match from a traversal entry.
func (x *index) match(e fst.Entry, score float64) (Match, error) {
	m := Match{
		key:    string(e.Key),
		score:  score,
		weight: e.Weight,
		found:  true,
		vt:     x.vt,
	}
	switch x.vt {
	case ValueKeyOnly:
	case ValueInt:
		m.num = unzigzag(e.Value)
	default:
		rec, err := readRecord(x.values, e.Value)
		if err != nil {
			return Match{}, fmt.Errorf("key %q: %w", e.Key, err)
		}
		rec.payload = bytes.Clone(rec.payload)
		m.rec = rec
	}
	return m, nil
}

// translate maps automaton errors onto package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fst.ErrCorruptState) && !errors.Is(err, ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
