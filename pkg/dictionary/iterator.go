package dictionary

import (
	"errors"
	"fmt"
	"iter"
	"runtime"
	"runtime/debug"
	"unsafe"

	"github.com/bastiangx/keyserve/internal/fst"
)

// Iterator is a lazy, single-pass cursor over query results. It holds a
// reference on the mapped index, so it keeps working after the Dictionary is
// closed. Close it when abandoning it early; an exhausted iterator releases
// its reference by itself. An Iterator must not be used from several
// goroutines at once.
type Iterator struct {
	idx     *index
	t       fst.Traverser
	score   func(fst.Entry) float64
	limit   int
	n       int
	cur     Match
	err     error
	done    bool
	cleanup runtime.Cleanup
}

func newIterator(idx *index, t fst.Traverser, limit int, score func(fst.Entry) float64) *Iterator {
	it := &Iterator{idx: idx, t: t, limit: limit, score: score}
	it.cleanup = runtime.AddCleanup(it, func(x *index) { x.release() }, idx)
	return it
}

// failed returns an exhausted iterator carrying err.
func failed(err error) *Iterator {
	return &Iterator{err: err, done: true}
}

func weightScore(e fst.Entry) float64 { return float64(e.Weight) }

func distanceScore(e fst.Entry) float64 { return 1 / (1 + float64(e.Distance)) }

func nearScore(e fst.Entry) float64 { return float64(e.Matched) }

// Next advances to the next match. It returns false when the results are
// exhausted, the cutoff is reached or an error occurred.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if it.limit > 0 && it.n >= it.limit {
		it.finish(nil)
		return false
	}

	var (
		ok   bool
		m    Match
		mErr error
	)
	err := it.idx.guard(func() {
		ok = it.t.Next()
		if ok {
			m, mErr = it.idx.match(it.t.Entry(), it.score(it.t.Entry()))
		}
	})
	switch {
	case err != nil:
	case mErr != nil:
		err = mErr
	case !ok:
		err = translate(it.t.Err())
	}
	if err != nil || !ok {
		it.finish(err)
		return false
	}
	it.cur = m
	it.n++
	return true
}

// Match returns the current match.
func (it *Iterator) Match() Match { return it.cur }

// Err returns the error that ended iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Close stops the iteration and releases the index reference.
func (it *Iterator) Close() error {
	it.finish(nil)
	return nil
}

func (it *Iterator) finish(err error) {
	if err != nil && it.err == nil {
		it.err = err
	}
	it.cur = Match{}
	if it.done {
		return
	}
	it.done = true
	it.t = nil
	if it.idx != nil {
		it.cleanup.Stop()
		it.idx.release()
	}
}

// All returns the remaining matches as a sequence. Breaking out of the loop
// closes the iterator; check Err afterwards.
func (it *Iterator) All() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for it.Next() {
			if !yield(it.Match()) {
				it.Close()
				return
			}
		}
	}
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() ([]Match, error) {
	var out []Match
	for it.Next() {
		out = append(out, it.Match())
	}
	return out, it.Err()
}

// guard runs fn and turns memory faults inside mapped into ErrIO. Faults
// anywhere else are bugs and keep panicking.
func guard(mapped []byte, fn func()) (err error) {
	prev := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(prev)
		r := recover()
		if r == nil {
			return
		}
		var re runtime.Error
		if e, ok := r.(error); ok && errors.As(e, &re) {
			if f, ok := re.(interface{ Addr() uintptr }); ok && within(mapped, f.Addr()) {
				err = fmt.Errorf("%w: %v", ErrIO, re)
				return
			}
		}
		panic(r)
	}()
	fn()
	return nil
}

func within(b []byte, addr uintptr) bool {
	if len(b) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return addr >= base && addr-base < uintptr(len(b))
}

// deferred builds its traverser on the first call to Next, so that the
// initial walk runs under guard.
type deferred struct {
	build func() (fst.Traverser, error)
	t     fst.Traverser
	err   error
}

func (d *deferred) Next() bool {
	if d.t == nil {
		if d.err != nil {
			return false
		}
		d.t, d.err = d.build()
		if d.err != nil {
			return false
		}
	}
	return d.t.Next()
}

func (d *deferred) Entry() fst.Entry { return d.t.Entry() }

func (d *deferred) Err() error {
	if d.err != nil {
		return d.err
	}
	if d.t == nil {
		return nil
	}
	return d.t.Err()
}
