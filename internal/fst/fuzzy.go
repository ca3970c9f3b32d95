package fst

import "unicode/utf8"

// Fuzzy enumerates keys within a Levenshtein distance of a query, counted
// on code points. Keys come out by increasing distance, then in key order:
// the automaton is walked once per distance level and only keys at exactly
// that distance are emitted, so every key appears once.
type Fuzzy struct {
	a     *Automaton
	root  Root
	query []rune
	max   int
	level int
	stack []fuzzyFrame
	key   []byte
	cur   Entry
	err   error
}

type fuzzyFrame struct {
	state State
	depth int
	next  int
	row   []int
	// pending holds the bytes of a code point that is not complete yet.
	pending []byte
	emitted bool
}

// NewFuzzy returns a traversal of keys within maxDistance edits of query.
func NewFuzzy(a *Automaton, query string, maxDistance int) *Fuzzy {
	return NewFuzzyBelow(a, Root{State: a.start}, query, maxDistance)
}

// NewFuzzyBelow is NewFuzzy restricted to the keys below root. The distance
// still covers the whole key: root.Key counts as matched against the start
// of query, so it should be a prefix of query.
func NewFuzzyBelow(a *Automaton, root Root, query string, maxDistance int) *Fuzzy {
	return &Fuzzy{a: a, root: root, query: []rune(query), max: maxDistance, level: -1}
}

func (f *Fuzzy) Next() bool {
	if f.err != nil {
		return false
	}
	for {
		if len(f.stack) == 0 {
			if f.level >= f.max {
				return false
			}
			f.level++
			if !f.startLevel() {
				return false
			}
		}

		top := &f.stack[len(f.stack)-1]
		if !top.emitted {
			top.emitted = true
			if top.state.Final && f.distance(top) == f.level {
				f.cur = Entry{
					Key:      append([]byte(nil), f.key[:top.depth]...),
					Value:    top.state.Value,
					Weight:   top.state.Weight,
					Distance: f.level,
				}
				return true
			}
		}
		if top.next >= top.state.NumTransitions() {
			f.stack = f.stack[:len(f.stack)-1]
			continue
		}
		i := top.next
		top.next++

		row, pending := f.advance(top.row, top.pending, top.state.Label(i))
		if minOf(row) > f.level {
			continue
		}
		depth := top.depth
		label := top.state.Label(i)
		child, err := f.a.State(top.state.Target(i))
		if err != nil {
			f.err = err
			return false
		}
		f.key = append(f.key[:depth], label)
		f.stack = append(f.stack, fuzzyFrame{state: child, depth: depth + 1, row: row, pending: pending})
	}
}

func (f *Fuzzy) Entry() Entry { return f.cur }
func (f *Fuzzy) Err() error   { return f.err }

func (f *Fuzzy) startLevel() bool {
	s, err := f.a.State(f.root.State)
	if err != nil {
		f.err = err
		return false
	}
	row := make([]int, len(f.query)+1)
	for j := range row {
		row[j] = j
	}
	var pending []byte
	for _, b := range f.root.Key {
		row, pending = f.advance(row, pending, b)
	}
	f.key = append(f.key[:0], f.root.Key...)
	f.stack = append(f.stack[:0], fuzzyFrame{state: s, depth: len(f.root.Key), row: row, pending: pending})
	return true
}

// advance extends the DP row by label. Bytes are buffered until they form
// a complete code point; invalid sequences count one edit per byte.
func (f *Fuzzy) advance(row []int, pending []byte, label byte) ([]int, []byte) {
	buf := make([]byte, 0, len(pending)+1)
	buf = append(buf, pending...)
	buf = append(buf, label)
	for len(buf) > 0 && utf8.FullRune(buf) {
		r, size := utf8.DecodeRune(buf)
		row = f.step(row, r)
		buf = buf[size:]
	}
	if len(buf) == 0 {
		buf = nil
	}
	return row, buf
}

// distance is the edit distance of the key ending at fr, treating any
// incomplete trailing bytes as invalid code points.
func (f *Fuzzy) distance(fr *fuzzyFrame) int {
	row := fr.row
	for range fr.pending {
		row = f.step(row, utf8.RuneError)
	}
	return row[len(row)-1]
}

func (f *Fuzzy) step(prev []int, r rune) []int {
	row := make([]int, len(prev))
	row[0] = prev[0] + 1
	for j := 1; j < len(row); j++ {
		cost := 1
		if f.query[j-1] == r {
			cost = 0
		}
		row[j] = min(prev[j]+1, row[j-1]+1, prev[j-1]+cost)
	}
	return row
}

func minOf(row []int) int {
	m := row[0]
	for _, v := range row[1:] {
		m = min(m, v)
	}
	return m
}
