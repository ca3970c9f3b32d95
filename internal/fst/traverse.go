package fst

import (
	"bytes"
	"container/heap"
)

// Entry is one key emitted by a traversal. Key is owned by the caller.
type Entry struct {
	Key    []byte
	Value  uint64
	Weight uint64
	// Distance is the edit distance for fuzzy traversals, zero otherwise.
	Distance int
	// Matched is the length of the query prefix the key shares, for near
	// traversals.
	Matched int
}

// Traverser yields entries one at a time.
type Traverser interface {
	// Next advances to the next entry and reports whether there is one.
	Next() bool
	// Entry returns the current entry.
	Entry() Entry
	// Err returns the error that stopped the traversal, if any.
	Err() error
}

// Root is a starting point for enumeration: a state and the key bytes that
// lead to it.
type Root struct {
	Key   []byte
	State uint64
}

// PrefixRoot returns the root for all keys starting with prefix.
func (a *Automaton) PrefixRoot(prefix []byte) (Root, bool, error) {
	s, ok, err := a.Walk(a.start, prefix)
	if err != nil || !ok {
		return Root{}, false, err
	}
	return Root{Key: append([]byte(nil), prefix...), State: s.Offset}, true, nil
}

// Empty is a traverser without entries.
type Empty struct{}

func (Empty) Next() bool   { return false }
func (Empty) Entry() Entry { return Entry{} }
func (Empty) Err() error   { return nil }

type frame struct {
	state   State
	depth   int
	next    int
	emitted bool
}

// DFS enumerates the keys below a list of roots in lexicographic order. The
// roots must be given in lexicographic order and must not be nested.
type DFS struct {
	a     *Automaton
	roots []Root
	stack []frame
	key   []byte
	cur   Entry
	err   error
}

// NewDFS returns a lexicographic traversal below roots.
func NewDFS(a *Automaton, roots ...Root) *DFS {
	return &DFS{a: a, roots: roots}
}

func (d *DFS) Next() bool {
	if d.err != nil {
		return false
	}
	for {
		if len(d.stack) == 0 {
			if len(d.roots) == 0 {
				return false
			}
			r := d.roots[0]
			d.roots = d.roots[1:]
			s, err := d.a.State(r.State)
			if err != nil {
				d.err = err
				return false
			}
			d.key = append(d.key[:0], r.Key...)
			d.stack = append(d.stack, frame{state: s, depth: len(r.Key)})
		}

		top := &d.stack[len(d.stack)-1]
		if !top.emitted {
			top.emitted = true
			if top.state.Final {
				d.cur = Entry{
					Key:    append([]byte(nil), d.key[:top.depth]...),
					Value:  top.state.Value,
					Weight: top.state.Weight,
				}
				return true
			}
		}
		if top.next >= top.state.NumTransitions() {
			d.stack = d.stack[:len(d.stack)-1]
			continue
		}
		i := top.next
		top.next++
		depth := top.depth
		label := top.state.Label(i)
		child, err := d.a.State(top.state.Target(i))
		if err != nil {
			d.err = err
			return false
		}
		d.key = append(d.key[:depth], label)
		d.stack = append(d.stack, frame{state: child, depth: depth + 1})
	}
}

func (d *DFS) Entry() Entry { return d.cur }
func (d *DFS) Err() error   { return d.err }

type item struct {
	key    []byte
	weight uint64
	emit   bool
	state  State
}

type frontier []*item

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	a, b := f[i], f[j]
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.emit && !b.emit
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(*item)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return it
}

// BestFirst enumerates keys below roots by descending weight, ties broken
// by key order. It only makes sense on weighted automata.
type BestFirst struct {
	a    *Automaton
	heap frontier
	cur  Entry
	err  error
}

// NewBestFirst returns a weight ordered traversal below roots.
func NewBestFirst(a *Automaton, roots ...Root) *BestFirst {
	bf := &BestFirst{a: a}
	for _, r := range roots {
		s, err := a.State(r.State)
		if err != nil {
			bf.err = err
			return bf
		}
		bf.heap = append(bf.heap, &item{key: r.Key, weight: s.Inner, state: s})
	}
	heap.Init(&bf.heap)
	return bf
}

func (bf *BestFirst) Next() bool {
	if bf.err != nil {
		return false
	}
	for bf.heap.Len() > 0 {
		it := heap.Pop(&bf.heap).(*item)
		if it.emit {
			bf.cur = Entry{Key: it.key, Value: it.state.Value, Weight: it.state.Weight}
			return true
		}
		s := it.state
		if s.Final {
			heap.Push(&bf.heap, &item{key: it.key, weight: s.Weight, emit: true, state: s})
		}
		for i := 0; i < s.NumTransitions(); i++ {
			child, err := bf.a.State(s.Target(i))
			if err != nil {
				bf.err = err
				return false
			}
			key := make([]byte, len(it.key)+1)
			copy(key, it.key)
			key[len(it.key)] = s.Label(i)
			heap.Push(&bf.heap, &item{key: key, weight: child.Inner, state: child})
		}
	}
	return false
}

func (bf *BestFirst) Entry() Entry { return bf.cur }
func (bf *BestFirst) Err() error   { return bf.err }
