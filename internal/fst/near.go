package fst

// Near enumerates the keys below a root that share the longest prefix with
// a query. At every state on the query path the transition that continues
// the query is taken first and the others follow in label order, so the
// closest keys come out first.
//
// Unless greedy, the traversal stops once it leaves the subtree of the
// deepest query state that holds an emitted key. Greedy traversals go on
// through the whole root.
type Near struct {
	a      *Automaton
	root   Root
	query  []byte
	greedy bool
	// matched is the shared prefix length of the last emitted key.
	matched int
	started bool
	stack   []nearFrame
	key     []byte
	cur     Entry
	err     error
}

type nearFrame struct {
	state State
	depth int
	// exact is the length of the prefix shared with the query.
	exact   int
	pref    int
	next    int
	emitted bool
}

// NewNear returns a near traversal of query below root. root.Key must be a
// prefix of query.
func NewNear(a *Automaton, root Root, query []byte, greedy bool) *Near {
	return &Near{a: a, root: root, query: query, greedy: greedy}
}

func (n *Near) Next() bool {
	if n.err != nil {
		return false
	}
	if !n.started {
		n.started = true
		if !n.push(n.root.State, len(n.root.Key), len(n.root.Key)) {
			return false
		}
		n.key = append(n.key[:0], n.root.Key...)
	}
	for len(n.stack) > 0 {
		top := &n.stack[len(n.stack)-1]
		if !top.emitted {
			top.emitted = true
			if top.state.Final {
				n.cur = Entry{
					Key:     append([]byte(nil), n.key[:top.depth]...),
					Value:   top.state.Value,
					Weight:  top.state.Weight,
					Matched: top.exact,
				}
				n.matched = top.exact
				return true
			}
		}
		if !n.greedy && top.depth < n.matched {
			n.stack = n.stack[:0]
			return false
		}
		if top.next >= top.state.NumTransitions() {
			n.stack = n.stack[:len(n.stack)-1]
			continue
		}
		i := top.order(top.next)
		top.next++

		depth, exact := top.depth, top.exact
		label := top.state.Label(i)
		if exact == depth && depth < len(n.query) && n.query[depth] == label {
			exact++
		}
		n.key = append(n.key[:depth], label)
		if !n.push(top.state.Target(i), depth+1, exact) {
			return false
		}
	}
	return false
}

func (n *Near) push(off uint64, depth, exact int) bool {
	s, err := n.a.State(off)
	if err != nil {
		n.err = err
		return false
	}
	fr := nearFrame{state: s, depth: depth, exact: exact, pref: -1}
	if exact == depth && depth < len(n.query) {
		for i := 0; i < s.NumTransitions(); i++ {
			if s.Label(i) == n.query[depth] {
				fr.pref = i
				break
			}
		}
	}
	n.stack = append(n.stack, fr)
	return true
}

// order maps the k-th visit to a transition index: the preferred transition
// first, the rest in label order.
func (fr *nearFrame) order(k int) int {
	switch {
	case fr.pref < 0:
		return k
	case k == 0:
		return fr.pref
	case k-1 < fr.pref:
		return k - 1
	default:
		return k
	}
}

func (n *Near) Entry() Entry { return n.cur }
func (n *Near) Err() error   { return n.err }
