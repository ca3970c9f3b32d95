package fst

// Phrase matches keys token by token. Tokens are separated by runs of
// ASCII whitespace; the key's runs may be longer than the single separator
// in the pattern, and leading whitespace in keys is ignored.
type Phrase struct {
	// Pattern is the normalized phrase: tokens joined by one space.
	Pattern []byte
	// Open is set when the phrase ended in whitespace, so the key must
	// continue with another token.
	Open bool
}

// IsSpace reports whether c separates tokens.
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Tokenize splits s on ASCII whitespace.
func Tokenize(s []byte) [][]byte {
	var tokens [][]byte
	start := -1
	for i, c := range s {
		if IsSpace(c) {
			if start >= 0 {
				tokens = append(tokens, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// NewPhrase normalizes a query phrase.
func NewPhrase(query []byte) Phrase {
	tokens := Tokenize(query)
	var p Phrase
	for i, t := range tokens {
		if i > 0 {
			p.Pattern = append(p.Pattern, ' ')
		}
		p.Pattern = append(p.Pattern, t...)
	}
	if len(tokens) > 0 && IsSpace(query[len(query)-1]) {
		p.Pattern = append(p.Pattern, ' ')
		p.Open = true
	}
	return p
}

type cursor struct {
	pos  int
	run  bool
	free bool
}

func (p Phrase) step(c cursor, b byte) (cursor, bool) {
	if c.free {
		return c, true
	}
	ws := IsSpace(b)
	if c.pos == len(p.Pattern) {
		// Only reachable for open phrases, after the final separator.
		if ws {
			return c, true
		}
		return cursor{free: true}, true
	}
	want := p.Pattern[c.pos]
	if want == ' ' {
		if ws {
			return cursor{pos: c.pos + 1, run: true}, true
		}
		return c, false
	}
	if ws && (c.run || c.pos == 0) {
		return cursor{pos: c.pos, run: true}, true
	}
	if b != want {
		return c, false
	}
	next := cursor{pos: c.pos + 1}
	if next.pos == len(p.Pattern) && !p.Open {
		next.free = true
	}
	return next, true
}

// Roots walks the automaton along the phrase and returns, in key order,
// every state from which all continuations match. Only whitespace runs
// branch, so the walk stays small.
func (p Phrase) Roots(a *Automaton) ([]Root, error) {
	start := cursor{free: len(p.Pattern) == 0}
	if start.free {
		return []Root{{State: a.start}}, nil
	}

	type walk struct {
		state uint64
		key   []byte
		cur   cursor
	}
	var roots []Root
	stack := []walk{{state: a.start, cur: start}}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w.cur.free {
			roots = append(roots, Root{Key: w.key, State: w.state})
			continue
		}
		s, err := a.State(w.state)
		if err != nil {
			return nil, err
		}
		// Push in reverse so the smallest label is visited first.
		for i := s.NumTransitions() - 1; i >= 0; i-- {
			next, ok := p.step(w.cur, s.Label(i))
			if !ok {
				continue
			}
			key := make([]byte, len(w.key)+1)
			copy(key, w.key)
			key[len(w.key)] = s.Label(i)
			stack = append(stack, walk{state: s.Target(i), key: key, cur: next})
		}
	}
	return roots, nil
}
