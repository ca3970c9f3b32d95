package fst

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv struct {
	key    string
	value  uint64
	weight uint64
}

func build(t *testing.T, weighted bool, entries ...kv) *Automaton {
	t.Helper()
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	b := NewBuilder(weighted)
	for _, e := range entries {
		require.NoError(t, b.Insert([]byte(e.key), Output{Value: e.value, Weight: e.weight}))
	}
	keys, start, stats, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(entries)), stats.Entries)
	a, err := NewAutomaton(keys, start, weighted)
	require.NoError(t, err)
	return a
}

func collect(t *testing.T, tr Traverser) []string {
	t.Helper()
	var out []string
	for tr.Next() {
		out = append(out, string(tr.Entry().Key))
	}
	require.NoError(t, tr.Err())
	return out
}

func words(ws ...string) []kv {
	out := make([]kv, len(ws))
	for i, w := range ws {
		out[i] = kv{key: w, value: uint64(i + 1)}
	}
	return out
}

func TestBuilder_Lookup(t *testing.T) {
	a := build(t, false, kv{"cat", 1, 0}, kv{"car", 2, 0}, kv{"dog", 3, 0}, kv{"", 9, 0})

	tests := []struct {
		key   string
		value uint64
		found bool
	}{
		{"cat", 1, true},
		{"car", 2, true},
		{"dog", 3, true},
		{"", 9, true},
		{"ca", 0, false},
		{"cats", 0, false},
		{"d", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		s, ok, err := a.Lookup([]byte(tt.key))
		require.NoError(t, err)
		assert.Equal(t, tt.found, ok, "key %q", tt.key)
		if tt.found {
			assert.Equal(t, tt.value, s.Value, "key %q", tt.key)
		}
	}
}

func TestBuilder_RejectsUnsorted(t *testing.T) {
	b := NewBuilder(false)
	require.NoError(t, b.Insert([]byte("b"), Output{}))
	assert.ErrorIs(t, b.Insert([]byte("a"), Output{}), ErrOutOfOrder)
	assert.ErrorIs(t, b.Insert([]byte("b"), Output{}), ErrOutOfOrder)

	_, _, _, err := b.Finish()
	require.NoError(t, err)
	_, _, _, err = b.Finish()
	assert.ErrorIs(t, err, ErrBuilderFinished)
	assert.ErrorIs(t, b.Insert([]byte("c"), Output{}), ErrBuilderFinished)
}

func TestBuilder_SharesSuffixes(t *testing.T) {
	b := NewBuilder(false)
	for _, w := range []string{"hunting", "painting", "running", "walking"} {
		require.NoError(t, b.Insert([]byte(w), Output{}))
	}
	_, _, stats, err := b.Finish()
	require.NoError(t, err)
	// "ing" plus its final state are shared by all four words.
	total := 0
	for _, w := range []string{"hunting", "painting", "running", "walking"} {
		total += len(w)
	}
	assert.Less(t, stats.States, uint64(total))
}

func TestBuilder_EmptyAutomaton(t *testing.T) {
	a := build(t, false)
	_, ok, err := a.Lookup(nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, collect(t, NewDFS(a, Root{State: a.Start()})))
}

func TestDFS_Lexicographic(t *testing.T) {
	in := []string{"banana", "apple", "app", "apricot", "b", "band", "bandana"}
	a := build(t, false, words(in...)...)
	got := collect(t, NewDFS(a, Root{State: a.Start()}))

	want := append([]string(nil), in...)
	sort.Strings(want)
	assert.Equal(t, want, got)

	root, ok, err := a.PrefixRoot([]byte("ban"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"banana", "band", "bandana"}, collect(t, NewDFS(a, root)))

	_, ok, err = a.PrefixRoot([]byte("c"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBestFirst_WeightOrder(t *testing.T) {
	a := build(t, true,
		kv{"the", 1, 100},
		kv{"then", 2, 40},
		kv{"there", 3, 80},
		kv{"they", 4, 80},
		kv{"tho", 5, 10},
		kv{"a", 6, 1000},
	)
	root, ok, err := a.PrefixRoot([]byte("th"))
	require.NoError(t, err)
	require.True(t, ok)

	bf := NewBestFirst(a, root)
	var got []string
	var weights []uint64
	for bf.Next() {
		got = append(got, string(bf.Entry().Key))
		weights = append(weights, bf.Entry().Weight)
	}
	require.NoError(t, bf.Err())
	assert.Equal(t, []string{"the", "there", "they", "then", "tho"}, got)
	assert.Equal(t, []uint64{100, 80, 80, 40, 10}, weights)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(rb)]
}

func TestFuzzy_MatchesBruteForce(t *testing.T) {
	in := []string{
		"cat", "car", "cart", "dog", "dot", "cot", "coat", "scat", "at", "c",
		"café", "cafe", "caff", "über", "uber", "ober",
	}
	a := build(t, false, words(in...)...)

	queries := []string{"cot", "cafe", "uber", "", "x", "catt"}
	for _, q := range queries {
		for d := 0; d <= 3; d++ {
			var got []Entry
			fz := NewFuzzy(a, q, d)
			for fz.Next() {
				got = append(got, fz.Entry())
			}
			require.NoError(t, fz.Err())

			type hit struct {
				key  string
				dist int
			}
			var want []hit
			for _, w := range in {
				if dist := levenshtein(q, w); dist <= d {
					want = append(want, hit{w, dist})
				}
			}
			sort.Slice(want, func(i, j int) bool {
				if want[i].dist != want[j].dist {
					return want[i].dist < want[j].dist
				}
				return want[i].key < want[j].key
			})

			require.Len(t, got, len(want), "query %q distance %d", q, d)
			for i := range want {
				assert.Equal(t, want[i].key, string(got[i].Key), "query %q distance %d", q, d)
				assert.Equal(t, want[i].dist, got[i].Distance, "query %q key %q", q, want[i].key)
			}
		}
	}
}

func TestFuzzy_Scenario(t *testing.T) {
	a := build(t, false, kv{"cat", 1, 0}, kv{"car", 2, 0}, kv{"dog", 3, 0})
	assert.Equal(t, []string{"cat"}, collect(t, NewFuzzy(a, "cot", 1)))
	// "cot" -> "dog" is two substitutions.
	assert.Equal(t, []string{"cat", "car", "dog"}, collect(t, NewFuzzy(a, "cot", 2)))
	assert.Empty(t, collect(t, NewFuzzy(a, "xyz", 2)))
}

func TestFuzzyBelow_ExactPrefix(t *testing.T) {
	in := []string{"abc", "abbc", "abbcd", "abcde", "abdd", "bbdd", "babc", "babcde", "babdd", "café", "cafe"}
	a := build(t, false, words(in...)...)

	for _, tt := range []struct {
		query  string
		prefix string
		dist   int
	}{
		{"abbc", "ab", 1},
		{"abbc", "a", 4},
		{"bbdd", "b", 2},
		{"babbc", "bab", 2},
		{"cafe", "caf", 1},
		{"café", "caf\xc3", 1},
	} {
		root, ok, err := a.PrefixRoot([]byte(tt.prefix))
		require.NoError(t, err)
		require.True(t, ok, tt.prefix)

		var want []string
		for d := 0; d <= tt.dist; d++ {
			var level []string
			for _, w := range in {
				if strings.HasPrefix(w, tt.prefix) && levenshtein(tt.query, w) == d {
					level = append(level, w)
				}
			}
			sort.Strings(level)
			want = append(want, level...)
		}
		got := collect(t, NewFuzzyBelow(a, root, tt.query, tt.dist))
		assert.Equal(t, want, got, "query %q prefix %q", tt.query, tt.prefix)
	}

	root, _, err := a.PrefixRoot([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abbc", "abbcd", "abc"}, collect(t, NewFuzzyBelow(a, root, "abbc", 1)))
}

func near(t *testing.T, a *Automaton, query string, prefix int, greedy bool) []Entry {
	t.Helper()
	root, ok, err := a.PrefixRoot([]byte(query[:prefix]))
	require.NoError(t, err)
	if !ok {
		return nil
	}
	n := NewNear(a, root, []byte(query), greedy)
	var out []Entry
	for n.Next() {
		out = append(out, n.Entry())
	}
	require.NoError(t, n.Err())
	return out
}

func keysOf(es []Entry) []string {
	var out []string
	for _, e := range es {
		out = append(out, string(e.Key))
	}
	return out
}

func TestNear_Geohashes(t *testing.T) {
	in := []string{
		"pizzeria:u281z7hfvzq9", "pizzeria:u0vu7uqfyqkg", "pizzeria:u281wu8bmmzq",
		"pizzeria:u33db8mmzj1t", "pizzeria:u0yjjd65eqy0", "pizzeria:u28db8mmzj1t",
		"pizzeria:u2817uqfyqkg",
	}
	a := build(t, false, words(in...)...)

	got := near(t, a, "pizzeria:u281wu88kekq", 12, false)
	assert.Equal(t, []string{"pizzeria:u281wu8bmmzq"}, keysOf(got))
	assert.Equal(t, 16, got[0].Matched)

	got = near(t, a, "pizzeria:u281wu8bmmzq", 21, false)
	assert.Equal(t, []string{"pizzeria:u281wu8bmmzq"}, keysOf(got))
	assert.Equal(t, 21, got[0].Matched)

	assert.Equal(t, []string{"pizzeria:u0vu7uqfyqkg"}, keysOf(near(t, a, "pizzeria:u0vu7u8bmmzq", 14, false)))

	got = near(t, a, "pizzeria:u281wu88kekq", 12, true)
	assert.Equal(t, []string{
		"pizzeria:u281wu8bmmzq", "pizzeria:u2817uqfyqkg", "pizzeria:u281z7hfvzq9", "pizzeria:u28db8mmzj1t",
	}, keysOf(got))
	var matched []int
	for _, e := range got {
		matched = append(matched, e.Matched)
	}
	assert.Equal(t, []int{16, 13, 13, 12}, matched)

	assert.Empty(t, near(t, a, "pizzeria:u9", 11, true))

	b := build(t, false, words("pizzeria:u281z7hfvzq9", "pizzeria:u2817uqfyqkg", "pizzeria:u33db8mmzj1t")...)
	want := []string{"pizzeria:u2817uqfyqkg", "pizzeria:u281z7hfvzq9"}
	assert.Equal(t, want, keysOf(near(t, b, "pizzeria:u281wu88kekq", 12, false)))
	assert.Equal(t, want, keysOf(near(t, b, "pizzeria:u281wu88kekq", 12, true)))
}

func TestNear_StopsAtDeepestMatch(t *testing.T) {
	a := build(t, false, words("ab", "abcx", "abz", "b")...)

	assert.Equal(t, []string{"ab", "abcx"}, keysOf(near(t, a, "abcd", 0, false)))
	assert.Equal(t, []string{"ab", "abcx", "abz", "b"}, keysOf(near(t, a, "abcd", 0, true)))
	assert.Equal(t, []string{"b"}, keysOf(near(t, a, "b", 1, false)))
	assert.Equal(t, []string{"ab", "abcx", "abz", "b"}, keysOf(near(t, a, "zz", 0, false)))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"new york", []string{"new", "york"}},
		{"  new \t york\n", []string{"new", "york"}},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		var got []string
		for _, tok := range Tokenize([]byte(tt.in)) {
			got = append(got, string(tok))
		}
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestPhrase_Roots(t *testing.T) {
	in := []string{
		"new york", "new york city", "new  york times", "newark", "new yorker",
		"new jersey", " new york post", "news", "new", "new ",
	}
	a := build(t, false, words(in...)...)

	phrase := func(q string) []string {
		roots, err := NewPhrase([]byte(q)).Roots(a)
		require.NoError(t, err)
		return collect(t, NewDFS(a, roots...))
	}

	assert.Equal(t,
		[]string{" new york post", "new  york times", "new york", "new york city", "new yorker"},
		phrase("new york"))
	assert.Equal(t,
		[]string{" new york post", "new  york times", "new york", "new york city", "new yorker"},
		phrase("new   yo"))
	assert.Equal(t,
		[]string{" new york post", "new  york times", "new york city"},
		phrase("new york "))
	assert.Equal(t, []string{" new york post", "new", "new ", "new  york times", "new jersey", "new york", "new york city", "new yorker", "newark", "news"}, phrase("new"))
	assert.Empty(t, phrase("old"))

	all := phrase("")
	assert.Len(t, all, len(in))
	assert.True(t, sort.StringsAreSorted(all))
	assert.Equal(t, all, phrase(" \t"))
}

func TestCorruptState(t *testing.T) {
	a := build(t, false, words("alpha", "beta")...)
	_, err := a.State(uint64(len(a.keys)) + 10)
	assert.ErrorIs(t, err, ErrCorruptState)

	// Truncate the key region so the start state's table runs off the end.
	_, err = NewAutomaton(a.keys[:a.start+2], a.start, false)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestCyclicTargetsRejected(t *testing.T) {
	a := build(t, false, words("ab")...)
	// Unweighted non-final states are flags, n, labels, then targets.
	const targetAt = 3
	mid := a.start - 7

	keys := bytes.Clone(a.keys)
	require.Equal(t, byte('a'), keys[a.start+2])
	binary.LittleEndian.PutUint32(keys[a.start+targetAt:], uint32(a.start))
	_, err := NewAutomaton(keys, a.start, false)
	assert.ErrorIs(t, err, ErrCorruptState)

	keys = bytes.Clone(a.keys)
	require.Equal(t, byte('b'), keys[mid+2])
	binary.LittleEndian.PutUint32(keys[mid+targetAt:], uint32(a.start))
	cyclic, err := NewAutomaton(keys, a.start, false)
	require.NoError(t, err)

	for _, tr := range []Traverser{
		NewDFS(cyclic, Root{State: cyclic.Start()}),
		NewBestFirst(cyclic, Root{State: cyclic.Start()}),
		NewFuzzy(cyclic, "ab", 2),
	} {
		for tr.Next() {
		}
		assert.ErrorIs(t, tr.Err(), ErrCorruptState)
	}
	_, ok, err := cyclic.Lookup([]byte("ab"))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestHeader_RoundTripAndValidate(t *testing.T) {
	h := Header{
		Version:     Version,
		Flags:       FlagWeighted | 3,
		EntryCount:  3,
		StateCount:  7,
		StartState:  10,
		KeyOffset:   HeaderSize,
		KeyLength:   20,
		ValueOffset: HeaderSize + 20,
		ValueLength: 5,
		StatsOffset: HeaderSize + 25,
		StatsLength: 4,
	}
	raw, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize)

	got, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, got.Weighted())
	assert.NoError(t, got.Validate(HeaderSize+29))
	assert.ErrorIs(t, got.Validate(HeaderSize+28), ErrLayout)

	bad := append([]byte(nil), raw...)
	bad[20] ^= 0xff
	_, err = ParseHeader(bad)
	assert.ErrorIs(t, err, ErrHeaderChecksum)

	_, err = ParseHeader([]byte(strings.Repeat("x", HeaderSize)))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = ParseHeader(raw[:10])
	assert.ErrorIs(t, err, ErrTruncated)

	h.Version = 9
	raw, err = h.MarshalBinary()
	require.NoError(t, err)
	_, err = ParseHeader(raw)
	assert.ErrorIs(t, err, ErrBadVersion)

	h.Version = Version
	h.StartState = 20
	assert.ErrorIs(t, h.Validate(1<<20), ErrLayout)
}
