package dictionary

import (
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"unicode/utf8"

	"github.com/bastiangx/keyserve/internal/fst"
	"github.com/bastiangx/keyserve/internal/logger"
	"github.com/bastiangx/keyserve/internal/mmap"
	"github.com/charmbracelet/log"
)

// MaxEditDistance is the largest distance GetFuzzy accepts.
const MaxEditDistance = 10

// Dictionary is a read-only view of a compiled index file. All methods are
// safe for concurrent use.
type Dictionary struct {
	idx      *index
	strategy LoadingStrategy
	closed   atomic.Bool
	log      *log.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	strategy LoadingStrategy
	log      *log.Logger
}

// WithLoadingStrategy selects how the file is paged in. The default is
// DefaultOS.
func WithLoadingStrategy(s LoadingStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithLogger sets the logger for open, close and paging events.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.log = l }
}

// Open maps and validates the index file at path. Failures are reported
// as *OpenError.
func Open(path string, opts ...Option) (*Dictionary, error) {
	o := options{strategy: DefaultOS}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.New("dictionary")
	}
	if !o.strategy.valid() {
		return nil, fmt.Errorf("%w: loading strategy %d", ErrInvalidArgument, int(o.strategy))
	}
	pg := o.strategy.paging()

	var mopts []mmap.Option
	if pg.populateFile {
		mopts = append(mopts, mmap.WithPopulate())
	}
	m, err := mmap.Open(path, mopts...)
	if err != nil {
		return nil, classifyOpen(path, err)
	}

	idx, err := load(path, m, o.log)
	if err != nil {
		m.Close()
		return nil, err
	}
	idx.applyPaging(pg)

	d := &Dictionary{idx: idx, strategy: o.strategy, log: o.log}
	o.log.Debug("Opened dictionary",
		"path", path,
		"entries", idx.header.EntryCount,
		"strategy", o.strategy,
		"mapped", m.Mapped())
	return d, nil
}

func classifyOpen(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return openError(NotFound, path, err)
	case errors.Is(err, fs.ErrPermission):
		return openError(PermissionDenied, path, err)
	case errors.Is(err, mmap.ErrInvalidSize):
		return openError(CorruptFormat, path, err)
	}
	return openError(Unreadable, path, err)
}

// load validates the mapped file and builds the shared index. Faults while
// reading the header surface as Unreadable.
func load(path string, m *mmap.Mapping, l *log.Logger) (idx *index, err error) {
	ferr := guard(m.Bytes(), func() { idx, err = parse(path, m, l) })
	if ferr != nil {
		return nil, openError(Unreadable, path, ferr)
	}
	return idx, err
}

func parse(path string, m *mmap.Mapping, l *log.Logger) (*index, error) {
	data := m.Bytes()
	h, err := fst.ParseHeader(data)
	if err != nil {
		if errors.Is(err, fst.ErrBadVersion) {
			return nil, openError(VersionMismatch, path, err)
		}
		return nil, openError(CorruptFormat, path, err)
	}
	if err := h.Validate(uint64(len(data))); err != nil {
		return nil, openError(CorruptFormat, path, err)
	}

	vt := ValueType(h.Flags & 0xff)
	if !vt.valid() {
		return nil, openError(CorruptFormat, path, fmt.Errorf("unknown value type %d", h.Flags&0xff))
	}
	codec := Compression(h.Flags >> 16 & 0xff)
	if !codec.valid() {
		return nil, openError(CorruptFormat, path, fmt.Errorf("unknown compression %d", h.Flags>>16&0xff))
	}

	keys := data[h.KeyOffset : h.KeyOffset+h.KeyLength]
	fsa, err := fst.NewAutomaton(keys, h.StartState, h.Weighted())
	if err != nil {
		return nil, openError(CorruptFormat, path, err)
	}
	info, err := decodeBuildInfo(data[h.StatsOffset : h.StatsOffset+h.StatsLength])
	if err != nil {
		return nil, openError(CorruptFormat, path, fmt.Errorf("statistics block: %w", err))
	}

	idx := &index{
		mapping:     m,
		path:        path,
		log:         l,
		header:      h,
		fsa:         fsa,
		values:      data[h.ValueOffset : h.ValueOffset+h.ValueLength],
		vt:          vt,
		compression: codec,
		info:        info,
	}
	idx.refs.Store(1)
	return idx, nil
}

// applyPaging hints the kernel per region. Failures only cost performance.
func (x *index) applyPaging(pg paging) {
	h := x.header
	apply := func(name string, off, size uint64, p mmap.Policy) {
		if p == (mmap.Policy{}) {
			return
		}
		r, err := x.mapping.Region(int(off), int(size))
		if err == nil {
			err = r.Apply(p)
		}
		if err != nil {
			x.log.Warn("Paging hint failed", "region", name, "error", err)
		}
	}
	apply("key", h.KeyOffset, h.KeyLength, pg.key)
	apply("value", h.ValueOffset, h.ValueLength, pg.value)
}

// Size returns the number of entries.
func (d *Dictionary) Size() int {
	return int(d.idx.header.EntryCount)
}

// ValueType returns the type of the stored values.
func (d *Dictionary) ValueType() ValueType {
	return d.idx.vt
}

// Weighted reports whether entries carry weights.
func (d *Dictionary) Weighted() bool {
	return d.idx.header.Weighted()
}

// LoadingStrategy returns the strategy the dictionary was opened with.
func (d *Dictionary) LoadingStrategy() LoadingStrategy {
	return d.strategy
}

// Manifest returns the free-form manifest stored at compile time.
func (d *Dictionary) Manifest() string {
	return d.idx.info.Manifest
}

func (d *Dictionary) acquire() bool {
	if d.closed.Load() {
		return false
	}
	return d.idx.acquire()
}

// exactScore is the neutral score of exact lookups.
const exactScore = 0

// Lookup returns the entry for key. A missing key yields an empty Match and
// a nil error.
func (d *Dictionary) Lookup(key string) (Match, error) {
	if !d.acquire() {
		return Match{}, ErrClosed
	}
	defer d.idx.release()

	var (
		m   Match
		err error
	)
	if ferr := d.idx.guard(func() {
		s, ok, werr := d.idx.fsa.Lookup([]byte(key))
		if werr != nil || !ok {
			err = translate(werr)
			return
		}
		m, err = d.idx.match(fst.Entry{Key: []byte(key), Value: s.Value, Weight: s.Weight}, exactScore)
	}); ferr != nil {
		return Match{}, ferr
	}
	return m, err
}

// Get returns the entry for key, or an empty Match when the key is absent.
// Read errors are logged and reported as an empty Match; use Lookup to see
// them.
func (d *Dictionary) Get(key string) Match {
	m, err := d.Lookup(key)
	if err != nil {
		d.log.Warn("Lookup failed", "key", key, "error", err)
		return Match{}
	}
	return m
}

// Contains reports whether key is present.
func (d *Dictionary) Contains(key string) bool {
	return !d.Get(key).IsEmpty()
}

func (d *Dictionary) iterate(limit int, score func(fst.Entry) float64, build func(a *fst.Automaton) (fst.Traverser, error)) *Iterator {
	if !d.acquire() {
		return failed(ErrClosed)
	}
	a := d.idx.fsa
	t := &deferred{build: func() (fst.Traverser, error) { return build(a) }}
	return newIterator(d.idx, t, limit, score)
}

func (d *Dictionary) enumerate(a *fst.Automaton, roots ...fst.Root) fst.Traverser {
	if len(roots) == 0 {
		return fst.Empty{}
	}
	if a.Weighted() {
		return fst.NewBestFirst(a, roots...)
	}
	return fst.NewDFS(a, roots...)
}

// GetAllItems iterates over every entry in lexicographic byte order.
func (d *Dictionary) GetAllItems() *Iterator {
	return d.iterate(0, weightScore, func(a *fst.Automaton) (fst.Traverser, error) {
		return fst.NewDFS(a, fst.Root{State: a.Start()}), nil
	})
}

func checkCutoff(cutoff int) error {
	if cutoff < 0 {
		return fmt.Errorf("%w: negative cutoff %d", ErrInvalidArgument, cutoff)
	}
	return nil
}

// GetPrefixCompletions iterates over the keys that start with prefix, at
// most cutoff of them; zero means no limit. Weighted dictionaries yield the
// heaviest keys first.
func (d *Dictionary) GetPrefixCompletions(prefix string, cutoff int) (*Iterator, error) {
	if err := checkCutoff(cutoff); err != nil {
		return nil, err
	}
	return d.iterate(cutoff, weightScore, func(a *fst.Automaton) (fst.Traverser, error) {
		root, ok, err := a.PrefixRoot([]byte(prefix))
		if err != nil || !ok {
			return fst.Empty{}, err
		}
		return d.enumerate(a, root), nil
	}), nil
}

// GetFuzzy iterates over the keys within maxEditDistance Levenshtein edits
// of key, counted in code points, ordered by distance and then by key.
func (d *Dictionary) GetFuzzy(key string, maxEditDistance int) (*Iterator, error) {
	return d.GetFuzzyWithPrefix(key, maxEditDistance, 0)
}

// GetFuzzyWithPrefix is GetFuzzy for keys that start with the first
// minExactPrefix code points of key. A key shorter than that yields
// nothing.
func (d *Dictionary) GetFuzzyWithPrefix(key string, maxEditDistance, minExactPrefix int) (*Iterator, error) {
	if maxEditDistance < 0 || maxEditDistance > MaxEditDistance {
		return nil, fmt.Errorf("%w: edit distance %d outside [0,%d]", ErrInvalidArgument, maxEditDistance, MaxEditDistance)
	}
	if minExactPrefix < 0 {
		return nil, fmt.Errorf("%w: negative exact prefix %d", ErrInvalidArgument, minExactPrefix)
	}
	if !utf8.ValidString(key) {
		return nil, fmt.Errorf("%w: key is not valid UTF-8", ErrInvalidArgument)
	}
	prefix, ok := runePrefix(key, minExactPrefix)
	return d.iterate(0, distanceScore, func(a *fst.Automaton) (fst.Traverser, error) {
		if !ok {
			return fst.Empty{}, nil
		}
		root, found, err := a.PrefixRoot([]byte(prefix))
		if err != nil || !found {
			return fst.Empty{}, err
		}
		return fst.NewFuzzyBelow(a, root, key, maxEditDistance), nil
	}), nil
}

// runePrefix returns the first n code points of s, or false when s is
// shorter.
func runePrefix(s string, n int) (string, bool) {
	i := 0
	for range n {
		if i >= len(s) {
			return "", false
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], true
}

// GetNear iterates over the keys closest to key. The first minExactPrefix
// bytes must match exactly; beyond them the keys sharing the longest prefix
// with key come first. Unless greedy, only the keys below the deepest
// matching prefix are returned. Greedy iteration goes on through every key
// under the exact prefix, closer keys first. Matches score the length of
// the prefix they share with key.
func (d *Dictionary) GetNear(key string, minExactPrefix int, greedy bool) (*Iterator, error) {
	if minExactPrefix < 0 {
		return nil, fmt.Errorf("%w: negative exact prefix %d", ErrInvalidArgument, minExactPrefix)
	}
	return d.iterate(0, nearScore, func(a *fst.Automaton) (fst.Traverser, error) {
		if len(key) < minExactPrefix {
			return fst.Empty{}, nil
		}
		root, found, err := a.PrefixRoot([]byte(key[:minExactPrefix]))
		if err != nil || !found {
			return fst.Empty{}, err
		}
		return fst.NewNear(a, root, []byte(key), greedy), nil
	}), nil
}

// GetMultiWordCompletions completes a phrase token by token. Every token
// but the last must match a whole token of the key; the last one completes
// a prefix. A trailing space asks for the next token.
func (d *Dictionary) GetMultiWordCompletions(phrase string, cutoff int) (*Iterator, error) {
	if err := checkCutoff(cutoff); err != nil {
		return nil, err
	}
	if !utf8.ValidString(phrase) {
		return nil, fmt.Errorf("%w: phrase is not valid UTF-8", ErrInvalidArgument)
	}
	p := fst.NewPhrase([]byte(phrase))
	return d.iterate(cutoff, weightScore, func(a *fst.Automaton) (fst.Traverser, error) {
		roots, err := p.Roots(a)
		if err != nil {
			return nil, err
		}
		return d.enumerate(a, roots...), nil
	}), nil
}

// Close releases the dictionary. Iterators still open keep the file mapped
// until they finish. Close is idempotent.
func (d *Dictionary) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.log.Debug("Closing dictionary", "path", d.idx.path)
	d.idx.release()
	return nil
}
