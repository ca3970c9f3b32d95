package dictionary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bastiangx/keyserve/internal/fst"
	"github.com/google/btree"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCompressionThreshold is the smallest value size that gets compressed.
const DefaultCompressionThreshold = 64

type staged struct {
	key    string
	inline uint64
	raw    []byte
	weight uint64
}

func stagedLess(a, b staged) bool { return a.key < b.key }

// Compiler collects entries in memory and writes them as an index file.
// Keys may be added in any order; adding a key twice keeps the last value.
// A Compiler is not safe for concurrent use.
type Compiler struct {
	vt        ValueType
	weighted  bool
	codec     Compression
	threshold int
	manifest  string
	now       func() time.Time

	entries *btree.BTreeG[staged]
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithValueType sets the value type. The default is ValueKeyOnly.
func WithValueType(vt ValueType) CompilerOption {
	return func(c *Compiler) { c.vt = vt }
}

// WithWeights stores a weight per entry and makes completions rank by it.
func WithWeights() CompilerOption {
	return func(c *Compiler) { c.weighted = true }
}

// WithCompression compresses string and JSON values of at least threshold
// bytes. Values that do not shrink are stored as they are.
func WithCompression(codec Compression, threshold int) CompilerOption {
	return func(c *Compiler) {
		c.codec = codec
		c.threshold = max(threshold, 1)
	}
}

// WithManifest embeds a free-form description, usually JSON.
func WithManifest(manifest string) CompilerOption {
	return func(c *Compiler) { c.manifest = manifest }
}

// NewCompiler returns an empty compiler.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		threshold: DefaultCompressionThreshold,
		now:       time.Now,
		entries:   btree.NewG(32, stagedLess),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of distinct keys added so far.
func (c *Compiler) Len() int {
	return c.entries.Len()
}

// Add stages key with value and no weight.
func (c *Compiler) Add(key string, value any) error {
	return c.add(key, value, 0)
}

// AddWeighted stages key with value and weight. The compiler must have been
// created WithWeights.
func (c *Compiler) AddWeighted(key string, value any, weight uint32) error {
	if !c.weighted {
		return fmt.Errorf("%w: weight for %q in an unweighted compiler", ErrInvalidArgument, key)
	}
	return c.add(key, value, uint64(weight))
}

func (c *Compiler) add(key string, value any, weight uint64) error {
	if !c.vt.valid() {
		return fmt.Errorf("%w: value type %d", ErrInvalidArgument, c.vt)
	}
	if !c.codec.valid() {
		return fmt.Errorf("%w: compression %d", ErrInvalidArgument, c.codec)
	}
	inline, raw, err := encodeValue(c.vt, value)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	c.entries.ReplaceOrInsert(staged{key: key, inline: inline, raw: raw, weight: weight})
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo compiles the staged entries and writes the index to w.
func (c *Compiler) WriteTo(w io.Writer) (int64, error) {
	b := fst.NewBuilder(c.weighted)
	info := buildInfo{
		BuiltAt:   c.now().UnixNano(),
		Threshold: c.threshold,
		Manifest:  c.manifest,
	}

	var values []byte
	seen := make(map[string]uint64)
	var err error
	c.entries.Ascend(func(e staged) bool {
		out := fst.Output{Value: e.inline, Weight: e.weight}
		if !c.vt.inline() {
			off, ok := seen[string(e.raw)]
			if !ok {
				off = uint64(len(values))
				before := len(values)
				values, err = appendRecord(values, e.raw, c.codec, c.threshold)
				if err != nil {
					return false
				}
				seen[string(e.raw)] = off
				info.DistinctValues++
				info.RawValueBytes += uint64(len(e.raw))
				if Compression(values[before]) != CompressionNone {
					info.CompressedValues++
				}
			}
			out.Value = off
		}
		err = b.Insert([]byte(e.key), out)
		return err == nil
	})
	if err != nil {
		return 0, err
	}
	keys, start, bs, err := b.Finish()
	if err != nil {
		return 0, err
	}
	stats, err := msgpack.Marshal(&info)
	if err != nil {
		return 0, fmt.Errorf("encode statistics: %w", err)
	}

	h := fst.Header{
		Version:         fst.Version,
		Flags:           uint32(c.vt) | uint32(c.codec)<<16,
		EntryCount:      bs.Entries,
		StateCount:      bs.States,
		TransitionCount: bs.Transitions,
		StartState:      start,
		KeyOffset:       fst.HeaderSize,
		KeyLength:       uint64(len(keys)),
	}
	if c.weighted {
		h.Flags |= fst.FlagWeighted
	}
	h.ValueOffset = h.KeyOffset + h.KeyLength
	h.ValueLength = uint64(len(values))
	h.StatsOffset = h.ValueOffset + h.ValueLength
	h.StatsLength = uint64(len(stats))
	head, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	for _, part := range [][]byte{head, keys, values, stats} {
		if _, err := cw.Write(part); err != nil {
			return cw.n, fmt.Errorf("write index: %w", err)
		}
	}
	return cw.n, nil
}

// WriteFile writes the index to path. The file is replaced atomically.
func (c *Compiler) WriteFile(path string) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+strings.TrimPrefix(base, ".")+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err = c.WriteTo(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err = f.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod index: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// IsTooLarge reports whether err means the compiled automaton does not fit
// the file format.
func IsTooLarge(err error) bool {
	return errors.Is(err, fst.ErrTooLarge)
}
