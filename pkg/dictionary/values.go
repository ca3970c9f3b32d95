package dictionary

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ValueType is the kind of value a dictionary stores for every key.
type ValueType uint8

const (
	// ValueKeyOnly stores no value; the dictionary is a set of keys.
	ValueKeyOnly ValueType = iota
	// ValueInt stores a signed integer inline in the automaton.
	ValueInt
	// ValueString stores raw strings in the value region.
	ValueString
	// ValueJSON stores structured payloads, msgpack encoded, rendered as JSON.
	ValueJSON
)

var valueTypeNames = [...]string{"key_only", "int", "string", "json"}

func (v ValueType) valid() bool { return int(v) < len(valueTypeNames) }

func (v ValueType) String() string {
	if !v.valid() {
		return fmt.Sprintf("ValueType(%d)", uint8(v))
	}
	return valueTypeNames[v]
}

// ParseValueType parses a value type name such as "json".
func ParseValueType(name string) (ValueType, error) {
	for i, n := range valueTypeNames {
		if n == name {
			return ValueType(i), nil
		}
	}
	return ValueKeyOnly, fmt.Errorf("%w: unknown value type %q", ErrInvalidArgument, name)
}

func (v ValueType) inline() bool {
	return v == ValueKeyOnly || v == ValueInt
}

// Compression is the codec applied to stored values.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

var compressionNames = [...]string{"none", "zstd", "lz4"}

func (c Compression) valid() bool { return int(c) < len(compressionNames) }

func (c Compression) String() string {
	if !c.valid() {
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
	return compressionNames[c]
}

// ParseCompression parses a codec name: "none", "zstd" or "lz4".
func ParseCompression(name string) (Compression, error) {
	for i, n := range compressionNames {
		if n == name {
			return Compression(i), nil
		}
	}
	return CompressionNone, fmt.Errorf("%w: unknown compression %q", ErrInvalidArgument, name)
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

func compress(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, nil), nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// incompressible
			return nil, nil
		}
		return buf[:n], nil
	default:
		return raw, nil
	}
}

func decompress(c Compression, payload []byte, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		out, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("zstd: decoded %d bytes, want %d", len(out), rawLen)
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, fmt.Errorf("lz4: decoded %d bytes, want %d", n, rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown codec %d", c)
	}
}

// appendRecord appends a value record:
//
//	codec:u8 [rawLen:uvarint] len:uvarint payload
//
// rawLen is present for compressed records only. Values shorter than
// threshold, or that do not shrink, are stored as they are.
func appendRecord(dst, raw []byte, c Compression, threshold int) ([]byte, error) {
	if c != CompressionNone && len(raw) >= threshold {
		packed, err := compress(c, raw)
		if err != nil {
			return nil, fmt.Errorf("compress value: %w", err)
		}
		if packed != nil && len(packed) < len(raw) {
			dst = append(dst, byte(c))
			dst = binary.AppendUvarint(dst, uint64(len(raw)))
			dst = binary.AppendUvarint(dst, uint64(len(packed)))
			return append(dst, packed...), nil
		}
	}
	dst = append(dst, byte(CompressionNone))
	dst = binary.AppendUvarint(dst, uint64(len(raw)))
	return append(dst, raw...), nil
}

type record struct {
	codec   Compression
	rawLen  int
	payload []byte
}

// readRecord decodes the record at off. payload aliases values.
func readRecord(values []byte, off uint64) (record, error) {
	var r record
	if off >= uint64(len(values)) {
		return r, fmt.Errorf("%w: value offset %d outside value region", ErrCorrupt, off)
	}
	p := values[off:]
	r.codec = Compression(p[0])
	if !r.codec.valid() {
		return r, fmt.Errorf("%w: unknown codec %d at value %d", ErrCorrupt, p[0], off)
	}
	p = p[1:]
	if r.codec != CompressionNone {
		n, k := binary.Uvarint(p)
		if k <= 0 || n > math.MaxInt32 {
			return r, fmt.Errorf("%w: raw length at value %d", ErrCorrupt, off)
		}
		r.rawLen = int(n)
		p = p[k:]
	}
	n, k := binary.Uvarint(p)
	if k <= 0 || n > uint64(len(p)-k) {
		return r, fmt.Errorf("%w: length at value %d", ErrCorrupt, off)
	}
	r.payload = p[k : k+int(n)]
	if r.codec == CompressionNone {
		r.rawLen = int(n)
	}
	return r, nil
}

func zigzag(v int64) uint64   { return uint64(v<<1) ^ uint64(v>>63) }
func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

// encodeValue converts a Go value into its stored form: an inline integer
// for key-only and int dictionaries, raw bytes otherwise.
func encodeValue(vt ValueType, v any) (uint64, []byte, error) {
	switch vt {
	case ValueKeyOnly:
		if v != nil {
			return 0, nil, fmt.Errorf("%w: key-only dictionary got %T", ErrValueType, v)
		}
		return 0, nil, nil
	case ValueInt:
		n, err := toInt64(v)
		if err != nil {
			return 0, nil, err
		}
		return zigzag(n), nil, nil
	case ValueString:
		switch s := v.(type) {
		case string:
			return 0, []byte(s), nil
		case []byte:
			return 0, bytes.Clone(s), nil
		}
		return 0, nil, fmt.Errorf("%w: string dictionary got %T", ErrValueType, v)
	case ValueJSON:
		if raw, ok := v.(json.RawMessage); ok {
			parsed, err := parseJSON(raw)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: %w", ErrValueType, err)
			}
			v = parsed
		}
		b, err := msgpack.Marshal(v)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrValueType, err)
		}
		return 0, b, nil
	}
	return 0, nil, fmt.Errorf("%w: value type %d", ErrInvalidArgument, vt)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrValueType, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: int dictionary got %T", ErrValueType, v)
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d overflows int64", ErrValueType, u)
	}
	return int64(u), nil
}

// parseJSON decodes JSON text keeping integers exact.
func parseJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
	}
	return v
}
