package dictionary

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilerLastWriteWins(t *testing.T) {
	c := NewCompiler(WithValueType(ValueString))
	require.NoError(t, c.Add("a", "first"))
	require.NoError(t, c.Add("b", "other"))
	require.NoError(t, c.Add("a", "second"))
	assert.Equal(t, 2, c.Len())

	d := openIndex(t, writeIndex(t, c))
	assert.Equal(t, 2, d.Size())
	s, err := d.Get("a").ValueAsString()
	require.NoError(t, err)
	assert.Equal(t, "second", s)
}

func TestCompilerValueTypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		vt    ValueType
		value any
	}{
		{"key only with value", ValueKeyOnly, "x"},
		{"int with string", ValueInt, "twelve"},
		{"int with float", ValueInt, 1.5},
		{"int overflow", ValueInt, uint64(1 << 63)},
		{"string with int", ValueString, 12},
		{"json with invalid text", ValueJSON, json.RawMessage(`{"a":`)},
		{"json with trailing text", ValueJSON, json.RawMessage(`{} {}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompiler(WithValueType(tt.vt))
			assert.ErrorIs(t, c.Add("k", tt.value), ErrValueType)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCompilerWeightsNeedWeightedCompiler(t *testing.T) {
	c := NewCompiler()
	assert.ErrorIs(t, c.AddWeighted("k", nil, 3), ErrInvalidArgument)
}

func TestIntValues(t *testing.T) {
	c := NewCompiler(WithValueType(ValueInt))
	values := map[string]any{
		"neg":   -5,
		"zero":  0,
		"big":   int64(1) << 62,
		"small": int8(-128),
		"text":  "42",
		"uint":  uint32(7),
	}
	for k, v := range values {
		require.NoError(t, c.Add(k, v))
	}
	d := openIndex(t, writeIndex(t, c))

	tests := map[string]string{
		"neg":   "-5",
		"zero":  "0",
		"big":   "4611686018427387904",
		"small": "-128",
		"text":  "42",
		"uint":  "7",
	}
	for k, want := range tests {
		m := d.Get(k)
		s, err := m.ValueAsString()
		require.NoError(t, err)
		assert.Equal(t, want, s, k)
		raw, err := m.RawValue()
		require.NoError(t, err)
		assert.Equal(t, want, string(raw))
	}

	var n int
	require.NoError(t, d.Get("neg").Decode(&n))
	assert.Equal(t, -5, n)
}

func TestJSONValues(t *testing.T) {
	c := NewCompiler(WithValueType(ValueJSON))
	require.NoError(t, c.Add("map", map[string]any{"a": 1, "b": "x"}))
	require.NoError(t, c.Add("raw", json.RawMessage(`{"n": 12345678901234, "f": 1.5, "l": [true, null]}`)))
	type point struct {
		X int    `msgpack:"x"`
		Y int    `msgpack:"y"`
		L string `msgpack:"label"`
	}
	require.NoError(t, c.Add("struct", point{X: 3, Y: -4, L: "p"}))
	d := openIndex(t, writeIndex(t, c))
	assert.Equal(t, ValueJSON, d.ValueType())

	s, err := d.Get("map").ValueAsString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, s)

	s, err = d.Get("raw").ValueAsString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":12345678901234,"f":1.5,"l":[true,null]}`, s)

	var p point
	require.NoError(t, d.Get("struct").Decode(&p))
	assert.Equal(t, point{X: 3, Y: -4, L: "p"}, p)

	raw, err := d.Get("struct").RawValue()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestCompressionRoundTrip(t *testing.T) {
	long := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	for _, codec := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			c := NewCompiler(WithValueType(ValueString), WithCompression(codec, 16))
			require.NoError(t, c.Add("long", long))
			require.NoError(t, c.Add("short", "tiny"))
			require.NoError(t, c.Add("same", long))
			d := openIndex(t, writeIndex(t, c))

			for k, want := range map[string]string{"long": long, "short": "tiny", "same": long} {
				s, err := d.Get(k).ValueAsString()
				require.NoError(t, err)
				assert.Equal(t, want, s)
			}

			var stats struct {
				Compression      string `json:"compression"`
				DistinctValues   int    `json:"distinct_values"`
				CompressedValues int    `json:"compressed_values"`
			}
			require.NoError(t, json.Unmarshal([]byte(d.Statistics()), &stats))
			assert.Equal(t, codec.String(), stats.Compression)
			assert.Equal(t, 2, stats.DistinctValues)
			if codec == CompressionNone {
				assert.Equal(t, 0, stats.CompressedValues)
			} else {
				assert.Equal(t, 1, stats.CompressedValues)
			}
		})
	}
}

func TestWriteToIsDeterministic(t *testing.T) {
	build := func() []byte {
		c := NewCompiler(WithValueType(ValueString), WithWeights())
		c.now = func() time.Time { return time.Unix(1700000000, 0) }
		for i, w := range wordList() {
			require.NoError(t, c.AddWeighted(w, "v"+w, uint32(i)))
		}
		var buf bytes.Buffer
		n, err := c.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, int64(buf.Len()), n)
		return buf.Bytes()
	}
	assert.Equal(t, build(), build())
}

func TestWriteFileReplaces(t *testing.T) {
	path := writeIndex(t, NewCompiler())

	c := NewCompiler()
	require.NoError(t, c.Add("x", nil))
	require.NoError(t, c.WriteFile(path))

	d := openIndex(t, path)
	assert.Equal(t, 1, d.Size())
}
