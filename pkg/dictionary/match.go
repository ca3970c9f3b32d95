package dictionary

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Match is one dictionary entry returned by a query. It owns its memory and
// stays valid after the dictionary and iterator that produced it are closed.
// The zero Match is empty.
type Match struct {
	key    string
	score  float64
	weight uint64
	found  bool

	vt  ValueType
	num int64
	rec record
}

// IsEmpty reports whether the match represents an absent key.
func (m Match) IsEmpty() bool { return !m.found }

// Key returns the matched key.
func (m Match) Key() string { return m.key }

// Score returns the ranking score. Exact lookups always score 0, the
// neutral value. Completions score their entry weight, fuzzy matches
// 1/(1+distance) and near matches the length of the prefix they share with
// the query. The weight of an exact match is available from Weight.
func (m Match) Score() float64 { return m.score }

// Weight returns the stored weight, zero in unweighted dictionaries.
func (m Match) Weight() uint64 { return m.weight }

// ValueType returns the value type of the dictionary the match came from.
func (m Match) ValueType() ValueType { return m.vt }

// payload returns the stored bytes of string and JSON values, decompressing
// if needed.
func (m Match) payload() ([]byte, error) {
	b, err := decompress(m.rec.codec, m.rec.payload, m.rec.rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: value of %q: %w", ErrCorrupt, m.key, err)
	}
	return b, nil
}

// RawValue returns the stored value bytes: the decimal text of int values,
// the UTF-8 bytes of strings, and the msgpack encoding of JSON values.
func (m Match) RawValue() ([]byte, error) {
	if !m.found {
		return nil, nil
	}
	switch m.vt {
	case ValueKeyOnly:
		return nil, nil
	case ValueInt:
		return strconv.AppendInt(nil, m.num, 10), nil
	}
	return m.payload()
}

// Value returns the decoded value: nil for key-only dictionaries, int64,
// string, or the generic msgpack decoding of a JSON value.
func (m Match) Value() (any, error) {
	if !m.found {
		return nil, nil
	}
	switch m.vt {
	case ValueKeyOnly:
		return nil, nil
	case ValueInt:
		return m.num, nil
	case ValueString:
		b, err := m.payload()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	b, err := m.payload()
	if err != nil {
		return nil, err
	}
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: value of %q: %w", ErrCorrupt, m.key, err)
	}
	return v, nil
}

// ValueAsString renders the value as text. JSON values are rendered as
// compact JSON.
func (m Match) ValueAsString() (string, error) {
	switch {
	case !m.found, m.vt == ValueKeyOnly:
		return "", nil
	case m.vt == ValueJSON:
		v, err := m.Value()
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("render value of %q: %w", m.key, err)
		}
		return string(b), nil
	}
	b, err := m.RawValue()
	return string(b), err
}

// Decode stores the value in the value pointed to by v using msgpack
// decoding rules.
func (m Match) Decode(v any) error {
	if !m.found {
		return fmt.Errorf("%w: decode of empty match", ErrInvalidArgument)
	}
	if m.vt == ValueJSON {
		b, err := m.payload()
		if err != nil {
			return err
		}
		return msgpack.Unmarshal(b, v)
	}
	val, err := m.Value()
	if err != nil {
		return err
	}
	b, err := msgpack.Marshal(val)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, v)
}
