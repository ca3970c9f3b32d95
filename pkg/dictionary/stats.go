package dictionary

import (
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vmihailenco/msgpack/v5"
)

// buildInfo is the statistics block written by the Compiler.
type buildInfo struct {
	BuiltAt          int64  `msgpack:"built_at"`
	DistinctValues   uint64 `msgpack:"distinct_values"`
	RawValueBytes    uint64 `msgpack:"raw_value_bytes"`
	CompressedValues uint64 `msgpack:"compressed_values"`
	Threshold        int    `msgpack:"compression_threshold"`
	Manifest         string `msgpack:"manifest,omitempty"`
}

func decodeBuildInfo(b []byte) (buildInfo, error) {
	var info buildInfo
	if len(b) == 0 {
		return info, nil
	}
	err := msgpack.Unmarshal(b, &info)
	return info, err
}

type regionStats struct {
	Bytes uint64 `json:"bytes"`
	Human string `json:"human"`
}

func newRegionStats(n uint64) regionStats {
	return regionStats{Bytes: n, Human: humanize.IBytes(n)}
}

type statistics struct {
	Entries          uint64      `json:"entries"`
	States           uint64      `json:"states"`
	Transitions      uint64      `json:"transitions"`
	FormatVersion    uint32      `json:"format_version"`
	ValueType        string      `json:"value_type"`
	Weighted         bool        `json:"weighted"`
	Compression      string      `json:"compression"`
	LoadingStrategy  string      `json:"loading_strategy"`
	Mapped           bool        `json:"mapped"`
	KeyRegion        regionStats `json:"key_region"`
	ValueRegion      regionStats `json:"value_region"`
	FileSize         regionStats `json:"file_size"`
	DistinctValues   uint64      `json:"distinct_values"`
	CompressedValues uint64      `json:"compressed_values"`
	BuiltAt          string      `json:"built_at,omitempty"`
	Manifest         string      `json:"manifest,omitempty"`
}

func (d *Dictionary) statistics() statistics {
	x := d.idx
	h := x.header
	s := statistics{
		Entries:          h.EntryCount,
		States:           h.StateCount,
		Transitions:      h.TransitionCount,
		FormatVersion:    h.Version,
		ValueType:        x.vt.String(),
		Weighted:         h.Weighted(),
		Compression:      x.compression.String(),
		LoadingStrategy:  d.strategy.String(),
		Mapped:           x.mapping.Mapped(),
		KeyRegion:        newRegionStats(h.KeyLength),
		ValueRegion:      newRegionStats(h.ValueLength),
		FileSize:         newRegionStats(uint64(x.mapping.Size())),
		DistinctValues:   x.info.DistinctValues,
		CompressedValues: x.info.CompressedValues,
		Manifest:         x.info.Manifest,
	}
	if x.info.BuiltAt != 0 {
		s.BuiltAt = time.Unix(0, x.info.BuiltAt).UTC().Format(time.RFC3339)
	}
	return s
}

// Statistics returns a JSON object describing the index. It reads only the
// header and statistics block.
func (d *Dictionary) Statistics() string {
	b, err := json.Marshal(d.statistics())
	if err != nil {
		return "{}"
	}
	return string(b)
}
