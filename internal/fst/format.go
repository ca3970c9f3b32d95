package fst

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	// Magic identifies keyserve index files.
	Magic = "KSFD"
	// Version is the current file format version.
	Version uint32 = 1
	// HeaderSize is the encoded size of Header.
	HeaderSize = 96
)

// Header flag bits. The low byte is reserved for the value type of the
// dictionary layer; bits 16-23 carry its default compression codec.
const (
	FlagWeighted uint32 = 1 << 8
)

var (
	ErrBadMagic        = errors.New("fst: bad magic")
	ErrBadVersion      = errors.New("fst: unsupported format version")
	ErrHeaderChecksum  = errors.New("fst: header checksum mismatch")
	ErrTruncated       = errors.New("fst: truncated file")
	ErrLayout          = errors.New("fst: region layout out of range")
	ErrCorruptState    = errors.New("fst: corrupt state")
	ErrOutOfOrder      = errors.New("fst: keys must be added in strictly increasing order")
	ErrTooLarge        = errors.New("fst: key region exceeds 4 GiB")
	ErrBuilderFinished = errors.New("fst: builder already finished")
)

// Header is the fixed preamble of an index file.
type Header struct {
	Version         uint32
	Flags           uint32
	EntryCount      uint64
	StateCount      uint64
	TransitionCount uint64
	// StartState is relative to the key region.
	StartState  uint64
	KeyOffset   uint64
	KeyLength   uint64
	ValueOffset uint64
	ValueLength uint64
	StatsOffset uint64
	StatsLength uint64
}

// Weighted reports whether states carry weights.
func (h Header) Weighted() bool {
	return h.Flags&FlagWeighted != 0
}

// MarshalBinary encodes the header including its checksum.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.Flags)
	// buf[12:16] holds the checksum, computed with the field zeroed.
	binary.LittleEndian.PutUint64(buf[16:], h.EntryCount)
	binary.LittleEndian.PutUint64(buf[24:], h.StateCount)
	binary.LittleEndian.PutUint64(buf[32:], h.TransitionCount)
	binary.LittleEndian.PutUint64(buf[40:], h.StartState)
	binary.LittleEndian.PutUint64(buf[48:], h.KeyOffset)
	binary.LittleEndian.PutUint64(buf[56:], h.KeyLength)
	binary.LittleEndian.PutUint64(buf[64:], h.ValueOffset)
	binary.LittleEndian.PutUint64(buf[72:], h.ValueLength)
	binary.LittleEndian.PutUint64(buf[80:], h.StatsOffset)
	binary.LittleEndian.PutUint64(buf[88:], h.StatsLength)
	binary.LittleEndian.PutUint32(buf[12:], crc32.ChecksumIEEE(buf))
	return buf, nil
}

// ParseHeader decodes and checks the header at the start of data. It does
// not check the regions against the file size, see Validate.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}
	if string(data[0:4]) != Magic {
		return h, ErrBadMagic
	}

	raw := make([]byte, HeaderSize)
	copy(raw, data[:HeaderSize])
	sum := binary.LittleEndian.Uint32(raw[12:])
	binary.LittleEndian.PutUint32(raw[12:], 0)
	if crc32.ChecksumIEEE(raw) != sum {
		return h, ErrHeaderChecksum
	}

	h.Version = binary.LittleEndian.Uint32(raw[4:])
	if h.Version != Version {
		return h, fmt.Errorf("%w: file has %d, reader supports %d", ErrBadVersion, h.Version, Version)
	}
	h.Flags = binary.LittleEndian.Uint32(raw[8:])
	h.EntryCount = binary.LittleEndian.Uint64(raw[16:])
	h.StateCount = binary.LittleEndian.Uint64(raw[24:])
	h.TransitionCount = binary.LittleEndian.Uint64(raw[32:])
	h.StartState = binary.LittleEndian.Uint64(raw[40:])
	h.KeyOffset = binary.LittleEndian.Uint64(raw[48:])
	h.KeyLength = binary.LittleEndian.Uint64(raw[56:])
	h.ValueOffset = binary.LittleEndian.Uint64(raw[64:])
	h.ValueLength = binary.LittleEndian.Uint64(raw[72:])
	h.StatsOffset = binary.LittleEndian.Uint64(raw[80:])
	h.StatsLength = binary.LittleEndian.Uint64(raw[88:])
	return h, nil
}

// Validate checks that every region lies inside a file of fileSize bytes,
// that regions appear in order without overlapping, and that the start
// state points into the key region.
func (h Header) Validate(fileSize uint64) error {
	type span struct {
		name      string
		off, size uint64
	}
	spans := []span{
		{"key", h.KeyOffset, h.KeyLength},
		{"value", h.ValueOffset, h.ValueLength},
		{"stats", h.StatsOffset, h.StatsLength},
	}
	end := uint64(HeaderSize)
	for _, s := range spans {
		if s.off < end {
			return fmt.Errorf("%w: %s region at %d overlaps previous data ending at %d", ErrLayout, s.name, s.off, end)
		}
		if s.size > fileSize || s.off > fileSize-s.size {
			return fmt.Errorf("%w: %s region [%d,+%d) exceeds file size %d", ErrLayout, s.name, s.off, s.size, fileSize)
		}
		end = s.off + s.size
	}
	if h.KeyLength == 0 || h.StartState >= h.KeyLength {
		return fmt.Errorf("%w: start state %d outside key region of %d bytes", ErrLayout, h.StartState, h.KeyLength)
	}
	if h.KeyLength > maxKeyRegion {
		return fmt.Errorf("%w: key region of %d bytes", ErrLayout, h.KeyLength)
	}
	return nil
}
