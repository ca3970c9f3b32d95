// Package source reads the word lists a keyserve index is compiled from.
package source

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Format identifies a source file layout.
type Format int

const (
	FormatUnknown Format = iota
	FormatTSV            // key<TAB>value[<TAB>weight] lines
	FormatChunk          // wordserve chunked binary (dict_NNNN.bin)
)

// FormatInfo describes a supported format.
type FormatInfo struct {
	Format      Format
	Description string
	Extensions  []string
	MinSize     int64 // Minimum expected file size in bytes
}

var supportedFormats = map[Format]FormatInfo{
	FormatTSV: {
		Format:      FormatTSV,
		Description: "Tab separated text",
		Extensions:  []string{".tsv", ".txt"},
		MinSize:     0,
	},
	FormatChunk: {
		Format:      FormatChunk,
		Description: "Chunked binary word list",
		Extensions:  []string{".bin"},
		MinSize:     4, // word count header
	},
}

// maxChunkEntries bounds the header of a chunk file.
const maxChunkEntries = 1 << 24

func (f Format) String() string {
	switch f {
	case FormatTSV:
		return "tsv"
	case FormatChunk:
		return "chunk"
	default:
		return "unknown"
	}
}

// ParseFormat parses "tsv" or "chunk".
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "tsv", "txt", "text":
		return FormatTSV, nil
	case "chunk", "bin":
		return FormatChunk, nil
	}
	return FormatUnknown, fmt.Errorf("unknown source format %q", name)
}

// Info returns the description of a format.
func Info(f Format) (FormatInfo, bool) {
	info, ok := supportedFormats[f]
	return info, ok
}

// Validate checks that filename looks like a file of the given format.
func Validate(filename string, f Format) error {
	fi, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}
	info, ok := supportedFormats[f]
	if !ok {
		return fmt.Errorf("unknown format: %v", f)
	}
	if fi.Size() < info.MinSize {
		return fmt.Errorf("file %s is too small (%d bytes) for format %s (minimum: %d bytes)",
			filename, fi.Size(), info.Description, info.MinSize)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	validExt := false
	for _, e := range info.Extensions {
		if ext == e {
			validExt = true
			break
		}
	}
	if !validExt {
		return fmt.Errorf("file %s has invalid extension %s for format %s (expected: %v)",
			filename, ext, info.Description, info.Extensions)
	}

	if f == FormatChunk {
		return validateChunkHeader(filename)
	}
	return nil
}

func validateChunkHeader(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	var count int32
	if err := binary.Read(file, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("failed to read header from %s: %w", filename, err)
	}
	if count < 0 || count > maxChunkEntries {
		return fmt.Errorf("invalid word count in %s: %d", filename, count)
	}
	log.Debugf("Chunk file %s validated: %d words", filename, count)
	return nil
}

// DetectFormat picks the format of filename from its name and header.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".bin":
		if err := Validate(filename, FormatChunk); err != nil {
			return FormatUnknown, err
		}
		return FormatChunk, nil
	case ".tsv", ".txt":
		if err := Validate(filename, FormatTSV); err != nil {
			return FormatUnknown, err
		}
		return FormatTSV, nil
	}
	return FormatUnknown, fmt.Errorf("unable to detect format for file %s", filename)
}
