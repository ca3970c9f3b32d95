package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Record is one source entry.
type Record struct {
	Key   string
	Value string
	// Weight is meaningful only when HasWeight is set.
	Weight    uint32
	HasWeight bool
}

// ReadTSV calls fn for every entry of a tab separated list. Lines are
// key<TAB>value with an optional third weight column; a line without a tab
// is a bare key. Blank lines and lines starting with '#' are skipped.
func ReadTSV(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.SplitN(text, "\t", 3)
		rec := Record{Key: fields[0]}
		if len(fields) > 1 {
			rec.Value = fields[1]
		}
		if len(fields) > 2 {
			w, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
			if err != nil {
				return fmt.Errorf("line %d: invalid weight %q: %w", line, fields[2], err)
			}
			rec.Weight = uint32(w)
			rec.HasWeight = true
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", line+1, err)
	}
	return nil
}

// RankWeight converts a chunk rank (1 is the most frequent word) into a
// weight where larger is better.
func RankWeight(rank uint16) uint32 {
	return 65536 - uint32(rank)
}

// ReadChunk calls fn for every word of a chunk file: an int32 word count
// followed by entries of u16 length, word bytes and u16 rank, all little
// endian. Words get their rank as value and RankWeight as weight.
func ReadChunk(r io.Reader, fn func(Record) error) error {
	reader := bufio.NewReader(r)

	var total int32
	if err := binary.Read(reader, binary.LittleEndian, &total); err != nil {
		return fmt.Errorf("failed to read chunk header: %w", err)
	}
	if total < 0 || total > maxChunkEntries {
		return fmt.Errorf("invalid chunk word count %d", total)
	}

	for i := 0; i < int(total); i++ {
		var wordLen uint16
		if err := binary.Read(reader, binary.LittleEndian, &wordLen); err != nil {
			if errors.Is(err, io.EOF) {
				log.Warnf("Chunk ended after %d of %d words", i, total)
				return nil
			}
			return fmt.Errorf("failed to read word length: %w", err)
		}
		word := make([]byte, wordLen)
		if _, err := io.ReadFull(reader, word); err != nil {
			return fmt.Errorf("failed to read word %d: %w", i, err)
		}
		var rank uint16
		if err := binary.Read(reader, binary.LittleEndian, &rank); err != nil {
			return fmt.Errorf("failed to read rank of word %d: %w", i, err)
		}
		rec := Record{
			Key:       string(word),
			Value:     strconv.Itoa(int(rank)),
			Weight:    RankWeight(rank),
			HasWeight: true,
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteChunk writes records in the chunk layout. Weights are converted back
// to ranks; records without a weight get the lowest rank.
func WriteChunk(w io.Writer, recs []Record) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, int32(len(recs))); err != nil {
		return err
	}
	for _, rec := range recs {
		if len(rec.Key) > 0xffff {
			return fmt.Errorf("word %.20q... longer than %d bytes", rec.Key, 0xffff)
		}
		rank := uint16(0xffff)
		if rec.HasWeight && rec.Weight >= 1 && rec.Weight <= 65536 {
			rank = uint16(65536 - rec.Weight)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(rec.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(rec.Key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, rank); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFile reads a single source file of the given format. FormatUnknown
// detects the format from the file.
func ReadFile(path string, f Format, fn func(Record) error) error {
	if f == FormatUnknown {
		var err error
		if f, err = DetectFormat(path); err != nil {
			return err
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", path, err)
	}
	defer file.Close()

	switch f {
	case FormatTSV:
		err = ReadTSV(file, fn)
	case FormatChunk:
		err = ReadChunk(file, fn)
	default:
		err = fmt.Errorf("unsupported format %v", f)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ChunkInfo describes a chunk file found by ListChunks.
type ChunkInfo struct {
	ChunkID   int
	Filename  string
	WordCount int
}

// ListChunks returns the dict_NNNN.bin files of dir ordered by id.
func ListChunks(dir string) ([]ChunkInfo, error) {
	files, err := filepath.Glob(filepath.Join(dir, "dict_*.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan for chunk files: %w", err)
	}

	var chunks []ChunkInfo
	for _, file := range files {
		idStr := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(file), "dict_"), ".bin")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			log.Debugf("Skipping %s: not a numbered chunk", file)
			continue
		}
		count, err := chunkWordCount(file)
		if err != nil {
			log.Warnf("Failed to get word count for chunk %s: %v", file, err)
		}
		chunks = append(chunks, ChunkInfo{ChunkID: id, Filename: file, WordCount: count})
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkID < chunks[j].ChunkID
	})
	return chunks, nil
}

func chunkWordCount(filename string) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var count int32
	if err := binary.Read(file, binary.LittleEndian, &count); err != nil {
		return 0, err
	}
	return int(count), nil
}

// ReadDir reads every chunk of dir. Chunks are decoded concurrently, at
// most workers at a time, and handed to fn in id order.
func ReadDir(dir string, workers int, fn func(Record) error) error {
	chunks, err := ListChunks(dir)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunk files found in %s", dir)
	}
	log.Debugf("Found %d chunk files", len(chunks))

	decoded := make([][]Record, len(chunks))
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, c := range chunks {
		g.Go(func() error {
			recs := make([]Record, 0, min(max(c.WordCount, 0), maxChunkEntries))
			err := ReadFile(c.Filename, FormatChunk, func(r Record) error {
				recs = append(recs, r)
				return nil
			})
			decoded[i] = recs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, recs := range decoded {
		for _, r := range recs {
			if err := fn(r); err != nil {
				return fmt.Errorf("chunk %d: %w", chunks[i].ChunkID, err)
			}
		}
	}
	return nil
}
