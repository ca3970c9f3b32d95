package source

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, read func(func(Record) error) error) []Record {
	t.Helper()
	var out []Record
	require.NoError(t, read(func(r Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestReadTSV(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"",
		"cat\tmeow\t10",
		"dog\twoof",
		"bare",
		"new york\t{\"pop\": 8}\t 3 ",
		"crlf\tvalue\r",
	}, "\n")

	got := collect(t, func(fn func(Record) error) error { return ReadTSV(strings.NewReader(input), fn) })
	assert.Equal(t, []Record{
		{Key: "cat", Value: "meow", Weight: 10, HasWeight: true},
		{Key: "dog", Value: "woof"},
		{Key: "bare"},
		{Key: "new york", Value: `{"pop": 8}`, Weight: 3, HasWeight: true},
		{Key: "crlf", Value: "value"},
	}, got)
}

func TestReadTSVErrors(t *testing.T) {
	err := ReadTSV(strings.NewReader("a\tb\t1\nc\td\theavy\n"), func(Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	stop := errors.New("stop")
	err = ReadTSV(strings.NewReader("a\nb\n"), func(Record) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestChunkRoundTrip(t *testing.T) {
	recs := []Record{
		{Key: "the", Weight: 65535, HasWeight: true},
		{Key: "of", Weight: 65534, HasWeight: true},
		{Key: "zebra"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, recs))

	got := collect(t, func(fn func(Record) error) error { return ReadChunk(&buf, fn) })
	require.Len(t, got, 3)
	assert.Equal(t, Record{Key: "the", Value: "1", Weight: 65535, HasWeight: true}, got[0])
	assert.Equal(t, Record{Key: "of", Value: "2", Weight: 65534, HasWeight: true}, got[1])
	assert.Equal(t, Record{Key: "zebra", Value: "65535", Weight: 1, HasWeight: true}, got[2])
}

func TestRankWeight(t *testing.T) {
	assert.Equal(t, uint32(65535), RankWeight(1))
	assert.Equal(t, uint32(1), RankWeight(65535))
	assert.Greater(t, RankWeight(3), RankWeight(4))
}

func TestReadChunkTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, []Record{{Key: "alpha"}, {Key: "beta"}}))
	data := buf.Bytes()

	err := ReadChunk(bytes.NewReader(data[:len(data)-3]), func(Record) error { return nil })
	assert.Error(t, err)

	err = ReadChunk(bytes.NewReader([]byte{1, 2}), func(Record) error { return nil })
	assert.Error(t, err)
}

func writeChunkFile(t *testing.T, path string, recs []Record) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteChunk(&buf, recs))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	writeChunkFile(t, filepath.Join(dir, "dict_0002.bin"), []Record{{Key: "c"}, {Key: "d"}})
	writeChunkFile(t, filepath.Join(dir, "dict_0001.bin"), []Record{{Key: "a"}, {Key: "b"}})
	writeChunkFile(t, filepath.Join(dir, "dict_0010.bin"), []Record{{Key: "e"}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dict_extra.bin"), []byte{0, 0, 0, 0}, 0o644))

	chunks, err := ListChunks(dir)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{chunks[0].ChunkID, chunks[1].ChunkID, chunks[2].ChunkID})
	assert.Equal(t, 2, chunks[0].WordCount)

	var keys []string
	require.NoError(t, ReadDir(dir, 2, func(r Record) error {
		keys = append(keys, r.Key)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys)

	assert.Error(t, ReadDir(t.TempDir(), 2, func(Record) error { return nil }))
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "words.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte("a\t1\n"), 0o644))
	chunk := filepath.Join(dir, "dict_0001.bin")
	writeChunkFile(t, chunk, []Record{{Key: "a"}})
	bad := filepath.Join(dir, "broken.bin")
	require.NoError(t, os.WriteFile(bad, []byte{1}, 0o644))
	other := filepath.Join(dir, "words.csv")
	require.NoError(t, os.WriteFile(other, []byte("a,1\n"), 0o644))

	f, err := DetectFormat(tsv)
	require.NoError(t, err)
	assert.Equal(t, FormatTSV, f)

	f, err = DetectFormat(chunk)
	require.NoError(t, err)
	assert.Equal(t, FormatChunk, f)

	_, err = DetectFormat(bad)
	assert.Error(t, err)
	_, err = DetectFormat(other)
	assert.Error(t, err)

	got := collect(t, func(fn func(Record) error) error { return ReadFile(tsv, FormatUnknown, fn) })
	assert.Equal(t, []Record{{Key: "a", Value: "1"}}, got)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("TSV")
	require.NoError(t, err)
	assert.Equal(t, FormatTSV, f)
	f, err = ParseFormat("chunk")
	require.NoError(t, err)
	assert.Equal(t, FormatChunk, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, "chunk", FormatChunk.String())
}
