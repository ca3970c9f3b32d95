package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/keyserve/pkg/config"
	"github.com/bastiangx/keyserve/pkg/dictionary"
	"github.com/bastiangx/keyserve/pkg/source"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRecordValue(t *testing.T) {
	tests := []struct {
		name    string
		vt      dictionary.ValueType
		rec     source.Record
		want    any
		wantErr bool
	}{
		{"key only drops value", dictionary.ValueKeyOnly, source.Record{Key: "a", Value: "x"}, nil, false},
		{"int keeps text", dictionary.ValueInt, source.Record{Key: "a", Value: "42"}, "42", false},
		{"int falls back to weight", dictionary.ValueInt, source.Record{Key: "a", Weight: 7, HasWeight: true}, int64(7), false},
		{"string", dictionary.ValueString, source.Record{Key: "a", Value: "x"}, "x", false},
		{"json", dictionary.ValueJSON, source.Record{Key: "a", Value: `{"n":1}`}, json.RawMessage(`{"n":1}`), false},
		{"bad json", dictionary.ValueJSON, source.Record{Key: "a", Value: `{`}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recordValue(tt.vt, tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileAndDump(t *testing.T) {
	src := writeSource(t, "words.tsv", "# animals\ncat\t1\t10\ncar\t2\t30\ndog\t3\t20\n")
	out := filepath.Join(t.TempDir(), "words.ksd")

	cfg := config.DefaultConfig()
	require.NoError(t, runCompile(cfg, []string{"-o", out, "-type", "int", "-weighted", "-manifest", "animals", src}))

	d, err := dictionary.Open(out)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, 3, d.Size())
	assert.True(t, d.Weighted())
	assert.Equal(t, "animals", d.Manifest())

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, d))
	assert.Equal(t, "car\t2\t30\ncat\t1\t10\ndog\t3\t20\n", buf.String())
}

func TestCompileLaterSourcesWin(t *testing.T) {
	first := writeSource(t, "a.tsv", "cat\tfirst\ndog\tbark\n")
	second := writeSource(t, "b.tsv", "cat\tsecond\n")
	out := filepath.Join(t.TempDir(), "words.ksd")

	require.NoError(t, runCompile(config.DefaultConfig(), []string{"-o", out, "-type", "string", first, second}))

	d, err := dictionary.Open(out)
	require.NoError(t, err)
	defer d.Close()

	v, err := d.Get("cat").ValueAsString()
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, d))
	assert.Equal(t, "cat\tsecond\ndog\tbark\n", buf.String())
}

func TestCompileKeyOnlyDump(t *testing.T) {
	src := writeSource(t, "keys.txt", "b\na\n")
	out := filepath.Join(t.TempDir(), "keys.ksd")
	require.NoError(t, runCompile(config.DefaultConfig(), []string{"-o", out, src}))

	d, err := dictionary.Open(out)
	require.NoError(t, err)
	defer d.Close()

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, d))
	assert.Equal(t, "a\nb\n", buf.String())
}

func TestCompileErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	out := filepath.Join(t.TempDir(), "x.ksd")

	assert.Error(t, runCompile(cfg, []string{"-o", out}), "no sources")
	assert.Error(t, runCompile(cfg, []string{"-o", out, filepath.Join(t.TempDir(), "missing.tsv")}))
	assert.Error(t, runCompile(cfg, []string{"-o", out, "-type", "nope", writeSource(t, "a.tsv", "a\n")}))
	assert.Error(t, runCompile(cfg, []string{"-o", out, "-type", "int", writeSource(t, "b.tsv", "a\tnot a number\n")}))
	assert.NoFileExists(t, out)
}

func TestUnknownFormatListsSupported(t *testing.T) {
	help := formatHelp()
	assert.Contains(t, help, "tsv    Tab separated text (.tsv, .txt)")
	assert.Contains(t, help, "chunk  Chunked binary word list (.bin)")

	src := writeSource(t, "a.tsv", "a\n")
	err := runCompile(config.DefaultConfig(), []string{"-o", filepath.Join(t.TempDir(), "x.ksd"), "-format", "csv", src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source format "csv"`)
	assert.Contains(t, err.Error(), help)
}

func TestOpenDictUnknownStrategy(t *testing.T) {
	_, err := openDict("whatever.ksd", "eager")
	assert.ErrorIs(t, err, dictionary.ErrInvalidArgument)
}
