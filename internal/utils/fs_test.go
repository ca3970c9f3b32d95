package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Server struct {
		Workers int `toml:"workers"`
	} `toml:"server"`
	Name string `toml:"name"`
}

func TestSaveTOMLFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("garbage = ["), 0o600))

	var in sample
	in.Name = "keys"
	in.Server.Workers = 3
	require.NoError(t, SaveTOMLFile(in, path))

	var out sample
	require.NoError(t, LoadTOMLFile(path, &out))
	assert.Equal(t, in, out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCheckDirStatus(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	st := CheckDirStatus(dir)
	assert.True(t, st.Exists)
	assert.True(t, st.Writable)
	assert.NoError(t, st.Error)
	assert.True(t, FileExists(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	st = CheckDirStatus(filepath.Join(file, "sub"))
	assert.False(t, st.Exists)
	assert.Error(t, st.Error)
}

func TestGetAbsolutePath(t *testing.T) {
	assert.Equal(t, "unknown", GetAbsolutePath(""))
	assert.Equal(t, "/etc/keyserve.toml", GetAbsolutePath("/etc/keyserve.toml"))
	assert.True(t, filepath.IsAbs(GetAbsolutePath("relative.toml")))
}
