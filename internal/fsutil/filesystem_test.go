package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_AppendAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "s01.log")

	var osfs OSFileSystem
	require.NoError(t, osfs.MkdirAll(filepath.Dir(path), 0755))
	assert.False(t, osfs.Exists(path))

	for _, chunk := range []string{"first\n", "second\n"} {
		w, err := osfs.OpenAppend(path)
		require.NoError(t, err)
		_, err = w.Write([]byte(chunk))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	data, err := osfs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
	assert.True(t, osfs.Exists(path))
}

func TestMemoryFileSystem_WritesVisibleBeforeClose(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("logs", 0755))

	w, err := m.OpenAppend("logs/s01.log")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	data, err := m.ReadFile("logs/./s01.log")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, w.Close())
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, fs.ErrClosed)
}

func TestMemoryFileSystem_OpenAppendMissingDir(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.OpenAppend("nowhere/s01.log")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMemoryFileSystem_ReadNonExistent(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.ReadFile("absent.yaml")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMemoryFileSystem_FailWritesAfter(t *testing.T) {
	m := NewMemoryFileSystem()
	m.FailWritesAfter = 4

	w, err := m.OpenAppend("trial.log")
	require.NoError(t, err)

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.Write([]byte("def"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 1, n)

	data, _ := m.ReadFile("trial.log")
	assert.Equal(t, "abcd", string(data))
}

func TestMemoryFileSystem_ExistsDirAndFile(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("a/b/c", 0755))
	m.WriteFile("a/exp.yaml", []byte("trials: []"))

	assert.True(t, m.Exists("a"))
	assert.True(t, m.Exists("a/b"))
	assert.True(t, m.Exists("a/exp.yaml"))
	assert.False(t, m.Exists("a/other.yaml"))
}
