package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.False(t, DirExists(file))

	// Stat fails with ENOTDIR here, not ErrNotExist; must not panic.
	assert.False(t, DirExists(filepath.Join(file, "child")))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, FileExists(dir), "a directory is not a file")

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestEnsureDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))
	assert.NoError(t, EnsureDir(nested), "existing dir is fine")
}

func TestBaseNoExt(t *testing.T) {
	assert.Equal(t, "EQ25", BaseNoExt("faa/EQ25.faa"))
	assert.Equal(t, "noext", BaseNoExt("/tmp/noext"))
	assert.Equal(t, "a.b", BaseNoExt("a.b.c"))
}
