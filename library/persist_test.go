package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPersister(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	p, err := OpenPersister(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileCodec{}, p)
	assert.Equal(t, filepath.Join(cfg.DataDir, BooksFile), p.Files()[0])
	require.NoError(t, p.Close())

	cfg.Backend = BackendSQLite
	p, err = OpenPersister(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Database{}, p)
	assert.Equal(t, []string{filepath.Join(cfg.DataDir, SQLiteFile)}, p.Files())
	require.NoError(t, p.Close())

	cfg.Backend = "tape"
	_, err = OpenPersister(cfg, nil)
	assert.Error(t, err)
}

func TestFileCodecBackup(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCodec(dir, nil)

	// nothing written yet
	paths, err := c.Backup()
	require.NoError(t, err)
	assert.Empty(t, paths)

	s, _ := populatedStore(t)
	require.NoError(t, c.Save(s.Snapshot()))

	paths, err = c.Backup()
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for i, src := range c.Files() {
		assert.Equal(t, src+".bak", paths[i])
		want, err := os.ReadFile(src)
		require.NoError(t, err)
		got, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("#next;1\n"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("stale content that is longer"), 0o644))

	ok, err := copyVerified(src, dst)
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := fileDigest(src)
	require.NoError(t, err)
	b, err := fileDigest(dst)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	ok, err = copyVerified(filepath.Join(dir, "missing"), dst)
	require.NoError(t, err)
	assert.False(t, ok)
}
