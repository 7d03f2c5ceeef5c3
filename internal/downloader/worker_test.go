package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.pdf")

	require.NoError(t, writeAtomic(dest, []byte("%PDF-1.4 payload")))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 payload", string(data))

	// No temp sibling survives a successful write.
	_, err = os.Stat(dest + ".part")
	require.True(t, os.IsNotExist(err))
}

func TestWriteAtomicOverwrites(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	require.NoError(t, writeAtomic(dest, []byte("new")))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestWriteAtomicMissingDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nope", "out.pdf")
	require.Error(t, writeAtomic(dest, []byte("x")))
}
