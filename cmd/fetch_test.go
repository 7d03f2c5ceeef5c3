package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadLinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	content := "# exported by scrape\nhttps://a/x.pdf\n\n  https://a/y.pdf  \n# trailing comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readLinkFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a/x.pdf", "https://a/y.pdf"}, urls)
}

func TestReadLinkFileMissing(t *testing.T) {
	_, err := readLinkFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestHostsOf(t *testing.T) {
	hosts := hostsOf([]string{
		"https://a.example/x.pdf",
		"https://a.example/y.pdf",
		"https://b.example/z.pdf",
		"://broken",
	})
	require.Equal(t, []string{"a.example", "b.example"}, hosts)
}

func TestWriteFailedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")

	require.NoError(t, writeFailedFile(path, []string{"https://a/x.pdf", "https://a/y.pdf"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "https://a/x.pdf\nhttps://a/y.pdf\n", string(data))

	// An empty failure list removes the stale report.
	require.NoError(t, writeFailedFile(path, nil))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Removing a report that never existed is fine.
	require.NoError(t, writeFailedFile(path, nil))
}

func TestHasPDFSignature(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.pdf")
	require.NoError(t, os.WriteFile(good, []byte("%PDF-1.7 body"), 0o644))
	require.True(t, hasPDFSignature(good))

	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("<html>nope</html>"), 0o644))
	require.False(t, hasPDFSignature(bad))

	short := filepath.Join(dir, "short.pdf")
	require.NoError(t, os.WriteFile(short, []byte("%P"), 0o644))
	require.False(t, hasPDFSignature(short))

	require.False(t, hasPDFSignature(filepath.Join(dir, "absent.pdf")))
}
