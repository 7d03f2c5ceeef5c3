package downloader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTaskQueueDedupes(t *testing.T) {
	q, dups := NewTaskQueue([]string{
		"https://a.example/x.pdf",
		"https://a.example/y.pdf",
		"https://a.example/x.pdf",
		"https://a.example/x.pdf",
	})
	require.Equal(t, 2, dups)
	require.Equal(t, 2, q.Len())

	first, ok := q.Take()
	require.True(t, ok)
	require.Equal(t, "https://a.example/x.pdf", first.URL)

	second, ok := q.Take()
	require.True(t, ok)
	require.Equal(t, "https://a.example/y.pdf", second.URL)

	_, ok = q.Take()
	require.False(t, ok)
}

func TestTaskQueueEmpty(t *testing.T) {
	q, dups := NewTaskQueue(nil)
	require.Zero(t, dups)
	require.Zero(t, q.Len())
	_, ok := q.Take()
	require.False(t, ok)
}
