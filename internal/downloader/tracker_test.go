package downloader

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTrackerCountsAndStreak(t *testing.T) {
	tr := NewTracker("run", 10, zap.NewNop())

	corrupt := Result{Task: Task{URL: "https://h/x.pdf"}, Outcome: OutcomeCorrupt}
	for i := 1; i <= 4; i++ {
		require.Equal(t, i, tr.Record(corrupt))
	}

	// A successful download resets the streak.
	require.Equal(t, 0, tr.Record(Result{Task: Task{URL: "https://h/ok.pdf"}, Outcome: OutcomeDownloaded, Bytes: 128}))
	require.Equal(t, 1, tr.Record(corrupt))

	// Skips and failures leave the streak alone.
	require.Equal(t, 1, tr.Record(Result{Task: Task{URL: "https://h/s.pdf"}, Outcome: OutcomeSkipped}))
	require.Equal(t, 1, tr.Record(Result{Task: Task{URL: "https://h/f.pdf"}, Outcome: OutcomeFailed}))

	snap := tr.Snapshot()
	require.Equal(t, 1, snap.Downloaded)
	require.Equal(t, 1, snap.Skipped)
	require.Equal(t, 5, snap.Corrupt)
	require.Equal(t, 1, snap.Failed)
	require.Equal(t, 8, snap.Done())
}

func TestTrackerFailedURLs(t *testing.T) {
	tr := NewTracker("run", 3, zap.NewNop())
	tr.Record(Result{Task: Task{URL: "https://h/a.pdf"}, Outcome: OutcomeFailed})
	tr.Record(Result{Task: Task{URL: "https://h/b.pdf"}, Outcome: OutcomeCorrupt})
	tr.Record(Result{Task: Task{URL: "https://h/c.pdf"}, Outcome: OutcomeDownloaded})

	require.Equal(t, []string{"https://h/a.pdf", "https://h/b.pdf"}, tr.FailedURLs())
}

func TestTrackerResetStreak(t *testing.T) {
	tr := NewTracker("run", 5, zap.NewNop())
	corrupt := Result{Task: Task{URL: "https://h/x.pdf"}, Outcome: OutcomeCorrupt}
	tr.Record(corrupt)
	tr.Record(corrupt)
	require.Equal(t, 2, tr.CorruptStreak())

	tr.ResetStreak()
	require.Equal(t, 0, tr.CorruptStreak())
	require.Equal(t, 1, tr.Record(corrupt))
}
