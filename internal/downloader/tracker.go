package downloader

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/metrics"
)

// Tracker aggregates terminal outcomes across workers. All mutation goes
// through Record under an internal lock; the reporter goroutine only ever
// reads snapshots, so it can never block a worker.
type Tracker struct {
	mu            sync.Mutex
	runID         string
	total         int
	counts        map[Outcome]int
	failedURLs    []string
	corruptStreak int
	start         time.Time
	logger        *zap.Logger
}

// NewTracker builds a tracker for a run over total tasks.
func NewTracker(runID string, total int, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		runID:  runID,
		total:  total,
		counts: make(map[Outcome]int, 4),
		start:  time.Now(),
		logger: logger,
	}
}

// Record tallies one terminal result and returns the consecutive corrupt
// streak after applying it. The streak grows on corrupt outcomes and
// resets on any successful download.
func (t *Tracker) Record(res Result) int {
	t.mu.Lock()
	t.counts[res.Outcome]++
	switch res.Outcome {
	case OutcomeDownloaded:
		t.corruptStreak = 0
	case OutcomeCorrupt:
		t.corruptStreak++
		t.failedURLs = append(t.failedURLs, res.Task.URL)
	case OutcomeFailed:
		t.failedURLs = append(t.failedURLs, res.Task.URL)
	}
	streak := t.corruptStreak
	t.mu.Unlock()

	metrics.ObserveOutcome(string(res.Outcome))
	if res.Outcome == OutcomeDownloaded {
		metrics.ObserveBytes(res.Task.URL, res.Bytes)
	}
	return streak
}

// ResetStreak clears the corrupt streak after fresh credentials arrive.
func (t *Tracker) ResetStreak() {
	t.mu.Lock()
	t.corruptStreak = 0
	t.mu.Unlock()
}

// CorruptStreak returns the current consecutive corrupt count.
func (t *Tracker) CorruptStreak() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.corruptStreak
}

// Snapshot returns a point-in-time progress view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		RunID:      t.runID,
		Total:      t.total,
		Downloaded: t.counts[OutcomeDownloaded],
		Skipped:    t.counts[OutcomeSkipped],
		Corrupt:    t.counts[OutcomeCorrupt],
		Failed:     t.counts[OutcomeFailed],
		Elapsed:    time.Since(t.start),
	}
}

// FailedURLs returns the URLs that ended corrupt or failed, in resolution
// order, for the re-run report.
func (t *Tracker) FailedURLs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.failedURLs...)
}

// Report logs progress on a fixed cadence until the context finishes,
// then emits a final summary line.
func (t *Tracker) Report(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.logSummary()
			return
		case <-ticker.C:
			snap := t.Snapshot()
			t.logger.Debug("progress",
				zap.Int("done", snap.Done()),
				zap.Int("total", snap.Total),
				zap.Int("downloaded", snap.Downloaded),
				zap.Int("skipped", snap.Skipped),
				zap.Int("failed", snap.Failed),
				zap.Int("corrupt", snap.Corrupt),
				zap.Float64("rate_per_sec", snap.Rate()),
			)
		}
	}
}

func (t *Tracker) logSummary() {
	snap := t.Snapshot()
	t.logger.Info("run complete",
		zap.String("run_id", snap.RunID),
		zap.Int("total", snap.Total),
		zap.Int("downloaded", snap.Downloaded),
		zap.Int("skipped", snap.Skipped),
		zap.Int("failed", snap.Failed),
		zap.Int("corrupt", snap.Corrupt),
		zap.Duration("elapsed", snap.Elapsed),
	)
}
