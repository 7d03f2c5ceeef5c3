// Package downloader implements the concurrent download engine: work
// distribution, per-host rate limiting, global block detection, content
// validation, retry policy, and resumable output naming.
package downloader

import (
	"time"
)

// Outcome is the terminal resolution of a single Task.
type Outcome string

// Terminal task outcomes.
const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeCorrupt    Outcome = "corrupt"
	OutcomeFailed     Outcome = "failed"
)

// Task is one URL to be fetched and materialized as a local file.
// Immutable once enqueued.
type Task struct {
	URL string
}

// Result is the terminal resolution of a Task, produced exactly once per
// task after success, skip, or retry exhaustion.
type Result struct {
	Task    Task
	Outcome Outcome
	Path    string
	Bytes   int
	Detail  string
}

// Snapshot is a point-in-time view of run progress.
type Snapshot struct {
	RunID      string        `json:"run_id"`
	Total      int           `json:"total"`
	Downloaded int           `json:"downloaded"`
	Skipped    int           `json:"skipped"`
	Corrupt    int           `json:"corrupt"`
	Failed     int           `json:"failed"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Done returns the number of tasks that reached a terminal outcome.
func (s Snapshot) Done() int {
	return s.Downloaded + s.Skipped + s.Corrupt + s.Failed
}

// Rate returns terminal resolutions per second since the run started.
func (s Snapshot) Rate() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Done()) / secs
}

// Summary is returned by Engine.Run once all workers finish.
type Summary struct {
	Snapshot
	FailedURLs []string
	Duplicates int
}
