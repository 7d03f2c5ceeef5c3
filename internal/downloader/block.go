package downloader

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/metrics"
)

const defaultBlockPoll = 10 * time.Second

// BlockClassifier decides whether a response constitutes a hard block
// signal. The exact trigger varies between deployments, so it is
// configurable: HTTP 403 always trips, and any configured body marker
// (matched case-insensitively) trips as well.
type BlockClassifier struct {
	markers [][]byte
}

// NewBlockClassifier builds a classifier from body marker substrings. An
// empty marker list means status-code-only detection.
func NewBlockClassifier(markers []string) *BlockClassifier {
	c := &BlockClassifier{}
	for _, m := range markers {
		if m == "" {
			continue
		}
		c.markers = append(c.markers, bytes.ToLower([]byte(m)))
	}
	return c
}

// IsBlockSignal reports whether the status code or body indicates the
// remote is refusing all requests from this client.
func (c *BlockClassifier) IsBlockSignal(statusCode int, body []byte) bool {
	if statusCode == 403 {
		return true
	}
	if c == nil || len(c.markers) == 0 || len(body) == 0 {
		return false
	}
	lower := bytes.ToLower(body)
	for _, m := range c.markers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}

// BlockState is the process-wide circuit breaker. A single blocked IP
// means every subsequent request will also fail, so any worker that
// observes a block signal pauses all of them.
type BlockState struct {
	mu           sync.Mutex
	blockedUntil time.Time
	poll         time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewBlockState builds an open (untripped) breaker.
func NewBlockState(logger *zap.Logger) *BlockState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockState{
		poll:   defaultBlockPoll,
		logger: logger,
		now:    time.Now,
	}
}

// Trip extends the global pause to now+cooldown. Updates are monotonic
// forward: a trip ending earlier than the current pause has no effect, so
// concurrent trips coalesce to the maximum.
func (b *BlockState) Trip(cooldown time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until := b.now().Add(cooldown)
	if !until.After(b.blockedUntil) {
		return
	}
	b.blockedUntil = until
	metrics.ObserveBlockPause()
	metrics.SetBlocked(true)
	b.logger.Warn("block signal detected, pausing all requests",
		zap.Duration("cooldown", cooldown),
		zap.Time("blocked_until", until),
	)
}

// AwaitOpen blocks until the breaker is open, polling in short increments
// so a concurrently extended pause is respected and cancellation is
// honored promptly. Returns immediately when not tripped.
func (b *BlockState) AwaitOpen(ctx context.Context) error {
	for {
		b.mu.Lock()
		remaining := b.blockedUntil.Sub(b.now())
		b.mu.Unlock()
		if remaining <= 0 {
			metrics.SetBlocked(false)
			return nil
		}
		sleep := b.poll
		if remaining < sleep {
			sleep = remaining
		}
		if err := sleepCtx(ctx, sleep); err != nil {
			return err
		}
	}
}

// BlockedUntil returns the current pause deadline, zero when open.
func (b *BlockState) BlockedUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockedUntil
}
