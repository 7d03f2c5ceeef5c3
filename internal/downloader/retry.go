package downloader

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// BackoffPolicy decides, per failure, whether to retry, how long to wait,
// and when to give up.
type BackoffPolicy struct {
	// MaxRetries is the retry budget per task, not counting the first
	// attempt.
	MaxRetries int
	// Base and Max bound the exponential backoff: min(Max, Base*2^attempt)
	// scaled by a jitter factor in [0.8, 1.2].
	Base time.Duration
	Max  time.Duration
	// BlockedPauseMin/Max bound the short fixed pre-retry pause after a
	// block signal; the global block wait dominates there.
	BlockedPauseMin time.Duration
	BlockedPauseMax time.Duration

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewBackoffPolicy builds a policy with the given retry budget and
// exponential backoff bounds.
func NewBackoffPolicy(maxRetries int, base, max time.Duration) *BackoffPolicy {
	if base <= 0 {
		base = 5 * time.Second
	}
	if max <= 0 {
		max = 60 * time.Second
	}
	return &BackoffPolicy{
		MaxRetries:      maxRetries,
		Base:            base,
		Max:             max,
		BlockedPauseMin: time.Second,
		BlockedPauseMax: 3 * time.Second,
		rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Classify maps an HTTP response (or transport error) to a FetchError, or
// nil for a plain 200. The block classifier decides whether the response
// is a hard block signal in addition to the fixed status rules.
func Classify(statusCode int, header http.Header, body []byte, err error, blocks *BlockClassifier) *FetchError {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &FetchError{Kind: KindTransport, Err: err}
		}
		return &FetchError{Kind: KindTransport, Err: err}
	}
	if blocks.IsBlockSignal(statusCode, body) {
		return &FetchError{Kind: KindBlocked, StatusCode: statusCode}
	}
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusNotFound:
		return &FetchError{Kind: KindNotFound, StatusCode: statusCode}
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return &FetchError{
			Kind:       KindRateLimited,
			StatusCode: statusCode,
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
		}
	default:
		return &FetchError{Kind: KindTransport, StatusCode: statusCode, Detail: "unexpected status"}
	}
}

// ShouldRetry reports whether another attempt is allowed for the failure.
// attempt is zero-based: attempt 0 is the first retry decision.
func (p *BackoffPolicy) ShouldRetry(ferr *FetchError, attempt int) bool {
	if ferr == nil || !ferr.Retryable() {
		return false
	}
	return attempt < p.MaxRetries
}

// Backoff returns the wait before retry number attempt (zero-based). A
// server-provided hint wins; blocked failures get the short fixed pause
// since the global block wait dominates.
func (p *BackoffPolicy) Backoff(ferr *FetchError, attempt int) time.Duration {
	if ferr != nil && ferr.Kind == KindBlocked {
		return p.BlockedPauseMin + p.jitterRange(p.BlockedPauseMax-p.BlockedPauseMin)
	}
	if ferr != nil && ferr.RetryAfter > 0 {
		return ferr.RetryAfter
	}
	d := float64(p.Base) * math.Pow(2, float64(attempt))
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d * p.jitterFactor())
}

// jitterFactor draws uniformly from [0.8, 1.2].
func (p *BackoffPolicy) jitterFactor() float64 {
	p.randMu.Lock()
	defer p.randMu.Unlock()
	return 0.8 + 0.4*p.rand.Float64()
}

func (p *BackoffPolicy) jitterRange(span time.Duration) time.Duration {
	if span <= 0 {
		return 0
	}
	p.randMu.Lock()
	defer p.randMu.Unlock()
	return time.Duration(p.rand.Int63n(int64(span)))
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
