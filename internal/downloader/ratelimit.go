package downloader

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdfpull/pdfpull/internal/metrics"
)

// HostLimiter enforces a minimum randomized spacing between consecutive
// requests to the same host. Each host carries its own lock and
// last-request timestamp; the lock is held across the wait and timestamp
// update but never across the network call, so distinct hosts proceed
// fully in parallel while any single host is throttled.
type HostLimiter struct {
	mu       sync.Mutex
	hosts    map[string]*hostState
	minDelay time.Duration
	maxDelay time.Duration

	// global, when non-nil, caps requests per second across all hosts.
	global *rate.Limiter

	randMu sync.Mutex
	rand   *rand.Rand
}

type hostState struct {
	mu   sync.Mutex
	last time.Time
}

// NewHostLimiter builds a limiter with spacing drawn uniformly from
// [minDelay, maxDelay]. globalRPS <= 0 disables the global ceiling.
func NewHostLimiter(minDelay, maxDelay time.Duration, globalRPS float64) *HostLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	l := &HostLimiter{
		hosts:    make(map[string]*hostState),
		minDelay: minDelay,
		maxDelay: maxDelay,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if globalRPS > 0 {
		l.global = rate.NewLimiter(rate.Limit(globalRPS), 1)
	}
	return l
}

// Wait blocks until a request to rawURL's host is allowed, respecting the
// context. It records the introduced delay for observability.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	if l.global != nil {
		if err := l.global.Wait(ctx); err != nil {
			return fmt.Errorf("global rate wait: %w", err)
		}
	}

	state := l.state(host)
	state.mu.Lock()
	defer state.mu.Unlock()

	spacing := l.spacing()
	wait := spacing - time.Since(state.last)
	if wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		if wait > time.Millisecond {
			metrics.ObserveRateLimitDelay(host, wait)
		}
	}
	state.last = time.Now()
	return nil
}

func (l *HostLimiter) state(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.hosts[host]
	if !ok {
		s = &hostState{}
		l.hosts[host] = s
	}
	return s
}

func (l *HostLimiter) spacing() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return l.minDelay + time.Duration(l.rand.Int63n(int64(l.maxDelay-l.minDelay)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
