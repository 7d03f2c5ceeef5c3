package downloader

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	blocks := NewBlockClassifier([]string{"access denied"})

	tests := []struct {
		name   string
		status int
		header http.Header
		body   []byte
		err    error
		want   FailureKind
		ok     bool
	}{
		{name: "success", status: 200, body: []byte("%PDF-1.4"), ok: true},
		{name: "transport error", err: errors.New("connection reset"), want: KindTransport},
		{name: "forbidden is a block", status: 403, want: KindBlocked},
		{name: "marker body is a block", status: 200, body: []byte("ACCESS DENIED"), want: KindBlocked},
		{name: "not found", status: 404, want: KindNotFound},
		{name: "throttled", status: 429, want: KindRateLimited},
		{name: "server error", status: 503, want: KindRateLimited},
		{name: "odd status", status: 302, want: KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ferr := Classify(tt.status, tt.header, tt.body, tt.err, blocks)
			if tt.ok {
				require.Nil(t, ferr)
				return
			}
			require.NotNil(t, ferr)
			require.Equal(t, tt.want, ferr.Kind)
		})
	}
}

func TestClassifyHonorsRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	ferr := Classify(429, h, nil, nil, NewBlockClassifier(nil))
	require.NotNil(t, ferr)
	require.Equal(t, 7*time.Second, ferr.RetryAfter)

	p := NewBackoffPolicy(5, time.Second, time.Minute)
	require.Equal(t, 7*time.Second, p.Backoff(ferr, 0))
}

func TestShouldRetryBudgetAndKind(t *testing.T) {
	p := NewBackoffPolicy(3, time.Second, time.Minute)

	retryable := &FetchError{Kind: KindRateLimited}
	require.True(t, p.ShouldRetry(retryable, 0))
	require.True(t, p.ShouldRetry(retryable, 2))
	require.False(t, p.ShouldRetry(retryable, 3))

	require.False(t, p.ShouldRetry(&FetchError{Kind: KindNotFound}, 0))
	require.False(t, p.ShouldRetry(&FetchError{Kind: KindContentMismatch}, 0))
	require.False(t, p.ShouldRetry(nil, 0))
}

func TestBackoffGrowsBelowCap(t *testing.T) {
	p := NewBackoffPolicy(10, 5*time.Second, time.Hour)
	ferr := &FetchError{Kind: KindRateLimited}

	// Jitter is bounded by [0.8, 1.2], so consecutive attempts below the
	// cap can never shrink: 2*0.8 > 1.2.
	prev := p.Backoff(ferr, 0)
	require.GreaterOrEqual(t, prev, time.Duration(float64(5*time.Second)*0.8))
	for attempt := 1; attempt < 6; attempt++ {
		next := p.Backoff(ferr, attempt)
		require.Greater(t, next, prev, "attempt %d", attempt)
		prev = next
	}
}

func TestBackoffRespectsCap(t *testing.T) {
	p := NewBackoffPolicy(10, 5*time.Second, 60*time.Second)
	ferr := &FetchError{Kind: KindRateLimited}
	for attempt := 6; attempt < 10; attempt++ {
		d := p.Backoff(ferr, attempt)
		require.LessOrEqual(t, d, time.Duration(float64(60*time.Second)*1.2))
	}
}

func TestBackoffBlockedIsShort(t *testing.T) {
	p := NewBackoffPolicy(5, 5*time.Second, time.Minute)
	ferr := &FetchError{Kind: KindBlocked}
	for i := 0; i < 20; i++ {
		d := p.Backoff(ferr, 4)
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 3*time.Second)
	}
}
