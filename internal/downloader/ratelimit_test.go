package downloader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitSpacesSameHost(t *testing.T) {
	l := NewHostLimiter(30*time.Millisecond, 30*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example/x.pdf"))
	require.NoError(t, l.Wait(ctx, "https://a.example/y.pdf"))
	require.NoError(t, l.Wait(ctx, "https://a.example/z.pdf"))
	require.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestWaitDistinctHostsProceedInParallel(t *testing.T) {
	l := NewHostLimiter(40*time.Millisecond, 40*time.Millisecond, 0)
	ctx := context.Background()

	// Prime both hosts so the next waits actually space.
	require.NoError(t, l.Wait(ctx, "https://a.example/1.pdf"))
	require.NoError(t, l.Wait(ctx, "https://b.example/1.pdf"))

	start := time.Now()
	var wg sync.WaitGroup
	for _, u := range []string{"https://a.example/2.pdf", "https://b.example/2.pdf"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx, u))
		}(u)
	}
	wg.Wait()
	// Two serialized 40ms waits would take 80ms; parallel hosts take one.
	require.Less(t, time.Since(start), 70*time.Millisecond)
}

func TestWaitZeroDelayIsImmediate(t *testing.T) {
	l := NewHostLimiter(0, 0, 0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/x.pdf"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsCancellation(t *testing.T) {
	l := NewHostLimiter(time.Hour, time.Hour, 0)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://a.example/1.pdf"))

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(cancelCtx, "https://a.example/2.pdf"))
}

func TestSpacingStaysInBounds(t *testing.T) {
	l := NewHostLimiter(10*time.Millisecond, 30*time.Millisecond, 0)
	for i := 0; i < 200; i++ {
		d := l.spacing()
		require.GreaterOrEqual(t, d, 10*time.Millisecond)
		require.LessOrEqual(t, d, 30*time.Millisecond)
	}
}
