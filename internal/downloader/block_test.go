package downloader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBlockClassifier(t *testing.T) {
	c := NewBlockClassifier([]string{"Access Denied", "unusual traffic"})

	require.True(t, c.IsBlockSignal(403, nil))
	require.True(t, c.IsBlockSignal(200, []byte("<html>ACCESS DENIED</html>")))
	require.True(t, c.IsBlockSignal(200, []byte("we detected Unusual Traffic from you")))
	require.False(t, c.IsBlockSignal(200, []byte("%PDF-1.7")))
	require.False(t, c.IsBlockSignal(500, []byte("internal error")))

	bare := NewBlockClassifier(nil)
	require.True(t, bare.IsBlockSignal(403, []byte("whatever")))
	require.False(t, bare.IsBlockSignal(200, []byte("Access Denied")))
}

func TestTripIsMonotoneForward(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBlockState(zap.NewNop())
	b.now = func() time.Time { return clock }

	b.Trip(100 * time.Second)
	require.Equal(t, clock.Add(100*time.Second), b.BlockedUntil())

	// A shorter concurrent trip must not pull the deadline back.
	b.Trip(10 * time.Second)
	require.Equal(t, clock.Add(100*time.Second), b.BlockedUntil())

	// A longer one extends it.
	b.Trip(200 * time.Second)
	require.Equal(t, clock.Add(200*time.Second), b.BlockedUntil())
}

func TestAwaitOpenReturnsImmediatelyWhenOpen(t *testing.T) {
	b := NewBlockState(zap.NewNop())
	start := time.Now()
	require.NoError(t, b.AwaitOpen(context.Background()))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAwaitOpenWaitsOutThePause(t *testing.T) {
	b := NewBlockState(zap.NewNop())
	b.poll = 5 * time.Millisecond
	b.Trip(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, b.AwaitOpen(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestAwaitOpenHonorsCancellation(t *testing.T) {
	b := NewBlockState(zap.NewNop())
	b.Trip(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, b.AwaitOpen(ctx))
}
