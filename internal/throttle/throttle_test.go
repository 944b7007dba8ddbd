package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"MatchPoster/internal/utils/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 12, 6, 10, 0, 0, 0, time.UTC)

func TestWait_SecondCallDelayedByInterval(t *testing.T) {
	clk := clock.NewFake(start)
	th := New(2*time.Second, clk)
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx))
	first := clk.Now()
	require.NoError(t, th.Wait(ctx))
	second := clk.Now()

	assert.GreaterOrEqual(t, second.Sub(first), 2*time.Second)
}

func TestWait_NoDelayAfterIntervalElapsed(t *testing.T) {
	clk := clock.NewFake(start)
	th := New(2*time.Second, clk)
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx))
	clk.Advance(3 * time.Second)
	require.NoError(t, th.Wait(ctx))

	assert.Equal(t, []time.Duration{}, filterPositive(clk.Sleeps()))
}

func TestWait_ConcurrentCallersGetDistinctSlots(t *testing.T) {
	clk := clock.NewFake(start)
	th := New(2*time.Second, clk)

	var wg sync.WaitGroup
	waits := make(chan time.Duration, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			waits <- th.reserve()
		}()
	}
	wg.Wait()
	close(waits)

	seen := map[time.Duration]bool{}
	for w := range waits {
		assert.False(t, seen[w], "两个调用方预约到了同一时刻: %v", w)
		seen[w] = true
	}
	assert.True(t, seen[0])
	assert.True(t, seen[6*time.Second])
}

func TestWait_CancelledContext(t *testing.T) {
	th := New(2*time.Second, clock.NewFake(start))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}

func TestWait_RealClockHonoursCancel(t *testing.T) {
	th := New(time.Hour, clock.Real())
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.DeadlineExceeded)
}

func filterPositive(ds []time.Duration) []time.Duration {
	out := []time.Duration{}
	for _, d := range ds {
		if d > 0 {
			out = append(out, d)
		}
	}
	return out
}
