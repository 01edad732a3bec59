package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slack = time.Millisecond

func TestThrottle_SpacesBackToBackSlots(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	th := NewThrottle(2*time.Second, 0.5)

	assert.Zero(t, th.reserve(now).DelayFrom(now), "first request goes immediately")

	for i := 0; i < 20; i++ {
		d := th.reserve(now).DelayFrom(now)
		assert.GreaterOrEqual(t, d, 2*time.Second-slack)
		assert.LessOrEqual(t, d, 3*time.Second+slack)
		now = now.Add(d)
	}
}

func TestThrottle_IdleCallerWaitsOnlyForRemainder(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	th := NewThrottle(2*time.Second, 0)

	th.reserve(now)
	now = now.Add(1500 * time.Millisecond)
	assert.InDelta(t, float64(500*time.Millisecond), float64(th.reserve(now).DelayFrom(now)), float64(slack))

	now = now.Add(10 * time.Second)
	assert.Zero(t, th.reserve(now).DelayFrom(now))
}

func TestThrottle_ConcurrentWaitersStaySpaced(t *testing.T) {
	th := NewThrottle(30*time.Millisecond, 0.2)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, th.Wait(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, 4)
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 90*time.Millisecond-5*time.Millisecond)
}

func TestThrottle_DisabledAndCancelled(t *testing.T) {
	var nilThrottle *Throttle
	require.NoError(t, nilThrottle.Wait(context.Background()))
	require.NoError(t, NewThrottle(0, 0.5).Wait(context.Background()))

	th := NewThrottle(time.Hour, 0)
	require.NoError(t, th.Wait(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}
