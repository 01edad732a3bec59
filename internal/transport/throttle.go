package transport

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces consecutive requests by a minimum delay plus random jitter.
// One Throttle is shared by every caller of a Client, so the spacing holds
// across strategies and sessions. Waiters take turns; each turn re-rates the
// limiter to minDelay plus a fresh jitter before reserving its slot, so no two
// slots are ever closer than minDelay.
type Throttle struct {
	minDelay time.Duration
	jitter   float64

	lim  *rate.Limiter
	turn chan struct{}

	nowFunc func() time.Time
}

// NewThrottle creates a throttle. jitterFraction is the maximum extra delay
// as a fraction of minDelay. A non-positive minDelay disables throttling.
func NewThrottle(minDelay time.Duration, jitterFraction float64) *Throttle {
	if jitterFraction < 0 {
		jitterFraction = 0
	}
	t := &Throttle{
		minDelay: minDelay,
		jitter:   jitterFraction,
		turn:     make(chan struct{}, 1),
		nowFunc:  time.Now,
	}
	if minDelay > 0 {
		t.lim = rate.NewLimiter(rate.Every(minDelay), 1)
	}
	return t
}

// reserve claims the slot following the previous one. Callers hold the turn.
func (t *Throttle) reserve(now time.Time) *rate.Reservation {
	gap := t.minDelay + time.Duration(rand.Float64()*t.jitter*float64(t.minDelay))
	t.lim.SetLimitAt(now, rate.Every(gap))
	return t.lim.ReserveN(now, 1)
}

// Wait blocks until the caller's slot arrives or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.lim == nil {
		return ctx.Err()
	}

	select {
	case t.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.turn }()

	now := t.nowFunc()
	r := t.reserve(now)
	d := r.DelayFrom(now)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
