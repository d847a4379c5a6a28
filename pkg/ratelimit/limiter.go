package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until the next request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// FixedDelay sleeps a fixed interval of 1/rps before every request.
// It never lets requests burst, and a zero interval never sleeps.
type FixedDelay struct {
	interval time.Duration
	mu       sync.Mutex
	waits    int
}

// NewFixedDelay creates a limiter for the given requests-per-second budget.
// rps <= 0 disables the delay.
func NewFixedDelay(rps float64) *FixedDelay {
	var interval time.Duration
	if rps > 0 {
		interval = time.Duration(float64(time.Second) / rps)
	}
	return &FixedDelay{interval: interval}
}

// Interval returns the delay applied before each request
func (fd *FixedDelay) Interval() time.Duration {
	return fd.interval
}

// Wait sleeps for the configured interval
func (fd *FixedDelay) Wait(ctx context.Context) error {
	fd.mu.Lock()
	fd.waits++
	fd.mu.Unlock()

	if fd.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(fd.interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waits returns how many times Wait has been called since the last Reset
func (fd *FixedDelay) Waits() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.waits
}

// Reset clears the wait counter
func (fd *FixedDelay) Reset() {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.waits = 0
}

// Throttle is a token bucket limiter for image downloads.
type Throttle struct {
	perSecond float64
	mu        sync.Mutex
	limiter   *rate.Limiter
}

// NewThrottle allows perSecond events with a burst of one.
// perSecond <= 0 means unlimited.
func NewThrottle(perSecond float64) *Throttle {
	t := &Throttle{perSecond: perSecond}
	t.Reset()
	return t
}

// Allow reports whether an event may happen now without waiting
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	l := t.limiter
	t.mu.Unlock()
	return l.Allow()
}

// Wait blocks until a token is available
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	l := t.limiter
	t.mu.Unlock()
	return l.Wait(ctx)
}

// Reset refills the bucket
func (t *Throttle) Reset() {
	limit := rate.Inf
	if t.perSecond > 0 {
		limit = rate.Limit(t.perSecond)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.limiter = rate.NewLimiter(limit, 1)
}
