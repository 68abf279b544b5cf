// Package ratelimit spaces requests to a single site with jittered delays.
// A Limiter belongs to one crawl loop; it is constructed and injected, never
// shared process-wide.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Default delay window between consecutive requests to the same site.
const (
	DefaultMinDelay = 750 * time.Millisecond
	DefaultMaxDelay = 2500 * time.Millisecond
)

// Limiter enforces a randomized minimum spacing between calls. Every Wait
// draws a fresh delay from [minDelay, maxDelay]; fixed-interval traffic
// patterns never emerge.
type Limiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	next     time.Time
	rng      *rand.Rand

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRandSource fixes the jitter source, making drawn delays reproducible.
func WithRandSource(src rand.Source) Option {
	return func(l *Limiter) {
		l.rng = rand.New(src)
	}
}

// New creates a Limiter with the given delay window. Out-of-order or
// non-positive bounds fall back to the defaults.
func New(minDelay, maxDelay time.Duration, opts ...Option) *Limiter {
	if minDelay <= 0 || maxDelay < minDelay {
		minDelay = DefaultMinDelay
		maxDelay = DefaultMaxDelay
	}
	l := &Limiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until a freshly drawn delay has elapsed since the previous
// call was released. The first call never blocks. Returns the context error
// when canceled before the delay elapses; the reservation stands either way
// so a canceled waiter cannot compress the spacing for the next one.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	var wake time.Time
	if l.next.IsZero() {
		wake = now
	} else {
		wake = l.next.Add(l.draw())
		if wake.Before(now) {
			wake = now
		}
	}
	l.next = wake
	l.mu.Unlock()

	if d := wake.Sub(now); d > 0 {
		return l.sleep(ctx, d)
	}
	return ctx.Err()
}

// Window returns the configured delay bounds.
func (l *Limiter) Window() (minDelay, maxDelay time.Duration) {
	return l.minDelay, l.maxDelay
}

// draw picks the next delay uniformly from [minDelay, maxDelay].
// Callers hold l.mu.
func (l *Limiter) draw() time.Duration {
	if l.maxDelay == l.minDelay {
		return l.minDelay
	}
	span := int64(l.maxDelay - l.minDelay)
	return l.minDelay + time.Duration(l.rng.Int63n(span+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
