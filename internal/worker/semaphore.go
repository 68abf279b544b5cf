// Package worker provides bounded-concurrency primitives for pipeline work.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrClosed is returned by Acquire after the semaphore has been closed.
var ErrClosed = errors.New("semaphore closed")

// Semaphore bounds concurrent work to a fixed number of permits. Waiters
// acquire in FIFO order (channel send queueing), and permits never leak: Do
// releases on every path including panics.
//
// The semaphore imposes no timeout of its own; callers bound waiting with
// their context.
type Semaphore struct {
	permits chan struct{}
	closed  chan struct{}
	active  atomic.Int32
}

// NewSemaphore creates a semaphore with n permits. n < 1 is a programmer
// error and panics.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		panic(fmt.Sprintf("worker: semaphore size must be positive, got %d", n))
	}
	return &Semaphore{
		permits: make(chan struct{}, n),
		closed:  make(chan struct{}),
	}
}

// Acquire blocks until a permit is available, the context is canceled, or
// the semaphore is closed.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.permits <- struct{}{}:
		s.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrClosed
	}
}

// TryAcquire takes a permit without blocking. Returns false when none is
// available.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.permits <- struct{}{}:
		s.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a permit. Releasing more than was acquired is a
// programmer error and panics.
func (s *Semaphore) Release() {
	select {
	case <-s.permits:
		s.active.Add(-1)
	default:
		panic("worker: semaphore released more times than acquired")
	}
}

// Do runs fn under a permit. The permit is released on every return path,
// including a panicking fn; the panic is converted to an error so one bad
// task cannot take down the loop that submitted it.
func (s *Semaphore) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if acquireErr := s.Acquire(ctx); acquireErr != nil {
		return acquireErr
	}
	defer s.Release()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Close wakes all blocked acquirers with ErrClosed. Already-held permits
// stay valid until released.
func (s *Semaphore) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

// Size returns the permit count.
func (s *Semaphore) Size() int { return cap(s.permits) }

// Active returns the number of permits currently held.
func (s *Semaphore) Active() int { return int(s.active.Load()) }
