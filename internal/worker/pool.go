package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carcrawl/carcrawl/internal/logger"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing tasks.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining

	// poolPercentageMultiplier converts ratio to percentage.
	poolPercentageMultiplier = 100
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task is a unit of work executed under the pool's concurrency bound.
type Task func(ctx context.Context) error

// Pool runs tasks under a shared Semaphore and tracks outcome counters.
// Batch orchestration submits per-item work here; the scheduler daemon
// submits whole source explorations.
type Pool struct {
	sem    *Semaphore
	logger logger.Interface
	state  atomic.Int32
	wg     sync.WaitGroup
	stopCh chan struct{}

	drainTimeout time.Duration

	// Stats
	totalTasks     atomic.Int64
	totalSucceeded atomic.Int64
	totalFailed    atomic.Int64
}

// NewPool creates a worker pool with the given concurrency bound.
func NewPool(cfg Config, log logger.Interface) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	p := &Pool{
		sem:          NewSemaphore(cfg.PoolSize),
		logger:       log,
		stopCh:       make(chan struct{}),
		drainTimeout: cfg.DrainTimeout,
	}
	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started",
		"pool_size", p.sem.Size(),
	)

	return nil
}

// Stop gracefully stops the worker pool, waiting for active tasks up to the
// drain timeout.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop canceled before drain finished")
	case <-time.After(p.drainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit runs the task asynchronously once a permit is free. Blocks while
// the pool is saturated. The task's error is absorbed into pool stats; use
// SubmitWait when the caller needs the result.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	select {
	case p.sem.permits <- struct{}{}:
		p.sem.active.Add(1)
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)

	go func() {
		defer func() {
			p.sem.Release()
			p.wg.Done()
		}()

		p.runTask(ctx, task)
	}()

	return nil
}

// SubmitWait runs the task under a permit and returns its error to the
// caller. Panics inside the task surface as errors, never crash the pool.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	p.wg.Add(1)
	defer p.wg.Done()

	err := p.sem.Do(ctx, task)
	p.recordOutcome(err)
	return err
}

// runTask executes a task, converting panics to errors and recording the
// outcome.
func (p *Pool) runTask(ctx context.Context, task Task) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
				p.logger.Error("task panicked", "panic", r)
			}
		}()
		err = task(ctx)
	}()

	p.recordOutcome(err)
}

func (p *Pool) recordOutcome(err error) {
	p.totalTasks.Add(1)
	if err != nil {
		p.totalFailed.Add(1)
	} else {
		p.totalSucceeded.Add(1)
	}
}

// Wait blocks until all submitted tasks have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.State() == PoolStateRunning
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.sem.Size()
}

// BusyCount returns the number of permits currently held.
func (p *Pool) BusyCount() int {
	return p.sem.Active()
}

// IdleCount returns the number of free permits.
func (p *Pool) IdleCount() int {
	return p.Size() - p.BusyCount()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		State:          p.State(),
		PoolSize:       p.Size(),
		BusyWorkers:    p.BusyCount(),
		IdleWorkers:    p.IdleCount(),
		TasksProcessed: p.totalTasks.Load(),
		TasksSucceeded: p.totalSucceeded.Load(),
		TasksFailed:    p.totalFailed.Load(),
	}
}

// PoolStats holds statistics for the pool.
type PoolStats struct {
	State          PoolState
	PoolSize       int
	BusyWorkers    int
	IdleWorkers    int
	TasksProcessed int64
	TasksSucceeded int64
	TasksFailed    int64
}

// SuccessRate returns the success rate as a percentage.
func (s PoolStats) SuccessRate() float64 {
	if s.TasksProcessed == 0 {
		return 0
	}
	return float64(s.TasksSucceeded) / float64(s.TasksProcessed) * poolPercentageMultiplier
}

// Utilization returns the pool utilization as a percentage.
func (s PoolStats) Utilization() float64 {
	if s.PoolSize == 0 {
		return 0
	}
	return float64(s.BusyWorkers) / float64(s.PoolSize) * poolPercentageMultiplier
}
