package crawler

import (
	"context"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/stats"
)

// RunLedger persists run lifecycle rows.
type RunLedger interface {
	Create(ctx context.Context, run *domain.CrawlRun) error
	Finalize(ctx context.Context, run *domain.CrawlRun) error
}

// Runner is the exploration entry point RecordedRunner wraps.
type Runner interface {
	Run(ctx context.Context, source *domain.Source) (stats.Snapshot, error)
}

// RecordedRunner wraps a crawler so every exploration leaves a run row:
// created when the run starts, finalized with the run's counters when it
// ends. Ledger failures are logged and never fail the run itself.
type RecordedRunner struct {
	runner Runner
	ledger RunLedger
	logger logger.Interface
	now    func() time.Time
}

// NewRecordedRunner creates a run-recording wrapper around the runner.
func NewRecordedRunner(r Runner, ledger RunLedger, log logger.Interface) *RecordedRunner {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &RecordedRunner{runner: r, ledger: ledger, logger: log, now: time.Now}
}

// Run explores the source and records the run outcome. A run aborted by a
// configuration error is finalized as failed with the error message; item
// failures inside a run still count as a completed run.
func (r *RecordedRunner) Run(ctx context.Context, source *domain.Source) (stats.Snapshot, error) {
	run := &domain.CrawlRun{
		SourceID:  source.ID,
		Status:    domain.RunStatusRunning,
		StartedAt: r.now(),
	}
	if len(source.SeedURLs) > 0 {
		run.SeedURL = source.SeedURLs[0]
	}

	if err := r.ledger.Create(ctx, run); err != nil {
		r.logger.Warn("Failed to record run start", "source", source.ID, "error", err)
	}

	snapshot, runErr := r.runner.Run(ctx, source)

	run.PagesFetched = snapshot.PagesFetched
	run.ItemsFound = snapshot.ItemsFound
	run.Upserts = snapshot.Upserts
	run.Duplicates = snapshot.Duplicates
	run.Errors = snapshot.Errors
	run.ValidationFailures = snapshot.ValidationFailures

	status := domain.RunStatusCompleted
	if runErr != nil {
		status = domain.RunStatusFailed
		msg := runErr.Error()
		run.ErrorMessage = &msg
	}
	run.Finalize(r.now(), status)

	// The end state must be written even when the run was cancelled.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.ledger.Finalize(finalizeCtx, run); err != nil {
		r.logger.Warn("Failed to record run end", "source", source.ID, "run", run.ID, "error", err)
	}

	return snapshot, runErr
}
