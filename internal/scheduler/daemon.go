package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/stats"
)

// defaultCronSpec fires at the top of every hour.
const defaultCronSpec = "0 * * * *"

// Runner executes one exploration run for a source.
// crawler.SourceCrawler satisfies it.
type Runner interface {
	Run(ctx context.Context, source *domain.Source) (stats.Snapshot, error)
}

// Daemon drives the hourly schedule: on each tick it runs every due
// source in the current bucket through the runner and records completed
// runs. Ticks that outlast the hour suppress the next tick rather than
// overlapping it.
type Daemon struct {
	scheduler *Scheduler
	runner    Runner
	logger    logger.Interface
	cron      *cron.Cron
	spec      string
	ctx       context.Context
	cancel    context.CancelFunc
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithCronSpec overrides the tick schedule. The spec uses the standard
// five-field cron format.
func WithCronSpec(spec string) DaemonOption {
	return func(d *Daemon) {
		if spec != "" {
			d.spec = spec
		}
	}
}

// NewDaemon creates a Daemon around the scheduler and runner.
func NewDaemon(sched *Scheduler, runner Runner, log logger.Interface, opts ...DaemonOption) *Daemon {
	if log == nil {
		log = logger.NewNoOp()
	}
	ctx, cancel := context.WithCancel(context.Background())
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	d := &Daemon{
		scheduler: sched,
		runner:    runner,
		logger:    log,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DefaultLogger)),
		),
		spec:   defaultCronSpec,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start registers the hourly tick and starts the cron loop.
func (d *Daemon) Start() error {
	if _, err := d.cron.AddFunc(d.spec, d.tick); err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}
	d.cron.Start()
	d.logger.Info("Scheduler daemon started", "spec", d.spec)
	return nil
}

// Stop cancels in-flight runs and waits for the cron loop to drain.
func (d *Daemon) Stop() {
	d.cancel()
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	d.logger.Info("Scheduler daemon stopped")
}

func (d *Daemon) tick() {
	d.RunBucket(d.ctx, time.Now())
}

// RunBucket runs every due source in now's bucket. A source counts as
// completed only when the runner returns without error; only completed
// runs are marked explored. Returns the completed and failed counts.
func (d *Daemon) RunBucket(ctx context.Context, now time.Time) (completed, failed int) {
	bucket := d.scheduler.CurrentBucket(now)
	due := d.scheduler.DueSources(now, bucket)
	if len(due) == 0 {
		d.logger.Debug("No sources due", "bucket", bucket)
		return 0, 0
	}

	d.logger.Info("Running due sources", "bucket", bucket, "count", len(due))
	for _, src := range due {
		if ctx.Err() != nil {
			d.logger.Warn("Bucket run interrupted",
				"bucket", bucket,
				"remaining", len(due)-completed-failed)
			return completed, failed
		}

		snap, err := d.runner.Run(ctx, src)
		if err != nil {
			failed++
			d.logger.Error("Source run failed", "source_id", src.ID, "error", err)
			continue
		}

		completed++
		if markErr := d.scheduler.MarkExplored(src.ID); markErr != nil {
			d.logger.Error("Failed to record exploration", "source_id", src.ID, "error", markErr)
		}
		d.logger.Info("Source run completed",
			"source_id", src.ID,
			"pages", snap.PagesFetched,
			"found", snap.ItemsFound,
			"upserts", snap.Upserts,
			"duplicates", snap.Duplicates,
			"errors", snap.Errors,
			"validation_failures", snap.ValidationFailures)
	}
	return completed, failed
}
