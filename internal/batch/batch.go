// Package batch drives the extraction pipeline over a prioritized list of
// listing URLs: fixed-size batches, bounded in-batch concurrency, and
// per-item retries with linear backoff. Item failures are reported in the
// aggregate result, never raised.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/pipeline"
	"github.com/carcrawl/carcrawl/internal/storage"
	"github.com/carcrawl/carcrawl/internal/worker"
)

const (
	// DefaultBatchSize is how many URLs one batch holds.
	DefaultBatchSize = 5
	// DefaultConcurrency bounds in-flight items within a batch.
	DefaultConcurrency = 3
	// DefaultRetryAttempts is the per-item attempt budget.
	DefaultRetryAttempts = 3
	// DefaultRetryBackoff is multiplied by the attempt number between retries.
	DefaultRetryBackoff = 1000 * time.Millisecond
	// DefaultBatchDelay separates consecutive batches.
	DefaultBatchDelay = 2 * time.Second
)

// Config tunes the orchestrator.
type Config struct {
	BatchSize     int           `mapstructure:"batch_size"`
	Concurrency   int           `mapstructure:"concurrency"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	KeepSnapshots bool          `mapstructure:"keep_snapshots"`
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	return c
}

// Item outcome classes.
const (
	OutcomeSaved   = "saved"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// ItemResult is the terminal outcome of one URL. Error is set only for
// the error class; Reason explains skips.
type ItemResult struct {
	URL          string `json:"url"`
	Success      bool   `json:"success"`
	Outcome      string `json:"outcome"`
	SavedID      string `json:"saved_id,omitempty"`
	QualityScore int    `json:"quality_score,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
	Attempts     int    `json:"attempts"`
}

// Result aggregates a whole ProcessBatch call.
type Result struct {
	TotalProcessed   int          `json:"total_processed"`
	TotalSaved       int          `json:"total_saved"`
	TotalSkipped     int          `json:"total_skipped"`
	TotalErrors      int          `json:"total_errors"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
	Items            []ItemResult `json:"items"`
}

// Orchestrator processes URL lists through fetch, extraction, and persistence.
type Orchestrator struct {
	fetcher  fetcher.Fetcher
	pipeline *pipeline.Pipeline
	gateway  storage.Gateway
	config   Config
	logger   logger.Interface
}

// New creates an Orchestrator.
func New(
	f fetcher.Fetcher,
	p *pipeline.Pipeline,
	gateway storage.Gateway,
	cfg Config,
	log logger.Interface,
) *Orchestrator {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Orchestrator{
		fetcher:  f,
		pipeline: p,
		gateway:  gateway,
		config:   cfg.WithDefaults(),
		logger:   log,
	}
}

// ProcessBatch runs every URL to a terminal outcome and returns the
// aggregate. Per-item failures are folded into the result; the error
// return is reserved for configuration problems.
func (o *Orchestrator) ProcessBatch(ctx context.Context, source *domain.Source, urls []string) (*Result, error) {
	if source == nil || source.ID == "" {
		return nil, domain.NewConfigurationError("batch requires a source with an id")
	}

	started := time.Now()
	result := &Result{Items: make([]ItemResult, len(urls))}
	if len(urls) == 0 {
		return result, nil
	}
	for i, itemURL := range urls {
		result.Items[i] = ItemResult{URL: itemURL, Outcome: OutcomeError, Error: "not processed"}
	}

	o.logger.Info("Batch run starting",
		"source", source.ID,
		"urls", len(urls),
		"batch_size", o.config.BatchSize,
		"concurrency", o.config.Concurrency,
	)

	sem := worker.NewSemaphore(o.config.Concurrency)
	defer sem.Close()

	for start := 0; start < len(urls); start += o.config.BatchSize {
		end := start + o.config.BatchSize
		if end > len(urls) {
			end = len(urls)
		}

		o.runBatch(ctx, sem, source, urls[start:end], result.Items[start:end])

		if end < len(urls) && ctx.Err() == nil {
			if err := sleepContext(ctx, o.config.BatchDelay); err != nil {
				break
			}
		}
	}

	for i := range result.Items {
		result.TotalProcessed++
		switch result.Items[i].Outcome {
		case OutcomeSaved:
			result.TotalSaved++
		case OutcomeSkipped:
			result.TotalSkipped++
		default:
			result.TotalErrors++
		}
	}
	result.ProcessingTimeMs = time.Since(started).Milliseconds()

	o.logger.Info("Batch run finished",
		"source", source.ID,
		"processed", result.TotalProcessed,
		"saved", result.TotalSaved,
		"skipped", result.TotalSkipped,
		"errors", result.TotalErrors,
		"elapsed_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

// runBatch processes one batch's URLs concurrently. Each goroutine owns
// its slot in out, so no aggregation lock is needed.
func (o *Orchestrator) runBatch(
	ctx context.Context,
	sem *worker.Semaphore,
	source *domain.Source,
	urls []string,
	out []ItemResult,
) {
	var wg sync.WaitGroup
	for i, itemURL := range urls {
		wg.Add(1)
		go func(slot int, u string) {
			defer wg.Done()
			err := sem.Do(ctx, func(ctx context.Context) error {
				out[slot] = o.processItem(ctx, source, u)
				return nil
			})
			if err != nil {
				out[slot] = ItemResult{URL: u, Outcome: OutcomeError, Error: err.Error()}
			}
		}(i, itemURL)
	}
	wg.Wait()
}

// processItem drives one URL through its attempt budget. Fetch, stage, and
// persistence errors are retried with backoff; a skip is terminal on the
// first attempt that reaches it.
func (o *Orchestrator) processItem(ctx context.Context, source *domain.Source, itemURL string) ItemResult {
	result := ItemResult{URL: itemURL, Outcome: OutcomeError}

	for attempt := 1; attempt <= o.config.RetryAttempts; attempt++ {
		result.Attempts = attempt

		outcome, err := o.attemptItem(ctx, source, itemURL)
		if err == nil {
			result.Success = true
			result.Outcome = outcome.class
			result.SavedID = outcome.savedID
			result.QualityScore = outcome.qualityScore
			result.Reason = outcome.reason
			result.Error = ""
			return result
		}

		result.Success = false
		result.Outcome = OutcomeError
		result.Error = err.Error()

		if ctx.Err() != nil || attempt == o.config.RetryAttempts {
			break
		}

		backoff := o.config.RetryBackoff * time.Duration(attempt)
		o.logger.Debug("Retrying item",
			"source", source.ID,
			"url", itemURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if sleepErr := sleepContext(ctx, backoff); sleepErr != nil {
			break
		}
	}

	o.logger.Warn("Item exhausted retry budget",
		"source", source.ID,
		"url", itemURL,
		"attempts", result.Attempts,
		"error", result.Error,
	)
	return result
}

// itemOutcome is a terminal non-error outcome of a single attempt.
type itemOutcome struct {
	class        string
	savedID      string
	qualityScore int
	reason       string
}

func (o *Orchestrator) attemptItem(ctx context.Context, source *domain.Source, itemURL string) (itemOutcome, error) {
	page, err := o.fetcher.Fetch(ctx, itemURL)
	if err != nil {
		return itemOutcome{}, fmt.Errorf("fetch failed: %w", err)
	}
	if !page.Success() {
		return itemOutcome{}, fmt.Errorf("fetch returned status %d", page.StatusCode)
	}

	res, err := o.pipeline.Run(ctx, itemURL, page.HTML())
	if err != nil {
		return itemOutcome{}, err
	}
	if !res.OK() {
		return itemOutcome{}, fmt.Errorf("stage %s failed: %w", res.FailedStage, res.Err)
	}

	if !res.PersistEligible(o.pipeline.QualityThreshold()) {
		return itemOutcome{
			class:        OutcomeSkipped,
			qualityScore: res.Validation.QualityScore,
			reason:       "below quality threshold",
		}, nil
	}

	snapshot := ""
	if o.config.KeepSnapshots {
		snapshot = page.HTML()
	}
	listing, err := o.pipeline.Listing(res, source.ID, snapshot)
	if err != nil {
		return itemOutcome{
			class:        OutcomeSkipped,
			qualityScore: res.Validation.QualityScore,
			reason:       "schema validation failed: " + err.Error(),
		}, nil
	}

	upsert, err := o.gateway.Upsert(ctx, listing, listing.DedupKey(source.DedupKey))
	if err != nil {
		return itemOutcome{}, fmt.Errorf("upsert failed: %w", err)
	}

	if upsert == domain.OutcomeDuplicate {
		return itemOutcome{
			class:        OutcomeSkipped,
			savedID:      listing.ID,
			qualityScore: listing.QualityScore,
			reason:       "duplicate",
		}, nil
	}
	return itemOutcome{
		class:        OutcomeSaved,
		savedID:      listing.ID,
		qualityScore: listing.QualityScore,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
