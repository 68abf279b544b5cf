package crawler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/crawler"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/stats"
)

type fakeLedger struct {
	created   []*domain.CrawlRun
	finalized []*domain.CrawlRun
	createErr error
}

func (l *fakeLedger) Create(ctx context.Context, run *domain.CrawlRun) error {
	if l.createErr != nil {
		return l.createErr
	}
	run.ID = "run-1"
	l.created = append(l.created, run)
	return nil
}

func (l *fakeLedger) Finalize(ctx context.Context, run *domain.CrawlRun) error {
	l.finalized = append(l.finalized, run)
	return nil
}

type fakeRunner struct {
	snapshot stats.Snapshot
	err      error
}

func (r *fakeRunner) Run(ctx context.Context, source *domain.Source) (stats.Snapshot, error) {
	return r.snapshot, r.err
}

func TestRecordedRunner_CompletedRun(t *testing.T) {
	ledger := &fakeLedger{}
	runner := &fakeRunner{
		snapshot: stats.Snapshot{
			PagesFetched: 4,
			ItemsFound:   9,
			Upserts:      7,
			Duplicates:   1,
			Errors:       1,
		},
	}

	rec := crawler.NewRecordedRunner(runner, ledger, logger.NewNoOp())
	src := &domain.Source{
		ID:       "autotrader",
		SeedURLs: domain.StringSlice{"https://example.com/inventory"},
	}

	snapshot, err := rec.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 7, snapshot.Upserts)

	require.Len(t, ledger.created, 1)
	assert.Equal(t, "autotrader", ledger.created[0].SourceID)
	assert.Equal(t, "https://example.com/inventory", ledger.created[0].SeedURL)

	require.Len(t, ledger.finalized, 1)
	final := ledger.finalized[0]
	assert.Equal(t, domain.RunStatusCompleted, final.Status)
	assert.Equal(t, 4, final.PagesFetched)
	assert.Equal(t, 7, final.Upserts)
	assert.Equal(t, 1, final.Errors)
	assert.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.ErrorMessage)
}

func TestRecordedRunner_FailedRun(t *testing.T) {
	ledger := &fakeLedger{}
	runner := &fakeRunner{err: domain.NewConfigurationError("source has no seed urls")}

	rec := crawler.NewRecordedRunner(runner, ledger, logger.NewNoOp())

	_, err := rec.Run(context.Background(), &domain.Source{ID: "bad"})
	require.Error(t, err)

	require.Len(t, ledger.finalized, 1)
	final := ledger.finalized[0]
	assert.Equal(t, domain.RunStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "seed urls")
}

func TestRecordedRunner_LedgerFailureDoesNotFailRun(t *testing.T) {
	ledger := &fakeLedger{createErr: errors.New("db down")}
	runner := &fakeRunner{snapshot: stats.Snapshot{Upserts: 2}}

	rec := crawler.NewRecordedRunner(runner, ledger, logger.NewNoOp())

	snapshot, err := rec.Run(context.Background(), &domain.Source{ID: "autotrader"})
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Upserts)

	// The end state is still written even though the start row failed.
	require.Len(t, ledger.finalized, 1)
}

func TestRecordedRunner_CancelledRunStillFinalized(t *testing.T) {
	ledger := &fakeLedger{}
	runner := &fakeRunner{err: context.Canceled}

	rec := crawler.NewRecordedRunner(runner, ledger, logger.NewNoOp())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rec.Run(ctx, &domain.Source{ID: "autotrader"})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, ledger.finalized, 1)
	assert.Equal(t, domain.RunStatusFailed, ledger.finalized[0].Status)
}
