// Package scheduler decides when each source is re-explored. Sources are
// spread across 24 hourly buckets; a source is due when its frequency tier
// window has elapsed since the last completed exploration.
package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// Buckets is the number of hourly scheduling buckets in a day.
const Buckets = 24

// Provider supplies snapshots of the current source set and applies the
// two runtime mutations scheduling needs. The registry in internal/sources
// implements it; snapshots keep tick-time decisions consistent while the
// registry reloads underneath.
type Provider interface {
	Sources() []*domain.Source
	AssignOrder(sourceID string, order int) error
	MarkExplored(sourceID string, at time.Time) error
}

// Scheduler assigns sources to buckets and selects the ones due for a run.
type Scheduler struct {
	provider Provider
	logger   logger.Interface
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Scheduler over the given source provider.
func New(provider Provider, log logger.Interface, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.NewNoOp()
	}
	s := &Scheduler{
		provider: provider,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignBuckets walks the enabled sources in provider order and assigns
// each a scraper order of index mod 24 plus one. With 48 enabled sources
// every bucket holds exactly two. Disabled sources keep whatever order
// they already have. Returns the sources that were assigned.
func (s *Scheduler) AssignBuckets() []*domain.Source {
	var assigned []*domain.Source
	for _, src := range s.provider.Sources() {
		if !src.Enabled {
			continue
		}
		order := len(assigned)%Buckets + 1
		if err := s.provider.AssignOrder(src.ID, order); err != nil {
			s.logger.Warn("Failed to assign bucket", "source_id", src.ID, "error", err)
			continue
		}
		src.ScraperOrder = order
		assigned = append(assigned, src)
	}
	s.logger.Debug("Assigned scheduling buckets", "sources", len(assigned))
	return assigned
}

// IsDue reports whether the source should be explored at now. A source
// with no recorded exploration is always due; otherwise it is due once
// strictly more than its tier window has elapsed.
func (s *Scheduler) IsDue(src *domain.Source, now time.Time) bool {
	if src.LastExploredAt == nil {
		return true
	}
	return now.Sub(*src.LastExploredAt) > src.Frequency.Window()
}

// CurrentBucket maps a wall-clock time to its bucket, 1 through 24.
func (s *Scheduler) CurrentBucket(now time.Time) int {
	return now.Hour() + 1
}

// DueSources returns the enabled sources due at now, most urgent first:
// higher frequency tier, then lower scraper order, then longer time since
// the last exploration. A bucket of 0 selects across all buckets;
// 1 through 24 restricts to sources assigned that bucket.
func (s *Scheduler) DueSources(now time.Time, bucket int) []*domain.Source {
	var due []*domain.Source
	for _, src := range s.provider.Sources() {
		if !src.Enabled {
			continue
		}
		if bucket != 0 && src.ScraperOrder != bucket {
			continue
		}
		if !s.IsDue(src, now) {
			continue
		}
		due = append(due, src)
	}

	sort.SliceStable(due, func(i, j int) bool {
		pi, pj := due[i].Frequency.Priority(), due[j].Frequency.Priority()
		if pi != pj {
			return pi > pj
		}
		if due[i].ScraperOrder != due[j].ScraperOrder {
			return due[i].ScraperOrder < due[j].ScraperOrder
		}
		return due[i].Staleness(now) > due[j].Staleness(now)
	})

	return due
}

// MarkExplored records that a run for the source completed. Callers invoke
// it exactly once per completed run, whether or not individual items
// inside the run failed.
func (s *Scheduler) MarkExplored(sourceID string) error {
	if err := s.provider.MarkExplored(sourceID, s.now()); err != nil {
		return fmt.Errorf("failed to mark source explored: %w", err)
	}
	s.logger.Debug("Marked source explored", "source_id", sourceID)
	return nil
}
