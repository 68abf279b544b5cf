// Package sources holds the registry of configured dealership sites.
// Sources are declared in a YAML file; the registry validates them on
// load, hands out snapshot copies to callers, and carries runtime state
// (exploration marks, bucket assignments) across file reloads.
package sources

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// ErrNoSources indicates the configuration file held no usable sources.
var ErrNoSources = errors.New("no sources found in configuration")

// Problem describes one rejected source entry.
type Problem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Registry is the in-memory view of the sources file. All mutation goes
// through registry methods under its lock; Sources returns copies, so a
// concurrent reload never tears a caller's view.
type Registry struct {
	mu       sync.RWMutex
	path     string
	order    []string
	byID     map[string]*domain.Source
	problems []Problem
	logger   logger.Interface
}

// Load reads and validates the sources file at path.
func Load(path string, log logger.Interface) (*Registry, error) {
	if log == nil {
		log = logger.NewNoOp()
	}
	r := &Registry{
		path:   path,
		byID:   make(map[string]*domain.Source),
		logger: log,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the file. On success the source set is swapped and
// runtime state is carried over by ID; on failure the previous set stays
// in place and the error is returned.
func (r *Registry) Reload() error {
	loaded, problems, err := loadFile(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[string]*domain.Source, len(loaded))
	order := make([]string, 0, len(loaded))
	for _, src := range loaded {
		if prev, ok := r.byID[src.ID]; ok {
			src.LastExploredAt = prev.LastExploredAt
			if src.ScraperOrder == 0 {
				src.ScraperOrder = prev.ScraperOrder
			}
		}
		byID[src.ID] = src
		order = append(order, src.ID)
	}

	r.byID = byID
	r.order = order
	r.problems = problems

	for _, p := range problems {
		r.logger.Warn("Rejected source entry", "source_id", p.ID, "reason", p.Reason)
	}
	r.logger.Info("Sources loaded", "path", r.path, "count", len(order), "rejected", len(problems))
	return nil
}

// Sources returns a snapshot of all sources in file order.
func (r *Registry) Sources() []*domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copySource(r.byID[id]))
	}
	return out
}

// Get returns a snapshot of one source. Lookup is exact first, then
// case-insensitive.
func (r *Registry) Get(id string) (*domain.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if src, ok := r.byID[id]; ok {
		return copySource(src), nil
	}
	for storedID, src := range r.byID {
		if strings.EqualFold(storedID, id) {
			return copySource(src), nil
		}
	}
	return nil, fmt.Errorf("source not found: %s. Available sources: %v", id, r.order)
}

// MarkExplored moves the source's last-explored time forward to at.
// Timestamps older than the recorded one are ignored, so the mark never
// regresses.
func (r *Registry) MarkExplored(sourceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[sourceID]
	if !ok {
		return fmt.Errorf("source not found: %s", sourceID)
	}
	if src.LastExploredAt != nil && at.Before(*src.LastExploredAt) {
		return nil
	}
	src.LastExploredAt = &at
	return nil
}

// AssignOrder records the source's scheduling bucket.
func (r *Registry) AssignOrder(sourceID string, order int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.byID[sourceID]
	if !ok {
		return fmt.Errorf("source not found: %s", sourceID)
	}
	src.ScraperOrder = order
	return nil
}

// Problems returns the entries rejected by the last load.
func (r *Registry) Problems() []Problem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Problem, len(r.problems))
	copy(out, r.problems)
	return out
}

// Len returns the number of loaded sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Path returns the configuration file path.
func (r *Registry) Path() string { return r.path }

func copySource(src *domain.Source) *domain.Source {
	out := *src
	out.SeedURLs = append(domain.StringSlice(nil), src.SeedURLs...)
	out.AllowPatterns = append(domain.StringSlice(nil), src.AllowPatterns...)
	out.DenyPatterns = append(domain.StringSlice(nil), src.DenyPatterns...)
	if src.LastExploredAt != nil {
		at := *src.LastExploredAt
		out.LastExploredAt = &at
	}
	return &out
}
