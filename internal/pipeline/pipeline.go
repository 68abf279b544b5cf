// Package pipeline runs the four-stage extraction over a fetched page:
// explore, analyze, extract, validate, strictly in that order. A stage
// failure aborts the item; the stages that did complete stay on the result
// so callers can count and log what was lost.
package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/go-playground/validator/v10"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// Pipeline orchestrates the stage sequence for single items. Safe for
// concurrent use; per-item state lives on the Result.
type Pipeline struct {
	intel     *intelligence.Client
	converter *converter.Converter
	validate  *validator.Validate
	config    Config
	logger    logger.Interface
	now       func() time.Time
}

// New creates a pipeline over the given intelligence client.
func New(intel *intelligence.Client, cfg Config, log logger.Interface) *Pipeline {
	return &Pipeline{
		intel:     intel,
		converter: newContentConverter(),
		validate:  validator.New(),
		config:    cfg.WithDefaults(),
		logger:    log.WithComponent("pipeline"),
		now:       time.Now,
	}
}

// stageFn advances the run by one stage, writing its output onto the
// result.
type stageFn struct {
	stage intelligence.Stage
	run   func(ctx context.Context, content string, res *Result) error
}

// Run executes all four stages for one page. The error return is nil even
// when a stage failed; inspect Result.FailedStage. Only context
// cancellation is returned as an error.
func (p *Pipeline) Run(ctx context.Context, url, html string) (*Result, error) {
	start := p.now()
	res := &Result{URL: url}
	content := p.prepareContent(url, html)

	stages := []stageFn{
		{intelligence.StageExplore, p.runExplore},
		{intelligence.StageAnalyze, p.runAnalyze},
		{intelligence.StageExtract, p.runExtract},
		{intelligence.StageValidate, p.runValidate},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.run(ctx, content, res); err != nil {
			res.FailedStage = s.stage
			res.Err = err
			res.Elapsed = p.now().Sub(start)
			p.logger.Warn("pipeline aborted",
				"url", url,
				"stage", string(s.stage),
				"error", err,
			)
			return res, nil
		}
	}

	res.Elapsed = p.now().Sub(start)
	p.logger.Debug("pipeline completed",
		"url", url,
		"quality_score", res.Validation.QualityScore,
		"is_valid", res.Validation.IsValid,
		"duration", res.Elapsed,
	)
	return res, nil
}

func (p *Pipeline) runExplore(ctx context.Context, content string, res *Result) error {
	out, err := p.intel.Explore(ctx, res.URL, content, 0)
	if err != nil {
		return err
	}
	res.Explore = out
	return nil
}

func (p *Pipeline) runAnalyze(ctx context.Context, content string, res *Result) error {
	out, err := p.intel.Analyze(ctx, res.URL, content)
	if err != nil {
		return err
	}
	res.Analyze = out
	return nil
}

func (p *Pipeline) runExtract(ctx context.Context, content string, res *Result) error {
	hint := extractionHint(res.Analyze)
	raw, err := p.intel.Extract(ctx, res.URL, content, hint)
	if err != nil {
		return err
	}

	vehicle := normalizeVehicle(raw, p.now())
	if p.config.AllowPlaceholders {
		p.fillPlaceholders(&vehicle, res.URL)
	}

	res.Vehicle = &vehicle
	res.Title = listingTitle(raw, vehicle)
	return nil
}

func (p *Pipeline) runValidate(ctx context.Context, _ string, res *Result) error {
	raw := rawFromVehicle(res.Vehicle, res.Title)
	out, err := p.intel.Validate(ctx, raw, "")
	if err != nil {
		return err
	}
	res.Validation = out
	return nil
}

// Listing assembles the persistable record from a completed run. The
// returned listing has passed structural validation; callers still apply
// the quality gate via PersistEligible.
func (p *Pipeline) Listing(res *Result, sourceID, rawSnapshot string) (*domain.Listing, error) {
	listing := &domain.Listing{
		SourceID:     sourceID,
		CanonicalURL: res.URL,
		Title:        res.Title,
		Vehicle:      *res.Vehicle,
		QualityScore: res.Validation.QualityScore,
		ScrapedAt:    p.now(),
	}
	if p.config.KeepSnapshots {
		listing.RawSnapshot = rawSnapshot
	}

	if err := p.validate.Struct(listing); err != nil {
		return nil, NewValidationError(res.URL, err)
	}
	return listing, nil
}

// QualityThreshold exposes the configured gate for callers that classify
// outcomes.
func (p *Pipeline) QualityThreshold() int {
	return p.config.QualityThreshold
}

// Explore runs only the first stage against an index page and returns its
// tagged candidates. Used when a caller wants discovery without committing
// to extraction, the batch orchestrator's explore mode.
func (p *Pipeline) Explore(ctx context.Context, url, html string, depth int) (*intelligence.ExploreResult, error) {
	content := p.prepareContent(url, html)
	return p.intel.Explore(ctx, url, content, depth)
}

// extractionHint condenses the analyze stage into a short prompt hint.
func extractionHint(analysis *intelligence.AnalyzeResult) string {
	if analysis == nil || analysis.Method == "" {
		return ""
	}
	hint := "method " + analysis.Method
	if sel, ok := analysis.Selectors["price"]; ok {
		hint += ", price at " + sel
	}
	return hint
}

// listingTitle prefers the page's own title, falling back to composing one
// from year, make, and model.
func listingTitle(raw *intelligence.RawVehicle, v domain.VehicleFields) string {
	if t := strings.TrimSpace(raw.Title); t != "" {
		return t
	}
	parts := make([]string, 0, 3)
	if v.Year != nil {
		parts = append(parts, strconv.Itoa(*v.Year))
	}
	if v.Make != "" {
		parts = append(parts, v.Make)
	}
	if v.Model != "" {
		parts = append(parts, v.Model)
	}
	return strings.Join(parts, " ")
}

// fillPlaceholders marks absent identity fields with an explicit unknown
// marker. Loudly logged: placeholder records are a deliberate opt-in for
// sources whose pages defeat extraction, never a silent default.
func (p *Pipeline) fillPlaceholders(v *domain.VehicleFields, url string) {
	filled := make([]string, 0, 3)
	if v.Make == "" {
		v.Make = "unknown"
		filled = append(filled, "make")
	}
	if v.Model == "" {
		v.Model = "unknown"
		filled = append(filled, "model")
	}
	if v.Condition == "" {
		v.Condition = "unknown"
		filled = append(filled, "condition")
	}
	if len(filled) > 0 {
		p.logger.Warn("placeholder fields filled",
			"url", url,
			"fields", filled,
		)
	}
}

// rawFromVehicle feeds the normalized fields back into the validate
// stage's input shape.
func rawFromVehicle(v *domain.VehicleFields, title string) *intelligence.RawVehicle {
	raw := &intelligence.RawVehicle{
		Make:        v.Make,
		Model:       v.Model,
		Trim:        v.Trim,
		Condition:   v.Condition,
		Features:    v.Features,
		Images:      v.PhotoURLs,
		Description: v.Description,
		Location:    v.Location,
		VIN:         v.VIN,
		ExternalID:  v.ExternalID,
		Title:       title,
	}
	if v.Price != nil {
		raw.Price = *v.Price
	}
	if v.Year != nil {
		raw.Year = *v.Year
	}
	if v.Mileage != nil {
		raw.Mileage = *v.Mileage
	}
	return raw
}
