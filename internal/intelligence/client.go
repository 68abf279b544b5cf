// Package intelligence wraps the Content-Intelligence providers behind
// typed stage calls. Each stage sends one structured-output completion and
// decodes the reply; output that does not decode is a StageError, never a
// silently substituted value.
package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/time/rate"

	"github.com/carcrawl/carcrawl/internal/logger"
)

// Client exposes the four pipeline stages over a shared provider. Calls
// are throttled by a token bucket so concurrent pipeline items cannot
// exhaust the provider's rate allowance.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	config   Config
	logger   logger.Interface
}

// NewClient builds a stage client over the configured provider.
func NewClient(cfg Config, log logger.Interface) (*Client, error) {
	cfg = cfg.WithDefaults()

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("intelligence: %w", err)
	}

	return &Client{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		config:   cfg,
		logger:   log.WithComponent("intelligence"),
	}, nil
}

// NewClientWithProvider builds a stage client over an explicit provider,
// bypassing the factory. Tests inject scripted providers this way.
func NewClientWithProvider(cfg Config, provider Provider, log logger.Interface) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		config:   cfg,
		logger:   log.WithComponent("intelligence"),
	}
}

// Provider returns the backing provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Explore classifies a page and surfaces candidate listing URLs.
func (c *Client) Explore(ctx context.Context, baseURL, content string, depth int) (*ExploreResult, error) {
	var out ExploreResult
	err := c.call(ctx, StageExplore, Request{
		Name:   "explore_page",
		Prompt: explorePrompt(baseURL, content, depth),
		Schema: exploreSchema(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze proposes an extraction strategy for a listing page.
func (c *Client) Analyze(ctx context.Context, url, content string) (*AnalyzeResult, error) {
	var out AnalyzeResult
	err := c.call(ctx, StageAnalyze, Request{
		Name:   "analyze_page",
		Prompt: analyzePrompt(url, content),
		Schema: analyzeSchema(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Extract pulls the raw vehicle fields out of a listing page. Values come
// back as displayed on the page; normalization happens downstream.
func (c *Client) Extract(ctx context.Context, url, content, hint string) (*RawVehicle, error) {
	var out RawVehicle
	err := c.call(ctx, StageExtract, Request{
		Name:   "extract_vehicle",
		Prompt: extractPrompt(url, content, hint),
		Schema: extractSchema(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// validateWire matches the validate stage's JSON. The score travels as a
// number because models round-trip integers through floats.
type validateWire struct {
	IsValid         bool     `json:"isValid"`
	Completeness    float64  `json:"completeness"`
	Precision       float64  `json:"precision"`
	Consistency     float64  `json:"consistency"`
	QualityScore    float64  `json:"qualityScore"`
	Issues          []string `json:"issues"`
	LikelyDuplicate bool     `json:"likelyDuplicate"`
	Recommendations []string `json:"recommendations"`
}

// Validate scores an extracted vehicle. The quality score is rounded to an
// integer and clamped to [0,100].
func (c *Client) Validate(ctx context.Context, vehicle *RawVehicle, pageContext string) (*ValidateResult, error) {
	vehicleJSON, err := json.Marshal(vehicle)
	if err != nil {
		return nil, fmt.Errorf("intelligence: marshal vehicle: %w", err)
	}

	var wire validateWire
	err = c.call(ctx, StageValidate, Request{
		Name:   "validate_vehicle",
		Prompt: validatePrompt(string(vehicleJSON), pageContext),
		Schema: validateSchema(),
	}, &wire)
	if err != nil {
		return nil, err
	}

	score := int(math.Round(wire.QualityScore))
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	return &ValidateResult{
		IsValid:         wire.IsValid,
		Completeness:    clampRatio(wire.Completeness),
		Precision:       clampRatio(wire.Precision),
		Consistency:     clampRatio(wire.Consistency),
		QualityScore:    score,
		Issues:          wire.Issues,
		LikelyDuplicate: wire.LikelyDuplicate,
		Recommendations: wire.Recommendations,
	}, nil
}

// call runs one throttled, timeout-bounded completion and decodes the
// reply into out.
func (c *Client) call(ctx context.Context, stage Stage, req Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("intelligence: rate limit wait: %w", err)
	}

	req.System = systemPrompt
	req.MaxTokens = c.config.MaxTokens
	req.Temperature = c.config.Temperature

	callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.provider.Complete(callCtx, req)
	if err != nil {
		return NewStageError(stage, "", err)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return NewStageError(stage, "", ErrEmptyResponse)
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		c.logger.Warn("stage output did not decode",
			"stage", string(stage),
			"model", resp.Model,
			"error", err,
		)
		return NewStageError(stage, content, err)
	}

	c.logger.Debug("stage completed",
		"stage", string(stage),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration", resp.Elapsed,
	)
	return nil
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
