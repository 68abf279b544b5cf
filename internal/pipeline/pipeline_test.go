package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/pipeline"
)

const (
	exploreOK  = `{"siteSummary":"inventory","confidence":0.9,"candidates":[{"url":"https://cars.example/inventory/2","priority":"high"}],"paginationUrls":[]}`
	analyzeOK  = `{"method":"css","confidence":0.8,"selectors":{"price":".price"}}`
	extractOK  = `{"make":"Honda","model":"Civic","trim":"EX","year":2019,"price":"$24,999","mileage":"31,500 km","title":"2019 Honda Civic EX","vin":"2HGFC2F59KH000000"}`
	validateOK = `{"isValid":true,"completeness":0.9,"precision":0.95,"consistency":0.9,"qualityScore":88,"issues":[],"likelyDuplicate":false}`
)

func newPipeline(t *testing.T, stub *intelligence.Stub, cfg pipeline.Config) *pipeline.Pipeline {
	t.Helper()
	clientCfg := intelligence.Config{Provider: intelligence.ProviderStub, RateLimit: 1000, RateBurst: 1000}
	client := intelligence.NewClientWithProvider(clientCfg, stub, logger.NewNoOp())
	return pipeline.New(client, cfg, logger.NewNoOp())
}

func scriptedStub(explore, analyze, extract, validate string) *intelligence.Stub {
	stub := intelligence.NewStub()
	if explore != "" {
		stub.Script("explore_page", explore)
	}
	if analyze != "" {
		stub.Script("analyze_page", analyze)
	}
	if extract != "" {
		stub.Script("extract_vehicle", extract)
	}
	if validate != "" {
		stub.Script("validate_vehicle", validate)
	}
	return stub
}

func TestRunAllStagesSucceed(t *testing.T) {
	stub := scriptedStub(exploreOK, analyzeOK, extractOK, validateOK)
	p := newPipeline(t, stub, pipeline.Config{})

	res, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html>listing</html>")
	require.NoError(t, err)
	require.True(t, res.OK())

	assert.NotNil(t, res.Explore)
	assert.NotNil(t, res.Analyze)
	require.NotNil(t, res.Vehicle)
	require.NotNil(t, res.Validation)

	assert.Equal(t, "Honda", res.Vehicle.Make)
	require.NotNil(t, res.Vehicle.Price)
	assert.Equal(t, 24999.0, *res.Vehicle.Price)
	assert.Equal(t, "2019 Honda Civic EX", res.Title)
	assert.Equal(t, 88, res.Validation.QualityScore)
	assert.Greater(t, res.Elapsed.Nanoseconds(), int64(-1))
}

func TestRunStagesExecuteInOrder(t *testing.T) {
	stub := scriptedStub(exploreOK, analyzeOK, extractOK, validateOK)
	p := newPipeline(t, stub, pipeline.Config{})

	_, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html></html>")
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "explore_page", calls[0].Name)
	assert.Equal(t, "analyze_page", calls[1].Name)
	assert.Equal(t, "extract_vehicle", calls[2].Name)
	assert.Equal(t, "validate_vehicle", calls[3].Name)
}

func TestRunAbortsOnMalformedStage(t *testing.T) {
	tests := []struct {
		name      string
		stub      *intelligence.Stub
		failStage intelligence.Stage
		calls     int
	}{
		{
			name:      "explore garbage",
			stub:      scriptedStub(`{"truncated`, "", "", ""),
			failStage: intelligence.StageExplore,
			calls:     1,
		},
		{
			name:      "analyze garbage",
			stub:      scriptedStub(exploreOK, `not json at all`, "", ""),
			failStage: intelligence.StageAnalyze,
			calls:     2,
		},
		{
			name:      "extract garbage",
			stub:      scriptedStub(exploreOK, analyzeOK, `{"make": 7}`, ""),
			failStage: intelligence.StageExtract,
			calls:     3,
		},
		{
			name:      "validate garbage",
			stub:      scriptedStub(exploreOK, analyzeOK, extractOK, `[]`),
			failStage: intelligence.StageValidate,
			calls:     4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.stub, pipeline.Config{})

			res, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html></html>")
			require.NoError(t, err, "stage failures are results, not errors")
			require.NotNil(t, res)

			assert.False(t, res.OK())
			assert.Equal(t, tt.failStage, res.FailedStage)
			require.Error(t, res.Err)
			_, isStage := intelligence.IsStageError(res.Err)
			assert.True(t, isStage)

			assert.Len(t, tt.stub.Calls(), tt.calls, "later stages must not run")
			assert.False(t, res.PersistEligible(0), "aborted items can never persist")
		})
	}
}

func TestRunContextCancellation(t *testing.T) {
	stub := scriptedStub(exploreOK, analyzeOK, extractOK, validateOK)
	p := newPipeline(t, stub, pipeline.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, "https://cars.example/inventory/1", "<html></html>")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPersistEligibleGate(t *testing.T) {
	tests := []struct {
		name      string
		validate  string
		threshold int
		eligible  bool
	}{
		{
			name:      "valid above threshold",
			validate:  `{"isValid":true,"completeness":1,"precision":1,"consistency":1,"qualityScore":88}`,
			threshold: 70,
			eligible:  true,
		},
		{
			name:      "valid at threshold",
			validate:  `{"isValid":true,"completeness":1,"precision":1,"consistency":1,"qualityScore":70}`,
			threshold: 70,
			eligible:  true,
		},
		{
			name:      "valid below threshold",
			validate:  `{"isValid":true,"completeness":0.5,"precision":0.5,"consistency":0.5,"qualityScore":69}`,
			threshold: 70,
			eligible:  false,
		},
		{
			name:      "invalid despite high score",
			validate:  `{"isValid":false,"completeness":1,"precision":1,"consistency":1,"qualityScore":95}`,
			threshold: 70,
			eligible:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := scriptedStub(exploreOK, analyzeOK, extractOK, tt.validate)
			p := newPipeline(t, stub, pipeline.Config{QualityThreshold: tt.threshold})

			res, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html></html>")
			require.NoError(t, err)
			require.True(t, res.OK())

			assert.Equal(t, tt.eligible, res.PersistEligible(tt.threshold))
		})
	}
}

func TestListingAssembly(t *testing.T) {
	stub := scriptedStub(exploreOK, analyzeOK, extractOK, validateOK)
	p := newPipeline(t, stub, pipeline.Config{})

	res, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html>snapshot</html>")
	require.NoError(t, err)
	require.True(t, res.OK())

	listing, err := p.Listing(res, "src-001", "<html>snapshot</html>")
	require.NoError(t, err)
	assert.Equal(t, "src-001", listing.SourceID)
	assert.Equal(t, "https://cars.example/inventory/1", listing.CanonicalURL)
	assert.Equal(t, 88, listing.QualityScore)
	assert.Empty(t, listing.RawSnapshot, "snapshots are off by default")
	assert.False(t, listing.ScrapedAt.IsZero())
}

func TestListingKeepsSnapshotWhenConfigured(t *testing.T) {
	stub := scriptedStub(exploreOK, analyzeOK, extractOK, validateOK)
	p := newPipeline(t, stub, pipeline.Config{KeepSnapshots: true})

	res, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html>snapshot</html>")
	require.NoError(t, err)

	listing, err := p.Listing(res, "src-001", "<html>snapshot</html>")
	require.NoError(t, err)
	assert.Equal(t, "<html>snapshot</html>", listing.RawSnapshot)
}

func TestListingStructuralValidation(t *testing.T) {
	stub := scriptedStub(exploreOK, analyzeOK, extractOK, validateOK)
	p := newPipeline(t, stub, pipeline.Config{})

	res, err := p.Run(context.Background(), "https://cars.example/inventory/1", "<html></html>")
	require.NoError(t, err)

	// An empty source id fails the required tag.
	_, err = p.Listing(res, "", "")
	require.Error(t, err)
	assert.True(t, pipeline.IsValidationError(err))
}

func TestPlaceholdersAreOptIn(t *testing.T) {
	emptyExtract := `{"make":"","model":"","title":"Mystery listing"}`

	stub := scriptedStub(exploreOK, analyzeOK, emptyExtract, validateOK)
	p := newPipeline(t, stub, pipeline.Config{})

	res, err := p.Run(context.Background(), "https://cars.example/inventory/9", "<html></html>")
	require.NoError(t, err)
	assert.Empty(t, res.Vehicle.Make, "defaults off: absent fields stay absent")

	stub = scriptedStub(exploreOK, analyzeOK, emptyExtract, validateOK)
	p = newPipeline(t, stub, pipeline.Config{AllowPlaceholders: true})

	res, err = p.Run(context.Background(), "https://cars.example/inventory/9", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "unknown", res.Vehicle.Make, "opt-in flag fills explicit unknown markers")
}
