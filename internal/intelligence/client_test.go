package intelligence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
)

func newClient(t *testing.T, stub *intelligence.Stub) *intelligence.Client {
	t.Helper()
	cfg := intelligence.Config{Provider: intelligence.ProviderStub, RateLimit: 1000, RateBurst: 1000}
	return intelligence.NewClientWithProvider(cfg, stub, logger.NewNoOp())
}

func TestExploreDecodesCandidates(t *testing.T) {
	stub := intelligence.NewStub().Script("explore_page", `{
		"siteSummary": "dealer inventory with paged results",
		"confidence": 0.9,
		"candidates": [
			{"url": "https://cars.example/inventory/1", "priority": "high", "reason": "detail page"},
			{"url": "https://cars.example/about", "priority": "low", "reason": "not inventory"}
		],
		"paginationUrls": ["https://cars.example/inventory?page=2"]
	}`)

	client := newClient(t, stub)

	res, err := client.Explore(context.Background(), "https://cars.example", "<html></html>", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.9, res.Confidence)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "high", res.Candidates[0].Priority)
	assert.Equal(t, []string{"https://cars.example/inventory?page=2"}, res.PaginationURLs)
}

func TestExtractKeepsRawValues(t *testing.T) {
	stub := intelligence.NewStub().Script("extract_vehicle", `{
		"make": "Honda",
		"model": "Civic",
		"trim": "EX",
		"year": "2019-2021",
		"price": "$24,999",
		"mileage": 31500,
		"title": "2019 Honda Civic EX",
		"features": ["sunroof"],
		"vin": "2HGFC2F59KH000000"
	}`)

	client := newClient(t, stub)

	raw, err := client.Extract(context.Background(), "https://cars.example/inventory/1", "<html></html>", "")
	require.NoError(t, err)
	assert.Equal(t, "Honda", raw.Make)
	assert.Equal(t, "2019-2021", raw.Year, "ranges pass through unresolved")
	assert.Equal(t, "$24,999", raw.Price, "formatted prices pass through untouched")
	assert.Equal(t, float64(31500), raw.Mileage)
}

func TestValidateRoundsAndClampsScore(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		score int
	}{
		{
			name:  "float score rounds",
			body:  `{"isValid":true,"completeness":0.8,"precision":0.9,"consistency":0.85,"qualityScore":84.6}`,
			score: 85,
		},
		{
			name:  "score above range clamps",
			body:  `{"isValid":true,"completeness":1,"precision":1,"consistency":1,"qualityScore":130}`,
			score: 100,
		},
		{
			name:  "negative score clamps to zero",
			body:  `{"isValid":false,"completeness":0,"precision":0,"consistency":0,"qualityScore":-5}`,
			score: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := intelligence.NewStub().Script("validate_vehicle", tt.body)
			client := newClient(t, stub)

			res, err := client.Validate(context.Background(), &intelligence.RawVehicle{Make: "Honda"}, "")
			require.NoError(t, err)
			assert.Equal(t, tt.score, res.QualityScore)
		})
	}
}

func TestMalformedOutputIsStageError(t *testing.T) {
	stub := intelligence.NewStub().Script("analyze_page", `{"method": "css", "confidence":`)
	client := newClient(t, stub)

	_, err := client.Analyze(context.Background(), "https://cars.example/inventory/1", "<html></html>")
	require.Error(t, err)

	stage, ok := intelligence.IsStageError(err)
	require.True(t, ok, "truncated JSON must surface as a stage failure")
	assert.Equal(t, intelligence.StageAnalyze, stage)
}

func TestEmptyOutputIsStageError(t *testing.T) {
	stub := intelligence.NewStub().Script("extract_vehicle", "   ")
	client := newClient(t, stub)

	_, err := client.Extract(context.Background(), "https://cars.example/inventory/1", "<html></html>", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, intelligence.ErrEmptyResponse)

	_, ok := intelligence.IsStageError(err)
	assert.True(t, ok)
}

func TestProviderFailureIsStageError(t *testing.T) {
	boom := errors.New("upstream unavailable")
	stub := intelligence.NewStub().Fail(boom)
	client := newClient(t, stub)

	_, err := client.Explore(context.Background(), "https://cars.example", "<html></html>", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	stage, ok := intelligence.IsStageError(err)
	require.True(t, ok)
	assert.Equal(t, intelligence.StageExplore, stage)
}

func TestStagePromptsCarrySystemAndSchema(t *testing.T) {
	stub := intelligence.NewStub()
	client := newClient(t, stub)

	_, err := client.Explore(context.Background(), "https://cars.example", "<html>inventory</html>", 2)
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "explore_page", calls[0].Name)
	assert.NotEmpty(t, calls[0].System)
	assert.NotNil(t, calls[0].Schema)
	assert.Contains(t, calls[0].Prompt, "https://cars.example")
	assert.Contains(t, calls[0].Prompt, "depth 2")
}

func TestUnknownProviderRejected(t *testing.T) {
	_, err := intelligence.NewClient(intelligence.Config{Provider: "frontier-9000"}, logger.NewNoOp())
	require.Error(t, err)
	assert.ErrorIs(t, err, intelligence.ErrUnknownProvider)
}

func TestStubDefaultsAreSchemaValid(t *testing.T) {
	client := newClient(t, intelligence.NewStub())
	ctx := context.Background()

	_, err := client.Explore(ctx, "https://cars.example", "", 0)
	assert.NoError(t, err)

	_, err = client.Analyze(ctx, "https://cars.example/1", "")
	assert.NoError(t, err)

	raw, err := client.Extract(ctx, "https://cars.example/1", "", "")
	require.NoError(t, err)

	res, err := client.Validate(ctx, raw, "")
	require.NoError(t, err)
	assert.False(t, res.IsValid, "stub output must never pass the quality gate")
}
