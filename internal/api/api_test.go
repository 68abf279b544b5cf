package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carcrawl/carcrawl/internal/api"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/stats"
)

func TestSetupRouter_Health(t *testing.T) {
	router := api.SetupRouter(api.Params{Logger: logger.NewNoOp()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestSetupRouter_Metrics(t *testing.T) {
	telemetry := stats.NewTelemetry()
	router := api.SetupRouter(api.Params{
		Logger:    logger.NewNoOp(),
		Telemetry: telemetry,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 from metrics endpoint, got %d", w.Code)
	}
}

func TestSetupRouter_UnwiredRoutesAbsent(t *testing.T) {
	router := api.SetupRouter(api.Params{Logger: logger.NewNoOp()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unwired runs route, got %d", w.Code)
	}
}
