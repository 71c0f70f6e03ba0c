//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/drought-index-service/internal/etl"
	"github.com/kjstillabower/drought-index-service/internal/health"
	"github.com/kjstillabower/drought-index-service/internal/models"
	testhelpers "github.com/kjstillabower/drought-index-service/internal/testhelpers"
)

// setupIntegrationRouter wires the full stack against live Open-Meteo.
func setupIntegrationRouter(t *testing.T) (http.Handler, func()) {
	cfg := testhelpers.GetIntegrationConfig(t)
	logger := zaptest.NewLogger(t)

	svc, _, _, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	conditions := testhelpers.SetupIntegrationClient(t, cfg)
	collector := etl.NewCollector(svc, conditions, svc, svc, logger, nil)

	handler := NewHandler(svc, collector, health.NewMonitor(health.Config{}, nil, nil, logger), logger, Options{})
	return NewRouter(handler, logger, RouterConfig{}), cleanup
}

func doIntegrationRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestIntegration_CollectAndForecast runs the collector against the live API and
// reads the derived index and forecast back through the HTTP surface.
func TestIntegration_CollectAndForecast(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	w := doIntegrationRequest(t, router, http.MethodPost, "/regions", `{"id":"nairobi","name":"Nairobi","latitude":-1.2921,"longitude":36.8219}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create region status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doIntegrationRequest(t, router, http.MethodPost, "/etl/run", `{"regions":["nairobi"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("etl run status = %d, body = %s", w.Code, w.Body.String())
	}
	var run etl.RunResult
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("decode run result: %v", err)
	}
	if run.Status != etl.StatusSuccess {
		t.Fatalf("run status = %q, regions = %+v", run.Status, run.Regions)
	}

	w = doIntegrationRequest(t, router, http.MethodGet, "/regions/nairobi/indices/current", "")
	if w.Code != http.StatusOK {
		t.Fatalf("current index status = %d, body = %s", w.Code, w.Body.String())
	}
	var idx models.DroughtIndex
	if err := json.NewDecoder(w.Body).Decode(&idx); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if idx.DataSource != etl.DataSource {
		t.Errorf("DataSource = %q, want %q", idx.DataSource, etl.DataSource)
	}

	w = doIntegrationRequest(t, router, http.MethodGet, "/regions/nairobi/forecast?days=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("forecast status = %d, body = %s", w.Code, w.Body.String())
	}
	var forecast models.Forecast
	if err := json.NewDecoder(w.Body).Decode(&forecast); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(forecast.Points) != 7 {
		t.Errorf("forecast points = %d, want 7", len(forecast.Points))
	}
}
