package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/regions/{regionId}/forecast", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/regions/{regionId}/forecast").Observe(0.01)
	OpenMeteoCallsTotal.WithLabelValues("success").Inc()
	OpenMeteoDuration.WithLabelValues("success").Observe(0.1)
	CacheHitsTotal.WithLabelValues("forecast").Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
	CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(0.001)
	CacheStampedeDetectedTotal.WithLabelValues("other").Inc()
	ObservationsIngestedTotal.WithLabelValues("stored").Inc()
	CollectorRunsTotal.WithLabelValues("success").Inc()
	AlertsTriggeredTotal.WithLabelValues("WATER_SHORTAGE", "CRITICAL").Inc()
	AlertPublishErrorsTotal.WithLabelValues("kafka").Inc()
	StoreOperationDurationSeconds.WithLabelValues("list_indices", "success").Observe(0.002)
}

func TestRegionLabel(t *testing.T) {
	SetTrackedRegions([]string{"Turkana", "garissa"})
	defer SetTrackedRegions(nil)

	if got := RegionLabel(" TURKANA "); got != "turkana" {
		t.Errorf("RegionLabel(tracked) = %q, want turkana", got)
	}
	if got := RegionLabel("mombasa"); got != "other" {
		t.Errorf("RegionLabel(untracked) = %q, want other", got)
	}

	before := testutil.ToFloat64(ForecastQueriesByRegionTotal.WithLabelValues("other"))
	RecordForecastQuery("mombasa")
	if got := testutil.ToFloat64(ForecastQueriesByRegionTotal.WithLabelValues("other")); got != before+1 {
		t.Errorf("other forecast queries = %v, want %v", got, before+1)
	}
}

func TestRecordRegionSeverity(t *testing.T) {
	SetTrackedRegions([]string{"turkana"})
	defer SetTrackedRegions(nil)

	RecordRegionSeverity("turkana", "severe")
	if got := testutil.ToFloat64(RegionSeverity.WithLabelValues("turkana")); got != 3 {
		t.Errorf("regionSeverity = %v, want 3", got)
	}
	RecordRegionSeverity("turkana", "not-a-level")
	if got := testutil.ToFloat64(RegionSeverity.WithLabelValues("turkana")); got != 3 {
		t.Errorf("regionSeverity changed on unknown level: %v", got)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("open_meteo", "closed", "open", 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("open_meteo")); got != 1 {
		t.Errorf("circuitBreakerState = %v, want 1", got)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
