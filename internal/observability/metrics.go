package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate by outcome. Watch for: error vs success ratio.
	OpenMeteoCallsTotal *prometheus.CounterVec

	// Open-Meteo latency. Watch for: p95 > 2s (upstream degradation).
	OpenMeteoDuration *prometheus.HistogramVec

	// Retry attempts for Open-Meteo. Watch for: high retries = unstable upstream.
	OpenMeteoRetriesTotal prometheus.Counter

	// Forecast cache hits by cache type.
	CacheHitsTotal *prometheus.CounterVec

	// Cache errors by operation and category (timeout, connection, unknown).
	CacheErrorsTotal *prometheus.CounterVec

	// Cache get/set latency by operation and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Concurrent misses for the same forecast key. Watch for: hot regions recomputed in parallel.
	CacheStampedeDetectedTotal *prometheus.CounterVec

	// Requests that waited on an in-flight forecast computation instead of starting their own.
	RequestCoalescingHitsTotal prometheus.Counter

	// Forecasts served from an expired cache entry after a store failure.
	StaleForecastServesTotal prometheus.Counter

	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Forecasts computed (cache misses that reached the generator).
	ForecastsGeneratedTotal prometheus.Counter

	// Per-region forecast queries (allow-list; others go to "other").
	ForecastQueriesByRegionTotal *prometheus.CounterVec

	// Latest forecast day-1 severity per tracked region, encoded 0 (none) .. 4 (extreme).
	RegionSeverity *prometheus.GaugeVec

	// Observations ingested by result (stored, rejected).
	ObservationsIngestedTotal *prometheus.CounterVec

	// Repairs applied while cleaning observations.
	CleaningIssuesTotal prometheus.Counter

	// Collector runs and duration. Watch for: failed runs, runs approaching the interval.
	CollectorRunsTotal          *prometheus.CounterVec
	CollectorRunDurationSeconds prometheus.Histogram

	// Alerts triggered by type and severity.
	AlertsTriggeredTotal *prometheus.CounterVec

	// Alert publish failures by publisher.
	AlertPublishErrorsTotal *prometheus.CounterVec

	// Store query latency by operation and result.
	StoreOperationDurationSeconds *prometheus.HistogramVec

	// Circuit breaker transitions and current state (0 closed, 1 open, 2 half-open).
	CircuitBreakerTransitionsTotal *prometheus.CounterVec
	CircuitBreakerState            *prometheus.GaugeVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// In-flight requests remaining when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge

	// trackedRegions is built from config; used to resolve region labels for metrics.
	trackedRegionsMu sync.RWMutex
	trackedRegions   map[string]struct{}

	windowGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	OpenMeteoCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openMeteoCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"status"},
	)
	OpenMeteoDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openMeteoDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	OpenMeteoRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openMeteoRetriesTotal",
			Help: "Total number of retry attempts for Open-Meteo calls",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of forecast cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Concurrent cache misses for the same forecast key",
		},
		[]string{"region"},
	)
	RequestCoalescingHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Forecast requests served by waiting on an in-flight computation",
		},
	)
	StaleForecastServesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleForecastServesTotal",
			Help: "Forecasts served from expired cache entries after a store failure",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of forecast cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed region",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30},
		},
	)
	ForecastsGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastsGeneratedTotal",
			Help: "Total number of forecasts computed from history",
		},
	)
	ForecastQueriesByRegionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastQueriesByRegionTotal",
			Help: "Forecast queries by region (allow-list; others use region=other)",
		},
		[]string{"region"},
	)
	RegionSeverity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "regionSeverity",
			Help: "Latest forecast day-1 severity per tracked region (0 none .. 4 extreme)",
		},
		[]string{"region"},
	)
	ObservationsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observationsIngestedTotal",
			Help: "Observations ingested by result",
		},
		[]string{"result"},
	)
	CleaningIssuesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cleaningIssuesTotal",
			Help: "Repairs applied while cleaning observations",
		},
	)
	CollectorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collectorRunsTotal",
			Help: "Collector pipeline runs by result",
		},
		[]string{"result"},
	)
	CollectorRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collectorRunDurationSeconds",
			Help:    "Collector pipeline run duration in seconds",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120},
		},
	)
	AlertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsTriggeredTotal",
			Help: "Drought alerts triggered by type and severity",
		},
		[]string{"type", "severity"},
	)
	AlertPublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertPublishErrorsTotal",
			Help: "Alert publish failures by publisher",
		},
		[]string{"publisher"},
	)
	StoreOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Store query latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation", "result"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests when graceful shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		OpenMeteoCallsTotal, OpenMeteoDuration, OpenMeteoRetriesTotal,
		CacheHitsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheStampedeDetectedTotal, RequestCoalescingHitsTotal, StaleForecastServesTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		ForecastsGeneratedTotal, ForecastQueriesByRegionTotal, RegionSeverity,
		ObservationsIngestedTotal, CleaningIssuesTotal,
		CollectorRunsTotal, CollectorRunDurationSeconds,
		AlertsTriggeredTotal, AlertPublishErrorsTotal,
		StoreOperationDurationSeconds,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
		RateLimitDeniedTotal, ShutdownInFlightRequests,
	)
}

// RegisterWindowGauges registers sliding-window load and reject gauges.
// Call once from main with the health tracker's counters.
func RegisterWindowGauges(requests, denials func() float64) {
	windowGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				requests,
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				denials,
			),
		)
	})
}

// SetTrackedRegions sets the allow-list for region metrics. Non-tracked regions increment "other".
func SetTrackedRegions(regions []string) {
	trackedRegionsMu.Lock()
	defer trackedRegionsMu.Unlock()
	trackedRegions = make(map[string]struct{}, len(regions))
	for _, r := range regions {
		trackedRegions[normalizeRegionForMetrics(r)] = struct{}{}
	}
}

// RegionLabel returns the metric label for region: itself when tracked, otherwise "other".
func RegionLabel(region string) string {
	r := normalizeRegionForMetrics(region)
	trackedRegionsMu.RLock()
	_, ok := trackedRegions[r] // nil map read is safe in Go
	trackedRegionsMu.RUnlock()
	if ok {
		return r
	}
	return "other"
}

// RecordForecastQuery records a forecast query for the given region.
func RecordForecastQuery(region string) {
	ForecastQueriesByRegionTotal.WithLabelValues(RegionLabel(region)).Inc()
}

// severityValues encodes severity levels for the RegionSeverity gauge.
var severityValues = map[string]float64{
	"none":     0,
	"mild":     1,
	"moderate": 2,
	"severe":   3,
	"extreme":  4,
}

// RecordRegionSeverity sets the severity gauge for a tracked region. Untracked regions are ignored.
func RecordRegionSeverity(region, severity string) {
	label := RegionLabel(region)
	if label == "other" {
		return
	}
	if v, ok := severityValues[severity]; ok {
		RegionSeverity.WithLabelValues(label).Set(v)
	}
}

// RecordCircuitBreakerTransition counts a breaker transition and updates its state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

func normalizeRegionForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
