package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/client"
	"github.com/kjstillabower/drought-index-service/internal/drought"
	"github.com/kjstillabower/drought-index-service/internal/etl"
	"github.com/kjstillabower/drought-index-service/internal/health"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
	"github.com/kjstillabower/drought-index-service/internal/service"
	"github.com/kjstillabower/drought-index-service/internal/store"
	"github.com/kjstillabower/drought-index-service/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Collector runs the ingestion pipeline on demand.
type Collector interface {
	RunOnce(ctx context.Context, regionIDs []string) (etl.RunResult, error)
}

// Options holds request defaults and limits.
type Options struct {
	DefaultDays    int // forecast and index history default
	MaxDays        int
	TrackedRegions []string // regions collected by POST /etl/run without a body
	Version        string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	service   *service.DroughtService
	collector Collector // nil disables POST /etl/run
	monitor   *health.Monitor
	logger    *zap.Logger
	opts      Options
}

// NewHandler returns a new Handler.
func NewHandler(svc *service.DroughtService, collector Collector, monitor *health.Monitor, logger *zap.Logger, opts Options) *Handler {
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 30
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 365
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if monitor == nil {
		monitor = health.NewMonitor(health.Config{}, nil, nil, logger)
	}
	return &Handler{
		service:   svc,
		collector: collector,
		monitor:   monitor,
		logger:    logger,
		opts:      opts,
	}
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.monitor.Evaluate(r.Context())
	writeJSON(w, result.StatusCode, map[string]interface{}{
		"status":    result.Status,
		"service":   observability.ServiceName,
		"version":   h.opts.Version,
		"checks":    result.Checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListRegions handles GET /regions.
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.service.ListRegions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

// CreateRegion handles POST /regions.
func (h *Handler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var body models.Region
	if !decodeBody(w, r, &body) {
		return
	}
	region, err := h.service.CreateRegion(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, region)
}

// GetCurrentIndex handles GET /regions/{regionId}/indices/current.
func (h *Handler) GetCurrentIndex(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	idx, err := h.service.CurrentIndex(r.Context(), regionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// ListIndices handles GET /regions/{regionId}/indices?days=N.
func (h *Handler) ListIndices(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	days, ok := h.daysParam(w, r)
	if !ok {
		return
	}
	indices, err := h.service.ListIndices(r.Context(), regionID, days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"regionId": regionID,
		"days":     days,
		"indices":  indices,
	})
}

// PostIndex handles POST /regions/{regionId}/indices.
func (h *Handler) PostIndex(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	var body models.DroughtIndex
	if !decodeBody(w, r, &body) {
		return
	}
	idx, err := h.service.InsertIndex(r.Context(), regionID, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idx)
}

// PostObservation handles POST /regions/{regionId}/observations.
func (h *Handler) PostObservation(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	var body models.Observation
	if !decodeBody(w, r, &body) {
		return
	}
	body.RegionID = regionID
	result, err := h.service.IngestObservation(r.Context(), body, "api")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetForecast handles GET /regions/{regionId}/forecast?days=N.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	days, ok := h.daysParam(w, r)
	if !ok {
		return
	}
	forecast, err := h.service.GetForecast(r.Context(), regionID, days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// GetPredictions handles GET /regions/{regionId}/predictions.
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	predictions, err := h.service.GetPredictions(r.Context(), regionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if predictions == nil {
		predictions = []models.Prediction{}
	}
	writeJSON(w, http.StatusOK, predictions)
}

// GetRecommendations handles GET /regions/{regionId}/recommendations.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	recs, err := h.service.GetRecommendations(r.Context(), regionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// PostEvaluateAlerts handles POST /regions/{regionId}/alerts/evaluate.
func (h *Handler) PostEvaluateAlerts(w http.ResponseWriter, r *http.Request) {
	regionID, ok := regionParam(w, r)
	if !ok {
		return
	}
	triggered, err := h.service.EvaluateAlerts(r.Context(), regionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"regionId":  regionID,
		"triggered": triggered,
	})
}

// ListAlerts handles GET /alerts?active=true.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "active must be true or false")
			return
		}
		activeOnly = v
	}
	list, err := h.service.ListAlerts(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAffected handles GET /affected?severity=severe.
func (h *Handler) GetAffected(w http.ResponseWriter, r *http.Request) {
	severity := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("severity")))
	if severity == "" {
		severity = models.SeveritySevere
	}
	areas, err := h.service.AffectedAreas(r.Context(), severity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

// PostETLRun handles POST /etl/run. An optional body {"regions": [...]} overrides
// the tracked regions.
func (h *Handler) PostETLRun(w http.ResponseWriter, r *http.Request) {
	if h.collector == nil {
		writeError(w, r, http.StatusServiceUnavailable, "COLLECTOR_DISABLED", "collector is not configured")
		return
	}
	var body struct {
		Regions []string `json:"regions"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	regions := body.Regions
	if len(regions) == 0 {
		regions = h.opts.TrackedRegions
	}
	if len(regions) == 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "no regions to collect")
		return
	}
	for i, id := range regions {
		normalized, err := validation.ValidateRegionID(id)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		regions[i] = normalized
	}

	result, err := h.collector.RunOnce(r.Context(), regions)
	if err != nil {
		loggerFor(r, h.logger).Warn("collector run finished with errors", zap.String("run_id", result.RunID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, result)
}

// regionParam reads and normalizes the {regionId} path variable, writing a 400 on failure.
func regionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := validation.ValidateRegionID(mux.Vars(r)["regionId"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REGION", err.Error())
		return "", false
	}
	return id, true
}

func (h *Handler) daysParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	days, err := validation.ParseDays(r.URL.Query().Get("days"), h.opts.DefaultDays, h.opts.MaxDays)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return 0, false
	}
	return days, true
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps service errors onto HTTP responses. Unexpected errors are
// logged with the request-scoped logger.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *drought.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", verr.Error())
		return
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	case errors.Is(err, store.ErrConflict):
		writeError(w, r, http.StatusConflict, "CONFLICT", "resource already exists")
		return
	}

	logger := loggerFor(r, zap.NewNop())
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, r, http.StatusServiceUnavailable, "TIMEOUT", "request timed out")
		logger.Debug("request timeout", zap.Error(err))
	case errors.Is(err, client.ErrUpstreamFailure), errors.Is(err, client.ErrRateLimited):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch conditions")
		logger.Debug("upstream error", zap.Error(err), zap.String("category", string(client.CategorizeError(err))))
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		logger.Error("request failed", zap.Error(err))
	}
}

func loggerFor(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if l := observability.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return fallback
}
