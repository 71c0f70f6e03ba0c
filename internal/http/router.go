package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	RequestTimeout time.Duration // zero disables the per-request deadline
	Limiter        *rate.Limiter // nil disables rate limiting
	TestingMode    bool          // exposes /test endpoints
}

// NewRouter wires every route. /health and /metrics bypass rate limiting and the
// request deadline; API routes get both.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	tracker := h.monitor.Tracker()

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(tracker))
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
		router.HandleFunc("/test", h.GetTestStatus).Methods(http.MethodGet)
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods(http.MethodPost)
	}

	api := router.PathPrefix("/").Subrouter()
	api.Use(OutcomeMiddleware(tracker))
	api.Use(RateLimitMiddleware(cfg.Limiter, tracker))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}

	api.HandleFunc("/regions", h.ListRegions).Methods(http.MethodGet)
	api.HandleFunc("/regions", h.CreateRegion).Methods(http.MethodPost)
	api.HandleFunc("/regions/{regionId}/indices/current", h.GetCurrentIndex).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}/indices", h.ListIndices).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}/indices", h.PostIndex).Methods(http.MethodPost)
	api.HandleFunc("/regions/{regionId}/observations", h.PostObservation).Methods(http.MethodPost)
	api.HandleFunc("/regions/{regionId}/forecast", h.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}/predictions", h.GetPredictions).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}/recommendations", h.GetRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/regions/{regionId}/alerts/evaluate", h.PostEvaluateAlerts).Methods(http.MethodPost)
	api.HandleFunc("/alerts", h.ListAlerts).Methods(http.MethodGet)
	api.HandleFunc("/affected", h.GetAffected).Methods(http.MethodGet)
	api.HandleFunc("/indicators/spi", h.PostSPI).Methods(http.MethodPost)
	api.HandleFunc("/indicators/spei", h.PostSPEI).Methods(http.MethodPost)
	api.HandleFunc("/indicators/vci", h.PostVCI).Methods(http.MethodPost)
	api.HandleFunc("/indicators/score", h.PostScore).Methods(http.MethodPost)
	api.HandleFunc("/etl/run", h.PostETLRun).Methods(http.MethodPost)
	return router
}
