package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// GetTestStatus handles GET /test. Returns the traffic windows the health check reads.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.monitor.Config()
	window := 60 * time.Second
	if cfg.DegradedWindow > 0 {
		window = cfg.DegradedWindow
	}
	tracker := h.monitor.Tracker()
	errors, total := tracker.ErrorRate(window)

	overloadThreshold := 0
	if cfg.RateLimitRPS > 0 {
		overloadThreshold = int(float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests_in_window":  tracker.RequestCount(window),
		"denied_requests_in_window": tracker.DenialCount(window),
		"errors_in_window":          errors,
		"outcomes_in_window":        total,
		"window_length":             window.String(),
		"shutting_down":             h.monitor.IsShuttingDown(),
		"config": map[string]interface{}{
			"rate_limit_rps":          cfg.RateLimitRPS,
			"overload_threshold":      overloadThreshold,
			"overload_window_seconds": cfg.OverloadWindow.Seconds(),
			"degraded_error_pct":      cfg.DegradedErrorPct,
		},
	})
}

// PostTestAction handles POST /test/{action} for load, error, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	tracker := h.monitor.Tracker()
	switch action {
	case "load":
		n := countParam(r, 10)
		for i := 0; i < n; i++ {
			tracker.RecordSuccess()
		}
		h.writeTestResult(w, r, action, "Recorded "+strconv.Itoa(n)+" requests")
	case "error":
		n := countParam(r, 1)
		for i := 0; i < n; i++ {
			tracker.RecordError()
		}
		h.writeTestResult(w, r, action, "Recorded "+strconv.Itoa(n)+" errors")
	case "reset":
		tracker.Reset()
		h.monitor.SetShuttingDown(false)
		h.writeTestResult(w, r, action, "All simulated state cleared")
	case "shutdown":
		h.monitor.SetShuttingDown(true)
		h.writeTestResult(w, r, action, "Shutting-down flag set")
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

func (h *Handler) writeTestResult(w http.ResponseWriter, r *http.Request, action, message string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"action":  action,
		"message": message,
		"state":   h.monitor.Evaluate(r.Context()).Status,
	})
}

// countParam reads {"count": N} from the body, returning def when absent or invalid.
func countParam(r *http.Request, def int) int {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		return def
	}
	return body.Count
}
