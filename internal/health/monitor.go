package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Health statuses reported by Monitor.Evaluate.
const (
	StatusHealthy      = "healthy"
	StatusStarting     = "starting"
	StatusShuttingDown = "shutting-down"
	StatusOverloaded   = "overloaded"
	StatusDegraded     = "degraded"
)

// Config holds health thresholds.
type Config struct {
	ReadyDelay           time.Duration
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 disables the overload check
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Result is the outcome of one evaluation.
type Result struct {
	Status     string
	StatusCode int
	Reason     string
	Checks     map[string]string
}

// Monitor evaluates service health from the traffic tracker, dependency checks and
// the shutdown flag.
type Monitor struct {
	cfg       Config
	tracker   *Tracker
	clock     clockwork.Clock
	startTime time.Time
	logger    *zap.Logger

	mu     sync.Mutex
	checks map[string]Check
	prev   string

	shuttingDown atomic.Bool
}

// NewMonitor creates a Monitor. startTime is read from clock.
func NewMonitor(cfg Config, tracker *Tracker, clock clockwork.Clock, logger *zap.Logger) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if tracker == nil {
		tracker = NewTracker(clock)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:       cfg,
		tracker:   tracker,
		clock:     clock,
		startTime: clock.Now(),
		logger:    logger,
		checks:    make(map[string]Check),
	}
}

// Tracker returns the traffic tracker the monitor reads.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// Config returns the thresholds the monitor evaluates against.
func (m *Monitor) Config() Config {
	return m.cfg
}

// AddCheck registers a dependency probe reported under name. A failing probe
// marks the service degraded.
func (m *Monitor) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received.
func (m *Monitor) SetShuttingDown(v bool) {
	m.shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func (m *Monitor) IsShuttingDown() bool {
	return m.shuttingDown.Load()
}

// Evaluate computes the current status.
// Decision order: shutting-down > starting > dependency failure > overloaded > degraded > healthy.
// Status transitions are logged.
func (m *Monitor) Evaluate(ctx context.Context) Result {
	res := m.evaluate(ctx)

	m.mu.Lock()
	if m.prev != "" && m.prev != res.Status {
		m.logger.Info("health status transition",
			zap.String("previous_status", m.prev),
			zap.String("current_status", res.Status),
			zap.String("reason", res.Reason))
	}
	m.prev = res.Status
	m.mu.Unlock()
	return res
}

func (m *Monitor) evaluate(ctx context.Context) Result {
	checks := m.runChecks(ctx)

	if m.IsShuttingDown() {
		return Result{StatusShuttingDown, http.StatusServiceUnavailable, "signal", checks}
	}
	if m.cfg.ReadyDelay > 0 && m.clock.Since(m.startTime) < m.cfg.ReadyDelay {
		return Result{StatusStarting, http.StatusServiceUnavailable, "ready_delay", checks}
	}
	for name, state := range checks {
		if state != StatusHealthy {
			return Result{StatusDegraded, http.StatusServiceUnavailable, name + "_unhealthy", checks}
		}
	}
	if m.cfg.RateLimitRPS > 0 && m.cfg.OverloadWindow > 0 && m.cfg.OverloadThresholdPct > 0 {
		threshold := float64(m.cfg.RateLimitRPS) * m.cfg.OverloadWindow.Seconds() * float64(m.cfg.OverloadThresholdPct) / 100
		if float64(m.tracker.RequestCount(m.cfg.OverloadWindow)) > threshold {
			return Result{StatusOverloaded, http.StatusServiceUnavailable, "overload_threshold", checks}
		}
	}
	if m.cfg.DegradedWindow > 0 && m.cfg.DegradedErrorPct > 0 {
		errors, total := m.tracker.ErrorRate(m.cfg.DegradedWindow)
		if total > 0 && float64(errors)*100/float64(total) >= float64(m.cfg.DegradedErrorPct) {
			return Result{StatusDegraded, http.StatusServiceUnavailable, "error_rate_breach", checks}
		}
	}
	return Result{StatusHealthy, http.StatusOK, "", checks}
}

func (m *Monitor) runChecks(ctx context.Context) map[string]string {
	m.mu.Lock()
	checks := make(map[string]Check, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.Unlock()

	out := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(ctx); err != nil {
			out[name] = "unhealthy"
			m.logger.Debug("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		out[name] = StatusHealthy
	}
	return out
}
