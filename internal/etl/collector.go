package etl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/client"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailure = "failure"
)

// DataSource labels index records produced by the collector.
const DataSource = "open-meteo"

// RegionSource looks up region coordinates.
type RegionSource interface {
	GetRegion(ctx context.Context, id string) (models.Region, error)
}

// IngestResult is the outcome of ingesting one observation.
type IngestResult struct {
	Issues []string            `json:"issues"`
	Index  models.DroughtIndex `json:"index"`
}

// Ingester cleans, scores and persists an observation. Implemented by the
// service layer to avoid a circular dependency.
type Ingester interface {
	IngestObservation(ctx context.Context, obs models.Observation, source string) (IngestResult, error)
}

// AlertEvaluator runs alert rules for a region after new data arrives.
type AlertEvaluator interface {
	EvaluateAlerts(ctx context.Context, regionID string) ([]models.Alert, error)
}

// RegionResult is the per-region outcome of a run.
type RegionResult struct {
	RegionID  string   `json:"regionId"`
	Collected int      `json:"collected"`
	Issues    []string `json:"issues"`
	Severity  string   `json:"severity,omitempty"`
	Alerts    int      `json:"alerts"`
	Error     string   `json:"error,omitempty"`
}

// RunResult summarises one collector run.
type RunResult struct {
	RunID      string         `json:"runId"`
	Status     string         `json:"status"`
	Regions    []RegionResult `json:"regions"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// Collector fetches current conditions for regions and feeds them through ingestion.
type Collector struct {
	regions  RegionSource
	client   client.ConditionsClient
	ingester Ingester
	alerts   AlertEvaluator
	logger   *zap.Logger
	clock    clockwork.Clock
}

// NewCollector creates a Collector. alerts may be nil to skip alert evaluation.
func NewCollector(regions RegionSource, conditions client.ConditionsClient, ingester Ingester, alerts AlertEvaluator, logger *zap.Logger, clock clockwork.Clock) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{
		regions:  regions,
		client:   conditions,
		ingester: ingester,
		alerts:   alerts,
		logger:   logger,
		clock:    clock,
	}
}

// RunOnce collects every region concurrently. Per-region failures are
// reported in the result; the returned error aggregates them.
func (c *Collector) RunOnce(ctx context.Context, regionIDs []string) (RunResult, error) {
	start := c.clock.Now()
	result := RunResult{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Regions:   make([]RegionResult, len(regionIDs)),
	}
	logger := c.logger.With(zap.String("run_id", result.RunID))
	logger.Info("collector run started", zap.Int("regions", len(regionIDs)))

	var wg sync.WaitGroup
	errs := make([]error, len(regionIDs))
	for i, id := range regionIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			result.Regions[i], errs[i] = c.collectRegion(ctx, id)
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	switch {
	case failed == 0:
		result.Status = StatusSuccess
	case failed == len(regionIDs):
		result.Status = StatusFailure
	default:
		result.Status = StatusPartial
	}
	sort.Slice(result.Regions, func(i, j int) bool {
		return result.Regions[i].RegionID < result.Regions[j].RegionID
	})

	result.FinishedAt = c.clock.Now().UTC()
	duration := c.clock.Since(start).Seconds()
	observability.CollectorRunsTotal.WithLabelValues(result.Status).Inc()
	observability.CollectorRunDurationSeconds.Observe(duration)
	logger.Info("collector run complete",
		zap.String("status", result.Status),
		zap.Int("failed", failed),
		zap.Float64("duration_seconds", duration),
	)

	if err := errors.Join(errs...); err != nil {
		return result, fmt.Errorf("collector run %s: %w", result.RunID, err)
	}
	return result, nil
}

func (c *Collector) collectRegion(ctx context.Context, regionID string) (RegionResult, error) {
	out := RegionResult{RegionID: regionID, Issues: []string{}}
	fail := func(stage string, err error) (RegionResult, error) {
		err = fmt.Errorf("%s %s: %w", stage, regionID, err)
		out.Error = err.Error()
		out.Issues = append(out.Issues, fmt.Sprintf("%s failed (%s)", stage, client.CategorizeError(err)))
		c.logger.Warn("collector region failed",
			zap.String("region", regionID),
			zap.String("stage", stage),
			zap.Error(err),
		)
		return out, err
	}

	region, err := c.regions.GetRegion(ctx, regionID)
	if err != nil {
		return fail("lookup", err)
	}

	obs, err := c.client.GetCurrentConditions(ctx, region.Latitude, region.Longitude)
	if err != nil {
		return fail("fetch", err)
	}
	obs.RegionID = region.ID
	out.Collected = 1

	ingested, err := c.ingester.IngestObservation(ctx, obs, DataSource)
	if err != nil {
		return fail("ingest", err)
	}
	out.Issues = append(out.Issues, ingested.Issues...)
	out.Severity = ingested.Index.SeverityLevel

	if c.alerts != nil {
		triggered, err := c.alerts.EvaluateAlerts(ctx, region.ID)
		if err != nil {
			return fail("alerts", err)
		}
		out.Alerts = len(triggered)
	}
	return out, nil
}

// Run collects immediately, then at every interval until ctx is done.
func (c *Collector) Run(ctx context.Context, regionIDs []string, interval time.Duration) error {
	if _, err := c.RunOnce(ctx, regionIDs); err != nil {
		c.logger.Warn("initial collector run failed", zap.Error(err))
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := c.RunOnce(ctx, regionIDs); err != nil {
				c.logger.Warn("periodic collector run failed", zap.Error(err))
			}
		}
	}
}
