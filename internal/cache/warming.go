package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// ForecastFetcher is implemented by the service layer to compute and cache a forecast.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type ForecastFetcher interface {
	GetForecast(ctx context.Context, regionID string, days int) (models.Forecast, error)
}

// CacheWarmer precomputes forecasts for tracked regions.
type CacheWarmer struct {
	fetcher ForecastFetcher
	logger  *zap.Logger
	clock   clockwork.Clock
}

// NewCacheWarmer creates a CacheWarmer. A nil clock uses the real clock.
func NewCacheWarmer(fetcher ForecastFetcher, logger *zap.Logger, clock clockwork.Clock) *CacheWarmer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger, clock: clock}
}

// Warm computes the forecast for each region concurrently; the fetcher populates the cache.
// Returns an aggregated error if any region failed.
func (w *CacheWarmer) Warm(ctx context.Context, regions []string, days int) error {
	start := w.clock.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming forecast cache", zap.Int("regions", len(regions)), zap.Int("days", days))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(regions))
	for _, region := range regions {
		wg.Add(1)
		go func(region string) {
			defer wg.Done()
			if _, err := w.fetcher.GetForecast(ctx, region, days); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", region, err)
			}
		}(region)
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := w.clock.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("regions", len(regions)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, regions []string, days int, interval time.Duration) error {
	if err := w.Warm(ctx, regions, days); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := w.Warm(ctx, regions, days); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
