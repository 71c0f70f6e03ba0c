package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/cache"
	"github.com/kjstillabower/drought-index-service/internal/drought"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// GetForecast returns the drought forecast for a region over days days using a
// cache-aside pattern. Concurrent misses for the same key share one computation.
// When the store fails, an expired cache entry is served with Stale set.
func (s *DroughtService) GetForecast(ctx context.Context, regionID string, days int) (models.Forecast, error) {
	if days <= 0 {
		return models.Forecast{}, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	key := cache.Key(regionID, days)
	start := time.Now()
	logger := s.logFor(ctx)
	observability.RecordForecastQuery(regionID)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheHitsTotal.WithLabelValues("forecast").Inc()
		logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, nil
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.Resolve(key)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(observability.RegionLabel(regionID)).Inc()
	}

	var (
		forecast models.Forecast
		genErr   error
	)
	if s.coalescer != nil {
		var shared bool
		forecast, shared, genErr = s.coalescer.GetOrDo(ctx, key, func(runCtx context.Context) (models.Forecast, error) {
			return s.computeForecast(runCtx, regionID, days, key)
		})
		if shared && genErr == nil {
			observability.RequestCoalescingHitsTotal.Inc()
		}
	} else {
		forecast, genErr = s.computeForecast(ctx, regionID, days, key)
	}
	if genErr != nil {
		if isNotFound(genErr) {
			return models.Forecast{}, genErr
		}
		stale, ok, staleErr := s.cache.GetStale(ctx, key)
		if staleErr == nil && ok {
			observability.StaleForecastServesTotal.Inc()
			stale.Stale = true
			logger.Info("serving stale forecast", zap.String("key", key), zap.Duration("age", s.clock.Since(stale.GeneratedAt)), zap.Error(genErr))
			return stale, nil
		}
		return models.Forecast{}, genErr
	}

	logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return forecast, nil
}

// computeForecast loads history, builds the forecast and caches it.
func (s *DroughtService) computeForecast(ctx context.Context, regionID string, days int, key string) (models.Forecast, error) {
	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return models.Forecast{}, fmt.Errorf("forecast for %s: %w", regionID, err)
	}
	history, err := s.store.ListIndices(ctx, regionID, s.historyLimit)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("load history for %s: %w", regionID, err)
	}

	forecast := drought.BuildForecast(regionID, history, days, s.clock.Now())
	observability.ForecastsGeneratedTotal.Inc()
	if len(forecast.Points) > 0 {
		observability.RecordRegionSeverity(regionID, forecast.Points[0].PredictedSeverity)
	}

	setStart := time.Now()
	if setErr := s.cache.Set(ctx, key, forecast, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		s.logFor(ctx).Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	return forecast, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
