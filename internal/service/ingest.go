package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/drought"
	"github.com/kjstillabower/drought-index-service/internal/etl"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
	"github.com/kjstillabower/drought-index-service/internal/store"
	"github.com/kjstillabower/drought-index-service/internal/validation"
)

// IngestObservation cleans obs, derives a drought index from it and the region's
// earlier observations, and stores both atomically. A zero timestamp is set to now.
// Non-finite readings are rejected with a *drought.ValidationError.
func (s *DroughtService) IngestObservation(ctx context.Context, obs models.Observation, source string) (etl.IngestResult, error) {
	regionID, err := validation.ValidateRegionID(obs.RegionID)
	if err != nil {
		return etl.IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return etl.IngestResult{}, fmt.Errorf("ingest observation for %s: %w", regionID, err)
	}
	obs.RegionID = regionID
	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.clock.Now()
	}
	obs.Timestamp = obs.Timestamp.UTC()

	cleaned, err := drought.CleanWeather(obs)
	if err != nil {
		observability.ObservationsIngestedTotal.WithLabelValues("rejected").Inc()
		return etl.IngestResult{}, fmt.Errorf("clean observation for %s: %w", regionID, err)
	}
	if n := len(cleaned.Issues); n > 0 {
		observability.CleaningIssuesTotal.Add(float64(n))
	}

	// Load history before inserting so the current reading is not counted twice.
	prior, err := s.store.ListObservations(ctx, regionID, obs.Timestamp.Add(-etl.SixMonthWindow))
	if err != nil {
		return etl.IngestResult{}, fmt.Errorf("load observations for %s: %w", regionID, err)
	}
	prior = before(prior, obs.Timestamp)

	idx, err := etl.DeriveIndex(cleaned.Data, prior, source)
	if err != nil {
		observability.ObservationsIngestedTotal.WithLabelValues("rejected").Inc()
		return etl.IngestResult{}, fmt.Errorf("derive index for %s: %w", regionID, err)
	}
	stored, err := s.store.RecordObservation(ctx, cleaned.Data, idx)
	if err != nil {
		return etl.IngestResult{}, fmt.Errorf("store observation for %s: %w", regionID, err)
	}
	observability.ObservationsIngestedTotal.WithLabelValues("stored").Inc()

	s.logFor(ctx).Debug("observation ingested",
		zap.String("region", regionID),
		zap.Int("issues", len(cleaned.Issues)),
		zap.Int("history", len(prior)),
		zap.String("severity", stored.SeverityLevel),
	)
	return etl.IngestResult{Issues: cleaned.Issues, Index: stored}, nil
}

// before keeps observations strictly older than ts. Input and output are newest first.
func before(observations []models.Observation, ts time.Time) []models.Observation {
	out := observations[:0:0]
	for _, o := range observations {
		if o.Timestamp.Before(ts) {
			out = append(out, o)
		}
	}
	return out
}

// InsertIndex stores an externally computed index record for regionID. An empty
// severity is derived from the anomaly score; a zero CreatedAt is set to now.
func (s *DroughtService) InsertIndex(ctx context.Context, regionID string, idx models.DroughtIndex) (models.DroughtIndex, error) {
	id, err := validation.ValidateRegionID(regionID)
	if err != nil {
		return models.DroughtIndex{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := checkIndex(idx); err != nil {
		return models.DroughtIndex{}, err
	}
	if _, err := s.store.GetRegion(ctx, id); err != nil {
		return models.DroughtIndex{}, fmt.Errorf("insert index for %s: %w", id, err)
	}

	idx.ID = 0
	idx.RegionID = id
	if idx.SeverityLevel == "" {
		idx.SeverityLevel = drought.SeverityLevel(idx.AnomalyScore)
	}
	if idx.CreatedAt.IsZero() {
		idx.CreatedAt = s.clock.Now()
	}
	idx.CreatedAt = idx.CreatedAt.UTC()

	stored, err := s.store.InsertIndex(ctx, idx)
	if err != nil {
		return models.DroughtIndex{}, fmt.Errorf("insert index for %s: %w", id, err)
	}
	return stored, nil
}

func checkIndex(idx models.DroughtIndex) error {
	if err := drought.CheckIndex(idx); err != nil {
		return err
	}
	switch idx.SeverityLevel {
	case "", models.SeverityNone, models.SeverityMild, models.SeverityModerate, models.SeveritySevere, models.SeverityExtreme:
		return nil
	}
	return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, idx.SeverityLevel)
}

// CurrentIndex returns the newest index record for a region.
func (s *DroughtService) CurrentIndex(ctx context.Context, regionID string) (models.DroughtIndex, error) {
	idx, err := s.store.LatestIndex(ctx, regionID)
	if err != nil {
		return models.DroughtIndex{}, fmt.Errorf("current index for %s: %w", regionID, err)
	}
	return idx, nil
}

// ListIndices returns the region's index records from the last days days, newest first.
// An unknown region is reported as not found rather than an empty series.
func (s *DroughtService) ListIndices(ctx context.Context, regionID string, days int) ([]models.DroughtIndex, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, validation.ErrInvalidDays)
	}
	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return nil, fmt.Errorf("list indices for %s: %w", regionID, err)
	}
	since := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	indices, err := s.store.ListIndicesSince(ctx, regionID, since)
	if err != nil {
		return nil, fmt.Errorf("list indices for %s: %w", regionID, err)
	}
	return indices, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
