package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/alerts"
	"github.com/kjstillabower/drought-index-service/internal/decision"
	"github.com/kjstillabower/drought-index-service/internal/drought"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// GetPredictions runs the prediction models over the region's history and
// persists the result. With too little history for the models, the most recent
// stored run is returned instead, which may be empty.
func (s *DroughtService) GetPredictions(ctx context.Context, regionID string) ([]models.Prediction, error) {
	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return nil, fmt.Errorf("predictions for %s: %w", regionID, err)
	}
	history, err := s.store.ListIndices(ctx, regionID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", regionID, err)
	}

	predictions := drought.GeneratePredictions(regionID, history, s.clock.Now())
	if len(predictions) == 0 {
		stored, err := s.store.LatestPredictions(ctx, regionID)
		if err != nil {
			return nil, fmt.Errorf("load predictions for %s: %w", regionID, err)
		}
		return stored, nil
	}
	if err := s.store.InsertPredictions(ctx, predictions); err != nil {
		return nil, fmt.Errorf("store predictions for %s: %w", regionID, err)
	}
	s.logFor(ctx).Debug("predictions generated", zap.String("region", regionID), zap.Int("count", len(predictions)), zap.Int("history", len(history)))
	return predictions, nil
}

// GetRecommendations derives decision-support actions from the region's latest
// stored prediction. No prediction yields an empty list.
func (s *DroughtService) GetRecommendations(ctx context.Context, regionID string) ([]models.Recommendation, error) {
	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return nil, fmt.Errorf("recommendations for %s: %w", regionID, err)
	}
	latest, err := s.store.LatestPredictions(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("load predictions for %s: %w", regionID, err)
	}
	if len(latest) == 0 {
		return []models.Recommendation{}, nil
	}
	return decision.Recommend(regionID, latest[0]), nil
}

// EvaluateAlerts applies the alert rules to the region's latest index and
// prediction. A triggered alert is stored, then published. Publish failures are
// logged and counted but do not fail the call since the alert is already stored.
func (s *DroughtService) EvaluateAlerts(ctx context.Context, regionID string) ([]models.Alert, error) {
	logger := s.logFor(ctx)
	if _, err := s.store.GetRegion(ctx, regionID); err != nil {
		return nil, fmt.Errorf("evaluate alerts for %s: %w", regionID, err)
	}

	var in alerts.Inputs
	idx, err := s.store.LatestIndex(ctx, regionID)
	switch {
	case err == nil:
		in.Index = &idx
	case !isNotFound(err):
		return nil, fmt.Errorf("load index for %s: %w", regionID, err)
	}
	predictions, err := s.store.LatestPredictions(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("load predictions for %s: %w", regionID, err)
	}
	if len(predictions) > 0 {
		in.Prediction = &predictions[0]
	}

	alert, triggered := alerts.Evaluate(regionID, in, s.clock.Now())
	if !triggered {
		return []models.Alert{}, nil
	}
	if err := s.store.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("store alert for %s: %w", regionID, err)
	}
	observability.AlertsTriggeredTotal.WithLabelValues(alert.Type, alert.Severity).Inc()
	logger.Info("alert triggered",
		zap.String("region", regionID),
		zap.String("alert_id", alert.ID),
		zap.String("type", alert.Type),
		zap.String("severity", alert.Severity),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, alert); err != nil {
			observability.AlertPublishErrorsTotal.WithLabelValues(publisherLabel(s.publisher)).Inc()
			logger.Warn("alert publish failed", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}
	return []models.Alert{alert}, nil
}

// ListAlerts returns stored alerts, newest first.
func (s *DroughtService) ListAlerts(ctx context.Context, activeOnly bool) ([]models.Alert, error) {
	list, err := s.store.ListAlerts(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return list, nil
}

// AffectedAreas returns regions whose latest index in the last AffectedWindow is at
// severity or extreme, most anomalous first.
func (s *DroughtService) AffectedAreas(ctx context.Context, severity string) ([]models.AffectedArea, error) {
	switch severity {
	case models.SeverityNone, models.SeverityMild, models.SeverityModerate, models.SeveritySevere, models.SeverityExtreme:
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}
	severities := []string{severity}
	if severity != models.SeverityExtreme {
		severities = append(severities, models.SeverityExtreme)
	}
	areas, err := s.store.AffectedAreas(ctx, severities, s.clock.Now().Add(-AffectedWindow))
	if err != nil {
		return nil, fmt.Errorf("affected areas: %w", err)
	}
	return areas, nil
}

func publisherLabel(p alerts.Publisher) string {
	switch p.(type) {
	case *alerts.KafkaPublisher:
		return "kafka"
	case *alerts.LogPublisher:
		return "log"
	}
	return "other"
}
