package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// InsertPredictions stores one prediction run in a single transaction.
func (s *SQLStore) InsertPredictions(ctx context.Context, predictions []models.Prediction) (err error) {
	defer func(start time.Time) { observe("insert_predictions", start, err) }(time.Now())

	if len(predictions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin predictions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO predictions (
			region_id, forecast_date, valid_from, valid_until,
			drought_probability_percentage, predicted_severity, confidence_level,
			model_name, key_factors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("store: prepare predictions: %w", err)
	}
	defer stmt.Close()

	for _, p := range predictions {
		var factors any
		if p.KeyFactors != nil {
			raw, mErr := json.Marshal(p.KeyFactors)
			if mErr != nil {
				err = fmt.Errorf("store: encode key factors: %w", mErr)
				return err
			}
			factors = string(raw)
		}
		if _, err = stmt.ExecContext(ctx,
			p.RegionID, p.ForecastDate.UTC(), p.ValidFrom.UTC(), p.ValidUntil.UTC(),
			p.DroughtProbability, p.PredictedSeverity, p.ConfidenceLevel,
			p.ModelName, factors,
		); err != nil {
			return fmt.Errorf("store: insert prediction: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit predictions: %w", err)
	}
	return nil
}

// LatestPredictions returns the most recent prediction run for a region,
// ordered by validity start. Empty when none exist.
func (s *SQLStore) LatestPredictions(ctx context.Context, regionID string) (_ []models.Prediction, err error) {
	defer func(start time.Time) { observe("latest_predictions", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, region_id, forecast_date, valid_from, valid_until,
			drought_probability_percentage, predicted_severity, confidence_level,
			model_name, key_factors
		FROM predictions
		WHERE region_id = ?
		AND forecast_date = (SELECT MAX(forecast_date) FROM predictions WHERE region_id = ?)
		ORDER BY valid_from, id`), regionID, regionID)
	if err != nil {
		return nil, fmt.Errorf("store: latest predictions: %w", err)
	}
	defer rows.Close()

	out := []models.Prediction{}
	for rows.Next() {
		var (
			p   models.Prediction
			raw []byte
		)
		if err = rows.Scan(&p.ID, &p.RegionID, &p.ForecastDate, &p.ValidFrom, &p.ValidUntil,
			&p.DroughtProbability, &p.PredictedSeverity, &p.ConfidenceLevel,
			&p.ModelName, &raw); err != nil {
			return nil, fmt.Errorf("store: scan prediction: %w", err)
		}
		if len(raw) > 0 {
			if err = json.Unmarshal(raw, &p.KeyFactors); err != nil {
				return nil, fmt.Errorf("store: decode key factors: %w", err)
			}
		}
		out = append(out, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: latest predictions: %w", err)
	}
	return out, nil
}
