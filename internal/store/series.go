package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

const indexColumns = `id, region_id, spi_3month, spi_6month, spei_3month, vci, ndvi,
	soil_moisture, anomaly_score, severity_level, confidence, data_source, created_at`

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InsertObservation stores one cleaned observation.
func (s *SQLStore) InsertObservation(ctx context.Context, obs models.Observation) (err error) {
	defer func(start time.Time) { observe("insert_observation", start, err) }(time.Now())
	return s.insertObservation(ctx, s.db, obs)
}

func (s *SQLStore) insertObservation(ctx context.Context, q dbtx, obs models.Observation) error {
	var temperature sql.NullFloat64
	if obs.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *obs.Temperature, Valid: true}
	}
	var precipitation float64
	if obs.Precipitation != nil {
		precipitation = *obs.Precipitation
	}

	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO observations (
			region_id, temperature, precipitation, humidity, wind_speed,
			evapotranspiration, soil_moisture, observed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		obs.RegionID, temperature, precipitation, obs.Humidity, obs.WindSpeed,
		obs.Evapotranspiration, obs.SoilMoisture, obs.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: insert observation: %w", err)
	}
	return nil
}

// RecordObservation stores an observation and the index derived from it in a
// single transaction. Neither row is kept if either insert fails.
func (s *SQLStore) RecordObservation(ctx context.Context, obs models.Observation, idx models.DroughtIndex) (_ models.DroughtIndex, err error) {
	defer func(start time.Time) { observe("record_observation", start, err) }(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.DroughtIndex{}, fmt.Errorf("store: begin observation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.insertObservation(ctx, tx, obs); err != nil {
		return models.DroughtIndex{}, err
	}
	stored, err := s.insertIndex(ctx, tx, idx)
	if err != nil {
		return models.DroughtIndex{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.DroughtIndex{}, fmt.Errorf("store: commit observation: %w", err)
	}
	return stored, nil
}

// ListObservations returns observations for a region recorded at or after since, newest first.
func (s *SQLStore) ListObservations(ctx context.Context, regionID string, since time.Time) (_ []models.Observation, err error) {
	defer func(start time.Time) { observe("list_observations", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT region_id, temperature, precipitation, humidity, wind_speed,
			evapotranspiration, soil_moisture, observed_at
		FROM observations
		WHERE region_id = ? AND observed_at >= ?
		ORDER BY observed_at DESC, id DESC`),
		regionID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: list observations: %w", err)
	}
	defer rows.Close()

	out := []models.Observation{}
	for rows.Next() {
		var (
			o           models.Observation
			temperature sql.NullFloat64
			precip      float64
		)
		if err = rows.Scan(&o.RegionID, &temperature, &precip, &o.Humidity, &o.WindSpeed,
			&o.Evapotranspiration, &o.SoilMoisture, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan observation: %w", err)
		}
		if temperature.Valid {
			t := temperature.Float64
			o.Temperature = &t
		}
		o.Precipitation = &precip
		out = append(out, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list observations: %w", err)
	}
	return out, nil
}

// InsertIndex stores a drought index record and returns it with its id set.
func (s *SQLStore) InsertIndex(ctx context.Context, idx models.DroughtIndex) (_ models.DroughtIndex, err error) {
	defer func(start time.Time) { observe("insert_index", start, err) }(time.Now())
	return s.insertIndex(ctx, s.db, idx)
}

func (s *SQLStore) insertIndex(ctx context.Context, q dbtx, idx models.DroughtIndex) (models.DroughtIndex, error) {
	if idx.CreatedAt.IsZero() {
		idx.CreatedAt = time.Now()
	}
	idx.CreatedAt = idx.CreatedAt.UTC()

	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO drought_indices (
			region_id, spi_3month, spi_6month, spei_3month, vci, ndvi,
			soil_moisture, anomaly_score, severity_level, confidence, data_source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		idx.RegionID, idx.SPI3Month, idx.SPI6Month, idx.SPEI3Month, idx.VCI, idx.NDVI,
		idx.SoilMoisture, idx.AnomalyScore, idx.SeverityLevel, idx.Confidence, idx.DataSource, idx.CreatedAt,
	).Scan(&idx.ID)
	if err != nil {
		return models.DroughtIndex{}, fmt.Errorf("store: insert index: %w", err)
	}
	return idx, nil
}

// LatestIndex returns the newest index for a region or ErrNotFound.
func (s *SQLStore) LatestIndex(ctx context.Context, regionID string) (_ models.DroughtIndex, err error) {
	defer func(start time.Time) { observe("latest_index", start, err) }(time.Now())

	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+indexColumns+`
		FROM drought_indices
		WHERE region_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`), regionID)

	idx, err := scanIndex(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DroughtIndex{}, fmt.Errorf("index for region %q: %w", regionID, ErrNotFound)
	}
	if err != nil {
		return models.DroughtIndex{}, fmt.Errorf("store: latest index: %w", err)
	}
	return idx, nil
}

// ListIndices returns up to limit indices for a region, newest first.
func (s *SQLStore) ListIndices(ctx context.Context, regionID string, limit int) (_ []models.DroughtIndex, err error) {
	defer func(start time.Time) { observe("list_indices", start, err) }(time.Now())

	if limit <= 0 {
		return []models.DroughtIndex{}, nil
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+indexColumns+`
		FROM drought_indices
		WHERE region_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), regionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list indices: %w", err)
	}
	return collectIndices(rows)
}

// ListIndicesSince returns indices for a region created at or after since, newest first.
func (s *SQLStore) ListIndicesSince(ctx context.Context, regionID string, since time.Time) (_ []models.DroughtIndex, err error) {
	defer func(start time.Time) { observe("list_indices_since", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+indexColumns+`
		FROM drought_indices
		WHERE region_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC`), regionID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: list indices: %w", err)
	}
	return collectIndices(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndex(row rowScanner) (models.DroughtIndex, error) {
	var idx models.DroughtIndex
	err := row.Scan(&idx.ID, &idx.RegionID, &idx.SPI3Month, &idx.SPI6Month, &idx.SPEI3Month,
		&idx.VCI, &idx.NDVI, &idx.SoilMoisture, &idx.AnomalyScore, &idx.SeverityLevel,
		&idx.Confidence, &idx.DataSource, &idx.CreatedAt)
	return idx, err
}

func collectIndices(rows *sql.Rows) ([]models.DroughtIndex, error) {
	defer rows.Close()

	out := []models.DroughtIndex{}
	for rows.Next() {
		idx, err := scanIndex(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan index: %w", err)
		}
		out = append(out, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list indices: %w", err)
	}
	return out, nil
}
