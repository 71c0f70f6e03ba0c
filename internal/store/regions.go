package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// CreateRegion inserts a region. Returns ErrConflict if the id is taken.
func (s *SQLStore) CreateRegion(ctx context.Context, region models.Region) (_ models.Region, err error) {
	defer func(start time.Time) { observe("create_region", start, err) }(time.Now())

	if region.CreatedAt.IsZero() {
		region.CreatedAt = time.Now()
	}
	region.CreatedAt = region.CreatedAt.UTC()

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO regions (id, name, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		region.ID, region.Name, region.Latitude, region.Longitude, region.CreatedAt,
	)
	if err != nil {
		if s.isUniqueViolation(err) {
			return models.Region{}, fmt.Errorf("region %q: %w", region.ID, ErrConflict)
		}
		return models.Region{}, fmt.Errorf("store: create region: %w", err)
	}
	return region, nil
}

// GetRegion returns the region with id or ErrNotFound.
func (s *SQLStore) GetRegion(ctx context.Context, id string) (_ models.Region, err error) {
	defer func(start time.Time) { observe("get_region", start, err) }(time.Now())

	var r models.Region
	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, latitude, longitude, created_at
		FROM regions WHERE id = ?`), id,
	).Scan(&r.ID, &r.Name, &r.Latitude, &r.Longitude, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Region{}, fmt.Errorf("region %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Region{}, fmt.Errorf("store: get region: %w", err)
	}
	return r, nil
}

// ListRegions returns all regions ordered by id.
func (s *SQLStore) ListRegions(ctx context.Context) (_ []models.Region, err error) {
	defer func(start time.Time) { observe("list_regions", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, latitude, longitude, created_at
		FROM regions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list regions: %w", err)
	}
	defer rows.Close()

	regions := []models.Region{}
	for rows.Next() {
		var r models.Region
		if err = rows.Scan(&r.ID, &r.Name, &r.Latitude, &r.Longitude, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan region: %w", err)
		}
		regions = append(regions, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list regions: %w", err)
	}
	return regions, nil
}

// AffectedAreas returns regions whose latest index since the given time has
// one of the severities, driest first.
func (s *SQLStore) AffectedAreas(ctx context.Context, severities []string, since time.Time) (_ []models.AffectedArea, err error) {
	defer func(start time.Time) { observe("affected_areas", start, err) }(time.Now())

	areas := []models.AffectedArea{}
	if len(severities) == 0 {
		return areas, nil
	}

	args := make([]any, 0, len(severities)+1)
	args = append(args, since.UTC())
	for _, sev := range severities {
		args = append(args, sev)
	}

	query := s.rebind(`
		SELECT r.id, r.name, r.latitude, r.longitude, di.severity_level, di.anomaly_score
		FROM regions r
		JOIN drought_indices di ON di.region_id = r.id
		WHERE di.id = (
			SELECT latest.id FROM drought_indices latest
			WHERE latest.region_id = r.id
			ORDER BY latest.created_at DESC, latest.id DESC
			LIMIT 1
		)
		AND di.created_at >= ?
		AND di.severity_level IN (` + placeholders(len(severities)) + `)
		ORDER BY di.anomaly_score DESC, r.id`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: affected areas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.AffectedArea
		if err = rows.Scan(&a.RegionID, &a.Name, &a.Latitude, &a.Longitude, &a.SeverityLevel, &a.AnomalyScore); err != nil {
			return nil, fmt.Errorf("store: scan affected area: %w", err)
		}
		areas = append(areas, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: affected areas: %w", err)
	}
	return areas, nil
}
