package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// InsertAlert stores a triggered alert. Returns ErrConflict on a duplicate id.
func (s *SQLStore) InsertAlert(ctx context.Context, alert models.Alert) (err error) {
	defer func(start time.Time) { observe("insert_alert", start, err) }(time.Now())

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO alerts (id, region_id, alert_type, severity, title, message, is_active, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		alert.ID, alert.RegionID, alert.Type, alert.Severity, alert.Title, alert.Message,
		alert.Active, alert.TriggeredAt.UTC(),
	)
	if err != nil {
		if s.isUniqueViolation(err) {
			return fmt.Errorf("alert %q: %w", alert.ID, ErrConflict)
		}
		return fmt.Errorf("store: insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally only active ones.
func (s *SQLStore) ListAlerts(ctx context.Context, activeOnly bool) (_ []models.Alert, err error) {
	defer func(start time.Time) { observe("list_alerts", start, err) }(time.Now())

	query := `
		SELECT id, region_id, alert_type, severity, title, message, is_active, triggered_at
		FROM alerts`
	var args []any
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY triggered_at DESC, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}
	defer rows.Close()

	out := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		if err = rows.Scan(&a.ID, &a.RegionID, &a.Type, &a.Severity, &a.Title, &a.Message,
			&a.Active, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}
	return out, nil
}
