package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

var (
	// ErrNotFound is returned when a region or record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a record with the same key already exists.
	ErrConflict = errors.New("store: conflict")
)

// Store persists regions, observations, drought indices, predictions and alerts.
// Series methods return records newest first.
type Store interface {
	CreateRegion(ctx context.Context, region models.Region) (models.Region, error)
	GetRegion(ctx context.Context, id string) (models.Region, error)
	ListRegions(ctx context.Context) ([]models.Region, error)

	InsertObservation(ctx context.Context, obs models.Observation) error
	ListObservations(ctx context.Context, regionID string, since time.Time) ([]models.Observation, error)

	InsertIndex(ctx context.Context, idx models.DroughtIndex) (models.DroughtIndex, error)
	RecordObservation(ctx context.Context, obs models.Observation, idx models.DroughtIndex) (models.DroughtIndex, error)
	LatestIndex(ctx context.Context, regionID string) (models.DroughtIndex, error)
	ListIndices(ctx context.Context, regionID string, limit int) ([]models.DroughtIndex, error)
	ListIndicesSince(ctx context.Context, regionID string, since time.Time) ([]models.DroughtIndex, error)

	InsertPredictions(ctx context.Context, predictions []models.Prediction) error
	LatestPredictions(ctx context.Context, regionID string) ([]models.Prediction, error)

	InsertAlert(ctx context.Context, alert models.Alert) error
	ListAlerts(ctx context.Context, activeOnly bool) ([]models.Alert, error)

	AffectedAreas(ctx context.Context, severities []string, since time.Time) ([]models.AffectedArea, error)

	Ping(ctx context.Context) error
	Close() error
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver       string
	URL          string
	MaxOpenConns int
	Migrate      bool
}

// SQLStore implements Store on database/sql. Queries are written with '?'
// placeholders and rebound for postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Open connects to the configured database, verifies the connection and
// optionally applies pending migrations.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("store: database url is required")
	}

	var (
		db  *sql.DB
		err error
	)
	switch opts.Driver {
	case DriverPostgres:
		db, err = sql.Open("postgres", opts.URL)
		if err == nil && opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
			db.SetMaxIdleConns(opts.MaxOpenConns)
		}
	case DriverSQLite:
		db, err = sql.Open("sqlite", opts.URL)
		if err == nil {
			// A single connection serialises writers and keeps :memory: databases alive.
			db.SetMaxOpenConns(1)
			db.SetConnMaxLifetime(0)
			db.SetConnMaxIdleTime(0)
		}
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", opts.Driver, err)
	}

	s := &SQLStore{db: db, driver: opts.Driver, logger: logger}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if opts.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: enable foreign keys: %w", err)
		}
	}
	if opts.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Ping verifies the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind converts '?' placeholders to the driver's bind style.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLStore) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// observe records the duration of a store operation.
func observe(operation string, start time.Time, err error) {
	result := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	observability.StoreOperationDurationSeconds.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}
