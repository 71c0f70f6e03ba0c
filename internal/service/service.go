package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/alerts"
	"github.com/kjstillabower/drought-index-service/internal/cache"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
	"github.com/kjstillabower/drought-index-service/internal/store"
	"github.com/kjstillabower/drought-index-service/internal/validation"
)

// ErrInvalidInput wraps request values the service rejects before touching the store.
var ErrInvalidInput = errors.New("invalid input")

// Defaults applied by NewDroughtService for zero Options fields.
const (
	DefaultCacheTTL        = 15 * time.Minute
	DefaultHistoryLimit    = 100
	DefaultCoalesceTimeout = 5 * time.Second
	AffectedWindow         = 24 * time.Hour
)

// Options configures a DroughtService.
type Options struct {
	CacheTTL        time.Duration
	HistoryLimit    int           // indices loaded per forecast or prediction run
	CoalesceTimeout time.Duration // zero uses DefaultCoalesceTimeout; negative disables coalescing
	Clock           clockwork.Clock
	Logger          *zap.Logger
}

// DroughtService orchestrates ingestion, forecasting and alerting on top of the
// store. Forecasts use a cache-aside pattern with request coalescing.
type DroughtService struct {
	store     store.Store
	cache     cache.Cache
	publisher alerts.Publisher
	clock     clockwork.Clock
	logger    *zap.Logger

	ttl             time.Duration
	historyLimit    int
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer // nil when coalescing is disabled
}

// NewDroughtService creates a DroughtService. publisher may be nil, in which
// case alerts are stored but not dispatched.
func NewDroughtService(st store.Store, c cache.Cache, publisher alerts.Publisher, opts Options) *DroughtService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.CoalesceTimeout == 0 {
		opts.CoalesceTimeout = DefaultCoalesceTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var coalescer *requestCoalescer
	if opts.CoalesceTimeout > 0 {
		coalescer = newRequestCoalescer(opts.CoalesceTimeout)
	}
	return &DroughtService{
		store:           st,
		cache:           c,
		publisher:       publisher,
		clock:           opts.Clock,
		logger:          opts.Logger,
		ttl:             opts.CacheTTL,
		historyLimit:    opts.HistoryLimit,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

// CreateRegion validates and stores a new region.
func (s *DroughtService) CreateRegion(ctx context.Context, region models.Region) (models.Region, error) {
	id, err := validation.ValidateRegionID(region.ID)
	if err != nil {
		return models.Region{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validation.ValidateCoordinates(region.Latitude, region.Longitude); err != nil {
		return models.Region{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	region.ID = id
	region.Name = strings.TrimSpace(region.Name)
	if region.Name == "" {
		region.Name = id
	}
	if region.CreatedAt.IsZero() {
		region.CreatedAt = s.clock.Now().UTC()
	}

	created, err := s.store.CreateRegion(ctx, region)
	if err != nil {
		return models.Region{}, fmt.Errorf("create region %s: %w", id, err)
	}
	s.logFor(ctx).Info("region created", zap.String("region", id))
	return created, nil
}

// GetRegion returns a region by id.
func (s *DroughtService) GetRegion(ctx context.Context, id string) (models.Region, error) {
	region, err := s.store.GetRegion(ctx, id)
	if err != nil {
		return models.Region{}, fmt.Errorf("get region %s: %w", id, err)
	}
	return region, nil
}

// ListRegions returns all regions ordered by id.
func (s *DroughtService) ListRegions(ctx context.Context) ([]models.Region, error) {
	regions, err := s.store.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}

// Ping reports whether the store is reachable.
func (s *DroughtService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// logFor returns the request-scoped logger when present, otherwise the service logger.
func (s *DroughtService) logFor(ctx context.Context) *zap.Logger {
	if l := observability.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.logger
}
