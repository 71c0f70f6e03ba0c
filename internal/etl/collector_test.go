package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/drought-index-service/internal/client"
	"github.com/kjstillabower/drought-index-service/internal/models"
)

var errNoRegion = errors.New("not found")

type fakeRegions map[string]models.Region

func (f fakeRegions) GetRegion(ctx context.Context, id string) (models.Region, error) {
	r, ok := f[id]
	if !ok {
		return models.Region{}, errNoRegion
	}
	return r, nil
}

type fakeConditions struct {
	fail map[float64]error // keyed by latitude
}

func (f fakeConditions) GetCurrentConditions(ctx context.Context, lat, lon float64) (models.Observation, error) {
	if err := f.fail[lat]; err != nil {
		return models.Observation{}, err
	}
	return obsAt(0, 1, 5), nil
}

type fakeIngester struct {
	mu   sync.Mutex
	seen []models.Observation
}

func (f *fakeIngester) IngestObservation(ctx context.Context, obs models.Observation, source string) (IngestResult, error) {
	f.mu.Lock()
	f.seen = append(f.seen, obs)
	f.mu.Unlock()
	idx, err := DeriveIndex(obs, nil, source)
	return IngestResult{Issues: []string{"precipitation missing, defaulted to 0"}, Index: idx}, err
}

type fakeAlerts struct{ count int }

func (f fakeAlerts) EvaluateAlerts(ctx context.Context, regionID string) ([]models.Alert, error) {
	return make([]models.Alert, f.count), nil
}

func testRegions() fakeRegions {
	return fakeRegions{
		"turkana": {ID: "turkana", Latitude: 3.1, Longitude: 35.6},
		"garissa": {ID: "garissa", Latitude: -0.45, Longitude: 39.6},
	}
}

func TestCollector_RunOnce_Success(t *testing.T) {
	ingester := &fakeIngester{}
	clock := clockwork.NewFakeClockAt(now)
	c := NewCollector(testRegions(), fakeConditions{}, ingester, fakeAlerts{count: 1}, nil, clock)

	res, err := c.RunOnce(context.Background(), []string{"turkana", "garissa"})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.StartedAt.Equal(now))
	require.Len(t, res.Regions, 2)
	assert.Equal(t, "garissa", res.Regions[0].RegionID, "sorted by region")
	for _, r := range res.Regions {
		assert.Equal(t, 1, r.Collected)
		assert.Equal(t, 1, r.Alerts)
		assert.NotEmpty(t, r.Severity)
		assert.Equal(t, []string{"precipitation missing, defaulted to 0"}, r.Issues)
	}

	require.Len(t, ingester.seen, 2)
	for _, obs := range ingester.seen {
		assert.NotEmpty(t, obs.RegionID, "collector stamps the region id")
	}
}

func TestCollector_RunOnce_Partial(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	conditions := fakeConditions{fail: map[float64]error{
		-0.45: fmt.Errorf("exhausted retries: %w", client.ErrUpstreamFailure),
	}}
	c := NewCollector(testRegions(), conditions, &fakeIngester{}, nil, zap.New(core), clockwork.NewFakeClock())

	res, err := c.RunOnce(context.Background(), []string{"turkana", "garissa", "unknown"})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUpstreamFailure)
	assert.ErrorIs(t, err, errNoRegion)

	assert.Equal(t, StatusPartial, res.Status)
	byID := map[string]RegionResult{}
	for _, r := range res.Regions {
		byID[r.RegionID] = r
	}
	assert.Empty(t, byID["turkana"].Error)
	assert.Equal(t, 0, byID["garissa"].Collected)
	assert.Contains(t, byID["garissa"].Issues, "fetch failed (upstream_5xx)")
	assert.Contains(t, byID["unknown"].Error, "lookup unknown")

	assert.Equal(t, 2, logs.FilterMessage("collector region failed").Len())
}

func TestCollector_RunOnce_AllFailed(t *testing.T) {
	c := NewCollector(fakeRegions{}, fakeConditions{}, &fakeIngester{}, nil, nil, nil)

	res, err := c.RunOnce(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, StatusFailure, res.Status)
}

func TestCollector_RunOnce_NoRegions(t *testing.T) {
	c := NewCollector(fakeRegions{}, fakeConditions{}, &fakeIngester{}, nil, nil, nil)

	res, err := c.RunOnce(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Empty(t, res.Regions)
}

func TestCollector_Run_StopsOnCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ingester := &fakeIngester{}
	c := NewCollector(testRegions(), fakeConditions{}, ingester, nil, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, []string{"turkana"}, time.Hour) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)
	require.Eventually(t, func() bool {
		ingester.mu.Lock()
		defer ingester.mu.Unlock()
		return len(ingester.seen) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
