package drought

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

var forecastNow = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func TestPredictDrought(t *testing.T) {
	t.Run("short history uses fallback drift", func(t *testing.T) {
		got := PredictDrought(scores(-0.3), 1, forecastNow)
		want := []models.ForecastPoint{{Date: "2024-06-02", PredictedSeverity: models.SeverityModerate, Probability: 66}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("forecast mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		got := PredictDrought(nil, 30, forecastNow)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("non-positive horizon", func(t *testing.T) {
		assert.Empty(t, PredictDrought(scores(0.1), 0, forecastNow))
	})

	t.Run("horizon length and increasing dates", func(t *testing.T) {
		got := PredictDrought(scores(0.4, 0.2, 0.1), 45, forecastNow)
		require.Len(t, got, 45)
		prev := forecastNow.Format(forecastDateLayout)
		for _, p := range got {
			assert.Greater(t, p.Date, prev)
			assert.GreaterOrEqual(t, p.Probability, float64(ForecastProbabilityFloor))
			assert.LessOrEqual(t, p.Probability, 100.0)
			prev = p.Date
		}
		assert.Equal(t, "2024-07-16", got[44].Date)
	})

	t.Run("fitted trend with ten records", func(t *testing.T) {
		history := make([]float64, TrendMinHistory)
		for i := range history {
			history[i] = float64(i) * 0.3
		}
		got := PredictDrought(scores(history...), 30, forecastNow)
		// baseline 0, slope 0.3 per record, reached after 30 days
		last := got[29]
		assert.Equal(t, models.SeverityMild, last.PredictedSeverity)
		assert.Equal(t, 66.0, last.Probability)
	})

	t.Run("dates are UTC calendar days", func(t *testing.T) {
		loc := time.FixedZone("UTC+10", 10*60*60)
		local := time.Date(2024, 6, 2, 5, 0, 0, 0, loc) // 2024-06-01 19:00 UTC
		got := PredictDrought(scores(0), 1, local)
		assert.Equal(t, "2024-06-02", got[0].Date)
	})

	t.Run("deterministic", func(t *testing.T) {
		h := scores(-0.6, -0.5, -0.2, 0, 0.1, 0.3, -0.1, -0.2, -0.4, -0.7, -0.9)
		assert.Equal(t, PredictDrought(h, 14, forecastNow), PredictDrought(h, 14, forecastNow))
	})

	t.Run("probability is capped", func(t *testing.T) {
		got := PredictDrought(scores(-5), 3, forecastNow)
		for _, p := range got {
			assert.Equal(t, 100.0, p.Probability)
			assert.Equal(t, models.SeverityExtreme, p.PredictedSeverity)
		}
	})
}

func TestBuildForecast(t *testing.T) {
	f := BuildForecast("r1", scores(-0.3, -0.2), 7, forecastNow)
	assert.Equal(t, "r1", f.RegionID)
	assert.Equal(t, 7, f.HorizonDays)
	assert.Equal(t, 2, f.HistorySize)
	assert.Equal(t, -0.3, f.BaselineScore)
	assert.Equal(t, TrendFallback, f.Trend)
	assert.Len(t, f.Points, 7)
	assert.Equal(t, forecastNow, f.GeneratedAt)

	empty := BuildForecast("r2", nil, 7, forecastNow)
	assert.Empty(t, empty.Points)
	assert.Equal(t, 0, empty.HistorySize)
}
