package drought

import (
	"math"
	"time"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

const forecastDateLayout = "2006-01-02"

// PredictDrought projects the newest anomaly score forward one point per day for
// horizonDays days. history is newest first. An empty history or a non-positive
// horizon returns an empty slice. now anchors the dates; day i is now + i days (UTC).
func PredictDrought(history []models.DroughtIndex, horizonDays int, now time.Time) []models.ForecastPoint {
	if len(history) == 0 || horizonDays <= 0 {
		return []models.ForecastPoint{}
	}
	baseline, trend := forecastInputs(history)
	return project(baseline, trend, horizonDays, now)
}

// BuildForecast runs PredictDrought and records the inputs that produced it.
func BuildForecast(regionID string, history []models.DroughtIndex, horizonDays int, now time.Time) models.Forecast {
	f := models.Forecast{
		RegionID:    regionID,
		HorizonDays: horizonDays,
		HistorySize: len(history),
		GeneratedAt: now.UTC(),
		Points:      []models.ForecastPoint{},
	}
	if len(history) == 0 || horizonDays <= 0 {
		return f
	}
	f.BaselineScore, f.Trend = forecastInputs(history)
	f.Points = project(f.BaselineScore, f.Trend, horizonDays, now)
	return f
}

// forecastInputs returns the newest score and the slope to extrapolate with.
// Short histories use TrendFallback instead of a fitted slope.
func forecastInputs(history []models.DroughtIndex) (baseline, trend float64) {
	baseline = finiteOrZero(history[0].AnomalyScore)
	trend = TrendFallback
	if len(history) >= TrendMinHistory {
		trend = CalculateTrend(history)
	}
	return baseline, trend
}

func project(baseline, trend float64, horizonDays int, now time.Time) []models.ForecastPoint {
	day := now.UTC()
	points := make([]models.ForecastPoint, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		score := baseline + trend*(float64(i)/TrendScaleDays)
		points = append(points, models.ForecastPoint{
			Date:              day.AddDate(0, 0, i).Format(forecastDateLayout),
			PredictedSeverity: SeverityLevel(score),
			Probability:       forecastProbability(score),
		})
	}
	return points
}

// forecastProbability is rounded to a whole percent.
func forecastProbability(score float64) float64 {
	p := math.Min(100, ForecastProbabilityFloor+math.Abs(score)*ForecastProbabilityScale)
	return math.Round(p)
}
