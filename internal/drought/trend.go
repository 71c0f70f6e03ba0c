package drought

import (
	"math"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// CalculateTrend fits an ordinary least-squares slope to the anomaly scores of the
// newest min(len, TrendWindow) records. series is newest first and x is the index
// into it, so the slope is measured against record age, not calendar time.
// Returns 0 for fewer than two records. Non-finite scores count as 0.
func CalculateTrend(series []models.DroughtIndex) float64 {
	if len(series) < 2 {
		return 0
	}
	n := len(series)
	if n > TrendWindow {
		n = TrendWindow
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := 0; i < n; i++ {
		x := float64(i)
		y := finiteOrZero(series[i].AnomalyScore)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumX2 - sumX*sumX)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return slope
}
