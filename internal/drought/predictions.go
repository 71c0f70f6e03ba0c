package drought

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// Model names recorded on generated predictions.
const (
	ModelShortTerm = "SHORT_TERM_SPI"
	ModelSeasonal  = "SEASONAL_BASELINE"
)

const (
	shortTermWindows     = 4
	shortTermWindow      = 7 * 24 * time.Hour
	shortTermBaseProb    = 45.0
	shortTermProbPerSPI  = 10.0
	shortTermSPIStep     = 0.1
	shortTermBaseConf    = 0.92
	shortTermConfStep    = 0.05
	seasonalLeadMonths   = 3
	seasonalWindow       = 90 * 24 * time.Hour
	seasonalProbability  = 65.0
	seasonalConfidence   = 0.75
	predictionMinHistory = TrendMinHistory
)

// GeneratePredictions runs the short-term and seasonal models over history
// (newest first). Fewer than TrendMinHistory records yields nil.
//
// The short-term model emits one prediction per week for four weeks, drifting the
// newest SPI-3 down by 0.1 per week and losing 0.05 confidence per week. The
// seasonal model emits a single 90-day window starting three months out.
func GeneratePredictions(regionID string, history []models.DroughtIndex, now time.Time) []models.Prediction {
	if len(history) < predictionMinHistory {
		return nil
	}
	now = now.UTC()
	lastSPI := finiteOrZero(history[0].SPI3Month)
	factors := keyFactors(history)

	out := make([]models.Prediction, 0, shortTermWindows+1)
	for i := 1; i <= shortTermWindows; i++ {
		from := now.Add(time.Duration(i) * shortTermWindow)
		out = append(out, models.Prediction{
			RegionID:           regionID,
			ForecastDate:       now,
			ValidFrom:          from,
			ValidUntil:         from.Add(shortTermWindow),
			DroughtProbability: round(math.Min(100, shortTermBaseProb+math.Abs(lastSPI)*shortTermProbPerSPI), 2),
			PredictedSeverity:  MapSPISeverity(lastSPI - float64(i)*shortTermSPIStep),
			ConfidenceLevel:    decimal.NewFromFloat(shortTermBaseConf).Sub(decimal.NewFromFloat(shortTermConfStep).Mul(decimal.NewFromInt(int64(i)))).InexactFloat64(),
			ModelName:          ModelShortTerm,
			KeyFactors:         factors,
		})
	}

	from := now.AddDate(0, seasonalLeadMonths, 0)
	out = append(out, models.Prediction{
		RegionID:           regionID,
		ForecastDate:       now,
		ValidFrom:          from,
		ValidUntil:         from.Add(seasonalWindow),
		DroughtProbability: seasonalProbability,
		PredictedSeverity:  models.PredictedSevere,
		ConfidenceLevel:    seasonalConfidence,
		ModelName:          ModelSeasonal,
		KeyFactors:         factors,
	})
	return out
}

// keyFactors summarises the history the models saw.
func keyFactors(history []models.DroughtIndex) map[string]any {
	n := len(history)
	if n > TrendWindow {
		n = TrendWindow
	}
	var spiSum, soilSum float64
	for _, h := range history[:n] {
		spiSum += finiteOrZero(h.SPI3Month)
		soilSum += finiteOrZero(h.SoilMoisture)
	}
	soilTrend := "stable"
	if d := finiteOrZero(history[0].SoilMoisture) - soilSum/float64(n); d < 0 {
		soilTrend = "descending"
	} else if d > 0 {
		soilTrend = "ascending"
	}
	return map[string]any{
		"spi3MonthMean":     round(spiSum/float64(n), 2),
		"anomalyTrend":      round(CalculateTrend(history), 4),
		"soilMoistureTrend": soilTrend,
		"historySize":       len(history),
	}
}
