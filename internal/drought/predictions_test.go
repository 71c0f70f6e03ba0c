package drought

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

func spiHistory(n int, spi float64) []models.DroughtIndex {
	out := make([]models.DroughtIndex, n)
	for i := range out {
		out[i] = models.DroughtIndex{RegionID: "r1", SPI3Month: spi, SoilMoisture: 0.2}
	}
	return out
}

func TestGeneratePredictions(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("needs ten records", func(t *testing.T) {
		assert.Nil(t, GeneratePredictions("r1", spiHistory(9, -1.2), now))
	})

	t.Run("short-term and seasonal windows", func(t *testing.T) {
		got := GeneratePredictions("r1", spiHistory(12, -1.2), now)
		require.Len(t, got, 5)

		wantSeverity := []string{models.PredictedModerate, models.PredictedModerate, models.PredictedModerate, models.PredictedSevere}
		wantConfidence := []float64{0.87, 0.82, 0.77, 0.72}
		for i, p := range got[:4] {
			assert.Equal(t, ModelShortTerm, p.ModelName)
			assert.Equal(t, "r1", p.RegionID)
			assert.Equal(t, 57.0, p.DroughtProbability)
			assert.Equal(t, wantSeverity[i], p.PredictedSeverity, "week %d", i+1)
			assert.InDelta(t, wantConfidence[i], p.ConfidenceLevel, 1e-9)
			assert.Equal(t, now.AddDate(0, 0, 7*(i+1)), p.ValidFrom)
			assert.Equal(t, p.ValidFrom.AddDate(0, 0, 7), p.ValidUntil)
		}

		seasonal := got[4]
		assert.Equal(t, ModelSeasonal, seasonal.ModelName)
		assert.Equal(t, models.PredictedSevere, seasonal.PredictedSeverity)
		assert.Equal(t, 65.0, seasonal.DroughtProbability)
		assert.Equal(t, 0.75, seasonal.ConfidenceLevel)
		assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), seasonal.ValidFrom)
		assert.Equal(t, seasonal.ValidFrom.AddDate(0, 0, 90), seasonal.ValidUntil)
	})

	t.Run("key factors describe the history", func(t *testing.T) {
		h := spiHistory(10, -0.5)
		h[0].SoilMoisture = 0.1
		got := GeneratePredictions("r1", h, now)
		require.NotEmpty(t, got)
		assert.Equal(t, "descending", got[0].KeyFactors["soilMoistureTrend"])
		assert.Equal(t, -0.5, got[0].KeyFactors["spi3MonthMean"])
		assert.Equal(t, 10, got[0].KeyFactors["historySize"])
	})
}

func TestMapSPISeverity(t *testing.T) {
	assert.Equal(t, models.PredictedExtreme, MapSPISeverity(-2.1))
	assert.Equal(t, models.PredictedSevere, MapSPISeverity(-2.0))
	assert.Equal(t, models.PredictedModerate, MapSPISeverity(-1.5))
	assert.Equal(t, models.PredictedMild, MapSPISeverity(-0.01))
	assert.Equal(t, models.PredictedNormal, MapSPISeverity(0))
}
