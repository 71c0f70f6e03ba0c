package drought

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

func scores(values ...float64) []models.DroughtIndex {
	out := make([]models.DroughtIndex, len(values))
	for i, v := range values {
		out[i] = models.DroughtIndex{RegionID: "r1", AnomalyScore: v}
	}
	return out
}

func TestCalculateTrend(t *testing.T) {
	t.Run("fewer than two records", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateTrend(nil))
		assert.Equal(t, 0.0, CalculateTrend(scores(-0.4)))
	})

	t.Run("slope is against index order", func(t *testing.T) {
		assert.InDelta(t, -1.0, CalculateTrend(scores(3, 2, 1, 0)), 1e-12)
		assert.InDelta(t, 0.5, CalculateTrend(scores(0, 0.5, 1, 1.5)), 1e-12)
	})

	t.Run("flat series", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateTrend(scores(0.2, 0.2, 0.2)))
	})

	t.Run("only the newest window counts", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			if i < TrendWindow {
				values[i] = float64(i)
			} else {
				values[i] = 1000
			}
		}
		assert.InDelta(t, 1.0, CalculateTrend(scores(values...)), 1e-9)
	})

	t.Run("non-finite scores count as zero", func(t *testing.T) {
		got := CalculateTrend(scores(math.NaN(), 1, 2))
		assert.InDelta(t, 1.0, got, 1e-12)
	})
}
