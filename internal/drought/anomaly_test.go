package drought

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

func TestCalculateDroughtIndex(t *testing.T) {
	t.Run("neutral temperature, wet enough", func(t *testing.T) {
		got, err := CalculateDroughtIndex(ScoreInput{Precipitation: 100, Temperature: 20, Humidity: 50, Evapotranspiration: 80})
		require.NoError(t, err)
		assert.InDelta(t, 0.2, got.AnomalyScore, 1e-12)
		// 0.2 is not strictly above the mild threshold.
		assert.Equal(t, models.SeverityModerate, got.SeverityLevel)
		assert.InDelta(t, 20.0, got.Confidence, 1e-9)
		assert.Equal(t, -20.0, got.MoistureDeficit)
	})

	t.Run("hot and dry is extreme", func(t *testing.T) {
		got, err := CalculateDroughtIndex(ScoreInput{Precipitation: 0, Temperature: 40, Humidity: 10, Evapotranspiration: 120})
		require.NoError(t, err)
		assert.InDelta(t, -0.5, got.AnomalyScore, 1e-12)
		assert.Equal(t, models.SeverityExtreme, got.SeverityLevel)
	})

	t.Run("confidence is capped", func(t *testing.T) {
		got, err := CalculateDroughtIndex(ScoreInput{Precipitation: 250, Temperature: 10, Humidity: 80})
		require.NoError(t, err)
		assert.Equal(t, models.SeverityNone, got.SeverityLevel)
		assert.Equal(t, 100.0, got.Confidence)
	})

	t.Run("humidity does not move the score", func(t *testing.T) {
		a, err := CalculateDroughtIndex(ScoreInput{Precipitation: 60, Temperature: 25, Humidity: 0})
		require.NoError(t, err)
		b, err := CalculateDroughtIndex(ScoreInput{Precipitation: 60, Temperature: 25, Humidity: 100})
		require.NoError(t, err)
		assert.Equal(t, a.AnomalyScore, b.AnomalyScore)
	})

	t.Run("non-finite input", func(t *testing.T) {
		_, err := CalculateDroughtIndex(ScoreInput{Precipitation: 10, Temperature: math.NaN()})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "temperature", verr.Field)
	})
}

func TestSeverityLevelBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.51, models.SeverityNone},
		{0.5, models.SeverityMild},
		{0.21, models.SeverityMild},
		{0.2, models.SeverityModerate},
		{-0.19, models.SeverityModerate},
		{-0.2, models.SeveritySevere},
		{-0.49, models.SeveritySevere},
		{-0.5, models.SeverityExtreme},
		{-3, models.SeverityExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityLevel(tt.score), "SeverityLevel(%v)", tt.score)
	}
}

func TestConfidenceRange(t *testing.T) {
	for p := 0.0; p <= 300; p += 25 {
		for temp := -40.0; temp <= 55; temp += 5 {
			got, err := CalculateDroughtIndex(ScoreInput{Precipitation: p, Temperature: temp, Humidity: 50})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 100.0)
		}
	}
}
