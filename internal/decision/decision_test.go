package decision

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

func types(recs []models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		prob     float64
		want     []string
	}{
		{"normal yields nothing", models.PredictedNormal, 95, []string{}},
		{"mild gets crop advice only", models.PredictedMild, 50, []string{TypeCropAdvice}},
		{"moderate gets crop advice only", models.PredictedModerate, 90, []string{TypeCropAdvice}},
		{"severe at threshold skips livestock", models.PredictedSevere, 70, []string{TypeIrrigation, TypeCropAdvice}},
		{"severe above threshold", models.PredictedSevere, 70.5, []string{TypeIrrigation, TypeCropAdvice, TypeLivestock}},
		{"extreme high probability", models.PredictedExtreme, 85, []string{TypeIrrigation, TypeCropAdvice, TypeLivestock}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Recommend("turkana", models.Prediction{PredictedSeverity: tt.severity, DroughtProbability: tt.prob})
			assert.Equal(t, tt.want, types(recs))
			for _, r := range recs {
				assert.Equal(t, "turkana", r.RegionID)
				_, err := uuid.Parse(r.ID)
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecommend_RationingMessage(t *testing.T) {
	recs := Recommend("garissa", models.Prediction{PredictedSeverity: models.PredictedExtreme, DroughtProbability: 72.5})
	require.NotEmpty(t, recs)

	rationing := recs[0]
	assert.Equal(t, PriorityCritical, rationing.Priority)
	assert.Equal(t, "Emergency Water Rationing", rationing.Title)
	assert.Equal(t, "Extreme drought predicted with 72.5% confidence.", rationing.Message)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
}
