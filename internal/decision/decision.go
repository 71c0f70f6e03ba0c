// Package decision turns the latest drought prediction for a region into
// operational recommendations.
package decision

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// Recommendation types.
const (
	TypeIrrigation = "irrigation"
	TypeCropAdvice = "crop_advice"
	TypeLivestock  = "livestock"
)

// Recommendation priorities.
const (
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// LivestockProbabilityThreshold is the drought probability (percent) above
// which severe predictions also trigger livestock relocation advice.
const LivestockProbabilityThreshold = 70

// Recommend returns the recommendations for a region's latest prediction, in
// order: water rationing, planting advisory, livestock relocation.
func Recommend(regionID string, latest models.Prediction) []models.Recommendation {
	recs := []models.Recommendation{}
	severe := latest.PredictedSeverity == models.PredictedExtreme || latest.PredictedSeverity == models.PredictedSevere

	if severe {
		recs = append(recs, models.Recommendation{
			ID:         uuid.NewString(),
			Type:       TypeIrrigation,
			Priority:   PriorityCritical,
			Title:      "Emergency Water Rationing",
			Message:    fmt.Sprintf("%s drought predicted with %s%% confidence.", latest.PredictedSeverity, formatPercent(latest.DroughtProbability)),
			ActionItem: "Immediately suspend non-essential irrigation and initiate water trucking to rural reservoirs.",
			RegionID:   regionID,
		})
	}

	if latest.PredictedSeverity != models.PredictedNormal {
		recs = append(recs, models.Recommendation{
			ID:         uuid.NewString(),
			Type:       TypeCropAdvice,
			Priority:   PriorityHigh,
			Title:      "Planting Advisory",
			Message:    "Moisture deficit predicted for the upcoming season.",
			ActionItem: "Recommend transition to drought-resistant maize varieties and millet. Suspend luxury crop planting.",
			RegionID:   regionID,
		})
	}

	if severe && latest.DroughtProbability > LivestockProbabilityThreshold {
		recs = append(recs, models.Recommendation{
			ID:         uuid.NewString(),
			Type:       TypeLivestock,
			Priority:   PriorityHigh,
			Title:      "Livestock Relocation Alert",
			Message:    "Grazing lands expected to deteriorate rapidly.",
			ActionItem: "Advise pastoralists to move livestock to northern green belts or secure fodder reserves.",
			RegionID:   regionID,
		})
	}

	return recs
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
