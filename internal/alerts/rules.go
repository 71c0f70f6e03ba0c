// Package alerts evaluates drought alert rules and dispatches triggered alerts.
package alerts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// Alert types.
const (
	TypeCropFailureRisk = "CROP_FAILURE_RISK"
	TypeWaterShortage   = "WATER_SHORTAGE"
)

// Alert severities.
const (
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Trigger thresholds.
const (
	CriticalSPI         = -2.0
	HighSPI             = -1.5
	CriticalProbability = 80.0
)

const (
	waterShortageMessage = "Critical water shortage predicted. Strategic reserves must be activated immediately."
	cropFailureMessage   = "High risk of crop failure detected. Farmers should switch to drought-resistant crops."
)

// Inputs are the latest readings alert rules look at. Either may be nil.
type Inputs struct {
	Index      *models.DroughtIndex
	Prediction *models.Prediction
}

// Evaluate applies the alert rules and returns at most one alert:
//   - WATER_SHORTAGE/CRITICAL when 3-month SPI < -2 or an Extreme prediction exceeds 80% probability
//   - otherwise CROP_FAILURE_RISK/HIGH when 3-month SPI < -1.5 or a Severe prediction exists
func Evaluate(regionID string, in Inputs, now time.Time) (models.Alert, bool) {
	var (
		spiKnown bool
		spi      float64
		severity string
		prob     float64
	)
	if in.Index != nil {
		spiKnown = true
		spi = in.Index.SPI3Month
	}
	if in.Prediction != nil {
		severity = in.Prediction.PredictedSeverity
		prob = in.Prediction.DroughtProbability
	}

	switch {
	case (spiKnown && spi < CriticalSPI) || (severity == models.PredictedExtreme && prob > CriticalProbability):
		return newAlert(regionID, TypeWaterShortage, SeverityCritical, waterShortageMessage, now), true
	case (spiKnown && spi < HighSPI) || severity == models.PredictedSevere:
		return newAlert(regionID, TypeCropFailureRisk, SeverityHigh, cropFailureMessage, now), true
	}
	return models.Alert{}, false
}

func newAlert(regionID, alertType, severity, message string, now time.Time) models.Alert {
	return models.Alert{
		ID:          uuid.NewString(),
		RegionID:    regionID,
		Type:        alertType,
		Severity:    severity,
		Title:       strings.ReplaceAll(alertType, "_", " "),
		Message:     message,
		Active:      true,
		TriggeredAt: now.UTC(),
	}
}
