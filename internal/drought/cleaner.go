package drought

import (
	"fmt"
	"math"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// CleanResult is a repaired observation and the list of repairs applied.
type CleanResult struct {
	// Valid is always true: out-of-range values are repaired, not rejected.
	Valid  bool               `json:"valid"`
	Data   models.Observation `json:"data"`
	Issues []string           `json:"issues"`
}

// CleanWeather returns a repaired copy of obs. The input is never modified.
//   - temperature outside [TemperatureMin, TemperatureMax] is discarded (set to nil)
//   - humidity is clamped to [HumidityMin, HumidityMax]
//   - negative wind speed becomes 0
//   - missing precipitation becomes 0
//
// A *ValidationError is returned when any present value is NaN or infinite.
func CleanWeather(obs models.Observation) (CleanResult, error) {
	if err := validateObservation(obs); err != nil {
		return CleanResult{}, err
	}

	cleaned := obs
	issues := []string{}

	if t := obs.Temperature; t != nil && (*t < TemperatureMin || *t > TemperatureMax) {
		issues = append(issues, fmt.Sprintf("temperature %.1fC outside [%.0f, %.0f], discarded", *t, TemperatureMin, TemperatureMax))
		cleaned.Temperature = nil
	}

	if obs.Humidity < HumidityMin || obs.Humidity > HumidityMax {
		clamped := math.Max(HumidityMin, math.Min(HumidityMax, obs.Humidity))
		issues = append(issues, fmt.Sprintf("humidity %.1f%% outside [%.0f, %.0f], clamped to %.0f", obs.Humidity, HumidityMin, HumidityMax, clamped))
		cleaned.Humidity = clamped
	}

	if obs.WindSpeed < 0 {
		issues = append(issues, fmt.Sprintf("wind speed %.1f is negative, set to 0", obs.WindSpeed))
		cleaned.WindSpeed = 0
	}

	if obs.Precipitation == nil {
		issues = append(issues, "precipitation missing, defaulted to 0")
		zero := 0.0
		cleaned.Precipitation = &zero
	}

	return CleanResult{Valid: true, Data: cleaned, Issues: issues}, nil
}

func validateObservation(obs models.Observation) error {
	if obs.Temperature != nil {
		if err := CheckFinite("temperature", *obs.Temperature); err != nil {
			return err
		}
	}
	if obs.Precipitation != nil {
		if err := CheckFinite("precipitation", *obs.Precipitation); err != nil {
			return err
		}
	}
	if err := CheckFinite("humidity", obs.Humidity); err != nil {
		return err
	}
	if err := CheckFinite("windSpeed", obs.WindSpeed); err != nil {
		return err
	}
	if err := CheckFinite("evapotranspiration", obs.Evapotranspiration); err != nil {
		return err
	}
	return CheckFinite("soilMoisture", obs.SoilMoisture)
}

// DailySummary aggregates a day of observations.
type DailySummary struct {
	AvgTemperature     float64 `json:"avgTemperature"`
	TotalPrecipitation float64 `json:"totalPrecipitation"`
	AvgHumidity        float64 `json:"avgHumidity"`
	SampleCount        int     `json:"sampleCount"`
}

// AggregateDaily averages hourly observations into one summary. Unknown
// temperatures and missing precipitation count as 0. Returns false for no input.
func AggregateDaily(observations []models.Observation) (DailySummary, bool) {
	if len(observations) == 0 {
		return DailySummary{}, false
	}
	var sumTemp, sumPrecip, sumHumidity float64
	for _, o := range observations {
		if o.Temperature != nil {
			sumTemp += *o.Temperature
		}
		if o.Precipitation != nil {
			sumPrecip += *o.Precipitation
		}
		sumHumidity += o.Humidity
	}
	n := float64(len(observations))
	return DailySummary{
		AvgTemperature:     sumTemp / n,
		TotalPrecipitation: sumPrecip,
		AvgHumidity:        sumHumidity / n,
		SampleCount:        len(observations),
	}, true
}
