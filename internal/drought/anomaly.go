package drought

import "math"

// ScoreInput holds the readings combined into one anomaly score.
type ScoreInput struct {
	Precipitation      float64 `json:"precipitation"`
	Temperature        float64 `json:"temperature"`
	Humidity           float64 `json:"humidity"`
	Evapotranspiration float64 `json:"evapotranspiration"`
}

// AnomalyResult is the output of CalculateDroughtIndex.
type AnomalyResult struct {
	AnomalyScore  float64 `json:"anomalyScore"`
	SeverityLevel string  `json:"severityLevel"`
	Confidence    float64 `json:"confidence"`
	// MoistureDeficit is evapotranspiration minus precipitation. Not used by the score.
	MoistureDeficit float64 `json:"moistureDeficit"`
}

// CalculateDroughtIndex scores one set of readings. Negative scores are drier.
// Humidity is validated but does not contribute to the score.
func CalculateDroughtIndex(in ScoreInput) (AnomalyResult, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"precipitation", in.Precipitation},
		{"temperature", in.Temperature},
		{"humidity", in.Humidity},
		{"evapotranspiration", in.Evapotranspiration},
	} {
		if err := CheckFinite(f.name, f.v); err != nil {
			return AnomalyResult{}, err
		}
	}

	normalizedPrecip := math.Max(0, (in.Precipitation-PrecipBaseline)/PrecipScale)
	tempAnomaly := (in.Temperature - TempBaseline) / TempScale
	score := (normalizedPrecip - PrecipOffset) - tempAnomaly*TempWeight

	return AnomalyResult{
		AnomalyScore:    score,
		SeverityLevel:   SeverityLevel(score),
		Confidence:      math.Min(100, math.Abs(score)*100),
		MoistureDeficit: in.Evapotranspiration - in.Precipitation,
	}, nil
}
