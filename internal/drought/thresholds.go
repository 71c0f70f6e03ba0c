package drought

import "github.com/kjstillabower/drought-index-service/internal/models"

// Indicator and forecast tuning constants.
const (
	// MinIndicatorSamples is the shortest series SPI and SPEI will standardize.
	MinIndicatorSamples = 3

	// TrendMinHistory is the history length below which forecasts use TrendFallback
	// instead of a fitted slope.
	TrendMinHistory = 10
	// TrendFallback is the drift applied per TrendScaleDays when history is short.
	TrendFallback = -0.01
	// TrendWindow caps how many of the newest records feed the slope fit.
	TrendWindow = 30
	// TrendScaleDays converts the fitted slope into a per-day increment.
	TrendScaleDays = 30

	// ForecastProbabilityFloor and ForecastProbabilityScale shape the forecast
	// probability: floor + |score| * scale, capped at 100.
	ForecastProbabilityFloor = 60
	ForecastProbabilityScale = 20

	// VCIDegenerateValue is returned when the historical NDVI range is empty.
	VCIDegenerateValue = 50

	// Observation bounds applied by CleanWeather.
	TemperatureMin = -50.0
	TemperatureMax = 60.0
	HumidityMin    = 0.0
	HumidityMax    = 100.0
)

// Anomaly score model: precipitation is centred on PrecipBaseline mm and scaled by
// PrecipScale; temperature is centred on TempBaseline °C and scaled by TempScale.
const (
	PrecipBaseline = 50.0
	PrecipScale    = 100.0
	PrecipOffset   = 0.3
	TempBaseline   = 20.0
	TempScale      = 10.0
	TempWeight     = 0.1
)

// comparison selects how a value is tested against a threshold limit.
type comparison int

const (
	above     comparison = iota // value > limit
	below                       // value < limit
	atOrBelow                   // value <= limit
)

// threshold is one row of a classification table.
type threshold struct {
	limit float64
	cmp   comparison
	label string
}

func (t threshold) matches(v float64) bool {
	switch t.cmp {
	case above:
		return v > t.limit
	case below:
		return v < t.limit
	case atOrBelow:
		return v <= t.limit
	}
	return false
}

// classify walks table top-down and returns the first matching label, or fallback.
func classify(table []threshold, fallback string, v float64) string {
	for _, t := range table {
		if t.matches(v) {
			return t.label
		}
	}
	return fallback
}

var severityTable = []threshold{
	{0.5, above, models.SeverityNone},
	{0.2, above, models.SeverityMild},
	{-0.2, above, models.SeverityModerate},
	{-0.5, above, models.SeveritySevere},
}

// SPI/SPEI categories. Dry side is inclusive, wet side exclusive.
var spiTable = []threshold{
	{-2.0, atOrBelow, "Extremely Dry"},
	{-1.5, atOrBelow, "Severely Dry"},
	{-1.0, atOrBelow, "Moderately Dry"},
	{1.0, below, "Near Normal"},
	{1.5, below, "Moderately Wet"},
	{2.0, below, "Severely Wet"},
}

var vciTable = []threshold{
	{20, below, "Extreme Drought"},
	{40, below, "Severe Drought"},
	{60, below, "Moderate Drought"},
}

// Model predictions are keyed by SPI with their own labels.
var predictionSeverityTable = []threshold{
	{-2.0, below, models.PredictedExtreme},
	{-1.5, below, models.PredictedSevere},
	{-1.0, below, models.PredictedModerate},
	{0, below, models.PredictedMild},
}

// SeverityLevel maps an anomaly score to a severity bucket.
// Thresholds are strict: a score of exactly 0.5 is "mild", not "none".
func SeverityLevel(score float64) string {
	return classify(severityTable, models.SeverityExtreme, score)
}

// SPICategory maps a standardized value to its dry/wet category.
func SPICategory(v float64) string {
	return classify(spiTable, "Extremely Wet", v)
}

// VCICategory maps a VCI percentage to its vegetation drought category.
func VCICategory(v float64) string {
	return classify(vciTable, "Normal", v)
}

// MapSPISeverity maps an SPI value to a model prediction severity.
func MapSPISeverity(spi float64) string {
	return classify(predictionSeverityTable, models.PredictedNormal, spi)
}
