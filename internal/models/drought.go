package models

import "time"

// Severity levels produced by the anomaly scorer, driest last.
const (
	SeverityNone     = "none"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
	SeverityExtreme  = "extreme"
)

// Region is a monitored geographic area.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
}

// Observation is one raw environmental reading for a region.
// Temperature is nil when unknown or rejected as an outlier; Precipitation is nil when missing.
type Observation struct {
	RegionID           string    `json:"regionId"`
	Temperature        *float64  `json:"temperature"`
	Precipitation      *float64  `json:"precipitation"`
	Humidity           float64   `json:"humidity"`
	WindSpeed          float64   `json:"windSpeed"`
	Evapotranspiration float64   `json:"evapotranspiration"`
	SoilMoisture       float64   `json:"soilMoisture"`
	Timestamp          time.Time `json:"timestamp"`
}

// DroughtIndex is one derived index record for a region.
type DroughtIndex struct {
	ID            int64     `json:"id,omitempty"`
	RegionID      string    `json:"regionId"`
	SPI3Month     float64   `json:"spi3Month"`
	SPI6Month     float64   `json:"spi6Month"`
	SPEI3Month    float64   `json:"spei3Month"`
	VCI           float64   `json:"vci"`
	NDVI          float64   `json:"ndvi"`
	SoilMoisture  float64   `json:"soilMoisture"`
	AnomalyScore  float64   `json:"anomalyScore"`
	SeverityLevel string    `json:"severityLevel"`
	Confidence    float64   `json:"confidence"`
	DataSource    string    `json:"dataSource,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ForecastPoint is the projected severity for one calendar day.
type ForecastPoint struct {
	Date              string  `json:"date"`
	PredictedSeverity string  `json:"predictedSeverity"`
	Probability       float64 `json:"probability"`
}

// Forecast is one forecast run for a region.
type Forecast struct {
	RegionID      string          `json:"regionId"`
	HorizonDays   int             `json:"horizonDays"`
	BaselineScore float64         `json:"baselineScore"`
	Trend         float64         `json:"trend"`
	HistorySize   int             `json:"historySize"`
	GeneratedAt   time.Time       `json:"generatedAt"`
	Points        []ForecastPoint `json:"points"`
	Stale         bool            `json:"stale,omitempty"` // served from cache after a store failure
}

// Prediction is a model prediction covering a validity window.
type Prediction struct {
	ID                 int64          `json:"id,omitempty"`
	RegionID           string         `json:"regionId"`
	ForecastDate       time.Time      `json:"forecastDate"`
	ValidFrom          time.Time      `json:"validFrom"`
	ValidUntil         time.Time      `json:"validUntil"`
	DroughtProbability float64        `json:"droughtProbabilityPercentage"`
	PredictedSeverity  string         `json:"predictedSeverity"`
	ConfidenceLevel    float64        `json:"confidenceLevel"`
	ModelName          string         `json:"modelName"`
	KeyFactors         map[string]any `json:"keyFactors,omitempty"`
}

// Recommendation is a decision-support action for a region.
type Recommendation struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Priority   string `json:"priority"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	ActionItem string `json:"actionItem"`
	RegionID   string `json:"regionId"`
}

// Alert is a triggered drought alert.
type Alert struct {
	ID          string    `json:"id"`
	RegionID    string    `json:"regionId"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Active      bool      `json:"active"`
	TriggeredAt time.Time `json:"triggeredAt"`
}

// AffectedArea joins a region with its latest drought severity.
type AffectedArea struct {
	RegionID      string  `json:"regionId"`
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	SeverityLevel string  `json:"severityLevel"`
	AnomalyScore  float64 `json:"anomalyScore"`
}

// Prediction severity labels. Model predictions are keyed by SPI and use these
// capitalized labels rather than the anomaly severity levels above.
const (
	PredictedNormal   = "Normal"
	PredictedMild     = "Mild"
	PredictedModerate = "Moderate"
	PredictedSevere   = "Severe"
	PredictedExtreme  = "Extreme"
)
