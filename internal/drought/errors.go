package drought

import (
	"fmt"
	"math"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

// ValidationError reports a numeric input that is NaN or infinite.
// Callers can detect it with errors.As.
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v is not a finite number", e.Field, e.Value)
}

// CheckFinite returns a *ValidationError naming field when v is NaN or infinite.
func CheckFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Value: v}
	}
	return nil
}

// CheckIndex rejects an index record carrying a non-finite numeric field.
func CheckIndex(idx models.DroughtIndex) error {
	fields := []struct {
		name string
		v    float64
	}{
		{"spi3Month", idx.SPI3Month},
		{"spi6Month", idx.SPI6Month},
		{"spei3Month", idx.SPEI3Month},
		{"vci", idx.VCI},
		{"ndvi", idx.NDVI},
		{"soilMoisture", idx.SoilMoisture},
		{"anomalyScore", idx.AnomalyScore},
		{"confidence", idx.Confidence},
	}
	for _, f := range fields {
		if err := CheckFinite(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

func checkSeries(field string, series []float64) error {
	for i, v := range series {
		if err := CheckFinite(fmt.Sprintf("%s[%d]", field, i), v); err != nil {
			return err
		}
	}
	return nil
}

// finiteOrZero treats NaN and infinities as a missing score.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
