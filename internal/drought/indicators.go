package drought

import (
	"math"

	"github.com/shopspring/decimal"
)

// IndicatorResult is the value and category of one drought indicator.
type IndicatorResult struct {
	Value       float64 `json:"value"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// CalculateSPI returns the Standardized Precipitation Index of the newest reading
// (last element) against the whole series. This is a z-score approximation; no
// distribution is fitted. Series shorter than MinIndicatorSamples yield a neutral
// "Normal" result rather than an error.
func CalculateSPI(precipitation []float64) (IndicatorResult, error) {
	if err := checkSeries("precipitation", precipitation); err != nil {
		return IndicatorResult{}, err
	}
	if len(precipitation) < MinIndicatorSamples {
		return IndicatorResult{Value: 0, Category: "Normal", Description: "Insufficient data for SPI"}, nil
	}
	z := standardizeLast(precipitation)
	return IndicatorResult{
		Value:       round(z, 2),
		Category:    SPICategory(z),
		Description: "Precipitation deviation from the series mean, in standard deviations.",
	}, nil
}

// CalculateSPEI applies the SPI method to the water balance precipitation[i] - pet[i].
// Series of different lengths are treated as insufficient data.
func CalculateSPEI(precipitation, pet []float64) (IndicatorResult, error) {
	if err := checkSeries("precipitation", precipitation); err != nil {
		return IndicatorResult{}, err
	}
	if err := checkSeries("pet", pet); err != nil {
		return IndicatorResult{}, err
	}
	if len(precipitation) != len(pet) || len(precipitation) < MinIndicatorSamples {
		return IndicatorResult{Value: 0, Category: "Normal", Description: "Insufficient data for SPEI"}, nil
	}
	balance := make([]float64, len(precipitation))
	for i := range precipitation {
		balance[i] = precipitation[i] - pet[i]
	}
	z := standardizeLast(balance)
	return IndicatorResult{
		Value:       round(z, 2),
		Category:    SPICategory(z),
		Description: "Water balance (precipitation minus PET) deviation from the series mean.",
	}, nil
}

// CalculateVCI returns the Vegetation Condition Index: current NDVI as a percentage
// of the historical [min, max] range.
func CalculateVCI(current, ndviMin, ndviMax float64) (IndicatorResult, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{{"ndvi", current}, {"ndvi_min", ndviMin}, {"ndvi_max", ndviMax}} {
		if err := CheckFinite(f.name, f.v); err != nil {
			return IndicatorResult{}, err
		}
	}
	if ndviMax == ndviMin {
		return IndicatorResult{Value: VCIDegenerateValue, Category: "Normal", Description: "N/A"}, nil
	}
	vci := (current - ndviMin) / (ndviMax - ndviMin) * 100
	return IndicatorResult{
		Value:       round(vci, 1),
		Category:    VCICategory(vci),
		Description: "Vegetation health relative to its historical range.",
	}, nil
}

// standardizeLast returns the z-score of the last element, or 0 for a flat series.
func standardizeLast(series []float64) float64 {
	mean, stddev := meanStdDev(series)
	if stddev == 0 {
		return 0
	}
	return (series[len(series)-1] - mean) / stddev
}

// meanStdDev returns the population mean and standard deviation.
func meanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return mean, math.Sqrt(sumSq / float64(len(values)))
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
