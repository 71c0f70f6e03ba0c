package etl

import (
	"time"

	"github.com/kjstillabower/drought-index-service/internal/drought"
	"github.com/kjstillabower/drought-index-service/internal/models"
)

// Accumulation windows for the 3- and 6-month indicators.
const (
	ThreeMonthWindow = 90 * 24 * time.Hour
	SixMonthWindow   = 180 * 24 * time.Hour
)

// DeriveIndex scores a cleaned observation into a drought index record.
// prior holds earlier observations for the region, newest first, and feeds
// the SPI and SPEI series; the current observation is always the last sample.
// An unknown temperature is scored at the baseline so it does not move the score.
func DeriveIndex(current models.Observation, prior []models.Observation, source string) (models.DroughtIndex, error) {
	precip := 0.0
	if current.Precipitation != nil {
		precip = *current.Precipitation
	}
	temp := drought.TempBaseline
	if current.Temperature != nil {
		temp = *current.Temperature
	}

	score, err := drought.CalculateDroughtIndex(drought.ScoreInput{
		Precipitation:      precip,
		Temperature:        temp,
		Humidity:           current.Humidity,
		Evapotranspiration: current.Evapotranspiration,
	})
	if err != nil {
		return models.DroughtIndex{}, err
	}

	p3, et3 := series(current, prior, ThreeMonthWindow)
	p6, _ := series(current, prior, SixMonthWindow)

	spi3, err := drought.CalculateSPI(p3)
	if err != nil {
		return models.DroughtIndex{}, err
	}
	spi6, err := drought.CalculateSPI(p6)
	if err != nil {
		return models.DroughtIndex{}, err
	}
	spei3, err := drought.CalculateSPEI(p3, et3)
	if err != nil {
		return models.DroughtIndex{}, err
	}

	return models.DroughtIndex{
		RegionID:      current.RegionID,
		SPI3Month:     spi3.Value,
		SPI6Month:     spi6.Value,
		SPEI3Month:    spei3.Value,
		SoilMoisture:  current.SoilMoisture,
		AnomalyScore:  score.AnomalyScore,
		SeverityLevel: score.SeverityLevel,
		Confidence:    score.Confidence,
		DataSource:    source,
		CreatedAt:     current.Timestamp,
	}, nil
}

// series returns oldest-first precipitation and evapotranspiration samples
// within window of the current observation, ending with the current one.
func series(current models.Observation, prior []models.Observation, window time.Duration) (precip, et []float64) {
	cutoff := current.Timestamp.Add(-window)
	for i := len(prior) - 1; i >= 0; i-- {
		o := prior[i]
		if o.Timestamp.Before(cutoff) || o.Timestamp.After(current.Timestamp) {
			continue
		}
		p := 0.0
		if o.Precipitation != nil {
			p = *o.Precipitation
		}
		precip = append(precip, p)
		et = append(et, o.Evapotranspiration)
	}
	p := 0.0
	if current.Precipitation != nil {
		p = *current.Precipitation
	}
	return append(precip, p), append(et, current.Evapotranspiration)
}
