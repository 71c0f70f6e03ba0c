package http

import (
	"net/http"

	"github.com/kjstillabower/drought-index-service/internal/drought"
)

// PostSPI handles POST /indicators/spi with {"precipitation": [...]}, oldest first.
func (h *Handler) PostSPI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Precipitation []float64 `json:"precipitation"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := drought.CalculateSPI(body.Precipitation)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PostSPEI handles POST /indicators/spei with {"precipitation": [...], "pet": [...]}.
func (h *Handler) PostSPEI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Precipitation []float64 `json:"precipitation"`
		PET           []float64 `json:"pet"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := drought.CalculateSPEI(body.Precipitation, body.PET)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PostVCI handles POST /indicators/vci with {"ndvi", "ndviMin", "ndviMax"}.
func (h *Handler) PostVCI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NDVI    *float64 `json:"ndvi"`
		NDVIMin *float64 `json:"ndviMin"`
		NDVIMax *float64 `json:"ndviMax"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.NDVI == nil || body.NDVIMin == nil || body.NDVIMax == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "ndvi, ndviMin and ndviMax are required")
		return
	}
	result, err := drought.CalculateVCI(*body.NDVI, *body.NDVIMin, *body.NDVIMax)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PostScore handles POST /indicators/score with one set of readings.
func (h *Handler) PostScore(w http.ResponseWriter, r *http.Request) {
	var body drought.ScoreInput
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := drought.CalculateDroughtIndex(body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
