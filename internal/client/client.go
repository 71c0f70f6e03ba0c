package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/drought-index-service/internal/circuitbreaker"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/observability"
)

// ConditionsClient fetches current environmental conditions for a coordinate.
type ConditionsClient interface {
	GetCurrentConditions(ctx context.Context, latitude, longitude float64) (models.Observation, error)
}

var (
	ErrBadRequest      = errors.New("bad request")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

const (
	currentFields = "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m"
	hourlyFields  = "soil_moisture_0_to_1cm,et0_fao_evapotranspiration"
	timeLayout    = "2006-01-02T15:04"
)

// OpenMeteoClient calls the Open-Meteo forecast API. No API key is required.
type OpenMeteoClient struct {
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	clock          clockwork.Clock
}

func NewOpenMeteoClient(apiURL string, timeout time.Duration) (*OpenMeteoClient, error) {
	return NewOpenMeteoClientWithRetry(apiURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

func NewOpenMeteoClientWithRetry(apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenMeteoClient, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("open-meteo URL is required")
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid open-meteo URL: %w", err)
	}
	if retryAttempts < 1 {
		retryAttempts = 1
	}

	return &OpenMeteoClient{
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		clock:          clockwork.NewRealClock(),
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WithCircuitBreaker routes every upstream attempt through cb.
func (c *OpenMeteoClient) WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) *OpenMeteoClient {
	c.breaker = cb
	return c
}

// WithClock sets the clock used for backoff waits and fallback timestamps.
func (c *OpenMeteoClient) WithClock(clock clockwork.Clock) *OpenMeteoClient {
	if clock != nil {
		c.clock = clock
	}
	return c
}

type openMeteoResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Current          struct {
		Time          string   `json:"time"`
		Temperature   *float64 `json:"temperature_2m"`
		Humidity      float64  `json:"relative_humidity_2m"`
		Precipitation *float64 `json:"precipitation"`
		WindSpeed     float64  `json:"wind_speed_10m"`
	} `json:"current"`
	Hourly struct {
		SoilMoisture       []*float64 `json:"soil_moisture_0_to_1cm"`
		Evapotranspiration []*float64 `json:"et0_fao_evapotranspiration"`
	} `json:"hourly"`
}

type openMeteoError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// GetCurrentConditions returns the current observation at a coordinate. The
// caller sets RegionID.
func (c *OpenMeteoClient) GetCurrentConditions(ctx context.Context, latitude, longitude float64) (models.Observation, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.OpenMeteoRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return models.Observation{}, ctx.Err()
			case <-c.clock.After(delay):
			}
		}

		result, err := c.attempt(ctx, latitude, longitude)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return models.Observation{}, err
		}
	}

	return models.Observation{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

// attempt runs one call, through the circuit breaker when configured. Only
// retryable failures count against the breaker.
func (c *OpenMeteoClient) attempt(ctx context.Context, latitude, longitude float64) (models.Observation, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, latitude, longitude)
	}

	var (
		result  models.Observation
		callErr error
	)
	err := c.breaker.Call(ctx, func() error {
		result, callErr = c.callAPI(ctx, latitude, longitude)
		if callErr != nil && c.isRetryable(callErr) {
			return callErr
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return models.Observation{}, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	if err != nil {
		return models.Observation{}, err
	}
	return result, callErr
}

func (c *OpenMeteoClient) callAPI(ctx context.Context, latitude, longitude float64) (models.Observation, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, latitude, longitude)
	if err != nil {
		observability.OpenMeteoCallsTotal.WithLabelValues("error").Inc()
		return models.Observation{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.OpenMeteoCallsTotal.WithLabelValues("error").Inc()
		observability.OpenMeteoDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Observation{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Observation{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.OpenMeteoCallsTotal.WithLabelValues(status).Inc()
	observability.OpenMeteoDuration.WithLabelValues(status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Observation{}, fmt.Errorf("read response body: %w", err)
	}

	if err := c.handleErrorResponse(resp.StatusCode, body); err != nil {
		return models.Observation{}, err
	}

	var apiResp openMeteoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Observation{}, fmt.Errorf("parse response: %w", err)
	}

	return c.mapResponse(apiResp), nil
}

func (c *OpenMeteoClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "http request failed") {
		return true
	}

	return false
}

func (c *OpenMeteoClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, latitude, longitude float64) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	params.Set("current", currentFields)
	params.Set("hourly", hourlyFields)
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenMeteoClient) handleErrorResponse(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusBadRequest:
		var apiErr openMeteoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
			return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Reason)
		}
		return fmt.Errorf("%w", ErrBadRequest)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}

	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}

	return nil
}

// mapResponse converts the API payload into an observation. Soil moisture is
// the first hourly value; evapotranspiration is the daily sum of hourly ET0.
func (c *OpenMeteoClient) mapResponse(apiResp openMeteoResponse) models.Observation {
	obs := models.Observation{
		Temperature:   apiResp.Current.Temperature,
		Precipitation: apiResp.Current.Precipitation,
		Humidity:      apiResp.Current.Humidity,
		WindSpeed:     apiResp.Current.WindSpeed,
		Timestamp:     c.clock.Now().UTC(),
	}

	if len(apiResp.Hourly.SoilMoisture) > 0 && apiResp.Hourly.SoilMoisture[0] != nil {
		obs.SoilMoisture = *apiResp.Hourly.SoilMoisture[0]
	}
	for _, v := range apiResp.Hourly.Evapotranspiration {
		if v != nil {
			obs.Evapotranspiration += *v
		}
	}

	if apiResp.Current.Time != "" {
		loc := time.FixedZone("", apiResp.UTCOffsetSeconds)
		if ts, err := time.ParseInLocation(timeLayout, apiResp.Current.Time, loc); err == nil {
			obs.Timestamp = ts.UTC()
		}
	}

	return obs
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
