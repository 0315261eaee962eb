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

	"github.com/kjstillabower/portfolio-live-info/internal/circuitbreaker"
	"github.com/kjstillabower/portfolio-live-info/internal/models"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

type WeatherClient interface {
	GetCurrentWeather(ctx context.Context) (models.WeatherReading, error)
}

var (
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("endpoint not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// Location is the fixed point the widget reports weather for.
type Location struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// DefaultLocation is Seinäjoki in the Europe/Helsinki zone.
var DefaultLocation = Location{Latitude: 63.3667, Longitude: 23.4833, Timezone: "Europe/Helsinki"}

// Readings outside this band are treated as a malformed response.
const (
	minTemperatureCelsius = -100.0
	maxTemperatureCelsius = 100.0
)

// DefaultAPIURL is the Open-Meteo forecast endpoint.
const DefaultAPIURL = "https://api.open-meteo.com/v1/forecast"

type OpenMeteoClient struct {
	apiURL         string
	location       Location
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// NewOpenMeteoClient returns a client that makes a single attempt per fetch.
// A zero timeout leaves requests unbounded; only ctx cancels them.
func NewOpenMeteoClient(apiURL string, location Location, timeout time.Duration) (*OpenMeteoClient, error) {
	return NewOpenMeteoClientWithRetry(apiURL, location, timeout, 1, 100*time.Millisecond, 2*time.Second)
}

func NewOpenMeteoClientWithRetry(apiURL string, location Location, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenMeteoClient, error) {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &OpenMeteoClient{
		apiURL:         apiURL,
		location:       location,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes every upstream call through cb. Pass nil to disable.
func (c *OpenMeteoClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type openMeteoResponse struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		WeatherCode *int     `json:"weathercode"`
	} `json:"current_weather"`
}

type openMeteoError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// GetCurrentWeather fetches the current observation for the configured location.
// The returned reading is either fully populated or the zero value with an error.
func (c *OpenMeteoClient) GetCurrentWeather(ctx context.Context) (models.WeatherReading, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return models.WeatherReading{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.callThroughBreaker(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return models.WeatherReading{}, err
		}
	}

	if c.retryAttempts == 1 {
		return models.WeatherReading{}, lastErr
	}
	return models.WeatherReading{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenMeteoClient) callThroughBreaker(ctx context.Context) (models.WeatherReading, error) {
	if c.breaker == nil {
		return c.callAPI(ctx)
	}
	var out models.WeatherReading
	err := c.breaker.Call(ctx, func() error {
		r, err := c.callAPI(ctx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return models.WeatherReading{}, err
	}
	return out, nil
}

func (c *OpenMeteoClient) callAPI(ctx context.Context) (models.WeatherReading, error) {
	start := time.Now()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.buildRequest(reqCtx)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherReading{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherReading{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherReading{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("read response body: %w", err)
	}

	if err := c.handleErrorResponse(resp.StatusCode, body); err != nil {
		return models.WeatherReading{}, err
	}

	return c.mapResponse(body)
}

func (c *OpenMeteoClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") {
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

func (c *OpenMeteoClient) buildRequest(ctx context.Context) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("latitude", strconv.FormatFloat(c.location.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.location.Longitude, 'f', -1, 64))
	params.Set("current_weather", "true")
	if c.location.Timezone != "" {
		params.Set("timezone", c.location.Timezone)
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// handleErrorResponse maps non-2xx statuses to sentinel errors. Open-Meteo
// reports parameter problems as 400 with {"error":true,"reason":"..."}.
func (c *OpenMeteoClient) handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	switch statusCode {
	case http.StatusBadRequest:
		var apiErr openMeteoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
			return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Reason)
		}
		return fmt.Errorf("%w: HTTP %d", ErrBadRequest, statusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
}

func (c *OpenMeteoClient) mapResponse(body []byte) (models.WeatherReading, error) {
	var apiResp openMeteoResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherReading{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	cw := apiResp.CurrentWeather
	if cw == nil {
		return models.WeatherReading{}, fmt.Errorf("%w: missing current_weather", ErrMalformedResponse)
	}
	if cw.Temperature == nil || cw.WeatherCode == nil {
		return models.WeatherReading{}, fmt.Errorf("%w: incomplete current_weather", ErrMalformedResponse)
	}
	if t := *cw.Temperature; math.IsNaN(t) || t < minTemperatureCelsius || t > maxTemperatureCelsius {
		return models.WeatherReading{}, fmt.Errorf("%w: temperature %v out of range", ErrMalformedResponse, t)
	}

	return models.WeatherReading{
		TemperatureCelsius: *cw.Temperature,
		WeatherCode:        *cw.WeatherCode,
		FetchedAt:          time.Now(),
	}, nil
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
