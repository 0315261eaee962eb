package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/portfolio-live-info/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (page polling stopped) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate by status label. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Upstream latency per call. No client timeout by default, so long tails show up here first.
	WeatherAPIDuration *prometheus.HistogramVec

	// Retry attempts for weather API calls.
	WeatherAPIRetriesTotal prometheus.Counter

	// Failed fetches by error category (see client.CategorizeError).
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Cache hits for the shared reading cache.
	CacheHitsTotal *prometheus.CounterVec

	// Cache operation failures by op and category.
	CacheErrorsTotal *prometheus.CounterVec

	// Fetches started while an earlier fetch was still in flight.
	WeatherFetchOverlapTotal prometheus.Counter

	// Widget renders by widget (clock, weather) and result (ok, fallback).
	WidgetRendersTotal *prometheus.CounterVec

	// Display format toggles by widget.
	WidgetTogglesTotal *prometheus.CounterVec

	// Readings whose weather code is not in the description table.
	WeatherCodeUnknownTotal prometheus.Counter

	// Age of the cached reading at render time.
	WeatherReadingAgeSeconds prometheus.Gauge

	// Circuit breaker state per component: 0 closed, 1 open, 2 half_open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions by component, from and to.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials on toggle routes.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	WeatherAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherApiRetriesTotal",
			Help: "Total number of retry attempts for weather API calls",
		},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "Failed weather fetches by error category",
		},
		[]string{"category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of reading cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Reading cache failures by operation and category",
		},
		[]string{"op", "category"},
	)
	WeatherFetchOverlapTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherFetchOverlapTotal",
			Help: "Weather fetches started while a previous fetch was still in flight",
		},
	)
	WidgetRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widgetRendersTotal",
			Help: "Widget renders by widget and result (ok, fallback)",
		},
		[]string{"widget", "result"},
	)
	WidgetTogglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widgetTogglesTotal",
			Help: "Display format toggles by widget",
		},
		[]string{"widget"},
	)
	WeatherCodeUnknownTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherCodeUnknownTotal",
			Help: "Readings carrying a weather code with no description",
		},
	)
	WeatherReadingAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherReadingAgeSeconds",
			Help: "Age of the rendered weather reading in seconds",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half_open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIRetriesTotal, WeatherAPIErrorsTotal,
		CacheHitsTotal, CacheErrorsTotal,
		WeatherFetchOverlapTotal,
		WidgetRendersTotal, WidgetTogglesTotal, WeatherCodeUnknownTotal, WeatherReadingAgeSeconds,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers the denials-in-window gauge for toggle routes.
// Call from main after config load.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a breaker state change.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerStateGauge sets the breaker state gauge for component.
func SetCircuitBreakerStateGauge(component string, v float64) {
	CircuitBreakerState.WithLabelValues(component).Set(v)
}

// RecordRender counts a widget render. fallback is true when the widget wrote
// its unavailable message instead of data.
func RecordRender(widget string, fallback bool) {
	result := "ok"
	if fallback {
		result = "fallback"
	}
	WidgetRendersTotal.WithLabelValues(widget, result).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
