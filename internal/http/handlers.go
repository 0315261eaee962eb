package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/lifecycle"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
	"github.com/kjstillabower/portfolio-live-info/internal/traffic"
	"github.com/kjstillabower/portfolio-live-info/internal/widget"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	Version   string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	widgets          *widget.Controller
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(widgets *widget.Controller, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		widgets:      widgets,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetWidget handles GET /widget.
func (h *Handler) GetWidget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.widgets.Snapshot())
}

// PostClockToggle handles POST /widget/clock/toggle, the click on the clock display.
func (h *Handler) PostClockToggle(w http.ResponseWriter, r *http.Request) {
	if !h.widgets.ClockEnabled() {
		writeError(w, r, http.StatusNotFound, "WIDGET_DISABLED", "clock widget is not enabled")
		return
	}
	twelve := h.widgets.ToggleClockFormat()
	requestLogger(r, h.logger).Debug("clock format toggled", zap.Bool("is_12_hour_format", twelve))
	writeJSON(w, http.StatusOK, h.widgets.Snapshot())
}

// PostWeatherToggle handles POST /widget/weather/toggle, the click on the weather display.
func (h *Handler) PostWeatherToggle(w http.ResponseWriter, r *http.Request) {
	if !h.widgets.WeatherEnabled() {
		writeError(w, r, http.StatusNotFound, "WIDGET_DISABLED", "weather widget is not enabled")
		return
	}
	fahrenheit := h.widgets.ToggleTemperatureUnit()
	requestLogger(r, h.logger).Debug("temperature unit toggled", zap.Bool("is_fahrenheit", fahrenheit))
	writeJSON(w, http.StatusOK, h.widgets.Snapshot())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.reason == "error_rate_breach" {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "portfolio-live-info",
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if at, ok := lifecycle.ShutdownStartedAt(); ok {
		resp["shutdownStartedAt"] = at.UTC().Format(time.RFC3339)
	}
	if at, ok, seen := traffic.LastFetch(); seen {
		resp["lastFetch"] = map[string]interface{}{
			"at": at.UTC().Format(time.RFC3339),
			"ok": ok,
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// requestLogger returns the request-scoped logger, falling back to fallback.
func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if l := observability.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return fallback
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
