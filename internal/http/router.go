package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

// defaultServerTimeout applies when request.timeout is unset or not positive.
const defaultServerTimeout = 10 * time.Second

// NewRouter wires the page, the widget routes, health and metrics. Only the
// toggle routes are rate limited.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.GetPage).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/widget", h.GetWidget).Methods(http.MethodGet)

	toggles := router.PathPrefix("/widget").Subrouter()
	toggles.Use(RateLimitMiddleware(limiter))
	toggles.HandleFunc("/clock/toggle", h.PostClockToggle).Methods(http.MethodPost)
	toggles.HandleFunc("/weather/toggle", h.PostWeatherToggle).Methods(http.MethodPost)

	return router
}

// NewServer builds the HTTP server with timeout as its read and write timeout.
func NewServer(addr string, handler http.Handler, timeout time.Duration) *http.Server {
	if timeout <= 0 {
		timeout = defaultServerTimeout
	}
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}
