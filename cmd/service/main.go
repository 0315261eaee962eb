package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/portfolio-live-info/internal/cache"
	"github.com/kjstillabower/portfolio-live-info/internal/circuitbreaker"
	"github.com/kjstillabower/portfolio-live-info/internal/client"
	"github.com/kjstillabower/portfolio-live-info/internal/config"
	httphandler "github.com/kjstillabower/portfolio-live-info/internal/http"
	"github.com/kjstillabower/portfolio-live-info/internal/lifecycle"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
	"github.com/kjstillabower/portfolio-live-info/internal/service"
	"github.com/kjstillabower/portfolio-live-info/internal/widget"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	location := client.Location{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		Timezone:  cfg.WeatherTimezone,
	}
	weatherClient, err := client.NewOpenMeteoClientWithRetry(
		cfg.WeatherAPIURL,
		location,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "weather_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("weather_api", to.GaugeValue())
				logger.Warn("circuit breaker transition", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("weather_api", circuitbreaker.StateClosed.GaugeValue())
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case config.CacheBackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case config.CacheBackendInMemory:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	default:
		logger.Info("cache backend: none")
	}
	weatherService := service.NewWeatherService(weatherClient, cacheSvc, service.CacheKey(location), cfg.CacheTTL)

	widgets := widget.NewController(widget.Options{
		Fetcher:         weatherService,
		Logger:          logger,
		Timezone:        cfg.ClockTimezone,
		StaleReadingTTL: cfg.StaleReadingTTL,
		DisableClock:    !cfg.ClockEnabled,
		DisableWeather:  !cfg.WeatherEnabled,
	})
	scheduler := widget.NewScheduler(widgets, logger, cfg.ClockInterval, cfg.WeatherRefreshInterval)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(time.Minute)

	handler := httphandler.NewHandler(widgets, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, limiter)
	srv := httphandler.NewServer(":"+cfg.ServerPort, router, cfg.RequestTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedCtx, schedCancel := context.WithCancel(context.Background())
	var schedDone sync.WaitGroup
	schedDone.Add(1)
	go func() {
		defer schedDone.Done()
		if err := scheduler.Run(schedCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("widget scheduler stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)

	schedCancel()
	schedDone.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
