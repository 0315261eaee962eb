package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/cache"
	"github.com/kjstillabower/portfolio-live-info/internal/client"
	"github.com/kjstillabower/portfolio-live-info/internal/models"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

// WeatherService fetches the current reading for one fixed location using a
// cache-aside pattern in front of the upstream client.
type WeatherService struct {
	client  client.WeatherClient
	cache   cache.Cache
	key     string
	ttl     time.Duration // 0 disables the cache
	overlap *overlapTracker
}

// NewWeatherService creates a WeatherService for the location identified by key.
// ttl is how long a reading is shared from cache; with a ttl below the refresh
// interval every scheduled fetch reaches the upstream.
func NewWeatherService(client client.WeatherClient, cache cache.Cache, key string, ttl time.Duration) *WeatherService {
	return &WeatherService{
		client:  client,
		cache:   cache,
		key:     key,
		ttl:     ttl,
		overlap: newOverlapTracker(),
	}
}

// CacheKey builds the cache key for a coordinate pair.
func CacheKey(loc client.Location) string {
	return strconv.FormatFloat(loc.Latitude, 'f', 4, 64) + "," + strconv.FormatFloat(loc.Longitude, 'f', 4, 64)
}

// InFlight returns the number of fetches currently running.
func (s *WeatherService) InFlight() int {
	return s.overlap.Count(s.key)
}

// GetReading returns the current reading. Cache errors are non-fatal and fall
// through to the upstream. Overlapping calls are never merged: each call does
// its own lookup and fetch.
func (s *WeatherService) GetReading(ctx context.Context) (models.WeatherReading, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	if concurrent := s.overlap.Begin(s.key); concurrent > 1 {
		observability.WeatherFetchOverlapTotal.Inc()
		if logger != nil {
			logger.Debug("fetch overlaps an earlier fetch", zap.Int("in_flight", concurrent))
		}
	}
	defer s.overlap.End(s.key)

	if s.cache != nil && s.ttl > 0 {
		cached, ok, err := s.cache.Get(ctx, s.key)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
			if logger != nil {
				logger.Warn("cache get failed", zap.String("key", s.key), zap.Error(err))
			}
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues("weather").Inc()
			if logger != nil {
				logger.Debug("reading served from cache", zap.String("key", s.key), zap.Duration("duration", time.Since(start)))
			}
			return cached, nil
		}
	}

	reading, err := s.client.GetCurrentWeather(ctx)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("fetch weather for %s: %w", s.key, err)
	}

	if s.cache != nil && s.ttl > 0 {
		if setErr := s.cache.Set(ctx, s.key, reading, s.ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
			if logger != nil {
				logger.Warn("cache set failed", zap.String("key", s.key), zap.Error(setErr))
			}
		}
	}
	if logger != nil {
		logger.Debug("reading fetched upstream", zap.String("key", s.key), zap.Duration("duration", time.Since(start)))
	}
	return reading, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
