//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/portfolio-live-info/internal/cache"
	"github.com/kjstillabower/portfolio-live-info/internal/client"
	"github.com/kjstillabower/portfolio-live-info/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIURL        string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless LIVE_API_TESTS is set, since it reaches the real API.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("LIVE_API_TESTS") == "" {
		t.Skip("LIVE_API_TESTS not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultAPIURL
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationService builds the live client and cache-aside service for
// the default location. Falls back to the in-memory cache when memcached is
// unreachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, func()) {
	t.Helper()
	weatherClient, err := client.NewOpenMeteoClient(cfg.APIURL, client.DefaultLocation, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}

	var cacheSvc cache.Cache = cache.NewInMemoryCache()
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}

	svc := service.NewWeatherService(weatherClient, cacheSvc, service.CacheKey(client.DefaultLocation), time.Minute)
	return svc, cleanup
}
