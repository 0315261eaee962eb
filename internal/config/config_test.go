package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

// clearEnv blanks every env override Load reads so the host environment
// does not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "CACHE_BACKEND", "MEMCACHED_ADDRS", "SERVER_PORT"} {
		t.Setenv(k, "")
	}
}

// loadFrom writes content to a temp config/dev.yaml, chdirs there, and runs Load.
func loadFrom(t *testing.T, content string) (*Config, error) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	writeEnvFile(t, dir, "dev.yaml", content)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFrom(t, "server:\n  port: \"\"\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"ServerPort", cfg.ServerPort, "8080"},
		{"WeatherAPIURL", cfg.WeatherAPIURL, "https://api.open-meteo.com/v1/forecast"},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, time.Duration(0)},
		{"Latitude", cfg.Latitude, 63.3667},
		{"Longitude", cfg.Longitude, 23.4833},
		{"WeatherTimezone", cfg.WeatherTimezone, "Europe/Helsinki"},
		{"ClockTimezone", cfg.ClockTimezone, "Europe/Helsinki"},
		{"ClockInterval", cfg.ClockInterval, time.Second},
		{"WeatherRefreshInterval", cfg.WeatherRefreshInterval, 10 * time.Minute},
		{"StaleReadingTTL", cfg.StaleReadingTTL, time.Duration(0)},
		{"ClockEnabled", cfg.ClockEnabled, true},
		{"WeatherEnabled", cfg.WeatherEnabled, true},
		{"CacheBackend", cfg.CacheBackend, CacheBackendInMemory},
		{"CacheTTL", cfg.CacheTTL, 5 * time.Minute},
		{"MemcachedAddrs", cfg.MemcachedAddrs, "localhost:11211"},
		{"RetryAttempts", cfg.RetryAttempts, 1},
		{"CircuitBreakerEnabled", cfg.CircuitBreakerEnabled, false},
		{"CircuitBreakerFailureThreshold", cfg.CircuitBreakerFailureThreshold, 5},
		{"DegradedErrorPct", cfg.DegradedErrorPct, 50},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFrom(t, `
server:
  port: "9090"
weather_api:
  url: "http://localhost:9999/v1/forecast"
  timeout: "3s"
  latitude: 60.1699
  longitude: 24.9384
  timezone: "UTC"
widget:
  clock_timezone: "America/New_York"
  clock_interval: "500ms"
  weather_refresh_interval: "1m"
  stale_reading_ttl: "30m"
  weather_enabled: false
cache:
  backend: "NONE"
  ttl: "0s"
circuit_breaker:
  enabled: true
  failure_threshold: 2
  timeout: "30s"
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.WeatherAPITimeout != 3*time.Second {
		t.Errorf("WeatherAPITimeout = %v", cfg.WeatherAPITimeout)
	}
	if cfg.Latitude != 60.1699 || cfg.Longitude != 24.9384 {
		t.Errorf("coordinates = (%v, %v)", cfg.Latitude, cfg.Longitude)
	}
	if cfg.ClockTimezone != "America/New_York" || cfg.WeatherTimezone != "UTC" {
		t.Errorf("timezones = (%q, %q)", cfg.ClockTimezone, cfg.WeatherTimezone)
	}
	if cfg.ClockInterval != 500*time.Millisecond || cfg.WeatherRefreshInterval != time.Minute {
		t.Errorf("intervals = (%v, %v)", cfg.ClockInterval, cfg.WeatherRefreshInterval)
	}
	if cfg.StaleReadingTTL != 30*time.Minute {
		t.Errorf("StaleReadingTTL = %v", cfg.StaleReadingTTL)
	}
	if !cfg.ClockEnabled || cfg.WeatherEnabled {
		t.Errorf("enabled = (%v, %v), want (true, false)", cfg.ClockEnabled, cfg.WeatherEnabled)
	}
	if cfg.CacheBackend != CacheBackendNone || cfg.CacheTTL != 0 {
		t.Errorf("cache = (%q, %v), want (none, 0)", cfg.CacheBackend, cfg.CacheTTL)
	}
	if !cfg.CircuitBreakerEnabled || cfg.CircuitBreakerFailureThreshold != 2 || cfg.CircuitBreakerTimeout != 30*time.Second {
		t.Errorf("circuit breaker = (%v, %d, %v)", cfg.CircuitBreakerEnabled, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_BACKEND", "Memcached")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := loadFrom(t, "cache:\n  backend: in_memory\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != CacheBackendMemcached {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070", cfg.ServerPort)
	}
}

func TestLoad_EnvNameSelectsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "staging")

	origWd, _ := os.Getwd()
	dir := t.TempDir()
	writeEnvFile(t, dir, "staging.yaml", "server:\n  port: \"8181\"\n")
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8181" {
		t.Errorf("ServerPort = %q, want 8181", cfg.ServerPort)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")

	origWd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFrom(t, `
widget:
  clock_interval: "soon"
  weather_refresh_interval: "-5m"
cache:
  ttl: "invalid"
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ClockInterval != time.Second {
		t.Errorf("ClockInterval = %v, want default 1s", cfg.ClockInterval)
	}
	if cfg.WeatherRefreshInterval != 10*time.Minute {
		t.Errorf("WeatherRefreshInterval = %v, want default 10m", cfg.WeatherRefreshInterval)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want default 5m", cfg.CacheTTL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"negative api timeout", "weather_api:\n  timeout: \"-1s\"\n", "weather_api.timeout"},
		{"negative cache ttl", "cache:\n  ttl: \"-1m\"\n", "cache.ttl"},
		{"negative stale ttl", "widget:\n  stale_reading_ttl: \"-1m\"\n", "stale_reading_ttl"},
		{"latitude out of range", "weather_api:\n  latitude: 123.4\n", "latitude out of range"},
		{"longitude out of range", "weather_api:\n  longitude: -200\n", "longitude out of range"},
		{"unknown clock timezone", "widget:\n  clock_timezone: \"Europe/Atlantis\"\n", "widget.clock_timezone"},
		{"unknown weather timezone", "weather_api:\n  timezone: \"Nowhere/Else\"\n", "weather_api.timezone"},
		{"bad cache backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"error pct over 100", "health:\n  degraded_error_pct: 150\n", "degraded_error_pct"},
		{
			"breaker timeout longer than refresh",
			"widget:\n  weather_refresh_interval: \"10m\"\ncircuit_breaker:\n  enabled: true\n  timeout: \"30m\"\n",
			"circuit_breaker.timeout",
		},
		{
			"breaker timeout equal to refresh",
			"widget:\n  weather_refresh_interval: \"10m\"\ncircuit_breaker:\n  enabled: true\n  timeout: \"10m\"\n",
			"circuit_breaker.timeout",
		},
		{
			"in-memory cache ttl longer than refresh",
			"widget:\n  weather_refresh_interval: \"10m\"\ncache:\n  backend: in_memory\n  ttl: \"25m\"\n",
			"cache.ttl",
		},
		{
			"memcached ttl equal to refresh",
			"widget:\n  weather_refresh_interval: \"5m\"\ncache:\n  backend: memcached\n  ttl: \"5m\"\n",
			"cache.ttl",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := loadFrom(t, tt.yaml)
			if err == nil {
				t.Fatalf("Load() error = nil, want error containing %q (cfg %+v)", tt.wantErr, cfg)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RefreshBoundAllowances(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"breaker disabled ignores timeout", "circuit_breaker:\n  enabled: false\n  timeout: \"30m\"\n"},
		{"cache off ignores ttl", "cache:\n  backend: none\n  ttl: \"1h\"\n"},
		{"shorter values", "widget:\n  weather_refresh_interval: \"10m\"\ncache:\n  ttl: \"9m\"\ncircuit_breaker:\n  enabled: true\n  timeout: \"9m\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := loadFrom(t, tt.yaml); err != nil {
				t.Errorf("Load() error = %v, want nil", err)
			}
		})
	}
}

func TestLoad_BreakerTimeoutDefaultsToHalfRefresh(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFrom(t, "widget:\n  weather_refresh_interval: \"4m\"\ncache:\n  ttl: \"1m\"\ncircuit_breaker:\n  enabled: true\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CircuitBreakerTimeout != 2*time.Minute {
		t.Errorf("CircuitBreakerTimeout = %v, want 2m", cfg.CircuitBreakerTimeout)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearEnv(t)
	_, err := loadFrom(t, "server: [unclosed\n")
	if err == nil {
		t.Fatal("Load() expected parse error, got nil")
	}
	if !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse config file", err)
	}
}

// TestLoad_RepoConfigFiles loads every shipped config file so a typo in one
// fails the build.
func TestLoad_RepoConfigFiles(t *testing.T) {
	root := findProjectRoot(t)
	for _, env := range []string{"dev", "prod"} {
		t.Run(env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENV_NAME", env)
			origWd, _ := os.Getwd()
			if err := os.Chdir(root); err != nil {
				t.Fatalf("Chdir: %v", err)
			}
			defer os.Chdir(origWd)

			if _, err := Load(); err != nil {
				t.Errorf("Load(%s) error = %v", env, err)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		def     time.Duration
		want    time.Duration
		wantOrZ time.Duration
	}{
		{"", time.Second, time.Second, time.Second},
		{"2m", time.Second, 2 * time.Minute, 2 * time.Minute},
		{"0s", time.Second, time.Second, 0},
		{"bogus", time.Second, time.Second, time.Second},
		{" 5s ", time.Second, 5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, tt.def); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got := parseDurationOrZero(tt.in, tt.def); got != tt.wantOrZ {
			t.Errorf("parseDurationOrZero(%q) = %v, want %v", tt.in, got, tt.wantOrZ)
		}
	}
}

func writeEnvFile(t *testing.T, dir, name, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
