package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/portfolio-live-info/internal/validation"
)

// Cache backends accepted by cache.backend / CACHE_BACKEND.
const (
	CacheBackendNone      = "none"
	CacheBackendInMemory  = "in_memory"
	CacheBackendMemcached = "memcached"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration

	WeatherAPIURL     string
	WeatherAPITimeout time.Duration // 0 means no per-request timeout
	Latitude          float64
	Longitude         float64
	WeatherTimezone   string

	ClockTimezone          string
	ClockInterval          time.Duration
	WeatherRefreshInterval time.Duration
	StaleReadingTTL        time.Duration // 0 disables stale rendering
	ClockEnabled           bool
	WeatherEnabled         bool

	CacheBackend          string
	CacheTTL              time.Duration // 0 disables the cache
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout       time.Duration
	InFlightTimeout       time.Duration
	InFlightCheckInterval time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	WeatherAPI struct {
		URL       string   `yaml:"url"`
		Timeout   string   `yaml:"timeout"`
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
		Timezone  string   `yaml:"timezone"`
	} `yaml:"weather_api"`

	Widget struct {
		ClockTimezone          string `yaml:"clock_timezone"`
		ClockInterval          string `yaml:"clock_interval"`
		WeatherRefreshInterval string `yaml:"weather_refresh_interval"`
		StaleReadingTTL        string `yaml:"stale_reading_ttl"`
		ClockEnabled           *bool  `yaml:"clock_enabled"`
		WeatherEnabled         *bool  `yaml:"weather_enabled"`
	} `yaml:"widget"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          bool   `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) relative
// to the working directory, then applies env overrides. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := fromFile(&fc)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc *fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 0)
	cfg.Latitude = 63.3667
	if fc.WeatherAPI.Latitude != nil {
		cfg.Latitude = *fc.WeatherAPI.Latitude
	}
	cfg.Longitude = 23.4833
	if fc.WeatherAPI.Longitude != nil {
		cfg.Longitude = *fc.WeatherAPI.Longitude
	}
	cfg.WeatherTimezone = strings.TrimSpace(fc.WeatherAPI.Timezone)
	if cfg.WeatherTimezone == "" {
		cfg.WeatherTimezone = "Europe/Helsinki"
	}

	cfg.ClockTimezone = strings.TrimSpace(fc.Widget.ClockTimezone)
	if cfg.ClockTimezone == "" {
		cfg.ClockTimezone = "Europe/Helsinki"
	}
	cfg.ClockInterval = parseDuration(fc.Widget.ClockInterval, time.Second)
	cfg.WeatherRefreshInterval = parseDuration(fc.Widget.WeatherRefreshInterval, 10*time.Minute)
	cfg.StaleReadingTTL = parseDurationOrZero(fc.Widget.StaleReadingTTL, 0)
	cfg.ClockEnabled = true
	if fc.Widget.ClockEnabled != nil {
		cfg.ClockEnabled = *fc.Widget.ClockEnabled
	}
	cfg.WeatherEnabled = true
	if fc.Widget.WeatherEnabled != nil {
		cfg.WeatherEnabled = *fc.Widget.WeatherEnabled
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	cfg.CacheTTL = parseDurationOrZero(fc.Cache.TTL, 5*time.Minute)
	cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	cfg.CircuitBreakerEnabled = fc.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 1
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, cfg.WeatherRefreshInterval/2)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 5*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, time.Hour)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	return cfg
}

// applyEnv overrides file values with CACHE_BACKEND, MEMCACHED_ADDRS and
// SERVER_PORT, then fills remaining defaults.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheBackendInMemory
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_PORT")); v != "" {
		cfg.ServerPort = v
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is so "0s" can switch a feature off.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout < 0 {
		return fmt.Errorf("weather_api.timeout must not be negative")
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if cfg.StaleReadingTTL < 0 {
		return fmt.Errorf("widget.stale_reading_ttl must not be negative")
	}
	if err := validation.ValidateCoordinates(cfg.Latitude, cfg.Longitude); err != nil {
		return fmt.Errorf("weather_api coordinates: %w", err)
	}
	tz, err := validation.ValidateTimezone(cfg.ClockTimezone)
	if err != nil {
		return fmt.Errorf("widget.clock_timezone: %w", err)
	}
	cfg.ClockTimezone = tz
	if _, err := validation.ValidateTimezone(cfg.WeatherTimezone); err != nil {
		return fmt.Errorf("weather_api.timezone: %w", err)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	switch cfg.CacheBackend {
	case CacheBackendNone, CacheBackendInMemory, CacheBackendMemcached:
		// valid
	default:
		return fmt.Errorf("cache.backend must be none, in_memory or memcached, got %q", cfg.CacheBackend)
	}
	// A cached reading or an open breaker must not outlive a refresh tick,
	// otherwise scheduled fetches never reach Open-Meteo.
	if cfg.CacheBackend != CacheBackendNone && cfg.CacheTTL >= cfg.WeatherRefreshInterval {
		return fmt.Errorf("cache.ttl (%s) must be shorter than widget.weather_refresh_interval (%s)",
			cfg.CacheTTL, cfg.WeatherRefreshInterval)
	}
	if cfg.CircuitBreakerEnabled && cfg.CircuitBreakerTimeout >= cfg.WeatherRefreshInterval {
		return fmt.Errorf("circuit_breaker.timeout (%s) must be shorter than widget.weather_refresh_interval (%s)",
			cfg.CircuitBreakerTimeout, cfg.WeatherRefreshInterval)
	}
	return nil
}
