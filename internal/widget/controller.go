package widget

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/models"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

const (
	// DefaultTimezone is the zone the clock widget reports.
	DefaultTimezone = "Europe/Helsinki"

	clockWidget   = "clock"
	weatherWidget = "weather"
)

// Fetcher returns the current weather reading. service.WeatherService
// satisfies it.
type Fetcher interface {
	GetReading(ctx context.Context) (models.WeatherReading, error)
}

// Options configures a Controller. Zero values pick the defaults.
type Options struct {
	Fetcher  Fetcher
	Logger   *zap.Logger
	Timezone string

	// StaleReadingTTL, when positive, keeps rendering the last good reading
	// after a failed fetch as long as the reading is younger than the TTL.
	StaleReadingTTL time.Duration

	// DisableClock and DisableWeather model a page without the matching
	// display container: the widget's operations become no-ops.
	DisableClock   bool
	DisableWeather bool

	Now          func() time.Time
	LoadLocation func(name string) (*time.Location, error)
}

// Controller owns the widget state and the two display regions. mu
// serializes every handler so each runs to completion before the next one
// starts; fetches release it while waiting on the network.
type Controller struct {
	mu      sync.Mutex
	state   State
	clock   *Region
	weather *Region

	fetcher      Fetcher
	logger       *zap.Logger
	timezone     string
	location     *time.Location
	staleTTL     time.Duration
	now          func() time.Time
	loadLocation func(string) (*time.Location, error)
}

// NewController builds a Controller with state (false, false, nil).
func NewController(opts Options) *Controller {
	c := &Controller{
		fetcher:      opts.Fetcher,
		logger:       opts.Logger,
		timezone:     opts.Timezone,
		staleTTL:     opts.StaleReadingTTL,
		now:          opts.Now,
		loadLocation: opts.LoadLocation,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.timezone == "" {
		c.timezone = DefaultTimezone
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.loadLocation == nil {
		c.loadLocation = time.LoadLocation
	}
	if !opts.DisableClock {
		c.clock = newRegion(clockWidget)
	}
	if !opts.DisableWeather && opts.Fetcher != nil {
		c.weather = newRegion(weatherWidget)
	}
	return c
}

// ClockEnabled reports whether the clock display exists.
func (c *Controller) ClockEnabled() bool { return c.clock != nil }

// WeatherEnabled reports whether the weather display exists.
func (c *Controller) WeatherEnabled() bool { return c.weather != nil }

// ToggleClockFormat flips between 12- and 24-hour time and re-renders the
// clock without waiting for the next tick. Returns the new setting.
func (c *Controller) ToggleClockFormat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock == nil {
		return c.state.Is12HourFormat
	}
	c.state.Is12HourFormat = !c.state.Is12HourFormat
	observability.WidgetTogglesTotal.WithLabelValues(clockWidget).Inc()
	c.renderClockLocked()
	return c.state.Is12HourFormat
}

// ToggleTemperatureUnit flips between Celsius and Fahrenheit and re-renders
// the stored reading. It never triggers a fetch. Returns the new setting.
func (c *Controller) ToggleTemperatureUnit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.weather == nil {
		return c.state.IsFahrenheit
	}
	c.state.IsFahrenheit = !c.state.IsFahrenheit
	observability.WidgetTogglesTotal.WithLabelValues(weatherWidget).Inc()
	c.renderWeatherLocked()
	return c.state.IsFahrenheit
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.CurrentWeather != nil {
		r := *s.CurrentWeather
		s.CurrentWeather = &r
	}
	return s
}

// Snapshot is the externally visible view of both widgets.
type Snapshot struct {
	Clock          RegionSnapshot `json:"clock"`
	Weather        RegionSnapshot `json:"weather"`
	Is12HourFormat bool           `json:"is12HourFormat"`
	IsFahrenheit   bool           `json:"isFahrenheit"`
}

// Snapshot copies both regions and the toggle flags.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Clock:          c.clock.snapshot(),
		Weather:        c.weather.snapshot(),
		Is12HourFormat: c.state.Is12HourFormat,
		IsFahrenheit:   c.state.IsFahrenheit,
	}
}
