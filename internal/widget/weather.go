package widget

import (
	"context"
	"errors"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/client"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
	"github.com/kjstillabower/portfolio-live-info/internal/traffic"
	"github.com/kjstillabower/portfolio-live-info/internal/weathercode"
)

// WeatherUnavailable replaces the weather display after a failed fetch.
const WeatherUnavailable = "Weather unavailable"

// FetchWeather fetches the current reading and, on success, stores it and
// re-renders. On failure the error is logged and the region shows
// WeatherUnavailable; the previously stored reading is kept. Overlapping
// calls are allowed and each one writes its outcome when it completes, so
// the last to complete wins.
func (c *Controller) FetchWeather(ctx context.Context) {
	if c.weather == nil {
		return
	}

	logger := observability.LoggerFromContext(ctx)
	if logger == nil {
		logger = c.logger
	}

	reading, err := c.fetcher.GetReading(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Debug("weather fetch cancelled", zap.Error(err))
			return
		}
		category := client.CategorizeError(err)
		traffic.RecordFetchError()
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(category)).Inc()
		logger.Warn("weather fetch failed",
			zap.String("error_category", string(category)),
			zap.Error(err),
		)

		if c.staleReadingUsableLocked() {
			logger.Info("rendering retained reading after failed fetch",
				zap.Time("fetched_at", c.state.CurrentWeather.FetchedAt),
			)
			c.renderWeatherLocked()
			return
		}
		c.weather.set(c.safeNow(), WeatherUnavailable)
		observability.RecordRender(weatherWidget, true)
		return
	}

	traffic.RecordFetchSuccess()
	r := reading
	c.state.CurrentWeather = &r
	c.renderWeatherLocked()
}

// RenderWeather writes the stored reading using the current unit. It does
// nothing until a reading has been stored.
func (c *Controller) RenderWeather() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderWeatherLocked()
}

func (c *Controller) renderWeatherLocked() {
	if c.weather == nil || c.state.CurrentWeather == nil {
		return
	}
	reading := *c.state.CurrentWeather

	code := weathercode.Code(reading.WeatherCode)
	if !code.Known() {
		observability.WeatherCodeUnknownTotal.Inc()
	}
	if !reading.FetchedAt.IsZero() {
		observability.WeatherReadingAgeSeconds.Set(c.safeNow().Sub(reading.FetchedAt).Seconds())
	}

	c.weather.set(c.safeNow(),
		FormatTemperature(reading.TemperatureCelsius, c.state.IsFahrenheit),
		code.Description(),
	)
	observability.RecordRender(weatherWidget, false)
}

func (c *Controller) staleReadingUsableLocked() bool {
	if c.staleTTL <= 0 || c.state.CurrentWeather == nil {
		return false
	}
	return c.safeNow().Sub(c.state.CurrentWeather.FetchedAt) <= c.staleTTL
}

// FormatTemperature renders a Celsius value as "21°C", or converted as
// "70°F". Halves round towards positive infinity.
func FormatTemperature(celsius float64, fahrenheit bool) string {
	if fahrenheit {
		return strconv.Itoa(roundHalfUp(celsius*9/5+32)) + "°F"
	}
	return strconv.Itoa(roundHalfUp(celsius)) + "°C"
}

// roundHalfUp clamps to ±1e6 so the int conversion is always defined.
func roundHalfUp(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1e6:
		v = 1e6
	case v < -1e6:
		v = -1e6
	}
	return int(math.Floor(v + 0.5))
}
