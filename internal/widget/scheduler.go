package widget

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

const (
	DefaultClockInterval          = time.Second
	DefaultWeatherRefreshInterval = 10 * time.Minute
)

// Scheduler drives the controller from two repeating timers: the clock
// renders every ClockInterval and a weather fetch starts every
// WeatherInterval. Fetches run on their own goroutines so a slow one never
// delays the next tick.
type Scheduler struct {
	controller      *Controller
	logger          *zap.Logger
	clockInterval   time.Duration
	weatherInterval time.Duration

	fetches sync.WaitGroup
}

// NewScheduler returns a Scheduler. Non-positive intervals use the defaults.
func NewScheduler(c *Controller, logger *zap.Logger, clockInterval, weatherInterval time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clockInterval <= 0 {
		clockInterval = DefaultClockInterval
	}
	if weatherInterval <= 0 {
		weatherInterval = DefaultWeatherRefreshInterval
	}
	return &Scheduler{
		controller:      c,
		logger:          logger,
		clockInterval:   clockInterval,
		weatherInterval: weatherInterval,
	}
}

// Run renders the clock and starts the first fetch immediately, then keeps
// both timers going until ctx is done. It waits for running fetches to
// return before it returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("widget scheduler started",
		zap.Duration("clock_interval", s.clockInterval),
		zap.Duration("weather_interval", s.weatherInterval),
		zap.Bool("clock_enabled", s.controller.ClockEnabled()),
		zap.Bool("weather_enabled", s.controller.WeatherEnabled()),
	)
	defer s.fetches.Wait()

	var clockC, weatherC <-chan time.Time
	if s.controller.ClockEnabled() {
		s.controller.RenderClock()
		t := time.NewTicker(s.clockInterval)
		defer t.Stop()
		clockC = t.C
	}
	if s.controller.WeatherEnabled() {
		s.startFetch(ctx)
		t := time.NewTicker(s.weatherInterval)
		defer t.Stop()
		weatherC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("widget scheduler stopping")
			return ctx.Err()
		case <-clockC:
			s.controller.RenderClock()
		case <-weatherC:
			s.startFetch(ctx)
		}
	}
}

func (s *Scheduler) startFetch(ctx context.Context) {
	fetchID := uuid.New().String()
	fetchCtx := observability.WithCorrelationID(ctx, fetchID)
	fetchCtx = observability.WithLogger(fetchCtx, s.logger.With(zap.String("correlation_id", fetchID)))

	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		s.controller.FetchWeather(fetchCtx)
	}()
}
