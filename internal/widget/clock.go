package widget

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

const (
	// TimeUnavailable replaces the clock when the time cannot be formatted.
	TimeUnavailable = "Time unavailable"

	layout24h  = "15:04:05"
	layout12h  = "03:04:05 PM"
	layoutDate = "Monday, January 2, 2006"
)

// RenderClock writes the current time and date into the clock region. It
// never panics; any failure leaves TimeUnavailable in the region.
func (c *Controller) RenderClock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderClockLocked()
}

func (c *Controller) renderClockLocked() {
	if c.clock == nil {
		return
	}
	timeLine, dateLine, err := c.formatClock()
	if err != nil {
		c.logger.Error("clock render failed", zap.String("timezone", c.timezone), zap.Error(err))
		c.clock.set(c.safeNow(), TimeUnavailable)
		observability.RecordRender(clockWidget, true)
		return
	}
	c.clock.set(c.safeNow(), timeLine, dateLine)
	observability.RecordRender(clockWidget, false)
}

func (c *Controller) formatClock() (timeLine, dateLine string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("format clock: %v", r)
		}
	}()

	loc, err := c.zone()
	if err != nil {
		return "", "", err
	}
	now := c.now().In(loc)
	layout := layout24h
	if c.state.Is12HourFormat {
		layout = layout12h
	}
	return now.Format(layout), now.Format(layoutDate), nil
}

// zone loads the clock timezone once. A failed load is retried on the next
// render.
func (c *Controller) zone() (*time.Location, error) {
	if c.location != nil {
		return c.location, nil
	}
	loc, err := c.loadLocation(c.timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.timezone, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("load timezone %q: no location", c.timezone)
	}
	c.location = loc
	return loc, nil
}

// safeNow stamps region updates. It falls back to the wall clock when the
// injected source panics.
func (c *Controller) safeNow() (t time.Time) {
	defer func() {
		if recover() != nil {
			t = time.Now()
		}
	}()
	return c.now()
}
