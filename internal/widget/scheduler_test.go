package widget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/portfolio-live-info/internal/models"
	"github.com/kjstillabower/portfolio-live-info/internal/observability"
)

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(newTestController(t, nil), nil, 0, -time.Second)
	if s.clockInterval != DefaultClockInterval {
		t.Errorf("clockInterval = %v, want %v", s.clockInterval, DefaultClockInterval)
	}
	if s.weatherInterval != DefaultWeatherRefreshInterval {
		t.Errorf("weatherInterval = %v, want %v", s.weatherInterval, DefaultWeatherRefreshInterval)
	}
}

// TestScheduler_Run_RendersImmediately verifies the clock renders and the
// first fetch starts before any tick fires.
func TestScheduler_Run_RendersImmediately(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{ok(21.4, 3)}}
	c := newTestController(t, f)
	s := NewScheduler(c, nil, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	waitFor(t, func() bool {
		snap := c.Snapshot()
		return len(snap.Clock.Lines) == 2 && len(snap.Weather.Lines) == 2
	})
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if f.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.callCount())
	}
}

func TestScheduler_Run_Ticks(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{ok(1, 1)}}
	var mu sync.Mutex
	now := fixedNow
	c := newTestController(t, f, func(o *Options) {
		o.Now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		}
	})
	s := NewScheduler(c, nil, 5*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return f.callCount() >= 3 })
	first := c.Snapshot().Clock.UpdatedAt
	waitFor(t, func() bool { return c.Snapshot().Clock.UpdatedAt.After(first) })
	cancel()
	<-done
}

// blockingFetcher never returns until ctx is done, like a hung request.
type blockingFetcher struct {
	mu    sync.Mutex
	calls int
	ids   map[string]bool
}

func (b *blockingFetcher) GetReading(ctx context.Context) (models.WeatherReading, error) {
	b.mu.Lock()
	b.calls++
	if b.ids == nil {
		b.ids = make(map[string]bool)
	}
	b.ids[observability.CorrelationID(ctx)] = true
	b.mu.Unlock()
	<-ctx.Done()
	return models.WeatherReading{}, ctx.Err()
}

func (b *blockingFetcher) snapshot() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls, len(b.ids)
}

// TestScheduler_Run_HungFetchDoesNotBlockTicks verifies a fetch that never
// completes does not stop later ticks from starting new fetches, each with
// its own correlation id, and that Run waits for them after cancellation.
func TestScheduler_Run_HungFetchDoesNotBlockTicks(t *testing.T) {
	f := &blockingFetcher{}
	c := newTestController(t, f)
	s := NewScheduler(c, nil, time.Hour, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { calls, _ := f.snapshot(); return calls >= 3 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	calls, ids := f.snapshot()
	if ids != calls {
		t.Errorf("distinct correlation ids = %d, want %d", ids, calls)
	}
	if got := c.Snapshot().Weather.Lines; len(got) != 0 {
		t.Errorf("cancelled fetches rendered %q", got)
	}
}

func TestScheduler_Run_DisabledWeatherNeverFetches(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{ok(1, 1)}}
	c := newTestController(t, f, func(o *Options) { o.DisableWeather = true })
	s := NewScheduler(c, nil, time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if f.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", f.callCount())
	}
	if len(c.Snapshot().Clock.Lines) != 2 {
		t.Error("clock should still render")
	}
}
