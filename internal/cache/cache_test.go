package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/portfolio-live-info/internal/models"
)

func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := models.WeatherReading{TemperatureCelsius: 12.5, WeatherCode: 61}
	if err := c.Set(ctx, "63.3667,23.4833", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "63.3667,23.4833")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != val {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that expired entries miss and are removed.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewInMemoryCache()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", models.WeatherReading{WeatherCode: 1}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	now = now.Add(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if _, present := c.data["k"]; present {
		t.Error("expired entry should be deleted from cache")
	}
}

func TestInMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Set(ctx, "k", models.WeatherReading{WeatherCode: i}, time.Minute)
			_, _, _ = c.Get(ctx, "k")
		}(i)
	}
	wg.Wait()
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("Get() ok = false after concurrent sets, want true")
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:11211, ,b:11211 ")
	if len(got) != 2 || got[0] != "a:11211" || got[1] != "b:11211" {
		t.Errorf("parseAddrs() = %v, want [a:11211 b:11211]", got)
	}
}

func TestNewMemcachedCache_NoAddrs(t *testing.T) {
	if _, err := NewMemcachedCache(" , ", time.Second, 2); err == nil {
		t.Error("NewMemcachedCache() expected error for empty address list")
	}
}

func TestExpirationSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{5 * time.Minute, 300},
		{0, 3600},
		{-time.Second, 3600},
		{31 * 24 * time.Hour, 3600},
	}
	for _, tt := range tests {
		if got := expirationSeconds(tt.ttl); got != tt.want {
			t.Errorf("expirationSeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}
