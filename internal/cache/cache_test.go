package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/drought-index-service/internal/models"
)

func testForecast(region string) models.Forecast {
	return models.Forecast{
		RegionID:    region,
		HorizonDays: 2,
		Points: []models.ForecastPoint{
			{Date: "2024-06-02", PredictedSeverity: models.SeverityModerate, Probability: 66},
			{Date: "2024-06-03", PredictedSeverity: models.SeverityModerate, Probability: 66},
		},
	}
}

func TestKey(t *testing.T) {
	if got := Key("turkana", 30); got != "turkana:30" {
		t.Errorf("Key() = %q, want turkana:30", got)
	}
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(clockwork.NewFakeClock())

	val := testForecast("turkana")
	if err := c.Set(ctx, Key("turkana", 2), val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, Key("turkana", 2))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.RegionID != val.RegionID || len(got.Points) != 2 {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(nil)

	_, ok, err := c.Get(ctx, "nonexistent:30")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_ExpiredStillStale verifies that expired entries miss on Get
// but are served by GetStale until the grace period ends.
func TestInMemoryCache_ExpiredStillStale(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache(clock)

	if err := c.Set(ctx, "turkana:2", testForecast("turkana"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(2 * time.Minute)

	if _, ok, _ := c.Get(ctx, "turkana:2"); ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	got, ok, err := c.GetStale(ctx, "turkana:2")
	if err != nil || !ok {
		t.Fatalf("GetStale() = (_, %v, %v), want hit", ok, err)
	}
	if got.RegionID != "turkana" {
		t.Errorf("GetStale() region = %q, want turkana", got.RegionID)
	}

	clock.Advance(StaleGrace)

	if _, ok, _ := c.GetStale(ctx, "turkana:2"); ok {
		t.Error("GetStale() ok = true after grace period, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after stale entry removed", c.Len())
	}
}

func TestExpirationSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int32
	}{
		{15 * time.Minute, 900},
		{0, 3600},
		{-time.Second, 3600},
		{31 * 24 * time.Hour, 3600},
	}
	for _, tt := range tests {
		if got := expirationSeconds(tt.in); got != tt.want {
			t.Errorf("expirationSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" host1:11211, ,host2:11211 ")
	if len(got) != 2 || got[0] != "host1:11211" || got[1] != "host2:11211" {
		t.Errorf("parseAddrs() = %v", got)
	}
	if got := parseAddrs(""); len(got) != 0 {
		t.Errorf("parseAddrs(\"\") = %v, want empty", got)
	}
}

// BenchmarkInMemoryCache_Get_Hit benchmarks cache Get operation on cache hit.
func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	c := NewInMemoryCache(nil)
	ctx := context.Background()
	_ = c.Set(ctx, "turkana:30", testForecast("turkana"), 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "turkana:30")
	}
}

// BenchmarkInMemoryCache_Parallel benchmarks concurrent Get and Set.
func BenchmarkInMemoryCache_Parallel(b *testing.B) {
	c := NewInMemoryCache(nil)
	ctx := context.Background()
	val := testForecast("turkana")

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%4 == 0 {
				_ = c.Set(ctx, "turkana:30", val, 5*time.Minute)
			} else {
				_, _, _ = c.Get(ctx, "turkana:30")
			}
			i++
		}
	})
}
