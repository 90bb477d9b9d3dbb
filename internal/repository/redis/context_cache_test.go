package redis

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestKey(t *testing.T) {
	if got := Key("user-1"); got != "fitcoach:context:user-1" {
		t.Errorf("Key() = %q", got)
	}
}

func TestTTL(t *testing.T) {
	now := time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		staleAfter time.Time
		want       time.Duration
	}{
		{name: "fresh", staleAfter: now.Add(time.Hour), want: time.Hour},
		{name: "expiring", staleAfter: now.Add(time.Second), want: time.Second},
		{name: "stale", staleAfter: now.Add(-time.Minute), want: -time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TTL(&db.ContextCache{StaleAfter: tt.staleAfter}, now)
			if got != tt.want {
				t.Errorf("TTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestCache(t *testing.T, now time.Time) (*ContextCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache, err := NewContextCache(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewContextCache() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	cache.now = func() time.Time { return now }
	return cache, mr
}

func TestGetContextCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t, time.Now())

	got, err := cache.GetContextCache(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetContextCache() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetContextCache() = %+v, want nil", got)
	}
}

func TestContextCache_RoundTrip(t *testing.T) {
	now := time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)
	cache, mr := newTestCache(t, now)
	ctx := context.Background()

	weight := 81.5
	snapshot := &db.ContextCache{
		UserID:  "user-1",
		Profile: &db.Profile{UserID: "user-1", SubscriptionTier: "basic"},
		RecentWorkouts: []db.Workout{{
			ID:          "w1",
			WorkoutType: "strength",
			Exercises:   []db.Exercise{{Name: "Squat", Sets: 5, Reps: 5, Weight: 100, Unit: "kg"}},
			PerformedAt: now.Add(-24 * time.Hour),
		}},
		BodyMetrics:      []db.BodyMetric{{WeightKg: &weight, RecordedAt: now.Add(-48 * time.Hour)}},
		AvgDailyCalories: 2150.5,
		WorkoutsPerWeek:  1.5,
		UpdatedAt:        now,
		StaleAfter:       now.Add(time.Hour),
	}

	if err := cache.UpsertContextCache(ctx, snapshot); err != nil {
		t.Fatalf("UpsertContextCache() error = %v", err)
	}
	if ttl := mr.TTL(Key("user-1")); ttl != time.Hour {
		t.Errorf("key TTL = %v, want %v", ttl, time.Hour)
	}

	got, err := cache.GetContextCache(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetContextCache() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetContextCache() = nil, want snapshot")
	}
	if got.Profile == nil || got.Profile.SubscriptionTier != "basic" {
		t.Errorf("Profile = %+v", got.Profile)
	}
	if len(got.RecentWorkouts) != 1 || got.RecentWorkouts[0].Exercises[0].Name != "Squat" {
		t.Errorf("RecentWorkouts = %+v", got.RecentWorkouts)
	}
	if !got.RecentWorkouts[0].PerformedAt.Equal(snapshot.RecentWorkouts[0].PerformedAt) {
		t.Errorf("PerformedAt = %v", got.RecentWorkouts[0].PerformedAt)
	}
	if len(got.BodyMetrics) != 1 || got.BodyMetrics[0].WeightKg == nil || *got.BodyMetrics[0].WeightKg != weight {
		t.Errorf("BodyMetrics = %+v", got.BodyMetrics)
	}
	if got.AvgDailyCalories != 2150.5 || got.WorkoutsPerWeek != 1.5 {
		t.Errorf("averages = %v, %v", got.AvgDailyCalories, got.WorkoutsPerWeek)
	}
	if !got.StaleAfter.Equal(snapshot.StaleAfter) || !got.UpdatedAt.Equal(now) {
		t.Errorf("StaleAfter = %v, UpdatedAt = %v", got.StaleAfter, got.UpdatedAt)
	}

	// the key expires at the staleness horizon
	mr.FastForward(time.Hour)
	got, err = cache.GetContextCache(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetContextCache() after expiry error = %v", err)
	}
	if got != nil {
		t.Errorf("GetContextCache() after expiry = %+v, want nil", got)
	}
}

func TestUpsertContextCache_SkipsStaleSnapshot(t *testing.T) {
	now := time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)
	cache, mr := newTestCache(t, now)

	stale := &db.ContextCache{UserID: "user-1", StaleAfter: now.Add(-time.Minute)}
	if err := cache.UpsertContextCache(context.Background(), stale); err != nil {
		t.Fatalf("UpsertContextCache() error = %v", err)
	}
	if mr.Exists(Key("user-1")) {
		t.Error("stale snapshot was written")
	}
}

func TestGetContextCache_CorruptValue(t *testing.T) {
	cache, mr := newTestCache(t, time.Now())
	if err := mr.Set(Key("user-1"), "not json"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, err := cache.GetContextCache(context.Background(), "user-1"); err == nil {
		t.Error("GetContextCache() error = nil, want decode error")
	}
}
