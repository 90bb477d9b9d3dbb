package orchestrator

import (
	"context"
	"errors"
	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
	"fitcoach/internal/repository/db"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context window sizes
const (
	ContextTTL            = time.Hour
	workoutWindow         = 30 * 24 * time.Hour
	workoutLimit          = 30
	nutritionWindow       = 7 * 24 * time.Hour
	bodyMetricLimit       = 10
	patternLimit          = 50
	conversationReadLimit = 20
	conversationKeep      = 10
	weeksPerMonth         = 4
)

// ContextLoader serves the per-user context snapshot, rebuilding it from the
// store when the cached row is missing or stale
type ContextLoader struct {
	db    db.Database
	cache db.ContextCacheStore
	now   func() time.Time
}

// NewContextLoader creates a ContextLoader. A nil cache uses the database.
func NewContextLoader(database db.Database, cache db.ContextCacheStore, now func() time.Time) *ContextLoader {
	if cache == nil {
		cache = database
	}
	if now == nil {
		now = time.Now
	}
	return &ContextLoader{db: database, cache: cache, now: now}
}

// Load returns a fresh snapshot, from cache when possible
func (l *ContextLoader) Load(ctx context.Context, userID string) (*db.ContextCache, error) {
	cached, err := l.cache.GetContextCache(ctx, userID)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Context cache read failed, rebuilding")
	} else if cached.Fresh(l.now()) {
		metrics.ContextCache.WithLabelValues(metrics.CacheHit).Inc()
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"cache":   metrics.CacheHit,
		}).Debug("Serving cached context")
		return cached, nil
	}

	metrics.ContextCache.WithLabelValues(metrics.CacheMiss).Inc()
	return l.Rebuild(ctx, userID)
}

// Rebuild reads every source in parallel and replaces the cached row
func (l *ContextLoader) Rebuild(ctx context.Context, userID string) (*db.ContextCache, error) {
	now := l.now()
	uc := &db.ContextCache{UserID: userID}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := l.db.GetProfile(gctx, userID)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		uc.Profile = profile
		return nil
	})
	g.Go(func() error {
		workouts, err := l.db.GetWorkoutsSince(gctx, userID, now.Add(-workoutWindow), workoutLimit)
		if err != nil {
			return fmt.Errorf("workouts: %w", err)
		}
		uc.RecentWorkouts = workouts
		return nil
	})
	g.Go(func() error {
		logs, err := l.db.GetNutritionLogsSince(gctx, userID, now.Add(-nutritionWindow), 0)
		if err != nil {
			return fmt.Errorf("nutrition: %w", err)
		}
		uc.RecentNutrition = logs
		return nil
	})
	g.Go(func() error {
		metrics, err := l.db.GetBodyMetrics(gctx, userID, bodyMetricLimit)
		if err != nil {
			return fmt.Errorf("body metrics: %w", err)
		}
		uc.BodyMetrics = metrics
		return nil
	})
	g.Go(func() error {
		goals, err := l.db.GetActiveGoals(gctx, userID)
		if err != nil {
			return fmt.Errorf("goals: %w", err)
		}
		uc.ActiveGoals = goals
		return nil
	})
	g.Go(func() error {
		patterns, err := l.db.GetTopPatterns(gctx, userID, patternLimit)
		if err != nil {
			return fmt.Errorf("patterns: %w", err)
		}
		uc.Patterns = patterns
		return nil
	})
	g.Go(func() error {
		turns, err := l.db.GetRecentConversationTurns(gctx, userID, conversationReadLimit)
		if err != nil {
			return fmt.Errorf("conversations: %w", err)
		}
		if len(turns) > conversationKeep {
			turns = turns[:conversationKeep]
		}
		uc.Conversations = turns
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build user context: %w", err)
	}

	uc.AvgDailyCalories, uc.AvgDailyProtein = dailyAverages(uc.RecentNutrition)
	uc.WorkoutsPerWeek = float64(len(uc.RecentWorkouts)) / weeksPerMonth
	uc.UpdatedAt = now
	uc.StaleAfter = now.Add(ContextTTL)

	if err := l.cache.UpsertContextCache(ctx, uc); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Failed to store rebuilt context")
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID,
		"cache":     metrics.CacheMiss,
		"workouts":  len(uc.RecentWorkouts),
		"nutrition": len(uc.RecentNutrition),
		"patterns":  len(uc.Patterns),
	}).Debug("Rebuilt user context")

	return uc, nil
}

// dailyAverages divides calorie and protein totals by the number of logged days
func dailyAverages(logs []db.NutritionLog) (calories, protein float64) {
	days := make(map[string]bool)
	for _, log := range logs {
		calories += log.Calories
		protein += log.Protein
		days[log.LoggedAt.Format("2006-01-02")] = true
	}
	if len(days) == 0 {
		return 0, 0
	}
	n := float64(len(days))
	return math.Round(calories/n*10) / 10, math.Round(protein/n*10) / 10
}

