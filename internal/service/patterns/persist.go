package patterns

import (
	"context"
	"encoding/json"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Learned pattern types
const (
	TypeWorkoutExercise = "workout_exercise"
	TypeFoodPreference  = "food_preference"
	TypeWorkoutDay      = "workout_day"
	TypeExerciseAlias   = "exercise_alias"
)

const (
	persistExercises = 5
	persistFoods     = 10
)

// Store is the subset of the context store the detector writes to
type Store interface {
	IncrementPattern(ctx context.Context, userID, patternType, patternKey string, data json.RawMessage) error
	AddInsight(ctx context.Context, insight *db.Insight) error
}

// Persist increments the learned counters for the top exercises, the top
// foods and the preferred training day. Each call adds exactly one to every
// key it touches. A failed write is logged and the remaining keys are still
// written; the returned count is the number of failed writes.
func (d *Detector) Persist(ctx context.Context, userID string, r *Result) int {
	failed := 0
	increment := func(patternType, key string, payload map[string]any) {
		data, _ := json.Marshal(payload)
		if err := d.store.IncrementPattern(ctx, userID, patternType, key, data); err != nil {
			failed++
			logger.Log.WithFields(logrus.Fields{
				"user_id":      userID,
				"pattern_type": patternType,
				"pattern_key":  key,
				"error":        err.Error(),
			}).Warn("Failed to persist pattern")
		}
	}

	for _, ex := range topOf(r.Workout.TopExercises, persistExercises) {
		increment(TypeWorkoutExercise, ex.Name, map[string]any{"observed": ex.Count, "trend": r.Workout.VolumeTrends[ex.Name]})
	}
	for _, food := range topOf(r.Nutrition.TopFoods, persistFoods) {
		increment(TypeFoodPreference, food.Name, map[string]any{"observed": food.Count})
	}
	if day := r.Schedule.PreferredDay; day != "" {
		increment(TypeWorkoutDay, day, map[string]any{"observed": r.Schedule.DaysOfWeek[day]})
	}

	return failed
}

// SaveInsights writes one row per insight. Rows are not deduplicated. A
// failed insert is logged and the remaining rows are still written; the
// returned count is the number of failed inserts.
func (d *Detector) SaveInsights(ctx context.Context, userID string, insights []Insight) int {
	failed := 0
	for _, in := range insights {
		data, _ := json.Marshal(map[string]any{"priority": in.Priority})
		row := &db.Insight{
			ID:          uuid.New().String(),
			UserID:      userID,
			InsightType: in.Type,
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
			Data:        data,
			CreatedAt:   d.now(),
		}
		if err := d.store.AddInsight(ctx, row); err != nil {
			failed++
			logger.Log.WithFields(logrus.Fields{
				"user_id": userID,
				"insight": in.Title,
				"error":   err.Error(),
			}).Warn("Failed to save insight")
		}
	}
	return failed
}

// Run detects, persists and derives insights in one pass. Persistence is
// best effort: the detection result is returned even when writes fail.
func (d *Detector) Run(ctx context.Context, userID string, workouts []db.Workout, nutrition []db.NutritionLog, metrics []db.BodyMetric) (*Result, []Insight) {
	result := d.Detect(workouts, nutrition, metrics)
	insights := Insights(result)

	failedPatterns := d.Persist(ctx, userID, result)
	failedInsights := d.SaveInsights(ctx, userID, insights)

	logger.Log.WithFields(logrus.Fields{
		"user_id":         userID,
		"workouts":        len(workouts),
		"nutrition":       len(nutrition),
		"metrics":         len(metrics),
		"insights":        len(insights),
		"consistency":     result.Schedule.ConsistencyScore,
		"failed_patterns": failedPatterns,
		"failed_insights": failedInsights,
	}).Info("Pattern detection completed")

	return result, insights
}

func topOf(counts []Count, n int) []Count {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}
