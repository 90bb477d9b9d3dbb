package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fitcoach/internal/repository/db"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// activeGoalStatuses are the goal states loaded into the user context
var activeGoalStatuses = []string{"active", "in_progress"}

// GetWorkoutsSince retrieves workouts performed at or after since, newest first
func (p *PostgresDB) GetWorkoutsSince(ctx context.Context, userID string, since time.Time, limit int) ([]db.Workout, error) {
	query := `
	SELECT id, user_id, COALESCE(workout_type, ''), COALESCE(duration_minutes, 0), exercises, COALESCE(notes, ''), performed_at
	FROM workouts
	WHERE user_id = $1 AND performed_at >= $2
	ORDER BY performed_at DESC
	LIMIT $3
	`

	rows, err := p.conn.QueryContext(ctx, query, userID, since, limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying workouts: %w", err)
	}
	defer rows.Close()

	var workouts []db.Workout
	for rows.Next() {
		var w db.Workout
		var exercises []byte
		if err := rows.Scan(&w.ID, &w.UserID, &w.WorkoutType, &w.DurationMinutes, &exercises, &w.Notes, &w.PerformedAt); err != nil {
			return nil, fmt.Errorf("error scanning workout: %w", err)
		}
		if len(exercises) > 0 {
			if err := json.Unmarshal(exercises, &w.Exercises); err != nil {
				return nil, fmt.Errorf("error decoding exercises of workout %s: %w", w.ID, err)
			}
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workouts: %w", err)
	}

	return workouts, nil
}

// GetNutritionLogsSince retrieves meals logged at or after since, newest first
func (p *PostgresDB) GetNutritionLogsSince(ctx context.Context, userID string, since time.Time, limit int) ([]db.NutritionLog, error) {
	query := `
	SELECT id, user_id, COALESCE(meal_type, ''), foods, calories, protein, carbs, fat, logged_at
	FROM nutrition_logs
	WHERE user_id = $1 AND logged_at >= $2
	ORDER BY logged_at DESC
	LIMIT $3
	`

	rows, err := p.conn.QueryContext(ctx, query, userID, since, limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying nutrition logs: %w", err)
	}
	defer rows.Close()

	var logs []db.NutritionLog
	for rows.Next() {
		var n db.NutritionLog
		var foods []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.MealType, &foods, &n.Calories, &n.Protein, &n.Carbs, &n.Fat, &n.LoggedAt); err != nil {
			return nil, fmt.Errorf("error scanning nutrition log: %w", err)
		}
		if len(foods) > 0 {
			if err := json.Unmarshal(foods, &n.Foods); err != nil {
				return nil, fmt.Errorf("error decoding foods of nutrition log %s: %w", n.ID, err)
			}
		}
		logs = append(logs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nutrition logs: %w", err)
	}

	return logs, nil
}

// GetBodyMetrics retrieves the most recent body metric readings
func (p *PostgresDB) GetBodyMetrics(ctx context.Context, userID string, limit int) ([]db.BodyMetric, error) {
	query := `
	SELECT id, user_id, weight_kg, body_fat_pct, recorded_at
	FROM body_metrics
	WHERE user_id = $1
	ORDER BY recorded_at DESC
	LIMIT $2
	`

	rows, err := p.conn.QueryContext(ctx, query, userID, limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying body metrics: %w", err)
	}
	defer rows.Close()

	var metrics []db.BodyMetric
	for rows.Next() {
		var m db.BodyMetric
		var weight, bodyFat sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.UserID, &weight, &bodyFat, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("error scanning body metric: %w", err)
		}
		m.WeightKg = nullFloat(weight)
		m.BodyFatPct = nullFloat(bodyFat)
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating body metrics: %w", err)
	}

	return metrics, nil
}

// GetActiveGoals retrieves goals that are still being worked on
func (p *PostgresDB) GetActiveGoals(ctx context.Context, userID string) ([]db.Goal, error) {
	query := `
	SELECT id, user_id, goal_type, target_value, COALESCE(target_unit, ''), target_date, status, created_at
	FROM goals
	WHERE user_id = $1 AND status = ANY($2)
	ORDER BY created_at DESC
	`

	rows, err := p.conn.QueryContext(ctx, query, userID, pq.Array(activeGoalStatuses))
	if err != nil {
		return nil, fmt.Errorf("error querying goals: %w", err)
	}
	defer rows.Close()

	var goals []db.Goal
	for rows.Next() {
		var g db.Goal
		var targetDate sql.NullTime
		if err := rows.Scan(&g.ID, &g.UserID, &g.GoalType, &g.TargetValue, &g.TargetUnit, &targetDate, &g.Status, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning goal: %w", err)
		}
		if targetDate.Valid {
			d := targetDate.Time
			g.TargetDate = &d
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	return goals, nil
}
