package handlers

import (
	"context"
	"encoding/json"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	baseRecoveryHours = 36.0
	minRecoveryHours  = 12.0
	maxRecoveryHours  = 72.0
)

const recoverySystemPrompt = `You are a recovery coach.
Given the user's recovery numbers, write two sentences: how ready they are to train and what kind of session fits today.`

// RecoveryInput is the optional structured input of recovery_prediction
type RecoveryInput struct {
	SleepHours *float64 `json:"sleep_hours,omitempty"`
	Soreness   *int     `json:"soreness,omitempty"` // 1-10
}

// RecoveryPrediction is the recovery_prediction payload
type RecoveryPrediction struct {
	HoursSinceLast *float64   `json:"hours_since_last_session"`
	Intensity      float64    `json:"relative_intensity"`
	RequiredHours  float64    `json:"required_recovery_hours"`
	Score          int        `json:"recovery_score"`
	ReadyAt        time.Time  `json:"ready_at"`
	LastSessionAt  *time.Time `json:"last_session_at,omitempty"`
	Commentary     string     `json:"commentary"`
}

// PredictRecovery estimates readiness from the latest session relative to
// the user's average session load
func PredictRecovery(workouts []db.Workout, in RecoveryInput, now time.Time) RecoveryPrediction {
	last := latestWorkout(workouts)
	if last == nil {
		return RecoveryPrediction{Score: 100, ReadyAt: now}
	}

	var total float64
	for _, w := range workouts {
		total += SessionLoad(w)
	}
	mean := total / float64(len(workouts))

	intensity := 1.0
	if mean > 0 {
		intensity = SessionLoad(*last) / mean
	}

	required := baseRecoveryHours * intensity
	if in.SleepHours != nil && *in.SleepHours < 7 {
		required *= 1.15
	}
	if in.Soreness != nil && *in.Soreness >= 7 {
		required *= 1.2
	}
	required = math.Max(minRecoveryHours, math.Min(maxRecoveryHours, required))

	since := now.Sub(last.PerformedAt).Hours()
	if since < 0 {
		since = 0
	}
	score := int(math.Min(100, math.Round(since/required*100)))

	lastAt := last.PerformedAt
	hours := math.Round(since*10) / 10
	return RecoveryPrediction{
		HoursSinceLast: &hours,
		Intensity:      math.Round(intensity*100) / 100,
		RequiredHours:  math.Round(required*10) / 10,
		Score:          score,
		ReadyAt:        lastAt.Add(time.Duration(required * float64(time.Hour))),
		LastSessionAt:  &lastAt,
	}
}

// RecoveryPredictor handles recovery_prediction
type RecoveryPredictor struct {
	gateway llm.Gateway
	now     func() time.Time
}

// NewRecoveryPredictor creates a RecoveryPredictor
func NewRecoveryPredictor(gateway llm.Gateway) *RecoveryPredictor {
	return &RecoveryPredictor{gateway: gateway, now: time.Now}
}

// Process predicts readiness; input.Data may carry sleep hours and soreness
func (h *RecoveryPredictor) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	var in RecoveryInput
	if len(input.Data) > 0 {
		if err := json.Unmarshal(input.Data, &in); err != nil {
			return nil, invalidInput("recovery data: %v", err)
		}
	}
	if in.Soreness != nil && (*in.Soreness < 1 || *in.Soreness > 10) {
		return nil, invalidInput("soreness must be between 1 and 10")
	}

	var workouts []db.Workout
	if uc != nil {
		workouts = uc.RecentWorkouts
	}
	prediction := PredictRecovery(workouts, in, h.now())

	if prediction.LastSessionAt == nil {
		prediction.Commentary = "No recent sessions logged. You are fully recovered and ready to train."
		return &Result{Data: &prediction, Confidence: 0.3, Model: cfg.Model}, nil
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Hours since last session: %.1f\n", *prediction.HoursSinceLast)
	fmt.Fprintf(&prompt, "Last session intensity relative to average: %.2f\n", prediction.Intensity)
	fmt.Fprintf(&prompt, "Estimated recovery needed: %.1f hours\n", prediction.RequiredHours)
	fmt.Fprintf(&prompt, "Recovery score: %d/100\n", prediction.Score)
	if in.SleepHours != nil {
		fmt.Fprintf(&prompt, "Sleep last night: %.1f hours\n", *in.SleepHours)
	}
	if in.Soreness != nil {
		fmt.Fprintf(&prompt, "Soreness: %d/10\n", *in.Soreness)
	}

	completion, err := complete(ctx, h.gateway, cfg, recoverySystemPrompt, prompt.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	prediction.Commentary = strings.TrimSpace(completion.Text)

	confidence := 0.5
	if len(workouts) >= 4 {
		confidence += 0.2
	}
	if in.SleepHours != nil || in.Soreness != nil {
		confidence += 0.1
	}
	return resultFrom(&prediction, confidence, cfg, completion), nil
}
