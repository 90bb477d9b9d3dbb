package handlers

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"fmt"
	"strings"
)

// Voice intents
const (
	IntentWorkout  = "workout"
	IntentFood     = "food"
	IntentQuestion = "question"
)

const voiceSystemPrompt = `You interpret a spoken fitness log transcript. Decide whether it logs a workout, logs food, or asks a question.
Reply with a single JSON object and nothing else:
{"intent": "workout|food|question",
 "workout": {"workout_type": "...", "duration_minutes": 0, "exercises": [{"name": "...", "sets": 0, "reps": 0, "weight": 0, "unit": "kg"}]},
 "meal": {"meal_type": "...", "foods": [{"name": "...", "quantity": 0, "unit": "...", "calories": 0, "protein": 0, "carbs": 0, "fat": 0}]},
 "reply": "<one short sentence to read back to the user>"}
Include only the object that matches the intent.`

// VoiceResult is the interpretation of a transcript
type VoiceResult struct {
	Transcript string         `json:"transcript"`
	Intent     string         `json:"intent"`
	Workout    *ParsedWorkout `json:"workout,omitempty"`
	Meal       *ParsedMeal    `json:"meal,omitempty"`
	Reply      string         `json:"reply"`
}

// VoiceInterpreter handles voice_transcription
type VoiceInterpreter struct {
	gateway llm.Gateway
}

// NewVoiceInterpreter creates a VoiceInterpreter
func NewVoiceInterpreter(gateway llm.Gateway) *VoiceInterpreter {
	return &VoiceInterpreter{gateway: gateway}
}

// Process classifies a transcript and parses the matching log
func (h *VoiceInterpreter) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	transcript := strings.TrimSpace(input.Text)
	if transcript == "" {
		return nil, invalidInput("transcript is required")
	}

	completion, err := complete(ctx, h.gateway, cfg, voiceSystemPrompt, "Transcript: "+transcript, nil, nil)
	if err != nil {
		return nil, err
	}

	var out VoiceResult
	if err := DecodeJSON(completion.Text, &out); err != nil {
		return nil, fmt.Errorf("failed to interpret transcript: %w", err)
	}
	out.Transcript = transcript

	confidence := 0.5
	switch out.Intent {
	case IntentWorkout:
		out.Meal = nil
		if out.Workout != nil {
			confidence = workoutConfidence(out.Workout.Exercises)
		}
	case IntentFood:
		out.Workout = nil
		if out.Meal != nil {
			out.Meal.computeTotals()
			confidence = mealConfidence(out.Meal.Foods)
		}
	case IntentQuestion:
		out.Workout, out.Meal = nil, nil
		confidence = 0.6
	default:
		return nil, fmt.Errorf("unrecognized voice intent %q", out.Intent)
	}

	return resultFrom(&out, confidence, cfg, completion), nil
}
