package handlers

import (
	"context"
	"encoding/json"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"fitcoach/internal/service/patterns"
	"fmt"
	"strings"
)

const minParseConfidence = 0.3

const workoutSystemPrompt = `You convert free-text workout descriptions into JSON.
Reply with a single JSON object and nothing else:
{"workout_type": "strength|cardio|hiit|mobility|sport|other",
 "duration_minutes": <int or 0>,
 "exercises": [{"name": "<full exercise name>", "sets": <int>, "reps": <int>, "weight": <number>, "unit": "kg|lb"}],
 "notes": "<anything that did not fit>"}
Expand abbreviations to full exercise names. Omit numbers you cannot infer.`

// ParsedWorkout is the structured form of a workout description
type ParsedWorkout struct {
	WorkoutType     string        `json:"workout_type"`
	DurationMinutes int           `json:"duration_minutes"`
	Exercises       []db.Exercise `json:"exercises"`
	Notes           string        `json:"notes,omitempty"`
}

// WorkoutParser handles parse_workout
type WorkoutParser struct {
	gateway llm.Gateway
}

// NewWorkoutParser creates a WorkoutParser
func NewWorkoutParser(gateway llm.Gateway) *WorkoutParser {
	return &WorkoutParser{gateway: gateway}
}

// Process parses input.Text into a ParsedWorkout
func (h *WorkoutParser) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, invalidInput("workout text is required")
	}

	completion, err := complete(ctx, h.gateway, cfg, workoutSystemPrompt, workoutPrompt(text, uc), nil, nil)
	if err != nil {
		return nil, err
	}

	var parsed ParsedWorkout
	if err := DecodeJSON(completion.Text, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse workout: %w", err)
	}
	if parsed.Exercises == nil {
		parsed.Exercises = []db.Exercise{}
	}

	return resultFrom(&parsed, workoutConfidence(parsed.Exercises), cfg, completion), nil
}

func workoutPrompt(text string, uc *db.ContextCache) string {
	var b strings.Builder
	if aliases := patternsOfType(uc, patterns.TypeExerciseAlias); len(aliases) > 0 {
		b.WriteString("This user's known abbreviations:\n")
		for _, p := range aliases {
			var data struct {
				Name string `json:"name"`
			}
			if json.Unmarshal(p.PatternData, &data) == nil && data.Name != "" {
				fmt.Fprintf(&b, "- %q means %s\n", p.PatternKey, data.Name)
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Workout: %s", text)
	return b.String()
}

func workoutConfidence(exercises []db.Exercise) float64 {
	if len(exercises) == 0 {
		return minParseConfidence
	}
	full := 0
	for _, ex := range exercises {
		if ex.Sets > 0 && ex.Reps > 0 {
			full++
		}
	}
	return floorConfidence(float64(full) / float64(len(exercises)))
}

func floorConfidence(v float64) float64 {
	if v < minParseConfidence {
		return minParseConfidence
	}
	return v
}

// patternsOfType returns the context's learned patterns of one type, most frequent first
func patternsOfType(uc *db.ContextCache, patternType string) []db.Pattern {
	if uc == nil {
		return nil
	}
	var out []db.Pattern
	for _, p := range uc.Patterns {
		if p.PatternType == patternType {
			out = append(out, p)
		}
	}
	return out
}
