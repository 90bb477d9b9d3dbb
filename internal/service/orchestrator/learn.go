package orchestrator

import (
	"context"
	"encoding/json"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/handlers"
	"fitcoach/internal/service/patterns"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

const aliasPrefixLen = 3

type aliasData struct {
	Name   string  `json:"name"`
	Sets   int     `json:"sets,omitempty"`
	Reps   int     `json:"reps,omitempty"`
	Weight float64 `json:"weight,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

type foodData struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Calories float64 `json:"calories,omitempty"`
}

// learn records aliases and food preferences from a successful parse.
// Each write is independent: a failure is logged and the rest still run.
func (o *Orchestrator) learn(ctx context.Context, userID string, input handlers.Input, result *handlers.Result) {
	switch data := result.Data.(type) {
	case *handlers.ParsedWorkout:
		o.learnAliases(ctx, userID, input.Text, data.Exercises)
	case *handlers.ParsedMeal:
		o.learnFoods(ctx, userID, data.Foods)
	case *handlers.VoiceResult:
		if data.Workout != nil {
			o.learnAliases(ctx, userID, data.Transcript, data.Workout.Exercises)
		}
		if data.Meal != nil {
			o.learnFoods(ctx, userID, data.Meal.Foods)
		}
	}
}

// learnAliases stores the word the user typed for each exercise whose
// first letters start a word of the raw text
func (o *Orchestrator) learnAliases(ctx context.Context, userID, text string, exercises []db.Exercise) {
	words := tokenize(text)
	for _, ex := range exercises {
		alias, ok := AliasFor(ex.Name, words)
		if !ok {
			continue
		}
		payload, _ := json.Marshal(aliasData{
			Name:   ex.Name,
			Sets:   ex.Sets,
			Reps:   ex.Reps,
			Weight: ex.Weight,
			Unit:   ex.Unit,
		})
		o.increment(ctx, userID, patterns.TypeExerciseAlias, alias, payload)
	}
}

func (o *Orchestrator) learnFoods(ctx context.Context, userID string, foods []db.FoodItem) {
	for _, food := range foods {
		key := strings.ToLower(strings.TrimSpace(food.Name))
		if key == "" {
			continue
		}
		payload, _ := json.Marshal(foodData{
			Name:     food.Name,
			Quantity: food.Quantity,
			Unit:     food.Unit,
			Calories: food.Calories,
		})
		o.increment(ctx, userID, patterns.TypeFoodPreference, key, payload)
	}
}

func (o *Orchestrator) increment(ctx context.Context, userID, patternType, key string, payload json.RawMessage) {
	if err := o.db.IncrementPattern(ctx, userID, patternType, key, payload); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id":      userID,
			"pattern_type": patternType,
			"pattern_key":  key,
			"error":        err.Error(),
		}).Warn("Failed to update learned pattern")
	}
}

// AliasFor returns the first input word that starts with the first three
// letters of the exercise name. A word equal to the full name is not an alias.
func AliasFor(exercise string, words []string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(exercise))
	runes := []rune(name)
	if len(runes) < aliasPrefixLen {
		return "", false
	}
	prefix := string(runes[:aliasPrefixLen])
	for _, w := range words {
		if w == name || !strings.HasPrefix(w, prefix) {
			continue
		}
		return w, true
	}
	return "", false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
