package handlers

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"fitcoach/internal/service/patterns"
	"fmt"
	"math"
	"strings"
)

const maxPromptFoods = 10

const foodSystemPrompt = `You convert free-text meal descriptions into JSON with nutrition estimates.
Reply with a single JSON object and nothing else:
{"meal_type": "breakfast|lunch|dinner|snack",
 "foods": [{"name": "<food>", "quantity": <number>, "unit": "<unit>", "calories": <number>, "protein": <grams>, "carbs": <grams>, "fat": <grams>}]}
Use typical portion sizes when the quantity is missing.`

// MacroTotals sums the nutrition of a meal
type MacroTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// ParsedMeal is the structured form of a meal description or photo
type ParsedMeal struct {
	MealType string        `json:"meal_type"`
	Foods    []db.FoodItem `json:"foods"`
	Totals   MacroTotals   `json:"totals"`
}

func (m *ParsedMeal) computeTotals() {
	var t MacroTotals
	for _, f := range m.Foods {
		t.Calories += f.Calories
		t.Protein += f.Protein
		t.Carbs += f.Carbs
		t.Fat += f.Fat
	}
	m.Totals = MacroTotals{
		Calories: math.Round(t.Calories),
		Protein:  round1(t.Protein),
		Carbs:    round1(t.Carbs),
		Fat:      round1(t.Fat),
	}
}

// FoodParser handles parse_food
type FoodParser struct {
	gateway llm.Gateway
}

// NewFoodParser creates a FoodParser
func NewFoodParser(gateway llm.Gateway) *FoodParser {
	return &FoodParser{gateway: gateway}
}

// Process parses input.Text into a ParsedMeal
func (h *FoodParser) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, invalidInput("meal text is required")
	}

	completion, err := complete(ctx, h.gateway, cfg, foodSystemPrompt, foodPrompt(text, uc), nil, nil)
	if err != nil {
		return nil, err
	}

	meal, err := decodeMeal(completion.Text)
	if err != nil {
		return nil, err
	}
	return resultFrom(meal, mealConfidence(meal.Foods), cfg, completion), nil
}

func decodeMeal(text string) (*ParsedMeal, error) {
	var meal ParsedMeal
	if err := DecodeJSON(text, &meal); err != nil {
		return nil, fmt.Errorf("failed to parse meal: %w", err)
	}
	if meal.Foods == nil {
		meal.Foods = []db.FoodItem{}
	}
	meal.computeTotals()
	return &meal, nil
}

func foodPrompt(text string, uc *db.ContextCache) string {
	var b strings.Builder
	if prefs := patternsOfType(uc, patterns.TypeFoodPreference); len(prefs) > 0 {
		b.WriteString("Foods this user logs often: ")
		for i, p := range prefs {
			if i == maxPromptFoods {
				break
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.PatternKey)
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Meal: %s", text)
	return b.String()
}

func mealConfidence(foods []db.FoodItem) float64 {
	if len(foods) == 0 {
		return minParseConfidence
	}
	withCalories := 0
	for _, f := range foods {
		if f.Calories > 0 {
			withCalories++
		}
	}
	return floorConfidence(float64(withCalories) / float64(len(foods)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
