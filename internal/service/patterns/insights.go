package patterns

import "fmt"

// Insight kinds
const (
	InsightConsistency = "consistency"
	InsightNutrition   = "nutrition"
	InsightProgress    = "progress"
)

const (
	consistencyFloor     = 70
	calorieStdDevCeiling = 500
	rapidLossPerWeek     = -1.0
)

// Insight is an advisory produced from a detection result
type Insight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// Insights applies the fixed rule set to a detection result
func Insights(r *Result) []Insight {
	var out []Insight

	if r.Schedule.ConsistencyScore < consistencyFloor {
		out = append(out, Insight{
			Type:     InsightConsistency,
			Title:    "Improve Workout Consistency",
			Priority: 7,
			Description: fmt.Sprintf(
				"Your consistency score is %d%%. Aim for at least 3 workouts per week to keep progressing.",
				r.Schedule.ConsistencyScore),
		})
	}

	if r.Nutrition.LoggedDays > 0 && r.Nutrition.Calories.StdDev > calorieStdDevCeiling {
		out = append(out, Insight{
			Type:     InsightNutrition,
			Title:    "High Calorie Variability",
			Priority: 6,
			Description: fmt.Sprintf(
				"Your daily calories vary by about %.0f kcal. Steadier intake makes progress easier to track.",
				r.Nutrition.Calories.StdDev),
		})
	}

	if p := r.Progress; p != nil && p.WeightTrend == TrendDecreasing && p.ChangePerWeek < rapidLossPerWeek {
		out = append(out, Insight{
			Type:     InsightProgress,
			Title:    "Rapid Weight Loss Detected",
			Priority: 8,
			Description: fmt.Sprintf(
				"You are losing %.1f kg per week. Losing more than 1 kg per week can cost muscle; consider a smaller deficit.",
				-p.ChangePerWeek),
		})
	}

	return out
}
