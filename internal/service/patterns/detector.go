package patterns

import (
	"fitcoach/internal/repository/db"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultLookbackWeeks is the window the consistency score assumes
const DefaultLookbackWeeks = 4

// Weekly workout target behind the consistency score
const targetWorkoutsPerWeek = 3

const (
	topExercises = 10
	topFoods     = 20
)

// Result is the output of one detection run
type Result struct {
	Workout   WorkoutPatterns   `json:"workout"`
	Nutrition NutritionPatterns `json:"nutrition"`
	Schedule  SchedulePatterns  `json:"schedule"`
	Progress  *ProgressPatterns `json:"progress,omitempty"`
}

// WorkoutPatterns summarizes exercise selection and volume
type WorkoutPatterns struct {
	ExerciseFrequency map[string]int    `json:"exercise_frequency"`
	CommonPairs       []Count           `json:"common_pairs"`
	VolumeTrends      map[string]string `json:"volume_trends"`
	TopExercises      []Count           `json:"top_exercises"`
}

// MacroSplit is the share of calories from each macronutrient, in percent
type MacroSplit struct {
	ProteinPercent int `json:"protein_percent"`
	CarbsPercent   int `json:"carbs_percent"`
	FatPercent     int `json:"fat_percent"`
}

// NutritionPatterns summarizes eating habits over daily totals
type NutritionPatterns struct {
	MealTypes  map[string]int `json:"meal_types"`
	TopFoods   []Count        `json:"top_foods"`
	Calories   Stats          `json:"calories"`
	AvgProtein float64        `json:"avg_protein"`
	AvgCarbs   float64        `json:"avg_carbs"`
	AvgFat     float64        `json:"avg_fat"`
	Macros     MacroSplit     `json:"macros"`
	LoggedDays int            `json:"logged_days"`
}

// SchedulePatterns summarizes when the user trains
type SchedulePatterns struct {
	DaysOfWeek       map[string]int `json:"days_of_week"`
	PreferredDay     string         `json:"preferred_day,omitempty"`
	Gaps             *Stats         `json:"gap_days,omitempty"`
	ConsistencyScore int            `json:"consistency_score"`
}

// ProgressPatterns summarizes body-weight change. Requires two readings.
type ProgressPatterns struct {
	WeightTrend    string  `json:"weight_trend"`
	ChangePerWeek  float64 `json:"change_per_week"`
	EarliestWeight float64 `json:"earliest_weight"`
	LatestWeight   float64 `json:"latest_weight"`
	Readings       int     `json:"readings"`
}

// Detector derives behavioral patterns from raw logs and persists them
type Detector struct {
	store         Store
	lookbackWeeks int
	now           func() time.Time
}

// NewDetector creates a Detector. lookbackWeeks <= 0 uses DefaultLookbackWeeks.
func NewDetector(store Store, lookbackWeeks int) *Detector {
	if lookbackWeeks <= 0 {
		lookbackWeeks = DefaultLookbackWeeks
	}
	return &Detector{store: store, lookbackWeeks: lookbackWeeks, now: time.Now}
}

// Detect computes all pattern groups. Inputs may be in any order.
func (d *Detector) Detect(workouts []db.Workout, nutrition []db.NutritionLog, metrics []db.BodyMetric) *Result {
	chrono := chronologicalWorkouts(workouts)
	return &Result{
		Workout:   detectWorkoutPatterns(chrono),
		Nutrition: detectNutritionPatterns(nutrition),
		Schedule:  detectSchedulePatterns(chrono, d.lookbackWeeks),
		Progress:  detectProgress(metrics),
	}
}

func chronologicalWorkouts(workouts []db.Workout) []db.Workout {
	out := make([]db.Workout, len(workouts))
	copy(out, workouts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PerformedAt.Before(out[j].PerformedAt)
	})
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PairKey is the unordered key of two co-occurring names
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + " + " + b
}

func detectWorkoutPatterns(workouts []db.Workout) WorkoutPatterns {
	freq := make(map[string]int)
	pairs := make(map[string]int)
	volumes := make(map[string][]float64)

	for _, w := range workouts {
		seen := make(map[string]bool)
		var names []string
		for _, ex := range w.Exercises {
			name := normalizeName(ex.Name)
			if name == "" {
				continue
			}
			freq[name]++
			if v := ex.Volume(); v > 0 {
				volumes[name] = append(volumes[name], v)
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				pairs[PairKey(names[i], names[j])]++
			}
		}
	}

	trends := make(map[string]string)
	for name, series := range volumes {
		if len(series) >= 2 {
			trends[name] = TrendLabel(series)
		}
	}

	return WorkoutPatterns{
		ExerciseFrequency: freq,
		CommonPairs:       TopN(pairs, topExercises),
		VolumeTrends:      trends,
		TopExercises:      TopN(freq, topExercises),
	}
}

type dayTotals struct {
	calories, protein, carbs, fat float64
}

func detectNutritionPatterns(logs []db.NutritionLog) NutritionPatterns {
	mealTypes := make(map[string]int)
	foods := make(map[string]int)
	days := make(map[string]*dayTotals)

	for _, log := range logs {
		if log.MealType != "" {
			mealTypes[log.MealType]++
		}
		for _, f := range log.Foods {
			if name := normalizeName(f.Name); name != "" {
				foods[name]++
			}
		}

		key := log.LoggedAt.Format("2006-01-02")
		t, ok := days[key]
		if !ok {
			t = &dayTotals{}
			days[key] = t
		}
		t.calories += log.Calories
		t.protein += log.Protein
		t.carbs += log.Carbs
		t.fat += log.Fat
	}

	p := NutritionPatterns{
		MealTypes:  mealTypes,
		TopFoods:   TopN(foods, topFoods),
		LoggedDays: len(days),
	}
	if len(days) == 0 {
		return p
	}

	calories := make([]float64, 0, len(days))
	var protein, carbs, fat float64
	for _, t := range days {
		calories = append(calories, t.calories)
		protein += t.protein
		carbs += t.carbs
		fat += t.fat
	}
	n := float64(len(days))
	p.Calories = Summarize(calories)
	p.AvgProtein = protein / n
	p.AvgCarbs = carbs / n
	p.AvgFat = fat / n
	p.Macros = Macros(p.AvgProtein, p.AvgCarbs, p.AvgFat)
	return p
}

// Macros converts grams to calorie shares using 4/4/9 kcal per gram
func Macros(protein, carbs, fat float64) MacroSplit {
	pk, ck, fk := protein*4, carbs*4, fat*9
	total := pk + ck + fk
	if total <= 0 {
		return MacroSplit{}
	}
	return MacroSplit{
		ProteinPercent: int(math.Round(pk / total * 100)),
		CarbsPercent:   int(math.Round(ck / total * 100)),
		FatPercent:     int(math.Round(fk / total * 100)),
	}
}

// ConsistencyScore scores sessions in the lookback window against three per week
func ConsistencyScore(sessions, lookbackWeeks int) int {
	if lookbackWeeks <= 0 {
		lookbackWeeks = DefaultLookbackWeeks
	}
	perWeek := float64(sessions) / float64(lookbackWeeks)
	score := int(math.Round(perWeek / targetWorkoutsPerWeek * 100))
	if score > 100 {
		return 100
	}
	return score
}

func detectSchedulePatterns(workouts []db.Workout, lookbackWeeks int) SchedulePatterns {
	days := make(map[string]int)
	for _, w := range workouts {
		days[w.PerformedAt.Weekday().String()]++
	}

	s := SchedulePatterns{
		DaysOfWeek:       days,
		ConsistencyScore: ConsistencyScore(len(workouts), lookbackWeeks),
	}
	if top := TopN(days, 1); len(top) == 1 {
		s.PreferredDay = top[0].Name
	}

	if len(workouts) >= 2 {
		gaps := make([]float64, 0, len(workouts)-1)
		for i := 1; i < len(workouts); i++ {
			gap := workouts[i].PerformedAt.Sub(workouts[i-1].PerformedAt).Hours() / 24
			gaps = append(gaps, math.Round(gap))
		}
		stats := Summarize(gaps)
		s.Gaps = &stats
	}
	return s
}

func detectProgress(metrics []db.BodyMetric) *ProgressPatterns {
	type reading struct {
		at     time.Time
		weight float64
	}
	var readings []reading
	for _, m := range metrics {
		if m.WeightKg != nil {
			readings = append(readings, reading{at: m.RecordedAt, weight: *m.WeightKg})
		}
	}
	if len(readings) < 2 {
		return nil
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].at.Before(readings[j].at)
	})

	weights := make([]float64, len(readings))
	for i, r := range readings {
		weights[i] = r.weight
	}

	earliest, latest := readings[0], readings[len(readings)-1]
	p := &ProgressPatterns{
		WeightTrend:    TrendLabel(weights),
		EarliestWeight: earliest.weight,
		LatestWeight:   latest.weight,
		Readings:       len(readings),
	}
	if daysBetween := latest.at.Sub(earliest.at).Hours() / 24; daysBetween > 0 {
		p.ChangePerWeek = round1((latest.weight - earliest.weight) / daysBetween * 7)
	}
	return p
}
