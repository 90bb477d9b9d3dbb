package db

import (
	"encoding/json"
	"time"
)

// RequestType enumerates the AI request kinds the orchestrator dispatches.
type RequestType string

const (
	RequestParseWorkout       RequestType = "parse_workout"
	RequestParseFood          RequestType = "parse_food"
	RequestCoachChat          RequestType = "coach_chat"
	RequestVoiceTranscription RequestType = "voice_transcription"
	RequestPhotoAnalysis      RequestType = "photo_analysis"
	RequestPatternDetection   RequestType = "pattern_detection"
	RequestLoadAnalysis       RequestType = "load_analysis"
	RequestRecoveryPrediction RequestType = "recovery_prediction"
)

// AllRequestTypes lists every request kind in a stable order.
var AllRequestTypes = []RequestType{
	RequestParseWorkout,
	RequestParseFood,
	RequestCoachChat,
	RequestVoiceTranscription,
	RequestPhotoAnalysis,
	RequestPatternDetection,
	RequestLoadAnalysis,
	RequestRecoveryPrediction,
}

// Valid reports whether t is one of the known request kinds.
func (t RequestType) Valid() bool {
	for _, known := range AllRequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Profile is the subset of the user profile the AI layer reads
type Profile struct {
	UserID           string
	DisplayName      string
	SubscriptionTier string
	FitnessLevel     string
	PrimaryGoal      string
	HeightCm         *float64
	BirthYear        *int
	Units            string
	CreatedAt        time.Time
}

// Exercise is one movement inside a workout session
type Exercise struct {
	Name   string  `json:"name"`
	Sets   int     `json:"sets,omitempty"`
	Reps   int     `json:"reps,omitempty"`
	Weight float64 `json:"weight,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

// Volume returns sets*reps*weight, or 0 when any of the three is missing.
func (e Exercise) Volume() float64 {
	if e.Sets <= 0 || e.Reps <= 0 || e.Weight <= 0 {
		return 0
	}
	return float64(e.Sets*e.Reps) * e.Weight
}

// Workout represents a logged workout session
type Workout struct {
	ID              string
	UserID          string
	WorkoutType     string
	DurationMinutes int
	Exercises       []Exercise
	Notes           string
	PerformedAt     time.Time
}

// FoodItem is one food inside a nutrition log
type FoodItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Calories float64 `json:"calories,omitempty"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
}

// NutritionLog represents a logged meal
type NutritionLog struct {
	ID       string
	UserID   string
	MealType string
	Foods    []FoodItem
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	LoggedAt time.Time
}

// BodyMetric represents a body measurement reading
type BodyMetric struct {
	ID         string
	UserID     string
	WeightKg   *float64
	BodyFatPct *float64
	RecordedAt time.Time
}

// Goal represents an active user goal
type Goal struct {
	ID          string
	UserID      string
	GoalType    string
	TargetValue float64
	TargetUnit  string
	TargetDate  *time.Time
	Status      string
	CreatedAt   time.Time
}

// Pattern is a learned (user, type, key) association with a frequency counter
type Pattern struct {
	ID          string
	UserID      string
	PatternType string
	PatternKey  string
	PatternData json.RawMessage
	Frequency   int
	LastSeen    time.Time
}

// ConversationTurn is one message of a coach conversation
type ConversationTurn struct {
	ID              string
	UserID          string
	ConversationID  string
	Role            string // user or assistant
	Content         string
	ContextSnapshot json.RawMessage
	CreatedAt       time.Time
}

// ContextCache is the denormalized per-user context snapshot.
// Rows are replaced wholesale on rebuild; reads after StaleAfter must rebuild.
type ContextCache struct {
	UserID           string             `json:"user_id"`
	Profile          *Profile           `json:"profile,omitempty"`
	RecentWorkouts   []Workout          `json:"recent_workouts"`
	RecentNutrition  []NutritionLog     `json:"recent_nutrition"`
	BodyMetrics      []BodyMetric       `json:"body_metrics"`
	ActiveGoals      []Goal             `json:"active_goals"`
	Patterns         []Pattern          `json:"patterns"`
	Conversations    []ConversationTurn `json:"conversations"`
	AvgDailyCalories float64            `json:"avg_daily_calories"`
	AvgDailyProtein  float64            `json:"avg_daily_protein"`
	WorkoutsPerWeek  float64            `json:"workouts_per_week"`
	StaleAfter       time.Time          `json:"stale_after"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Fresh reports whether the snapshot may still be served at now.
func (c *ContextCache) Fresh(now time.Time) bool {
	return c != nil && now.Before(c.StaleAfter)
}

// UsageRecord is one AI invocation attempt. Immutable once written.
type UsageRecord struct {
	ID           string
	UserID       string
	RequestType  RequestType
	InputTokens  int
	OutputTokens int
	CostCents    float64
	Success      bool
	Tier         string
	Model        string
	CreatedAt    time.Time
}

// Interaction is the audit row of a successful request
type Interaction struct {
	ID               string
	UserID           string
	RequestType      RequestType
	Input            json.RawMessage
	Output           json.RawMessage
	Confidence       float64
	Model            string
	TokensUsed       int
	ProcessingTimeMS int64
	CreatedAt        time.Time
}

// Insight is an advisory row produced by pattern detection.
// Rows are not deduplicated across detection runs.
type Insight struct {
	ID          string
	UserID      string
	InsightType string
	Title       string
	Description string
	Priority    int
	Data        json.RawMessage
	CreatedAt   time.Time
}
