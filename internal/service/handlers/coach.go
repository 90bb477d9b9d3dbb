package handlers

import (
	"context"
	"encoding/json"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/conversation"
	"fitcoach/internal/service/llm"
	"fitcoach/internal/service/patterns"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	coachHistoryTurns = 10
	coachTopExercises = 5
	baseConfidence    = 0.5
)

const coachSystemPrompt = `You are an experienced, encouraging strength and nutrition coach.
Ground every answer in the user's data below. Be specific and brief.
When you recommend something, put each concrete step on its own line starting with "- ".`

// Reference points back at a record the coach response mentions
type Reference struct {
	Type    string `json:"type"` // workout or goal
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// CoachResponse is the structured coach reply
type CoachResponse struct {
	Message        string       `json:"message"`
	ActionItems    []ActionItem `json:"action_items"`
	Suggestions    []string     `json:"suggestions"`
	References     []Reference  `json:"references"`
	Confidence     float64      `json:"confidence"`
	ConversationID string       `json:"conversation_id,omitempty"`
}

// Coach handles coach_chat
type Coach struct {
	gateway       llm.Gateway
	conversations *conversation.ConversationService
	extractor     Extractor
	now           func() time.Time
}

// NewCoach creates a Coach. A nil extractor uses RegexExtractor.
func NewCoach(gateway llm.Gateway, conversations *conversation.ConversationService, extractor Extractor) *Coach {
	if extractor == nil {
		extractor = RegexExtractor{}
	}
	return &Coach{
		gateway:       gateway,
		conversations: conversations,
		extractor:     extractor,
		now:           time.Now,
	}
}

// Process answers input.Text using the user's context and recent conversation
func (c *Coach) Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error) {
	message := strings.TrimSpace(input.Text)
	if message == "" {
		return nil, invalidInput("message is required")
	}
	if uc == nil {
		uc = &db.ContextCache{}
	}

	system := coachSystemPrompt + "\n\n" + BuildCoachContext(uc, c.now())
	prior := c.priorTurns(ctx, uc)

	completion, err := complete(ctx, c.gateway, cfg, system, message, prior, nil)
	if err != nil {
		return nil, err
	}

	response := &CoachResponse{
		Message:     completion.Text,
		ActionItems: c.extractor.ExtractActionItems(completion.Text),
		Suggestions: c.extractor.ExtractSuggestions(completion.Text),
		References:  FindReferences(completion.Text, uc),
	}
	if response.Suggestions == nil {
		response.Suggestions = []string{}
	}
	response.Confidence = CoachConfidence(uc, response)

	snapshot, _ := json.Marshal(coachSnapshot(uc))
	conversationID, err := c.conversations.AppendExchange(ctx, uc.UserID, message, completion.Text, snapshot)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": uc.UserID,
			"error":   err.Error(),
		}).Warn("Failed to save coach conversation")
	} else {
		response.ConversationID = conversationID
	}

	return resultFrom(response, response.Confidence, cfg, completion), nil
}

// priorTurns loads the latest turns oldest first; the cached snapshot is the
// fallback when the store read fails
func (c *Coach) priorTurns(ctx context.Context, uc *db.ContextCache) []llm.Message {
	turns, err := c.conversations.History(ctx, uc.UserID, coachHistoryTurns)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": uc.UserID,
			"error":   err.Error(),
		}).Warn("Falling back to cached conversation turns")
		turns = conversation.Chronological(uc.Conversations, coachHistoryTurns)
	}

	prior := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		prior = append(prior, llm.Message{Role: t.Role, Content: t.Content})
	}
	return prior
}

// BuildCoachContext summarizes the user's recent activity for the prompt.
// Output is deterministic for a given context and now.
func BuildCoachContext(uc *db.ContextCache, now time.Time) string {
	var b strings.Builder

	if p := uc.Profile; p != nil {
		b.WriteString("PROFILE\n")
		if p.FitnessLevel != "" {
			fmt.Fprintf(&b, "- Fitness level: %s\n", p.FitnessLevel)
		}
		if p.PrimaryGoal != "" {
			fmt.Fprintf(&b, "- Primary goal: %s\n", p.PrimaryGoal)
		}
		b.WriteString("\n")
	}

	b.WriteString("WORKOUTS (last 30 days)\n")
	if len(uc.RecentWorkouts) == 0 {
		b.WriteString("- No workouts logged\n")
	} else {
		fmt.Fprintf(&b, "- Sessions: %d (%.1f per week)\n", len(uc.RecentWorkouts), float64(len(uc.RecentWorkouts))/4)
		if last := latestWorkout(uc.RecentWorkouts); last != nil {
			fmt.Fprintf(&b, "- Days since last session: %d\n", int(now.Sub(last.PerformedAt).Hours()/24))
		}
		freq := make(map[string]int)
		types := make(map[string]int)
		for _, w := range uc.RecentWorkouts {
			for _, ex := range w.Exercises {
				if name := strings.ToLower(strings.TrimSpace(ex.Name)); name != "" {
					freq[name]++
				}
			}
			if w.WorkoutType != "" {
				types[w.WorkoutType]++
			}
		}
		if top := patterns.TopN(freq, coachTopExercises); len(top) > 0 {
			names := make([]string, len(top))
			for i, c := range top {
				names[i] = fmt.Sprintf("%s (%dx)", c.Name, c.Count)
			}
			fmt.Fprintf(&b, "- Top exercises: %s\n", strings.Join(names, ", "))
		}
		if focus := patterns.TopN(types, 1); len(focus) == 1 {
			fmt.Fprintf(&b, "- Focus: %s\n", focus[0].Name)
		}
	}
	b.WriteString("\n")

	b.WriteString("NUTRITION (last 7 days)\n")
	if len(uc.RecentNutrition) == 0 {
		b.WriteString("- No meals logged\n")
	} else {
		days := make(map[string]bool)
		meals := make(map[string]int)
		for _, n := range uc.RecentNutrition {
			days[n.LoggedAt.Format("2006-01-02")] = true
			if n.MealType != "" {
				meals[n.MealType]++
			}
		}
		fmt.Fprintf(&b, "- Average calories: %.0f kcal/day\n", uc.AvgDailyCalories)
		fmt.Fprintf(&b, "- Average protein: %.0f g/day\n", uc.AvgDailyProtein)
		fmt.Fprintf(&b, "- Logging consistency: %.0f%%\n", math.Min(100, float64(len(days))/7*100))
		if top := patterns.TopN(meals, 1); len(top) == 1 {
			fmt.Fprintf(&b, "- Most logged meal: %s\n", top[0].Name)
		}
	}
	b.WriteString("\n")

	b.WriteString("BODY\n")
	if current, previous := latestWeights(uc.BodyMetrics); current == nil {
		b.WriteString("- No weight readings\n")
	} else if previous == nil {
		fmt.Fprintf(&b, "- Current weight: %.1f kg\n", *current)
	} else {
		fmt.Fprintf(&b, "- Current weight: %.1f kg (%+.1f kg since previous reading)\n", *current, *current-*previous)
	}
	b.WriteString("\n")

	b.WriteString("GOALS\n")
	if len(uc.ActiveGoals) == 0 {
		b.WriteString("- No active goals\n")
	}
	for _, g := range uc.ActiveGoals {
		line := fmt.Sprintf("- %s: %g %s", g.GoalType, g.TargetValue, g.TargetUnit)
		if g.TargetDate != nil {
			line += " by " + g.TargetDate.Format("2006-01-02")
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	return b.String()
}

// FindReferences links the response to the latest workout when it talks
// about training, and to every goal whose type it names
func FindReferences(text string, uc *db.ContextCache) []Reference {
	refs := []Reference{}
	lower := strings.ToLower(text)

	if last := latestWorkout(uc.RecentWorkouts); last != nil && mentionsTraining(lower) {
		refs = append(refs, Reference{
			Type:    "workout",
			ID:      last.ID,
			Summary: fmt.Sprintf("%s on %s, %d exercises", orDefault(last.WorkoutType, "workout"), last.PerformedAt.Format("2006-01-02"), len(last.Exercises)),
		})
	}

	for _, g := range uc.ActiveGoals {
		if len(refs) == maxExtracted {
			break
		}
		if g.GoalType != "" && strings.Contains(lower, strings.ToLower(g.GoalType)) {
			refs = append(refs, Reference{
				Type:    "goal",
				ID:      g.ID,
				Summary: fmt.Sprintf("%s: %g %s", g.GoalType, g.TargetValue, g.TargetUnit),
			})
		}
	}
	return refs
}

func mentionsTraining(lower string) bool {
	for _, w := range []string{"workout", "session", "training"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// CoachConfidence scores how much context and structure backs a response
func CoachConfidence(uc *db.ContextCache, r *CoachResponse) float64 {
	score := baseConfidence
	if len(uc.RecentWorkouts) >= 5 {
		score += 0.1
	}
	if len(uc.RecentNutrition) >= 3 {
		score += 0.1
	}
	if len(uc.BodyMetrics) >= 2 {
		score += 0.05
	}
	if len(uc.ActiveGoals) > 0 {
		score += 0.1
	}
	if len(r.References) > 0 {
		score += 0.1
	}
	if len(r.ActionItems) > 0 {
		score += 0.05
	}
	return math.Min(1, math.Round(score*100)/100)
}

type contextSnapshot struct {
	WorkoutCount  int      `json:"workout_count"`
	AvgCalories   float64  `json:"avg_calories"`
	CurrentWeight *float64 `json:"current_weight"`
}

func coachSnapshot(uc *db.ContextCache) contextSnapshot {
	current, _ := latestWeights(uc.BodyMetrics)
	return contextSnapshot{
		WorkoutCount:  len(uc.RecentWorkouts),
		AvgCalories:   math.Round(uc.AvgDailyCalories),
		CurrentWeight: current,
	}
}

func latestWorkout(workouts []db.Workout) *db.Workout {
	var latest *db.Workout
	for i := range workouts {
		if latest == nil || workouts[i].PerformedAt.After(latest.PerformedAt) {
			latest = &workouts[i]
		}
	}
	return latest
}

// latestWeights returns the two most recent weight readings
func latestWeights(metrics []db.BodyMetric) (current, previous *float64) {
	var currentAt, previousAt time.Time
	for _, m := range metrics {
		if m.WeightKg == nil {
			continue
		}
		switch {
		case current == nil || m.RecordedAt.After(currentAt):
			previous, previousAt = current, currentAt
			current, currentAt = m.WeightKg, m.RecordedAt
		case previous == nil || m.RecordedAt.After(previousAt):
			previous, previousAt = m.WeightKg, m.RecordedAt
		}
	}
	return current, previous
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
