package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/conversation"
	"fitcoach/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var coachNow = time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 {
	return &v
}

func richContext() *db.ContextCache {
	target := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	uc := &db.ContextCache{
		UserID:           "user-1",
		Profile:          &db.Profile{UserID: "user-1", FitnessLevel: "intermediate", PrimaryGoal: "build strength"},
		AvgDailyCalories: 2400,
		AvgDailyProtein:  150,
		BodyMetrics: []db.BodyMetric{
			{WeightKg: floatPtr(79), RecordedAt: coachNow.AddDate(0, 0, -1)},
			{WeightKg: floatPtr(80), RecordedAt: coachNow.AddDate(0, 0, -8)},
		},
		ActiveGoals: []db.Goal{
			{ID: "goal-squat", GoalType: "squat", TargetValue: 140, TargetUnit: "kg", TargetDate: &target},
			{ID: "goal-cut", GoalType: "body_fat", TargetValue: 15, TargetUnit: "%"},
		},
	}
	for i := 0; i < 6; i++ {
		uc.RecentWorkouts = append(uc.RecentWorkouts, db.Workout{
			ID:          "w" + string(rune('0'+i)),
			WorkoutType: "strength",
			PerformedAt: coachNow.AddDate(0, 0, -2-3*i),
			Exercises:   []db.Exercise{{Name: "Squat", Sets: 5, Reps: 5, Weight: 100}, {Name: "Bench Press"}},
		})
	}
	for i := 0; i < 3; i++ {
		uc.RecentNutrition = append(uc.RecentNutrition, db.NutritionLog{
			MealType: "dinner",
			Calories: 800,
			LoggedAt: coachNow.AddDate(0, 0, -i),
		})
	}
	return uc
}

const coachReply = `Great progress on your workouts this week.
- You should add one more squat session.
- Important: get 8 hours of sleep.
- Track your weight every morning.
- Eat more protein.
You could try a deload next week.`

func newTestCoach(mockDB *testutil.MockDatabase, gateway *testutil.MockGateway) *Coach {
	coach := NewCoach(gateway, conversation.NewConversationService(mockDB), nil)
	coach.now = func() time.Time { return coachNow }
	return coach
}

func TestBuildCoachContext(t *testing.T) {
	prompt := BuildCoachContext(richContext(), coachNow)

	assert.Contains(t, prompt, "- Fitness level: intermediate")
	assert.Contains(t, prompt, "- Sessions: 6 (1.5 per week)")
	assert.Contains(t, prompt, "- Days since last session: 2")
	assert.Contains(t, prompt, "- Top exercises: bench press (6x), squat (6x)")
	assert.Contains(t, prompt, "- Focus: strength")
	assert.Contains(t, prompt, "- Average calories: 2400 kcal/day")
	assert.Contains(t, prompt, "- Logging consistency: 43%")
	assert.Contains(t, prompt, "- Most logged meal: dinner")
	assert.Contains(t, prompt, "- Current weight: 79.0 kg (-1.0 kg since previous reading)")
	assert.Contains(t, prompt, "- squat: 140 kg by 2024-06-01")
	assert.Contains(t, prompt, "- body_fat: 15 %")

	assert.Equal(t, prompt, BuildCoachContext(richContext(), coachNow), "prompt must be deterministic")
}

func TestBuildCoachContext_Empty(t *testing.T) {
	prompt := BuildCoachContext(&db.ContextCache{}, coachNow)

	assert.Contains(t, prompt, "No workouts logged")
	assert.Contains(t, prompt, "No meals logged")
	assert.Contains(t, prompt, "No weight readings")
	assert.Contains(t, prompt, "No active goals")
}

func TestCoach_Process(t *testing.T) {
	var saved []*db.ConversationTurn
	mockDB := &testutil.MockDatabase{
		GetRecentConversationTurnsFunc: func(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, 10, limit)
			return []db.ConversationTurn{
				{Role: "assistant", Content: "Keep it up!", CreatedAt: coachNow.Add(-time.Hour)},
				{Role: "user", Content: "Hi coach", CreatedAt: coachNow.Add(-2 * time.Hour)},
			}, nil
		},
		AddConversationTurnFunc: func(ctx context.Context, turn *db.ConversationTurn) error {
			saved = append(saved, turn)
			return nil
		},
	}
	gateway := &testutil.MockGateway{CompleteFunc: testutil.ReplyWith(coachReply, 900, 300)}

	result, err := newTestCoach(mockDB, gateway).Process(context.Background(), Input{Text: "How should I train next week?"}, richContext(), testModel)
	require.NoError(t, err)

	// prompt assembly
	require.Equal(t, 1, gateway.Calls())
	req := gateway.Requests()[0]
	assert.Equal(t, "How should I train next week?", req.Message)
	assert.Contains(t, req.SystemPrompt, "- Sessions: 6 (1.5 per week)")
	require.Len(t, req.PriorTurns, 2)
	assert.Equal(t, "Hi coach", req.PriorTurns[0].Content)
	assert.Equal(t, "assistant", req.PriorTurns[1].Role)

	// structured response
	response, ok := result.Data.(*CoachResponse)
	require.True(t, ok)
	assert.Equal(t, coachReply, response.Message)
	require.Len(t, response.ActionItems, 3)
	assert.Equal(t, CategoryRest, response.ActionItems[1].Category)
	assert.Equal(t, []string{"try a deload next week"}, response.Suggestions)

	require.Len(t, response.References, 2)
	assert.Equal(t, Reference{Type: "workout", ID: "w0", Summary: "strength on 2024-05-18, 2 exercises"}, response.References[0])
	assert.Equal(t, "goal-squat", response.References[1].ID)

	assert.Equal(t, 1.0, response.Confidence)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, 1200, result.TokensUsed())

	// persistence
	require.Len(t, saved, 2)
	assert.Equal(t, "user", saved[0].Role)
	assert.Equal(t, "How should I train next week?", saved[0].Content)
	assert.Equal(t, "assistant", saved[1].Role)
	assert.Equal(t, coachReply, saved[1].Content)
	assert.Equal(t, saved[0].ConversationID, saved[1].ConversationID)
	assert.Equal(t, response.ConversationID, saved[0].ConversationID)
	assert.Nil(t, saved[1].ContextSnapshot)

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(saved[0].ContextSnapshot, &snapshot))
	assert.Equal(t, 6.0, snapshot["workout_count"])
	assert.Equal(t, 2400.0, snapshot["avg_calories"])
	assert.Equal(t, 79.0, snapshot["current_weight"])
}

func TestCoach_Process_MinimalContext(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		GetRecentConversationTurnsFunc: func(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
			return nil, nil
		},
		AddConversationTurnFunc: func(ctx context.Context, turn *db.ConversationTurn) error { return nil },
	}
	gateway := &testutil.MockGateway{CompleteFunc: testutil.ReplyWith("Hello there.", 10, 5)}

	result, err := newTestCoach(mockDB, gateway).Process(context.Background(), Input{Text: "hi"}, &db.ContextCache{UserID: "u"}, testModel)
	require.NoError(t, err)

	response := result.Data.(*CoachResponse)
	assert.Empty(t, response.ActionItems)
	assert.Empty(t, response.References)
	assert.Equal(t, baseConfidence, response.Confidence)
}

func TestCoach_Process_HistoryFallsBackToCache(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		GetRecentConversationTurnsFunc: func(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
			return nil, errors.New("connection reset")
		},
		AddConversationTurnFunc: func(ctx context.Context, turn *db.ConversationTurn) error { return nil },
	}
	gateway := &testutil.MockGateway{CompleteFunc: testutil.ReplyWith("ok", 1, 1)}

	uc := &db.ContextCache{
		UserID: "u",
		Conversations: []db.ConversationTurn{
			{Role: "assistant", Content: "second"},
			{Role: "user", Content: "first"},
		},
	}

	_, err := newTestCoach(mockDB, gateway).Process(context.Background(), Input{Text: "hi"}, uc, testModel)
	require.NoError(t, err)

	prior := gateway.Requests()[0].PriorTurns
	require.Len(t, prior, 2)
	assert.Equal(t, "first", prior[0].Content)
	assert.Equal(t, "second", prior[1].Content)
}

func TestCoach_Process_PersistenceFailureStillAnswers(t *testing.T) {
	mockDB := &testutil.MockDatabase{
		GetRecentConversationTurnsFunc: func(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
			return nil, nil
		},
		AddConversationTurnFunc: func(ctx context.Context, turn *db.ConversationTurn) error {
			return errors.New("insert failed")
		},
	}
	gateway := &testutil.MockGateway{CompleteFunc: testutil.ReplyWith("Rest today.", 1, 1)}

	result, err := newTestCoach(mockDB, gateway).Process(context.Background(), Input{Text: "tired"}, &db.ContextCache{UserID: "u"}, testModel)
	require.NoError(t, err)
	assert.Empty(t, result.Data.(*CoachResponse).ConversationID)
}

func TestCoach_Process_EmptyMessage(t *testing.T) {
	gateway := &testutil.MockGateway{}

	_, err := newTestCoach(&testutil.MockDatabase{}, gateway).Process(context.Background(), Input{}, &db.ContextCache{}, testModel)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, 0, gateway.Calls())
}

func TestCoachConfidence_Capped(t *testing.T) {
	uc := richContext()
	r := &CoachResponse{
		ActionItems: []ActionItem{{Text: "x"}},
		References:  []Reference{{Type: "goal"}},
	}
	assert.Equal(t, 1.0, CoachConfidence(uc, r))

	uc.ActiveGoals = nil
	assert.InDelta(t, 0.9, CoachConfidence(uc, r), 1e-9)
}
