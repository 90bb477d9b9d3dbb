package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/app"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"sync"
	"time"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// Context cache mocks
	GetContextCacheFunc    func(ctx context.Context, userID string) (*db.ContextCache, error)
	UpsertContextCacheFunc func(ctx context.Context, cache *db.ContextCache) error

	// Profile mocks
	GetProfileFunc func(ctx context.Context, userID string) (*db.Profile, error)

	// Log mocks
	GetWorkoutsSinceFunc      func(ctx context.Context, userID string, since time.Time, limit int) ([]db.Workout, error)
	GetNutritionLogsSinceFunc func(ctx context.Context, userID string, since time.Time, limit int) ([]db.NutritionLog, error)
	GetBodyMetricsFunc        func(ctx context.Context, userID string, limit int) ([]db.BodyMetric, error)
	GetActiveGoalsFunc        func(ctx context.Context, userID string) ([]db.Goal, error)

	// Pattern mocks
	GetTopPatternsFunc   func(ctx context.Context, userID string, limit int) ([]db.Pattern, error)
	IncrementPatternFunc func(ctx context.Context, userID, patternType, patternKey string, data json.RawMessage) error
	AddInsightFunc       func(ctx context.Context, insight *db.Insight) error

	// Conversation mocks
	GetRecentConversationTurnsFunc func(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error)
	AddConversationTurnFunc        func(ctx context.Context, turn *db.ConversationTurn) error

	// Usage mocks
	CountUsageSinceFunc func(ctx context.Context, userID string, requestType db.RequestType, since time.Time) (int, error)
	AddUsageRecordFunc  func(ctx context.Context, record *db.UsageRecord) error
	AddInteractionFunc  func(ctx context.Context, interaction *db.Interaction) error
}

// Context cache methods
func (m *MockDatabase) GetContextCache(ctx context.Context, userID string) (*db.ContextCache, error) {
	if m.GetContextCacheFunc != nil {
		return m.GetContextCacheFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) UpsertContextCache(ctx context.Context, cache *db.ContextCache) error {
	if m.UpsertContextCacheFunc != nil {
		return m.UpsertContextCacheFunc(ctx, cache)
	}
	return errors.New("not implemented")
}

// Profile methods
func (m *MockDatabase) GetProfile(ctx context.Context, userID string) (*db.Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

// Log methods
func (m *MockDatabase) GetWorkoutsSince(ctx context.Context, userID string, since time.Time, limit int) ([]db.Workout, error) {
	if m.GetWorkoutsSinceFunc != nil {
		return m.GetWorkoutsSinceFunc(ctx, userID, since, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetNutritionLogsSince(ctx context.Context, userID string, since time.Time, limit int) ([]db.NutritionLog, error) {
	if m.GetNutritionLogsSinceFunc != nil {
		return m.GetNutritionLogsSinceFunc(ctx, userID, since, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetBodyMetrics(ctx context.Context, userID string, limit int) ([]db.BodyMetric, error) {
	if m.GetBodyMetricsFunc != nil {
		return m.GetBodyMetricsFunc(ctx, userID, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) GetActiveGoals(ctx context.Context, userID string) ([]db.Goal, error) {
	if m.GetActiveGoalsFunc != nil {
		return m.GetActiveGoalsFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

// Pattern methods
func (m *MockDatabase) GetTopPatterns(ctx context.Context, userID string, limit int) ([]db.Pattern, error) {
	if m.GetTopPatternsFunc != nil {
		return m.GetTopPatternsFunc(ctx, userID, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) IncrementPattern(ctx context.Context, userID, patternType, patternKey string, data json.RawMessage) error {
	if m.IncrementPatternFunc != nil {
		return m.IncrementPatternFunc(ctx, userID, patternType, patternKey, data)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) AddInsight(ctx context.Context, insight *db.Insight) error {
	if m.AddInsightFunc != nil {
		return m.AddInsightFunc(ctx, insight)
	}
	return errors.New("not implemented")
}

// Conversation methods
func (m *MockDatabase) GetRecentConversationTurns(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
	if m.GetRecentConversationTurnsFunc != nil {
		return m.GetRecentConversationTurnsFunc(ctx, userID, limit)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) AddConversationTurn(ctx context.Context, turn *db.ConversationTurn) error {
	if m.AddConversationTurnFunc != nil {
		return m.AddConversationTurnFunc(ctx, turn)
	}
	return errors.New("not implemented")
}

// Usage methods
func (m *MockDatabase) CountUsageSince(ctx context.Context, userID string, requestType db.RequestType, since time.Time) (int, error) {
	if m.CountUsageSinceFunc != nil {
		return m.CountUsageSinceFunc(ctx, userID, requestType, since)
	}
	return 0, errors.New("not implemented")
}

func (m *MockDatabase) AddUsageRecord(ctx context.Context, record *db.UsageRecord) error {
	if m.AddUsageRecordFunc != nil {
		return m.AddUsageRecordFunc(ctx, record)
	}
	return errors.New("not implemented")
}

func (m *MockDatabase) AddInteraction(ctx context.Context, interaction *db.Interaction) error {
	if m.AddInteractionFunc != nil {
		return m.AddInteractionFunc(ctx, interaction)
	}
	return errors.New("not implemented")
}

// MockGateway is a mock implementation of llm.Gateway that records calls
type MockGateway struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

func (m *MockGateway) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *MockGateway) Name() string {
	return "mock"
}

// Calls returns the number of Complete invocations
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request passed to Complete
func (m *MockGateway) Requests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// ReplyWith returns a CompleteFunc that always answers text with the given token counts
func ReplyWith(text string, inputTokens, outputTokens int) func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	return func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
		return &llm.Completion{
			Text:         text,
			Model:        req.Model,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		}, nil
	}
}

// NewMockConfig creates a mock app.Config for testing with the default AI tables
func NewMockConfig(database db.Database, gateway llm.Gateway) *app.Config {
	return app.NewConfig(database, nil, gateway, &config.AppConfig{
		LLM: config.LLMConfig{
			Provider:        "anthropic",
			AnthropicAPIKey: "test-api-key",
		},
		Auth: config.AuthConfig{
			JWTSecret: []byte("test-secret-that-is-at-least-32-characters"),
		},
		AI: config.DefaultAIConfig(),
	})
}
