package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by point reads that match no row
var ErrNotFound = errors.New("not found")

// ContextCacheStore holds the per-user context snapshot.
// GetContextCache returns (nil, nil) when no row exists.
type ContextCacheStore interface {
	GetContextCache(ctx context.Context, userID string) (*ContextCache, error)
	UpsertContextCache(ctx context.Context, cache *ContextCache) error
}

// Database defines the context store operations consumed by the AI layer.
// Range reads are ordered newest first; limit <= 0 means unbounded.
type Database interface {
	ContextCacheStore

	// Profile
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// Logs
	GetWorkoutsSince(ctx context.Context, userID string, since time.Time, limit int) ([]Workout, error)
	GetNutritionLogsSince(ctx context.Context, userID string, since time.Time, limit int) ([]NutritionLog, error)
	GetBodyMetrics(ctx context.Context, userID string, limit int) ([]BodyMetric, error)
	GetActiveGoals(ctx context.Context, userID string) ([]Goal, error)

	// Patterns
	GetTopPatterns(ctx context.Context, userID string, limit int) ([]Pattern, error)
	IncrementPattern(ctx context.Context, userID, patternType, patternKey string, data json.RawMessage) error
	AddInsight(ctx context.Context, insight *Insight) error

	// Conversations
	GetRecentConversationTurns(ctx context.Context, userID string, limit int) ([]ConversationTurn, error)
	AddConversationTurn(ctx context.Context, turn *ConversationTurn) error

	// Usage & audit
	CountUsageSince(ctx context.Context, userID string, requestType RequestType, since time.Time) (int, error)
	AddUsageRecord(ctx context.Context, record *UsageRecord) error
	AddInteraction(ctx context.Context, interaction *Interaction) error
}
