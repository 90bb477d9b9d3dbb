package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/repository/db"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Store is the subset of the context store used for conversation memory
type Store interface {
	GetRecentConversationTurns(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error)
	AddConversationTurn(ctx context.Context, turn *db.ConversationTurn) error
}

// ConversationService handles append-only conversation memory
type ConversationService struct {
	db  Store
	now func() time.Time
}

// NewConversationService creates a new ConversationService
func NewConversationService(store Store) *ConversationService {
	return &ConversationService{
		db:  store,
		now: time.Now,
	}
}

// Append stores a single turn
func (s *ConversationService) Append(ctx context.Context, userID, conversationID, role, content string, snapshot json.RawMessage) (*db.ConversationTurn, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("invalid conversation role %q", role)
	}

	turn := &db.ConversationTurn{
		ID:              uuid.New().String(),
		UserID:          userID,
		ConversationID:  conversationID,
		Role:            role,
		Content:         content,
		ContextSnapshot: snapshot,
		CreatedAt:       s.now(),
	}
	if err := s.db.AddConversationTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("failed to save %s turn: %w", role, err)
	}
	return turn, nil
}

// AppendExchange stores a user message and the assistant reply under a fresh
// conversation id. The snapshot is attached to the user turn only. Both
// turns are attempted; the id is returned even when one of them fails.
func (s *ConversationService) AppendExchange(ctx context.Context, userID, userMessage, assistantMessage string, snapshot json.RawMessage) (string, error) {
	conversationID := uuid.New().String()

	_, userErr := s.Append(ctx, userID, conversationID, RoleUser, userMessage, snapshot)
	_, assistantErr := s.Append(ctx, userID, conversationID, RoleAssistant, assistantMessage, nil)
	return conversationID, errors.Join(userErr, assistantErr)
}

// History returns the last n turns oldest first, ready for prompt assembly
func (s *ConversationService) History(ctx context.Context, userID string, n int) ([]db.ConversationTurn, error) {
	turns, err := s.db.GetRecentConversationTurns(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversation history: %w", err)
	}
	return Chronological(turns, n), nil
}

// Recent lists the user's latest turns newest first.
// The limit is clamped to [1, MaxListLimit]; zero uses DefaultListLimit.
func (s *ConversationService) Recent(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	turns, err := s.db.GetRecentConversationTurns(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversations: %w", err)
	}
	if turns == nil {
		turns = []db.ConversationTurn{}
	}
	return turns, nil
}

// Chronological takes newest-first turns, keeps the latest n (n <= 0 keeps
// all) and returns them oldest first.
func Chronological(newestFirst []db.ConversationTurn, n int) []db.ConversationTurn {
	if n > 0 && len(newestFirst) > n {
		newestFirst = newestFirst[:n]
	}
	out := make([]db.ConversationTurn, len(newestFirst))
	for i, turn := range newestFirst {
		out[len(newestFirst)-1-i] = turn
	}
	return out
}
