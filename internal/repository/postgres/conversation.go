package postgres

import (
	"context"
	"encoding/json"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"
	"fmt"

	"github.com/sirupsen/logrus"
)

// GetRecentConversationTurns retrieves the latest coach turns of a user, newest first
func (p *PostgresDB) GetRecentConversationTurns(ctx context.Context, userID string, limit int) ([]db.ConversationTurn, error) {
	query := `
	SELECT id, user_id, conversation_id, role, content, context_snapshot, created_at
	FROM ai_conversations
	WHERE user_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2
	`

	rows, err := p.conn.QueryContext(ctx, query, userID, limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []db.ConversationTurn
	for rows.Next() {
		var turn db.ConversationTurn
		var snapshot []byte
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.ConversationID, &turn.Role, &turn.Content, &snapshot, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation turn: %w", err)
		}
		if len(snapshot) > 0 {
			turn.ContextSnapshot = json.RawMessage(snapshot)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation turns: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": userID, "count": len(turns)}).Debug("Retrieved conversation turns")
	return turns, nil
}

// AddConversationTurn stores one coach turn
func (p *PostgresDB) AddConversationTurn(ctx context.Context, turn *db.ConversationTurn) error {
	var snapshot any
	if len(turn.ContextSnapshot) > 0 {
		snapshot = string(turn.ContextSnapshot)
	}

	query := `
	INSERT INTO ai_conversations (id, user_id, conversation_id, role, content, context_snapshot, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.conn.ExecContext(ctx, query,
		turn.ID, turn.UserID, turn.ConversationID, turn.Role, turn.Content, snapshot, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error adding conversation turn: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         turn.UserID,
		"conversation_id": turn.ConversationID,
		"role":            turn.Role,
	}).Debug("Added conversation turn")
	return nil
}
