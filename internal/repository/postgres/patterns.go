package postgres

import (
	"context"
	"encoding/json"
	"fitcoach/internal/logger"
	"fitcoach/internal/repository/db"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GetTopPatterns retrieves the most frequent learned patterns of a user
func (p *PostgresDB) GetTopPatterns(ctx context.Context, userID string, limit int) ([]db.Pattern, error) {
	query := `
	SELECT id, user_id, pattern_type, pattern_key, pattern_data, frequency, last_seen
	FROM user_patterns
	WHERE user_id = $1
	ORDER BY frequency DESC, last_seen DESC
	LIMIT $2
	`

	rows, err := p.conn.QueryContext(ctx, query, userID, limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying patterns: %w", err)
	}
	defer rows.Close()

	var patterns []db.Pattern
	for rows.Next() {
		var pattern db.Pattern
		var data []byte
		if err := rows.Scan(&pattern.ID, &pattern.UserID, &pattern.PatternType, &pattern.PatternKey, &data, &pattern.Frequency, &pattern.LastSeen); err != nil {
			return nil, fmt.Errorf("error scanning pattern: %w", err)
		}
		if len(data) > 0 {
			pattern.PatternData = json.RawMessage(data)
		}
		patterns = append(patterns, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}

	return patterns, nil
}

// IncrementPattern inserts the pattern with frequency 1 or bumps the
// existing row by one, replacing its data when data is given
func (p *PostgresDB) IncrementPattern(ctx context.Context, userID, patternType, patternKey string, data json.RawMessage) error {
	var payload any
	if len(data) > 0 {
		payload = string(data)
	}

	query := `
	INSERT INTO user_patterns (id, user_id, pattern_type, pattern_key, pattern_data, frequency, last_seen)
	VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '{}'::jsonb), 1, NOW())
	ON CONFLICT (user_id, pattern_type, pattern_key) DO UPDATE
	SET frequency = user_patterns.frequency + 1,
		pattern_data = COALESCE($5::jsonb, user_patterns.pattern_data),
		last_seen = NOW()
	`

	if _, err := p.conn.ExecContext(ctx, query, uuid.New().String(), userID, patternType, patternKey, payload); err != nil {
		return fmt.Errorf("error incrementing pattern: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":      userID,
		"pattern_type": patternType,
		"pattern_key":  patternKey,
	}).Debug("Incremented pattern")
	return nil
}

// AddInsight stores an advisory row
func (p *PostgresDB) AddInsight(ctx context.Context, insight *db.Insight) error {
	var data any
	if len(insight.Data) > 0 {
		data = string(insight.Data)
	}

	query := `
	INSERT INTO ai_insights (id, user_id, insight_type, title, description, priority, data, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.conn.ExecContext(ctx, query,
		insight.ID, insight.UserID, insight.InsightType, insight.Title,
		insight.Description, insight.Priority, data, insight.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error adding insight: %w", err)
	}
	return nil
}
