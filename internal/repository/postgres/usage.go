package postgres

import (
	"context"
	"fitcoach/internal/repository/db"
	"fmt"
	"time"
)

// CountUsageSince counts usage rows of one request type created at or after since.
// Failed attempts are counted.
func (p *PostgresDB) CountUsageSince(ctx context.Context, userID string, requestType db.RequestType, since time.Time) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM ai_usage
	WHERE user_id = $1 AND request_type = $2 AND created_at >= $3
	`

	var count int
	if err := p.conn.QueryRowContext(ctx, query, userID, string(requestType), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting usage: %w", err)
	}
	return count, nil
}

// AddUsageRecord stores one invocation attempt
func (p *PostgresDB) AddUsageRecord(ctx context.Context, record *db.UsageRecord) error {
	query := `
	INSERT INTO ai_usage (id, user_id, request_type, input_tokens, output_tokens, cost_cents, success, tier, model, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.conn.ExecContext(ctx, query,
		record.ID, record.UserID, string(record.RequestType), record.InputTokens, record.OutputTokens,
		record.CostCents, record.Success, record.Tier, record.Model, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error adding usage record: %w", err)
	}
	return nil
}

// AddInteraction stores the audit row of a successful request
func (p *PostgresDB) AddInteraction(ctx context.Context, interaction *db.Interaction) error {
	query := `
	INSERT INTO ai_interactions (id, user_id, request_type, input, output, confidence, model, tokens_used, processing_time_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.conn.ExecContext(ctx, query,
		interaction.ID, interaction.UserID, string(interaction.RequestType),
		string(interaction.Input), string(interaction.Output), interaction.Confidence,
		interaction.Model, interaction.TokensUsed, interaction.ProcessingTimeMS, interaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error adding interaction: %w", err)
	}
	return nil
}
