package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fitcoach/internal/repository/db"
	"fmt"
)

// GetContextCache retrieves the cached context snapshot, or nil when none exists
func (p *PostgresDB) GetContextCache(ctx context.Context, userID string) (*db.ContextCache, error) {
	query := `SELECT snapshot FROM user_context_cache WHERE user_id = $1`

	var snapshot []byte
	err := p.conn.QueryRowContext(ctx, query, userID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting context cache: %w", err)
	}

	var cache db.ContextCache
	if err := json.Unmarshal(snapshot, &cache); err != nil {
		return nil, fmt.Errorf("error decoding context cache: %w", err)
	}
	return &cache, nil
}

// UpsertContextCache replaces the cached snapshot of a user
func (p *PostgresDB) UpsertContextCache(ctx context.Context, cache *db.ContextCache) error {
	snapshot, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("error encoding context cache: %w", err)
	}

	query := `
	INSERT INTO user_context_cache (user_id, snapshot, stale_after, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE
	SET snapshot = EXCLUDED.snapshot,
		stale_after = EXCLUDED.stale_after,
		updated_at = EXCLUDED.updated_at
	`

	if _, err := p.conn.ExecContext(ctx, query, cache.UserID, string(snapshot), cache.StaleAfter, cache.UpdatedAt); err != nil {
		return fmt.Errorf("error upserting context cache: %w", err)
	}
	return nil
}
