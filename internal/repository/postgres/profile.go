package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fitcoach/internal/repository/db"
	"fmt"
)

// GetProfile retrieves the profile of a user
func (p *PostgresDB) GetProfile(ctx context.Context, userID string) (*db.Profile, error) {
	query := `
	SELECT user_id, COALESCE(display_name, ''), subscription_tier, COALESCE(fitness_level, ''),
		COALESCE(primary_goal, ''), height_cm, birth_year, COALESCE(units, 'metric'), created_at
	FROM profiles
	WHERE user_id = $1
	`

	var profile db.Profile
	var height sql.NullFloat64
	var birthYear sql.NullInt32
	err := p.conn.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.SubscriptionTier,
		&profile.FitnessLevel,
		&profile.PrimaryGoal,
		&height,
		&birthYear,
		&profile.Units,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting profile: %w", err)
	}

	profile.HeightCm = nullFloat(height)
	if birthYear.Valid {
		year := int(birthYear.Int32)
		profile.BirthYear = &year
	}
	return &profile, nil
}
