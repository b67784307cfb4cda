package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/observer-server/internal/model"
)

type TierRepository struct {
	db *Connection
}

var _ model.TierStore = (*TierRepository)(nil)

func NewTierRepository(db *Connection) *TierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) GetByID(ctx context.Context, id int64) (model.Tier, error) {
	query := `SELECT id, name, level, description FROM tiers WHERE id = $1`

	var t model.Tier
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Level, &t.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tier{}, model.ErrNotFound
		}
		return model.Tier{}, fmt.Errorf("failed to get tier: %w", err)
	}

	return t, nil
}

func (r *TierRepository) GetByLevel(ctx context.Context, level int) (model.Tier, error) {
	query := `SELECT id, name, level, description FROM tiers WHERE level = $1`

	var t model.Tier
	err := r.db.QueryRow(ctx, query, level).Scan(&t.ID, &t.Name, &t.Level, &t.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Tier{}, model.ErrNotFound
		}
		return model.Tier{}, fmt.Errorf("failed to get tier by level: %w", err)
	}

	return t, nil
}

func (r *TierRepository) List(ctx context.Context) ([]model.Tier, error) {
	query := `SELECT id, name, level, description FROM tiers ORDER BY level`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.Level, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tiers: %w", err)
	}

	return tiers, nil
}

type ProfileRepository struct {
	db *Connection
}

var _ model.ProfileStore = (*ProfileRepository)(nil)

func NewProfileRepository(db *Connection) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByPrincipalID(ctx context.Context, principalID uuid.UUID) (model.Profile, error) {
	query := `
		SELECT id, principal_id, tier_id, organization_id, created_at, updated_at
		FROM profiles
		WHERE principal_id = $1`

	var p model.Profile
	err := r.db.QueryRow(ctx, query, principalID).Scan(
		&p.ID,
		&p.PrincipalID,
		&p.TierID,
		&p.OrganizationID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, model.ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// CreateIfAbsent inserts the profile unless the principal already has one.
// It reports whether a row was written.
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, profile model.Profile) (bool, error) {
	query := `
		INSERT INTO profiles (principal_id, tier_id, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (principal_id) DO NOTHING`

	res, err := r.db.Exec(ctx, query, profile.PrincipalID, profile.TierID, profile.OrganizationID)
	if err != nil {
		return false, fmt.Errorf("failed to create profile: %w", err)
	}

	return res.RowsAffected() == 1, nil
}
