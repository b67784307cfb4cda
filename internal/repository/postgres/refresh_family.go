package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/observer-server/internal/model"
)

type RefreshFamilyRepository struct {
	db *Connection
}

var _ model.RefreshFamilyStore = (*RefreshFamilyRepository)(nil)

func NewRefreshFamilyRepository(db *Connection) *RefreshFamilyRepository {
	return &RefreshFamilyRepository{db: db}
}

func (r *RefreshFamilyRepository) Create(ctx context.Context, family model.RefreshFamily) error {
	query := `
		INSERT INTO refresh_families (id, principal_id, current_jti, current_hash, issued_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err := r.db.Exec(ctx, query,
		family.ID,
		family.PrincipalID,
		family.CurrentJTI,
		family.CurrentHash,
		family.IssuedAt,
		family.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh family: %w", err)
	}

	return nil
}

func (r *RefreshFamilyRepository) GetByID(ctx context.Context, id uuid.UUID) (model.RefreshFamily, error) {
	query := `
		SELECT id, principal_id, current_jti, current_hash, issued_at, expires_at,
			rotated_at, revoked_at, created_at, updated_at
		FROM refresh_families
		WHERE id = $1`

	var f model.RefreshFamily
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID,
		&f.PrincipalID,
		&f.CurrentJTI,
		&f.CurrentHash,
		&f.IssuedAt,
		&f.ExpiresAt,
		&f.RotatedAt,
		&f.RevokedAt,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RefreshFamily{}, model.ErrNotFound
		}
		return model.RefreshFamily{}, fmt.Errorf("failed to get refresh family: %w", err)
	}

	return f, nil
}

// Rotate swaps the current token only while the presented jti is still
// current and the family is live. A lost race leaves the row untouched.
func (r *RefreshFamilyRepository) Rotate(ctx context.Context, rotation model.Rotation) error {
	query := `
		UPDATE refresh_families
		SET current_jti = $3, current_hash = $4, expires_at = $5, rotated_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND current_jti = $2 AND revoked_at IS NULL`

	res, err := r.db.Exec(ctx, query,
		rotation.FamilyID,
		rotation.PresentedJTI,
		rotation.NextJTI,
		rotation.NextHash,
		rotation.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh family: %w", err)
	}
	if res.RowsAffected() == 1 {
		return nil
	}

	var revoked bool
	err = r.db.QueryRow(ctx, `SELECT revoked_at IS NOT NULL FROM refresh_families WHERE id = $1`,
		rotation.FamilyID).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to inspect refresh family: %w", err)
	}
	if revoked {
		return model.ErrTokenRevoked
	}
	return model.ErrRotationConflict
}

func (r *RefreshFamilyRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE refresh_families
		SET revoked_at = COALESCE(revoked_at, NOW()), updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh family: %w", err)
	}
	if res.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *RefreshFamilyRepository) RevokeAllByPrincipal(ctx context.Context, principalID uuid.UUID) error {
	query := `
		UPDATE refresh_families
		SET revoked_at = NOW(), updated_at = NOW()
		WHERE principal_id = $1 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, principalID); err != nil {
		return fmt.Errorf("failed to revoke refresh families: %w", err)
	}

	return nil
}

func (r *RefreshFamilyRepository) CountExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM refresh_families WHERE expires_at < $1`, before).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired refresh families: %w", err)
	}
	return n, nil
}

func (r *RefreshFamilyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM refresh_families WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh families: %w", err)
	}
	return res.RowsAffected(), nil
}
