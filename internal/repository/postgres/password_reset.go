package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/observer-server/internal/model"
)

type PasswordResetRepository struct {
	db *Connection
}

var _ model.PasswordResetStore = (*PasswordResetRepository)(nil)

func NewPasswordResetRepository(db *Connection) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// CreateReset stores a reset token for the active principal owning email.
func (r *PasswordResetRepository) CreateReset(ctx context.Context, email string, token model.VerificationToken) (model.Principal, error) {
	var owner model.Principal
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		owner, err = scanPrincipal(tx.QueryRow(ctx, `SELECT `+principalColumns+`
			FROM principals
			WHERE lower(email) = lower($1) AND is_active AND deactivated_at IS NULL`, email))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNotFound
			}
			return fmt.Errorf("failed to get principal by email: %w", err)
		}

		query := `
			INSERT INTO verification_tokens (token_hash, principal_id, purpose, expires_at, created_at)
			VALUES ($1, $2, $3, $4, NOW())`
		if _, err := tx.Exec(ctx, query, token.TokenHash, owner.ID, model.PurposePasswordReset, token.ExpiresAt); err != nil {
			return fmt.Errorf("failed to create password reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Principal{}, err
	}

	return owner, nil
}

// CompleteReset consumes the token and replaces the credential of its
// principal in one transaction.
func (r *PasswordResetRepository) CompleteReset(ctx context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (model.Principal, error) {
	var updated model.Principal
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		principalID, err := consumeToken(ctx, tx, tokenHash, model.PurposePasswordReset, now)
		if err != nil {
			return err
		}

		updated, err = scanPrincipal(tx.QueryRow(ctx, `
			UPDATE principals
			SET credential_hash = $2, updated_at = $3
			WHERE id = $1 AND is_active AND deactivated_at IS NULL
			RETURNING `+principalColumns, principalID, credentialHash, now))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrVerificationInvalid
			}
			return fmt.Errorf("failed to reset credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Principal{}, err
	}

	return updated, nil
}
