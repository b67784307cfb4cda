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

type RegistrationRepository struct {
	db *Connection
}

var _ model.RegistrationStore = (*RegistrationRepository)(nil)

func NewRegistrationRepository(db *Connection) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CreatePending stores an inactive principal and its verification token in
// one transaction.
func (r *RegistrationRepository) CreatePending(ctx context.Context, principal model.Principal, token model.VerificationToken) (model.Principal, error) {
	principal.IsActive = false

	var created model.Principal
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		created, err = insertPrincipal(ctx, tx, principal)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO verification_tokens (token_hash, principal_id, purpose, expires_at, created_at)
			VALUES ($1, $2, $3, $4, NOW())`
		if _, err := tx.Exec(ctx, query, token.TokenHash, created.ID, model.PurposeActivation, token.ExpiresAt); err != nil {
			return fmt.Errorf("failed to create verification token: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Principal{}, err
	}

	return created, nil
}

// Complete consumes the token and activates its principal atomically. The
// token row is locked so concurrent completions serialize.
func (r *RegistrationRepository) Complete(ctx context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (model.Principal, error) {
	var activated model.Principal
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		principalID, err := consumeToken(ctx, tx, tokenHash, model.PurposeActivation, now)
		if err != nil {
			return err
		}

		activated, err = scanPrincipal(tx.QueryRow(ctx, `
			UPDATE principals
			SET is_active = TRUE, credential_hash = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+principalColumns, principalID, credentialHash, now))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrVerificationInvalid
			}
			return fmt.Errorf("failed to activate principal: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Principal{}, err
	}

	return activated, nil
}

// consumeToken locks the token row of the given purpose, checks it is still
// redeemable and marks it consumed. It returns the owning principal id.
func consumeToken(ctx context.Context, tx pgx.Tx, tokenHash []byte, purpose model.TokenPurpose, now time.Time) (uuid.UUID, error) {
	var (
		principalID uuid.UUID
		expiresAt   time.Time
		consumedAt  *time.Time
	)
	err := tx.QueryRow(ctx, `
		SELECT principal_id, expires_at, consumed_at
		FROM verification_tokens
		WHERE token_hash = $1 AND purpose = $2
		FOR UPDATE`, tokenHash, purpose).Scan(&principalID, &expiresAt, &consumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, model.ErrVerificationInvalid
		}
		return uuid.Nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	if consumedAt != nil {
		return uuid.Nil, model.ErrVerificationConsumed
	}
	if !now.Before(expiresAt) {
		return uuid.Nil, model.ErrVerificationExpired
	}

	if _, err := tx.Exec(ctx, `UPDATE verification_tokens SET consumed_at = $2 WHERE token_hash = $1`,
		tokenHash, now); err != nil {
		return uuid.Nil, fmt.Errorf("failed to consume verification token: %w", err)
	}
	return principalID, nil
}

func (r *RegistrationRepository) CountExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM verification_tokens WHERE expires_at < $1`, before).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired verification tokens: %w", err)
	}
	return n, nil
}

func (r *RegistrationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}
	return res.RowsAffected(), nil
}
