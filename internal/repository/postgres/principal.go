package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/observer-server/internal/model"
)

const uniqueViolation = "23505"

const principalColumns = `id, identifier, email, credential_hash, is_active, is_superuser,
	last_login_at, created_at, updated_at, deactivated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PrincipalRepository struct {
	db *Connection
}

var _ model.PrincipalStore = (*PrincipalRepository)(nil)

func NewPrincipalRepository(db *Connection) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func scanPrincipal(row pgx.Row) (model.Principal, error) {
	var p model.Principal
	err := row.Scan(
		&p.ID,
		&p.Identifier,
		&p.Email,
		&p.CredentialHash,
		&p.IsActive,
		&p.IsSuperuser,
		&p.LastLoginAt,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeactivatedAt,
	)
	return p, err
}

func (r *PrincipalRepository) GetByIdentifier(ctx context.Context, identifier string) (model.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE lower(identifier) = lower($1)`

	p, err := scanPrincipal(r.db.QueryRow(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Principal{}, model.ErrNotFound
		}
		return model.Principal{}, fmt.Errorf("failed to get principal by identifier: %w", err)
	}

	return p, nil
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`

	p, err := scanPrincipal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Principal{}, model.ErrNotFound
		}
		return model.Principal{}, fmt.Errorf("failed to get principal by id: %w", err)
	}

	return p, nil
}

func (r *PrincipalRepository) Create(ctx context.Context, principal model.Principal) (model.Principal, error) {
	return insertPrincipal(ctx, r.db, principal)
}

func insertPrincipal(ctx context.Context, q querier, principal model.Principal) (model.Principal, error) {
	if principal.ID == uuid.Nil {
		principal.ID = uuid.New()
	}

	query := `
		INSERT INTO principals (id, identifier, email, credential_hash, is_active, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + principalColumns

	p, err := scanPrincipal(q.QueryRow(ctx, query,
		principal.ID,
		principal.Identifier,
		principal.Email,
		principal.CredentialHash,
		principal.IsActive,
		principal.IsSuperuser,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Principal{}, model.ErrAlreadyRegistered
		}
		return model.Principal{}, fmt.Errorf("failed to create principal: %w", err)
	}

	return p, nil
}

func (r *PrincipalRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE principals SET last_login_at = $2 WHERE id = $1`

	res, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record last login: %w", err)
	}
	if res.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *PrincipalRepository) UpdateCredential(ctx context.Context, id uuid.UUID, credentialHash []byte, at time.Time) error {
	query := `UPDATE principals SET credential_hash = $2, updated_at = $3 WHERE id = $1 AND is_active`

	res, err := r.db.Exec(ctx, query, id, credentialHash, at)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if res.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
