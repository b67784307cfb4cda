package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PrincipalStore defines persistence operations for principals.
type PrincipalStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (Principal, error)
	GetByID(ctx context.Context, id uuid.UUID) (Principal, error)
	Create(ctx context.Context, principal Principal) (Principal, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// UpdateCredential replaces the credential hash of an active principal.
	UpdateCredential(ctx context.Context, id uuid.UUID, credentialHash []byte, at time.Time) error
}

// Principal represents an actor that can authenticate against the platform.
// Principals are never physically deleted, DeactivatedAt marks soft removal.
type Principal struct {
	ID             uuid.UUID
	Identifier     string
	Email          string
	CredentialHash []byte
	IsActive       bool
	IsSuperuser    bool
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeactivatedAt  *time.Time
}

// CanAuthenticate reports whether the principal may be issued a session.
func (p Principal) CanAuthenticate() bool {
	return p.IsActive && p.DeactivatedAt == nil && len(p.CredentialHash) > 0
}

// PrincipalSummary is the only principal data returned to clients after login.
type PrincipalSummary struct {
	ID          uuid.UUID `json:"id"`
	Identifier  string    `json:"identifier"`
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
}

// Summary returns the client-safe view of the principal.
func (p Principal) Summary() PrincipalSummary {
	return PrincipalSummary{
		ID:          p.ID,
		Identifier:  p.Identifier,
		Email:       p.Email,
		IsSuperuser: p.IsSuperuser,
	}
}
