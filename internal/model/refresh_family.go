package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshFamilyStore is the revocation ledger for refresh token families.
type RefreshFamilyStore interface {
	Create(ctx context.Context, family RefreshFamily) error
	GetByID(ctx context.Context, id uuid.UUID) (RefreshFamily, error)
	// Rotate replaces the current token of a live family only if the
	// presented JTI is still current. It returns ErrRotationConflict when
	// another rotation won and ErrTokenRevoked when the family is revoked.
	Rotate(ctx context.Context, rotation Rotation) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllByPrincipal(ctx context.Context, principalID uuid.UUID) error
	CountExpired(ctx context.Context, before time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RefreshFamily is the lineage of refresh tokens produced from one login.
// Only the newest token's JTI and hash are kept; every older token of the
// family is invalid by construction.
type RefreshFamily struct {
	ID          uuid.UUID
	PrincipalID uuid.UUID
	CurrentJTI  string
	CurrentHash []byte
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RotatedAt   *time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Rotation describes a compare-and-swap of a family's current token.
type Rotation struct {
	FamilyID     uuid.UUID
	PresentedJTI string
	NextJTI      string
	NextHash     []byte
	ExpiresAt    time.Time
}
