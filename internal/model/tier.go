package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TierStore reads the tier configuration.
type TierStore interface {
	GetByID(ctx context.Context, id int64) (Tier, error)
	GetByLevel(ctx context.Context, level int) (Tier, error)
	List(ctx context.Context) ([]Tier, error)
}

// ProfileStore persists the principal to tier/organization binding.
type ProfileStore interface {
	GetByPrincipalID(ctx context.Context, principalID uuid.UUID) (Profile, error)
	// CreateIfAbsent inserts the profile unless one already exists for the
	// principal. It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, profile Profile) (bool, error)
}

// Tier is a named access level. Levels are unique and totally ordered.
type Tier struct {
	ID          int64
	Name        string
	Level       int
	Description string
}

// Organization groups principals.
type Organization struct {
	ID   int64
	Name string
}

// Profile binds a principal to a tier and an organization. A principal
// without a profile, or with a profile lacking a tier, has no data access.
type Profile struct {
	ID             int64
	PrincipalID    uuid.UUID
	TierID         *int64
	OrganizationID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
