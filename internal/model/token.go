package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenManager generates and validates access/refresh tokens.
type TokenManager interface {
	GenerateAccessToken(principalID uuid.UUID) (string, error)
	GenerateRefreshToken(principalID uuid.UUID, familyID uuid.UUID) (string, RefreshClaims, error)
	ParseAccessToken(token string) (uuid.UUID, error)
	ParseRefreshToken(token string) (RefreshClaims, error)
	// ParseRefreshTokenSignature checks the signature and token type but
	// accepts expired tokens. It is only meant for logout.
	ParseRefreshTokenSignature(token string) (RefreshClaims, error)
}

// RefreshClaims are the validated claims of a refresh token.
type RefreshClaims struct {
	PrincipalID uuid.UUID
	FamilyID    uuid.UUID
	JTI         string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
