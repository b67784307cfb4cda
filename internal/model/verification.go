package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultVerificationTTL bounds the lifetime of a registration token.
const DefaultVerificationTTL = 24 * time.Hour

// RegistrationStore persists pending registrations and completes them.
type RegistrationStore interface {
	// CreatePending stores an inactive principal together with its
	// verification token.
	CreatePending(ctx context.Context, principal Principal, token VerificationToken) (Principal, error)
	// Complete consumes the token and activates its principal with the given
	// credential in one step.
	Complete(ctx context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (Principal, error)
	CountExpired(ctx context.Context, before time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenPurpose tells activation links from password reset links. Both live
// in the same ledger and a token only completes the flow it was issued for.
type TokenPurpose string

const (
	PurposeActivation    TokenPurpose = "activation"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// VerificationToken is a single-use, time-bounded token sent by mail.
// Only its SHA-256 hash is persisted.
type VerificationToken struct {
	TokenHash   []byte
	PrincipalID uuid.UUID
	Purpose     TokenPurpose
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

// Notifier dispatches messages to principals out-of-band.
type Notifier interface {
	SendVerification(ctx context.Context, msg VerificationMessage) error
	SendPasswordReset(ctx context.Context, msg VerificationMessage) error
}

// VerificationMessage carries a raw mailed token to its owner.
type VerificationMessage struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Identifier  string    `json:"identifier"`
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DefaultPasswordResetTTL bounds the lifetime of a password reset token.
const DefaultPasswordResetTTL = time.Hour

// PasswordResetStore issues and redeems password reset tokens.
type PasswordResetStore interface {
	// CreateReset stores token for the active principal owning email. It
	// returns ErrNotFound when there is none.
	CreateReset(ctx context.Context, email string, token VerificationToken) (Principal, error)
	// CompleteReset consumes the token and sets the credential of its
	// principal in one step.
	CompleteReset(ctx context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (Principal, error)
}
