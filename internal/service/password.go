package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// Password changes and resets principal secrets. Both paths end every
// session the principal holds.
type Password struct {
	principals  model.PrincipalStore
	resets      model.PasswordResetStore
	notifier    model.Notifier
	credentials *Credentials
	tokens      *TokenService
	ttl         time.Duration
	logger      *logger.Logger
	now         func() time.Time
}

func NewPassword(
	principals model.PrincipalStore,
	resets model.PasswordResetStore,
	notifier model.Notifier,
	credentials *Credentials,
	tokens *TokenService,
	ttl time.Duration,
	logger *logger.Logger,
) *Password {
	if ttl <= 0 {
		ttl = model.DefaultPasswordResetTTL
	}
	return &Password{
		principals:  principals,
		resets:      resets,
		notifier:    notifier,
		credentials: credentials,
		tokens:      tokens,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// ChangePassword replaces the secret of an authenticated principal after
// checking the current one.
func (p *Password) ChangePassword(ctx context.Context, principalID uuid.UUID, oldSecret, newSecret string) error {
	principal, err := p.principals.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUnauthenticated
		}
		return fmt.Errorf("failed to get principal: %w", err)
	}
	if !principal.CanAuthenticate() || !p.credentials.Compare(principal.CredentialHash, oldSecret) {
		p.logger.Info("Password service: current password rejected",
			"principal_id", principalID.String())
		return model.ErrWrongSecret
	}

	credential, err := p.credentials.Hash(newSecret)
	if err != nil {
		return err
	}
	if err := p.principals.UpdateCredential(ctx, principalID, credential, p.now()); err != nil {
		p.logger.Error("Password service: failed to update credential",
			"principal_id", principalID.String(),
			"error", err.Error())
		return fmt.Errorf("failed to update credential: %w", err)
	}

	if err := p.revokeSessions(ctx, principalID); err != nil {
		return err
	}

	p.logger.Info("Password service: password changed",
		"principal_id", principalID.String())
	return nil
}

// RequestReset mails a reset link when email belongs to an active
// principal. Unknown addresses succeed silently.
func (p *Password) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	raw, err := newVerificationToken()
	if err != nil {
		return err
	}

	now := p.now()
	expiresAt := now.Add(p.ttl)
	principal, err := p.resets.CreateReset(ctx, email, model.VerificationToken{
		TokenHash: hashToken(raw),
		Purpose:   model.PurposePasswordReset,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			p.logger.Info("Password service: reset requested for unknown email")
			return nil
		}
		p.logger.Error("Password service: failed to create reset token",
			"error", err.Error())
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	err = p.notifier.SendPasswordReset(ctx, model.VerificationMessage{
		PrincipalID: principal.ID,
		Identifier:  principal.Identifier,
		Email:       principal.Email,
		Token:       raw,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		p.logger.Error("Password service: failed to dispatch reset",
			"principal_id", principal.ID.String(),
			"error", err.Error())
		return fmt.Errorf("failed to dispatch reset: %w", err)
	}

	p.logger.Info("Password service: reset link dispatched",
		"principal_id", principal.ID.String())
	return nil
}

// ConfirmReset consumes a reset token, sets secret on its principal and
// revokes every refresh family it holds.
func (p *Password) ConfirmReset(ctx context.Context, token, secret string) error {
	if token == "" {
		return model.ErrVerificationInvalid
	}

	credential, err := p.credentials.Hash(secret)
	if err != nil {
		return err
	}

	principal, err := p.resets.CompleteReset(ctx, hashToken(token), credential, p.now())
	if err != nil {
		if errors.Is(err, model.ErrVerificationInvalid) ||
			errors.Is(err, model.ErrVerificationExpired) ||
			errors.Is(err, model.ErrVerificationConsumed) {
			p.logger.Info("Password service: reset rejected",
				"error", err.Error())
			return err
		}
		p.logger.Error("Password service: failed to complete reset",
			"error", err.Error())
		return fmt.Errorf("failed to complete reset: %w", err)
	}

	if err := p.revokeSessions(ctx, principal.ID); err != nil {
		return err
	}

	p.logger.Info("Password service: password reset",
		"principal_id", principal.ID.String())
	return nil
}

func (p *Password) revokeSessions(ctx context.Context, principalID uuid.UUID) error {
	if err := p.tokens.RevokeAllForPrincipal(ctx, principalID); err != nil {
		p.logger.Error("Password service: failed to revoke sessions",
			"principal_id", principalID.String(),
			"error", err.Error())
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}
