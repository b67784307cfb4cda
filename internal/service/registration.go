package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

const verificationTokenBytes = 32

// Registration creates inactive principals and activates them once they
// prove control of their email.
type Registration struct {
	store       model.RegistrationStore
	principals  model.PrincipalStore
	notifier    model.Notifier
	publisher   model.ActivationPublisher
	credentials *Credentials
	ttl         time.Duration
	logger      *logger.Logger
	now         func() time.Time
}

func NewRegistration(
	store model.RegistrationStore,
	principals model.PrincipalStore,
	notifier model.Notifier,
	publisher model.ActivationPublisher,
	credentials *Credentials,
	ttl time.Duration,
	logger *logger.Logger,
) *Registration {
	if ttl <= 0 {
		ttl = model.DefaultVerificationTTL
	}
	return &Registration{
		store:       store,
		principals:  principals,
		notifier:    notifier,
		publisher:   publisher,
		credentials: credentials,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// Register stores an inactive principal and sends it a single-use token.
// No session is created.
func (r *Registration) Register(ctx context.Context, identifier, email string) (model.PrincipalSummary, error) {
	identifier = strings.TrimSpace(identifier)
	email = strings.TrimSpace(email)
	r.logger.Debug("Registration service: starting registration",
		"identifier", identifier)

	_, err := r.principals.GetByIdentifier(ctx, identifier)
	if err == nil {
		r.logger.Info("Registration service: identifier already taken",
			"identifier", identifier)
		return model.PrincipalSummary{}, model.ErrAlreadyRegistered
	}
	if !errors.Is(err, model.ErrNotFound) {
		r.logger.Error("Registration service: failed to get principal",
			"identifier", identifier,
			"error", err.Error())
		return model.PrincipalSummary{}, fmt.Errorf("failed to get principal: %w", err)
	}

	raw, err := newVerificationToken()
	if err != nil {
		return model.PrincipalSummary{}, err
	}

	now := r.now()
	principal, err := r.store.CreatePending(ctx,
		model.Principal{
			ID:         uuid.New(),
			Identifier: identifier,
			Email:      email,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		model.VerificationToken{
			TokenHash: hashToken(raw),
			ExpiresAt: now.Add(r.ttl),
			CreatedAt: now,
		},
	)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyRegistered) {
			return model.PrincipalSummary{}, err
		}
		r.logger.Error("Registration service: failed to create pending principal",
			"identifier", identifier,
			"error", err.Error())
		return model.PrincipalSummary{}, fmt.Errorf("failed to create pending principal: %w", err)
	}

	err = r.notifier.SendVerification(ctx, model.VerificationMessage{
		PrincipalID: principal.ID,
		Identifier:  principal.Identifier,
		Email:       principal.Email,
		Token:       raw,
		ExpiresAt:   now.Add(r.ttl),
	})
	if err != nil {
		r.logger.Error("Registration service: failed to dispatch verification",
			"principal_id", principal.ID.String(),
			"error", err.Error())
		return model.PrincipalSummary{}, fmt.Errorf("failed to dispatch verification: %w", err)
	}

	r.logger.Info("Registration service: registration pending verification",
		"principal_id", principal.ID.String())

	return principal.Summary(), nil
}

// VerifyRegistration consumes token and activates its principal with secret.
func (r *Registration) VerifyRegistration(ctx context.Context, token, secret string) (model.PrincipalSummary, error) {
	if token == "" {
		return model.PrincipalSummary{}, model.ErrVerificationInvalid
	}

	credential, err := r.credentials.Hash(secret)
	if err != nil {
		return model.PrincipalSummary{}, err
	}

	now := r.now()
	principal, err := r.store.Complete(ctx, hashToken(token), credential, now)
	if err != nil {
		if errors.Is(err, model.ErrVerificationInvalid) ||
			errors.Is(err, model.ErrVerificationExpired) ||
			errors.Is(err, model.ErrVerificationConsumed) {
			r.logger.Info("Registration service: verification rejected",
				"error", err.Error())
			return model.PrincipalSummary{}, err
		}
		r.logger.Error("Registration service: failed to complete registration",
			"error", err.Error())
		return model.PrincipalSummary{}, fmt.Errorf("failed to complete registration: %w", err)
	}

	// Activation is committed at this point; a failing handler leaves the
	// principal without a profile, which grants no data access.
	err = r.publisher.PublishActivated(ctx, model.PrincipalActivated{PrincipalID: principal.ID, ActivatedAt: now})
	if err != nil {
		r.logger.Error("Registration service: activation handlers failed",
			"principal_id", principal.ID.String(),
			"error", err.Error())
	}

	r.logger.Info("Registration service: principal activated",
		"principal_id", principal.ID.String())

	return principal.Summary(), nil
}

func newVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
