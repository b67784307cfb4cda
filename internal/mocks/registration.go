package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/observer-server/internal/model"
)

// RegistrationStore mocks model.RegistrationStore.
type RegistrationStore struct {
	mock.Mock
}

func (m *RegistrationStore) CreatePending(ctx context.Context, principal model.Principal, token model.VerificationToken) (model.Principal, error) {
	args := m.Called(ctx, principal, token)
	return args.Get(0).(model.Principal), args.Error(1)
}

func (m *RegistrationStore) Complete(ctx context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (model.Principal, error) {
	args := m.Called(ctx, tokenHash, credentialHash, now)
	return args.Get(0).(model.Principal), args.Error(1)
}

func (m *RegistrationStore) CountExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RegistrationStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// Notifier mocks model.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) SendVerification(ctx context.Context, msg model.VerificationMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *Notifier) SendPasswordReset(ctx context.Context, msg model.VerificationMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// PasswordResetStore mocks model.PasswordResetStore.
type PasswordResetStore struct {
	mock.Mock
}

func (m *PasswordResetStore) CreateReset(ctx context.Context, email string, token model.VerificationToken) (model.Principal, error) {
	args := m.Called(ctx, email, token)
	return args.Get(0).(model.Principal), args.Error(1)
}

func (m *PasswordResetStore) CompleteReset(ctx context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (model.Principal, error) {
	args := m.Called(ctx, tokenHash, credentialHash, now)
	return args.Get(0).(model.Principal), args.Error(1)
}

// ActivationPublisher mocks model.ActivationPublisher.
type ActivationPublisher struct {
	mock.Mock
}

func (m *ActivationPublisher) PublishActivated(ctx context.Context, event model.PrincipalActivated) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// AttemptLimiter mocks model.AttemptLimiter.
type AttemptLimiter struct {
	mock.Mock
}

func (m *AttemptLimiter) Allow(ctx context.Context, keys ...string) (bool, error) {
	args := m.Called(ctx, keys)
	return args.Bool(0), args.Error(1)
}
