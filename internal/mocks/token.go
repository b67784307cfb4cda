// Package mocks holds testify mocks of the model interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/observer-server/internal/model"
)

// TokenManager mocks model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateAccessToken(principalID uuid.UUID) (string, error) {
	args := m.Called(principalID)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) GenerateRefreshToken(principalID uuid.UUID, familyID uuid.UUID) (string, model.RefreshClaims, error) {
	args := m.Called(principalID, familyID)
	return args.String(0), args.Get(1).(model.RefreshClaims), args.Error(2)
}

func (m *TokenManager) ParseAccessToken(token string) (uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *TokenManager) ParseRefreshToken(token string) (model.RefreshClaims, error) {
	args := m.Called(token)
	return args.Get(0).(model.RefreshClaims), args.Error(1)
}

func (m *TokenManager) ParseRefreshTokenSignature(token string) (model.RefreshClaims, error) {
	args := m.Called(token)
	return args.Get(0).(model.RefreshClaims), args.Error(1)
}

// RefreshFamilyStore mocks model.RefreshFamilyStore.
type RefreshFamilyStore struct {
	mock.Mock
}

func (m *RefreshFamilyStore) Create(ctx context.Context, family model.RefreshFamily) error {
	args := m.Called(ctx, family)
	return args.Error(0)
}

func (m *RefreshFamilyStore) GetByID(ctx context.Context, id uuid.UUID) (model.RefreshFamily, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.RefreshFamily), args.Error(1)
}

func (m *RefreshFamilyStore) Rotate(ctx context.Context, rotation model.Rotation) error {
	args := m.Called(ctx, rotation)
	return args.Error(0)
}

func (m *RefreshFamilyStore) Revoke(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RefreshFamilyStore) RevokeAllByPrincipal(ctx context.Context, principalID uuid.UUID) error {
	args := m.Called(ctx, principalID)
	return args.Error(0)
}

func (m *RefreshFamilyStore) CountExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RefreshFamilyStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
