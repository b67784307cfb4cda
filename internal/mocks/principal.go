package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/observer-server/internal/model"
)

// PrincipalStore mocks model.PrincipalStore.
type PrincipalStore struct {
	mock.Mock
}

func (m *PrincipalStore) GetByIdentifier(ctx context.Context, identifier string) (model.Principal, error) {
	args := m.Called(ctx, identifier)
	return args.Get(0).(model.Principal), args.Error(1)
}

func (m *PrincipalStore) GetByID(ctx context.Context, id uuid.UUID) (model.Principal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Principal), args.Error(1)
}

func (m *PrincipalStore) Create(ctx context.Context, principal model.Principal) (model.Principal, error) {
	args := m.Called(ctx, principal)
	return args.Get(0).(model.Principal), args.Error(1)
}

func (m *PrincipalStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *PrincipalStore) UpdateCredential(ctx context.Context, id uuid.UUID, credentialHash []byte, at time.Time) error {
	args := m.Called(ctx, id, credentialHash, at)
	return args.Error(0)
}

// TierStore mocks model.TierStore.
type TierStore struct {
	mock.Mock
}

func (m *TierStore) GetByID(ctx context.Context, id int64) (model.Tier, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Tier), args.Error(1)
}

func (m *TierStore) GetByLevel(ctx context.Context, level int) (model.Tier, error) {
	args := m.Called(ctx, level)
	return args.Get(0).(model.Tier), args.Error(1)
}

func (m *TierStore) List(ctx context.Context) ([]model.Tier, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Tier), args.Error(1)
}

// ProfileStore mocks model.ProfileStore.
type ProfileStore struct {
	mock.Mock
}

func (m *ProfileStore) GetByPrincipalID(ctx context.Context, principalID uuid.UUID) (model.Profile, error) {
	args := m.Called(ctx, principalID)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *ProfileStore) CreateIfAbsent(ctx context.Context, profile model.Profile) (bool, error) {
	args := m.Called(ctx, profile)
	return args.Bool(0), args.Error(1)
}
