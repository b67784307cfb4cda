package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/service"
)

type sessionMock struct {
	mock.Mock
}

func (m *sessionMock) Login(ctx context.Context, identifier, secret, origin string) (service.LoginResult, error) {
	args := m.Called(ctx, identifier, secret, origin)
	return args.Get(0).(service.LoginResult), args.Error(1)
}

func (m *sessionMock) Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(service.TokenPair), args.Error(1)
}

func (m *sessionMock) Verify(accessToken string) (uuid.UUID, bool) {
	args := m.Called(accessToken)
	return args.Get(0).(uuid.UUID), args.Bool(1)
}

func (m *sessionMock) Logout(ctx context.Context, refreshToken string) {
	m.Called(ctx, refreshToken)
}

type registrationMock struct {
	mock.Mock
}

func (m *registrationMock) Register(ctx context.Context, identifier, email string) (model.PrincipalSummary, error) {
	args := m.Called(ctx, identifier, email)
	return args.Get(0).(model.PrincipalSummary), args.Error(1)
}

func (m *registrationMock) VerifyRegistration(ctx context.Context, token, secret string) (model.PrincipalSummary, error) {
	args := m.Called(ctx, token, secret)
	return args.Get(0).(model.PrincipalSummary), args.Error(1)
}

type passwordMock struct {
	mock.Mock
}

func (m *passwordMock) ChangePassword(ctx context.Context, principalID uuid.UUID, oldSecret, newSecret string) error {
	args := m.Called(ctx, principalID, oldSecret, newSecret)
	return args.Error(0)
}

func (m *passwordMock) RequestReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *passwordMock) ConfirmReset(ctx context.Context, token, secret string) error {
	args := m.Called(ctx, token, secret)
	return args.Error(0)
}

type readerMock struct {
	mock.Mock
}

func (m *readerMock) Collection(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType, page model.Page) (model.RecordPage, error) {
	args := m.Called(ctx, principal, entity, page)
	return args.Get(0).(model.RecordPage), args.Error(1)
}

func (m *readerMock) Item(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType, id string) (model.Record, error) {
	args := m.Called(ctx, principal, entity, id)
	return args.Get(0).(model.Record), args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
