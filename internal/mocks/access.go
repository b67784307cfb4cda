package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/observer-server/internal/model"
)

// Resolver mocks the request principal resolver.
type Resolver struct {
	mock.Mock
}

func (m *Resolver) Resolve(ctx context.Context, accessToken string) model.AccessPrincipal {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(model.AccessPrincipal)
}

// ContextManager mocks model.ContextManager.
type ContextManager struct {
	mock.Mock
}

func (m *ContextManager) SetPrincipalToContext(ctx context.Context, principal model.AccessPrincipal) context.Context {
	args := m.Called(ctx, principal)
	return args.Get(0).(context.Context)
}

func (m *ContextManager) GetPrincipalFromContext(ctx context.Context) (model.AccessPrincipal, bool) {
	args := m.Called(ctx)
	return args.Get(0).(model.AccessPrincipal), args.Bool(1)
}
