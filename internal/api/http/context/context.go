package context

import (
	"context"

	"github.com/dtroode/observer-server/internal/model"
)

type principalKey struct{}

// Manager stores the resolved access principal on request contexts.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) SetPrincipalToContext(ctx context.Context, principal model.AccessPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// GetPrincipalFromContext returns the principal set by the authenticate
// middleware. A context without one reports anonymous and false.
func (m *Manager) GetPrincipalFromContext(ctx context.Context) (model.AccessPrincipal, bool) {
	principal, ok := ctx.Value(principalKey{}).(model.AccessPrincipal)
	if !ok {
		return model.Anonymous(), false
	}
	return principal, true
}
