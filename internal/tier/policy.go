package tier

import (
	"context"

	"github.com/dtroode/observer-server/internal/model"
)

// Policy decides whether principal may query resource at all. Row level
// visibility is handled separately by Scope.
type Policy interface {
	Authorize(ctx context.Context, principal model.AccessPrincipal, resource Resource) (bool, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, principal model.AccessPrincipal, resource Resource) (bool, error)

func (f PolicyFunc) Authorize(ctx context.Context, principal model.AccessPrincipal, resource Resource) (bool, error) {
	return f(ctx, principal, resource)
}

// AuthenticatedPolicy admits any authenticated principal.
type AuthenticatedPolicy struct{}

func (AuthenticatedPolicy) Authorize(_ context.Context, principal model.AccessPrincipal, _ Resource) (bool, error) {
	return principal.Authenticated, nil
}

// SuperuserPolicy admits superusers only.
type SuperuserPolicy struct{}

func (SuperuserPolicy) Authorize(_ context.Context, principal model.AccessPrincipal, _ Resource) (bool, error) {
	return principal.Authenticated && principal.Superuser, nil
}

// TierPolicy admits principals with a tier, or superusers, to resources
// the engine can place in a store.
type TierPolicy struct {
	Engine *Engine
}

func (p TierPolicy) Authorize(_ context.Context, principal model.AccessPrincipal, resource Resource) (bool, error) {
	if _, err := p.Engine.Store(resource); err != nil {
		return false, err
	}
	_, unrestricted, none := visibleLevel(principal)
	return unrestricted || !none, nil
}

// AllOf admits a principal only when every policy does. Evaluation stops at
// the first denial or error.
func AllOf(policies ...Policy) Policy {
	return PolicyFunc(func(ctx context.Context, principal model.AccessPrincipal, resource Resource) (bool, error) {
		for _, policy := range policies {
			ok, err := policy.Authorize(ctx, principal, resource)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}
