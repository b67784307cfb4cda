package model

import "context"

type ContextManager interface {
	SetPrincipalToContext(ctx context.Context, principal AccessPrincipal) context.Context
	GetPrincipalFromContext(ctx context.Context) (AccessPrincipal, bool)
}
