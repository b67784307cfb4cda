package model

import "github.com/google/uuid"

// AnonymousTierLevel sits below the lowest real tier.
const AnonymousTierLevel = 0

// AccessPrincipal is the per-request view of the caller used for
// authorization decisions. It is rebuilt on every request.
type AccessPrincipal struct {
	ID            uuid.UUID
	Authenticated bool
	Superuser     bool
	TierLevel     int
}

// Anonymous returns the principal of an unauthenticated request.
func Anonymous() AccessPrincipal {
	return AccessPrincipal{TierLevel: AnonymousTierLevel}
}

// HasTier reports whether the principal is bound to a real tier.
func (p AccessPrincipal) HasTier() bool {
	return p.Authenticated && p.TierLevel > AnonymousTierLevel
}
