package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// Session cookie names.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Resolver turns an access token into the request principal.
type Resolver interface {
	Resolve(ctx context.Context, accessToken string) model.AccessPrincipal
}

// Authenticate resolves the principal of every request and stores it in the
// request context. It never rejects: bad or missing credentials make the
// request anonymous and handlers decide what that means.
type Authenticate struct {
	resolver       Resolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewAuthenticate(resolver Resolver, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{resolver: resolver, contextManager: contextManager, logger: logger}
}

func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := model.Anonymous()
		if token := AccessToken(r); token != "" {
			principal = m.resolver.Resolve(r.Context(), token)
		}
		if principal.Authenticated {
			m.logger.Debug("Authenticate middleware: principal resolved",
				"principal_id", principal.ID.String(),
				"tier_level", principal.TierLevel)
		}

		ctx := m.contextManager.SetPrincipalToContext(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessToken reads the access token from its cookie, falling back to an
// Authorization bearer header.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// RefreshToken reads the refresh token cookie.
func RefreshToken(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		return c.Value
	}
	return ""
}
