package handler

import (
	"net/http"
	"time"

	"github.com/dtroode/observer-server/internal/api/http/middleware"
	"github.com/dtroode/observer-server/internal/service"
)

// refreshCookiePath keeps the refresh token off every request except the
// session endpoints.
const refreshCookiePath = "/api/v1/accounts/auth/"

// CookieConfig controls the session cookies.
type CookieConfig struct {
	// Secure is false only in development.
	Secure    bool
	Domain    string
	AccessTTL time.Duration
}

func (c CookieConfig) cookie(name, value, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) setSession(w http.ResponseWriter, tokens service.TokenPair) {
	access := c.cookie(middleware.AccessCookie, tokens.AccessToken, "/")
	access.MaxAge = int(c.AccessTTL.Seconds())
	http.SetCookie(w, access)

	refresh := c.cookie(middleware.RefreshCookie, tokens.RefreshToken, refreshCookiePath)
	refresh.Expires = tokens.RefreshExpiresAt
	refresh.MaxAge = int(time.Until(tokens.RefreshExpiresAt).Seconds())
	http.SetCookie(w, refresh)
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	access := c.cookie(middleware.AccessCookie, "", "/")
	access.MaxAge = -1
	http.SetCookie(w, access)

	refresh := c.cookie(middleware.RefreshCookie, "", refreshCookiePath)
	refresh.MaxAge = -1
	http.SetCookie(w, refresh)
}
