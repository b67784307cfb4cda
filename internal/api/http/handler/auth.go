package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/api/http/middleware"
	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/service"
)

// SessionService defines login, rotation and logout.
type SessionService interface {
	Login(ctx context.Context, identifier, secret, origin string) (service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error)
	Verify(accessToken string) (uuid.UUID, bool)
	Logout(ctx context.Context, refreshToken string)
}

// RegistrationService defines sign-up and email verification.
type RegistrationService interface {
	Register(ctx context.Context, identifier, email string) (model.PrincipalSummary, error)
	VerifyRegistration(ctx context.Context, token, secret string) (model.PrincipalSummary, error)
}

// Auth handles the session endpoints. Tokens only travel in cookies.
type Auth struct {
	sessions      SessionService
	registrations RegistrationService
	cookies       CookieConfig
	validator     *validator.Validate
	logger        *logger.Logger
}

func NewAuth(sessions SessionService, registrations RegistrationService, cookies CookieConfig, logger *logger.Logger) *Auth {
	return &Auth{
		sessions:      sessions,
		registrations: registrations,
		cookies:       cookies,
		validator:     newValidator(),
		logger:        logger,
	}
}

// MountRoutes registers auth routes on r.
func (h *Auth) MountRoutes(r chi.Router) {
	r.Post("/token/", h.login)
	r.Post("/token/refresh/", h.refresh)
	r.Post("/token/verify/", h.verify)
	r.Post("/logout/", h.logout)
	r.Post("/register/", h.register)
	r.Post("/verify-email/", h.verifyEmail)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

type verifyEmailRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=12,maxbytes=72,strongpassword"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type principalResponse struct {
	Detail string                 `json:"detail,omitempty"`
	User   model.PrincipalSummary `json:"user"`
}

func (h *Auth) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password, origin(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookies.setSession(w, result.Tokens)
	writeJSON(w, http.StatusOK, principalResponse{User: result.Principal})
}

func (h *Auth) refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.sessions.Refresh(r.Context(), middleware.RefreshToken(r))
	if err != nil {
		h.cookies.clearSession(w)
		writeError(w, h.logger, err)
		return
	}

	h.cookies.setSession(w, tokens)
	writeDetail(w, http.StatusOK, "token refreshed")
}

func (h *Auth) verify(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessions.Verify(middleware.AccessToken(r)); !ok {
		writeDetail(w, http.StatusUnauthorized, "token is invalid or expired")
		return
	}
	writeDetail(w, http.StatusOK, "token is valid")
}

// logout always succeeds from the client's point of view.
func (h *Auth) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), middleware.RefreshToken(r))
	h.cookies.clearSession(w)
	writeDetail(w, http.StatusResetContent, "logout successful")
}

func (h *Auth) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	summary, err := h.registrations.Register(r.Context(), req.Username, req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, principalResponse{
		Detail: "verification email sent",
		User:   summary,
	})
}

func (h *Auth) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	summary, err := h.registrations.VerifyRegistration(r.Context(), req.Token, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, principalResponse{
		Detail: "email verified",
		User:   summary,
	})
}

// origin is the client address. RealIP has already rewritten RemoteAddr
// when the server sits behind a proxy.
func origin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
