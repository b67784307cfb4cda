package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// PasswordService defines password change and reset.
type PasswordService interface {
	ChangePassword(ctx context.Context, principalID uuid.UUID, oldSecret, newSecret string) error
	RequestReset(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, secret string) error
}

// Password handles the credential endpoints. Every success ends all
// sessions of the principal.
type Password struct {
	passwords      PasswordService
	contextManager model.ContextManager
	cookies        CookieConfig
	validator      *validator.Validate
	logger         *logger.Logger
}

func NewPassword(passwords PasswordService, contextManager model.ContextManager, cookies CookieConfig, logger *logger.Logger) *Password {
	return &Password{
		passwords:      passwords,
		contextManager: contextManager,
		cookies:        cookies,
		validator:      newValidator(),
		logger:         logger,
	}
}

// MountRoutes registers password routes on r. authenticate resolves the
// principal for change-password.
func (h *Password) MountRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.With(authenticate).Post("/change-password/", h.change)
	r.Post("/password-reset/", h.requestReset)
	r.Post("/password-reset/confirm/", h.confirmReset)
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password" validate:"required,max=128"`
	NewPassword        string `json:"new_password" validate:"required,min=12,maxbytes=72,strongpassword"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetConfirmRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=12,maxbytes=72,strongpassword"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type logoutRequiredResponse struct {
	Detail         string `json:"detail"`
	LogoutRequired bool   `json:"logout_required"`
}

func (h *Password) change(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.contextManager.GetPrincipalFromContext(r.Context())
	if !ok || !principal.Authenticated {
		writeError(w, h.logger, model.ErrUnauthenticated)
		return
	}

	var req changePasswordRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	err := h.passwords.ChangePassword(r.Context(), principal.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookies.clearSession(w)
	writeJSON(w, http.StatusOK, logoutRequiredResponse{
		Detail:         "password changed, sign in again",
		LogoutRequired: true,
	})
}

// requestReset answers the same way whether or not the address is known.
func (h *Password) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.passwords.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeDetail(w, http.StatusOK, "if the address is registered, a password reset link has been sent")
}

func (h *Password) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.passwords.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookies.clearSession(w)
	writeJSON(w, http.StatusOK, logoutRequiredResponse{
		Detail:         "password has been reset, sign in again",
		LogoutRequired: true,
	})
}
