package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/service"
)

// mailTemplate is the fixed text around a mailed link.
type mailTemplate struct {
	kind    string
	subject string
	intro   string
}

var (
	verificationTemplate = mailTemplate{
		kind:    "Verification",
		subject: "Verify your account",
		intro:   "Confirm your email and choose a password:",
	}
	passwordResetTemplate = mailTemplate{
		kind:    "Password reset",
		subject: "Reset your password",
		intro:   "Someone asked to reset the password of your account. Choose a new one here:",
	}
)

// VerificationHandler turns a mailed token message into a mail carrying a
// single-use link.
type VerificationHandler struct {
	mailer   Mailer
	baseURL  string
	template mailTemplate
	logger   *logger.Logger
}

// NewVerificationHandler delivers activation links built on verifyURL.
func NewVerificationHandler(mailer Mailer, verifyURL string, logger *logger.Logger) *VerificationHandler {
	return &VerificationHandler{mailer: mailer, baseURL: verifyURL, template: verificationTemplate, logger: logger}
}

// NewPasswordResetHandler delivers password reset links built on resetURL.
func NewPasswordResetHandler(mailer Mailer, resetURL string, logger *logger.Logger) *VerificationHandler {
	return &VerificationHandler{mailer: mailer, baseURL: resetURL, template: passwordResetTemplate, logger: logger}
}

func (h *VerificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	kind := h.template.kind
	var msg model.VerificationMessage
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		h.logger.Error(kind+" job: malformed payload", "error", err.Error())
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if msg.Email == "" || msg.Token == "" {
		h.logger.Error(kind+" job: payload without recipient or token",
			"principal_id", msg.PrincipalID.String())
		return fmt.Errorf("%w: incomplete %s payload", asynq.SkipRetry, t.Type())
	}

	link, err := h.link(msg.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	mail := Mail{
		To:      msg.Email,
		Subject: h.template.subject,
		Body: fmt.Sprintf("Hello %s,\n\n%s\n%s\n\nThe link expires at %s.\n",
			msg.Identifier, h.template.intro, link, msg.ExpiresAt.UTC().Format(time.RFC1123)),
	}
	if err := h.mailer.Send(ctx, mail); err != nil {
		h.logger.Warn(kind+" job: delivery failed",
			"principal_id", msg.PrincipalID.String(),
			"error", err.Error())
		return err
	}

	h.logger.Info(kind+" job: mail sent",
		"principal_id", msg.PrincipalID.String())
	return nil
}

func (h *VerificationHandler) link(token string) (string, error) {
	u, err := url.Parse(h.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid link url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Cleaner removes expired session state.
type Cleaner interface {
	Run(ctx context.Context, age time.Duration, dryRun bool) (service.CleanupReport, error)
}

type CleanupHandler struct {
	cleaner Cleaner
	logger  *logger.Logger
}

func NewCleanupHandler(cleaner Cleaner, logger *logger.Logger) *CleanupHandler {
	return &CleanupHandler{cleaner: cleaner, logger: logger}
}

func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload := CleanupPayload{Days: int(service.DefaultCleanupAge / (24 * time.Hour))}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}
	if payload.Days < 0 {
		return fmt.Errorf("%w: negative cleanup days", asynq.SkipRetry)
	}

	report, err := h.cleaner.Run(ctx, payload.Age(), payload.DryRun)
	if err != nil {
		h.logger.Error("Cleanup job: failed", "error", err.Error())
		return err
	}

	h.logger.Info("Cleanup job: completed",
		"refresh_families", report.RefreshFamilies,
		"verification_tokens", report.VerificationTokens,
		"dry_run", report.DryRun)
	return nil
}
