package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// LoginResult is what a successful login hands back to the transport.
// Tokens never reach a response body.
type LoginResult struct {
	Principal model.PrincipalSummary
	Tokens    TokenPair
}

// Session authenticates principals and manages their token lifecycle.
type Session struct {
	principals  model.PrincipalStore
	limiter     model.AttemptLimiter
	credentials *Credentials
	tokens      *TokenService
	logger      *logger.Logger
	now         func() time.Time
}

func NewSession(
	principals model.PrincipalStore,
	limiter model.AttemptLimiter,
	credentials *Credentials,
	tokens *TokenService,
	logger *logger.Logger,
) *Session {
	return &Session{
		principals:  principals,
		limiter:     limiter,
		credentials: credentials,
		tokens:      tokens,
		logger:      logger,
		now:         time.Now,
	}
}

// Login checks the attempt limit, then the credentials, and opens a new
// refresh family. Every failure except rate limiting looks the same.
func (s *Session) Login(ctx context.Context, identifier, secret, origin string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	s.logger.Debug("Session service: login attempt",
		"identifier", identifier,
		"origin", origin)

	allowed, err := s.limiter.Allow(ctx,
		"login:identifier:"+strings.ToLower(identifier),
		"login:origin:"+origin,
	)
	if err != nil {
		s.logger.Error("Session service: attempt limiter unavailable",
			"identifier", identifier,
			"error", err.Error())
		return LoginResult{}, model.ErrRateLimited
	}
	if !allowed {
		s.logger.Info("Session service: login rate limited",
			"identifier", identifier,
			"origin", origin)
		return LoginResult{}, model.ErrRateLimited
	}

	principal, err := s.principals.GetByIdentifier(ctx, identifier)
	if errors.Is(err, model.ErrNotFound) {
		s.credentials.CompareDummy(secret)
		s.logger.Info("Session service: login failed",
			"identifier", identifier)
		return LoginResult{}, model.ErrAuthentication
	}
	if err != nil {
		s.logger.Error("Session service: failed to get principal",
			"identifier", identifier,
			"error", err.Error())
		return LoginResult{}, fmt.Errorf("failed to get principal: %w", err)
	}

	var matched bool
	if len(principal.CredentialHash) > 0 {
		matched = s.credentials.Compare(principal.CredentialHash, secret)
	} else {
		s.credentials.CompareDummy(secret)
	}
	if !matched || !principal.CanAuthenticate() {
		s.logger.Info("Session service: login failed",
			"identifier", identifier)
		return LoginResult{}, model.ErrAuthentication
	}

	tokens, err := s.tokens.Issue(ctx, principal.ID)
	if err != nil {
		s.logger.Error("Session service: failed to issue tokens",
			"principal_id", principal.ID.String(),
			"error", err.Error())
		return LoginResult{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	if err := s.principals.TouchLastLogin(ctx, principal.ID, s.now()); err != nil {
		s.logger.Warn("Session service: failed to record last login",
			"principal_id", principal.ID.String(),
			"error", err.Error())
	}

	s.logger.Info("Session service: login succeeded",
		"principal_id", principal.ID.String())

	return LoginResult{Principal: principal.Summary(), Tokens: tokens}, nil
}

// Refresh rotates the presented refresh token.
func (s *Session) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, model.ErrAuthentication
	}
	pair, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		s.logger.Info("Session service: refresh rejected",
			"error", err.Error())
		return TokenPair{}, err
	}
	return pair, nil
}

// Verify returns the principal of a valid access token. It never consults
// the ledger; any problem yields false.
func (s *Session) Verify(accessToken string) (uuid.UUID, bool) {
	if accessToken == "" {
		return uuid.Nil, false
	}
	id, err := s.tokens.GetPrincipalID(accessToken)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Logout revokes the family of refreshToken when its signature is valid.
// The outcome is never reported to the caller.
func (s *Session) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.tokens.RevokeByToken(ctx, refreshToken); err != nil {
		s.logger.Info("Session service: logout without revocation",
			"error", err.Error())
	}
}
