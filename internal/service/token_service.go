package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService provides high-level operations for issuing, rotating and
// revoking tokens. It composes the TokenManager and the refresh family ledger.
type TokenService struct {
	manager model.TokenManager
	store   model.RefreshFamilyStore
	logger  *logger.Logger
	now     func() time.Time
}

func NewTokenService(manager model.TokenManager, store model.RefreshFamilyStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger, now: time.Now}
}

// Issue starts a new refresh family for principalID.
func (s *TokenService) Issue(ctx context.Context, principalID uuid.UUID) (TokenPair, error) {
	access, err := s.manager.GenerateAccessToken(principalID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	familyID := uuid.New()
	refresh, claims, err := s.manager.GenerateRefreshToken(principalID, familyID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := s.now()
	family := model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  claims.JTI,
		CurrentHash: hashToken(refresh),
		IssuedAt:    claims.IssuedAt,
		ExpiresAt:   claims.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, family); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh family: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: claims.ExpiresAt}, nil
}

// Rotate exchanges a current refresh token for a new pair. Presenting a token
// that was already rotated away revokes its whole family.
func (s *TokenService) Rotate(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := s.manager.ParseRefreshToken(presented)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", model.ErrAuthentication, err)
	}

	family, err := s.store.GetByID(ctx, claims.FamilyID)
	if errors.Is(err, model.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("%w: unknown refresh family", model.ErrAuthentication)
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("get refresh family: %w", err)
	}

	if err := validateFamily(family, claims, s.now()); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", model.ErrAuthentication, err)
	}

	if claims.JTI != family.CurrentJTI {
		return TokenPair{}, s.replayed(ctx, family.ID)
	}
	if !equalBytes(family.CurrentHash, hashToken(presented)) {
		return TokenPair{}, fmt.Errorf("%w: %w", model.ErrAuthentication, model.ErrTokenMismatch)
	}

	refresh, next, err := s.manager.GenerateRefreshToken(claims.PrincipalID, family.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue new refresh: %w", err)
	}

	err = s.store.Rotate(ctx, model.Rotation{
		FamilyID:     family.ID,
		PresentedJTI: claims.JTI,
		NextJTI:      next.JTI,
		NextHash:     hashToken(refresh),
		ExpiresAt:    next.ExpiresAt,
	})
	switch {
	case errors.Is(err, model.ErrRotationConflict):
		return TokenPair{}, s.replayed(ctx, family.ID)
	case errors.Is(err, model.ErrTokenRevoked), errors.Is(err, model.ErrNotFound):
		return TokenPair{}, fmt.Errorf("%w: %w", model.ErrAuthentication, model.ErrTokenRevoked)
	case err != nil:
		return TokenPair{}, fmt.Errorf("rotate refresh family: %w", err)
	}

	access, err := s.manager.GenerateAccessToken(claims.PrincipalID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue new access: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: next.ExpiresAt}, nil
}

func (s *TokenService) replayed(ctx context.Context, familyID uuid.UUID) error {
	s.logger.Warn("Token service: refresh token reuse, revoking family",
		"family_id", familyID.String())
	if err := s.store.Revoke(ctx, familyID); err != nil {
		s.logger.Error("Token service: failed to revoke family",
			"family_id", familyID.String(),
			"error", err.Error())
	}
	return model.ErrReplayDetected
}

// RevokeByToken revokes the family of a refresh token with a valid
// signature, expired or not.
func (s *TokenService) RevokeByToken(ctx context.Context, presented string) error {
	claims, err := s.manager.ParseRefreshTokenSignature(presented)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrAuthentication, err)
	}
	return s.store.Revoke(ctx, claims.FamilyID)
}

func (s *TokenService) RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) error {
	return s.store.RevokeAllByPrincipal(ctx, principalID)
}

// GetPrincipalID validates an access token without touching the ledger.
func (s *TokenService) GetPrincipalID(token string) (uuid.UUID, error) {
	return s.manager.ParseAccessToken(token)
}

func hashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateFamily(family model.RefreshFamily, claims model.RefreshClaims, now time.Time) error {
	if family.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if family.PrincipalID != claims.PrincipalID {
		return model.ErrTokenMismatch
	}
	if now.After(family.ExpiresAt) {
		return model.ErrTokenExpired
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
