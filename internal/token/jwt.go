package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/model"
)

// Claims represents JWT claims with token type, principal and family.
type Claims struct {
	jwt.RegisteredClaims
	PrincipalID uuid.UUID `json:"user_id"`
	TokenType   string    `json:"typ"`
	FamilyID    uuid.UUID `json:"fam,omitempty"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// NewJWT creates a new JWT token manager. Zero TTLs fall back to defaults.
func NewJWT(secretKey string, accessTTL, refreshTTL time.Duration) model.TokenManager {
	return newJWT(secretKey, accessTTL, refreshTTL, time.Now)
}

func newJWT(secretKey string, accessTTL, refreshTTL time.Duration, now func() time.Time) *JWT {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &JWT{secretKey: secretKey, accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}
}

// GenerateAccessToken creates a short-lived access token.
func (j *JWT) GenerateAccessToken(principalID uuid.UUID) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
		},
		PrincipalID: principalID,
		TokenType:   typeAccess,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshToken creates a refresh token bound to a family and returns
// its claims.
func (j *JWT) GenerateRefreshToken(principalID, familyID uuid.UUID) (string, model.RefreshClaims, error) {
	now := j.now()
	claims := model.RefreshClaims{
		PrincipalID: principalID,
		FamilyID:    familyID,
		JTI:         uuid.NewString(),
		IssuedAt:    now,
		ExpiresAt:   now.Add(j.refreshTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.JTI,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		PrincipalID: principalID,
		TokenType:   typeRefresh,
		FamilyID:    familyID,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", model.RefreshClaims{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	// Numeric dates carry second precision.
	claims.IssuedAt = claims.IssuedAt.Truncate(time.Second)
	claims.ExpiresAt = claims.ExpiresAt.Truncate(time.Second)

	return tokenString, claims, nil
}

// ParseAccessToken validates and extracts the principal ID from an access token.
func (j *JWT) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	claims, err := j.parse(tokenString, typeAccess)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	return claims.PrincipalID, nil
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (j *JWT) ParseRefreshToken(tokenString string) (model.RefreshClaims, error) {
	claims, err := j.parse(tokenString, typeRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.RefreshClaims{}, fmt.Errorf("failed to parse refresh token: %w", model.ErrTokenExpired)
		}
		return model.RefreshClaims{}, fmt.Errorf("failed to parse refresh token: %w", err)
	}
	return refreshClaims(claims)
}

// ParseRefreshTokenSignature validates signature and type of a refresh
// token, ignoring its expiry.
func (j *JWT) ParseRefreshTokenSignature(tokenString string) (model.RefreshClaims, error) {
	claims, err := j.parse(tokenString, typeRefresh, jwt.WithoutClaimsValidation())
	if err != nil {
		return model.RefreshClaims{}, fmt.Errorf("failed to parse refresh token: %w", err)
	}
	return refreshClaims(claims)
}

func (j *JWT) parse(tokenString, tokenType string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.PrincipalID == uuid.Nil {
		return nil, fmt.Errorf("token has no principal")
	}
	return claims, nil
}

func refreshClaims(claims *Claims) (model.RefreshClaims, error) {
	if claims.ID == "" || claims.FamilyID == uuid.Nil {
		return model.RefreshClaims{}, fmt.Errorf("refresh token is missing jti or family")
	}
	out := model.RefreshClaims{
		PrincipalID: claims.PrincipalID,
		FamilyID:    claims.FamilyID,
		JTI:         claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
