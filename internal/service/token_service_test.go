package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/observer-server/internal/mocks"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/testutil"
)

func refreshClaims(principalID, familyID uuid.UUID, jti string) model.RefreshClaims {
	now := time.Now()
	return model.RefreshClaims{
		PrincipalID: principalID,
		FamilyID:    familyID,
		JTI:         jti,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	principalID := uuid.New()

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("GenerateAccessToken", principalID).Return("access", nil).Once()
	manager.On("GenerateRefreshToken", principalID, mock.AnythingOfType("uuid.UUID")).
		Return("refresh", refreshClaims(principalID, uuid.New(), "jti-1"), nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(f model.RefreshFamily) bool {
		return f.PrincipalID == principalID && f.CurrentJTI == "jti-1" && equalBytes(f.CurrentHash, hashToken("refresh"))
	})).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	pair, err := svc.Issue(ctx, principalID)
	require.NoError(t, err)
	assert.Equal(t, "access", pair.AccessToken)
	assert.Equal(t, "refresh", pair.RefreshToken)
	store.AssertExpectations(t)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	ctx := context.Background()
	principalID := uuid.New()

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("GenerateAccessToken", principalID).Return("", assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Issue(ctx, principalID)
	require.Error(t, err)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTokenService_Rotate_Success(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh-old"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(refreshClaims(principalID, familyID, "jti-old"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  "jti-old",
		CurrentHash: hashToken(presented),
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil).Once()
	manager.On("GenerateRefreshToken", principalID, familyID).Return("refresh-new", refreshClaims(principalID, familyID, "jti-new"), nil).Once()
	store.On("Rotate", ctx, mock.MatchedBy(func(r model.Rotation) bool {
		return r.FamilyID == familyID && r.PresentedJTI == "jti-old" && r.NextJTI == "jti-new"
	})).Return(nil).Once()
	manager.On("GenerateAccessToken", principalID).Return("access-new", nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	pair, err := svc.Rotate(ctx, presented)
	require.NoError(t, err)
	assert.Equal(t, "access-new", pair.AccessToken)
	assert.Equal(t, "refresh-new", pair.RefreshToken)
	store.AssertExpectations(t)
}

func TestTokenService_Rotate_Revoked(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh"
	now := time.Now()

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(refreshClaims(principalID, familyID, "jti"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  "jti",
		CurrentHash: hashToken(presented),
		ExpiresAt:   now.Add(time.Hour),
		RevokedAt:   &now,
	}, nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenRevoked)
	require.ErrorIs(t, err, model.ErrAuthentication)
}

func TestTokenService_Rotate_Expired(t *testing.T) {
	ctx := context.Background()
	presented := "refresh"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(model.RefreshClaims{}, model.ErrTokenExpired).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenExpired)
	require.ErrorIs(t, err, model.ErrAuthentication)
	store.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestTokenService_Rotate_FamilyExpired(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(refreshClaims(principalID, familyID, "jti"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  "jti",
		CurrentHash: hashToken(presented),
		ExpiresAt:   time.Now().Add(-time.Minute),
	}, nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestTokenService_Rotate_Mismatch(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(refreshClaims(principalID, familyID, "jti"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  "jti",
		CurrentHash: hashToken("other"),
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenMismatch)
}

func TestTokenService_Rotate_UnknownFamily(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", "refresh").Return(refreshClaims(principalID, familyID, "jti"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{}, model.ErrNotFound).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, "refresh")
	require.ErrorIs(t, err, model.ErrAuthentication)
}

func TestTokenService_Rotate_ReplayRevokesFamily(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh-rotated-away"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(refreshClaims(principalID, familyID, "jti-old"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  "jti-newer",
		CurrentHash: hashToken("refresh-newer"),
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil).Once()
	store.On("Revoke", ctx, familyID).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, presented)
	require.ErrorIs(t, err, model.ErrReplayDetected)
	store.AssertExpectations(t)
	manager.AssertNotCalled(t, "GenerateAccessToken", mock.Anything)
}

func TestTokenService_Rotate_LostRaceRevokesFamily(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshToken", presented).Return(refreshClaims(principalID, familyID, "jti"), nil).Once()
	store.On("GetByID", ctx, familyID).Return(model.RefreshFamily{
		ID:          familyID,
		PrincipalID: principalID,
		CurrentJTI:  "jti",
		CurrentHash: hashToken(presented),
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil).Once()
	manager.On("GenerateRefreshToken", principalID, familyID).Return("refresh-new", refreshClaims(principalID, familyID, "jti-new"), nil).Once()
	store.On("Rotate", ctx, mock.Anything).Return(model.ErrRotationConflict).Once()
	store.On("Revoke", ctx, familyID).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	_, err := svc.Rotate(ctx, presented)
	require.ErrorIs(t, err, model.ErrReplayDetected)
	store.AssertExpectations(t)
	manager.AssertNotCalled(t, "GenerateAccessToken", mock.Anything)
}

func TestTokenService_RevokeByToken(t *testing.T) {
	ctx := context.Background()
	principalID, familyID := uuid.New(), uuid.New()
	presented := "refresh"

	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshTokenSignature", presented).Return(refreshClaims(principalID, familyID, "jti"), nil).Once()
	store.On("Revoke", ctx, familyID).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	require.NoError(t, svc.RevokeByToken(ctx, presented))
}

func TestTokenService_RevokeByToken_BadSignature(t *testing.T) {
	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	manager.On("ParseRefreshTokenSignature", "forged").Return(model.RefreshClaims{}, assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	require.ErrorIs(t, svc.RevokeByToken(context.Background(), "forged"), model.ErrAuthentication)
	store.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}

func TestTokenService_GetPrincipalID(t *testing.T) {
	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	u := uuid.New()
	manager.On("ParseAccessToken", "access").Return(u, nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	got, err := svc.GetPrincipalID("access")
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestTokenService_RevokeAllForPrincipal(t *testing.T) {
	ctx := context.Background()
	principalID := uuid.New()
	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	store.On("RevokeAllByPrincipal", ctx, principalID).Return(nil).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	require.NoError(t, svc.RevokeAllForPrincipal(ctx, principalID))
}

func TestTokenService_RevokeAllForPrincipal_Error(t *testing.T) {
	ctx := context.Background()
	principalID := uuid.New()
	manager := &servermocks.TokenManager{}
	store := &servermocks.RefreshFamilyStore{}

	store.On("RevokeAllByPrincipal", ctx, principalID).Return(assert.AnError).Once()

	svc := NewTokenService(manager, store, testutil.MakeNoopLogger())

	require.Error(t, svc.RevokeAllForPrincipal(ctx, principalID))
}
