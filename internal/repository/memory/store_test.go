package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/observer-server/internal/model"
)

func TestRefreshFamilyRepository_RotateCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().RefreshFamilies()
	family := model.RefreshFamily{ID: uuid.New(), PrincipalID: uuid.New(), CurrentJTI: "a", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, family))

	require.NoError(t, repo.Rotate(ctx, model.Rotation{FamilyID: family.ID, PresentedJTI: "a", NextJTI: "b", ExpiresAt: family.ExpiresAt}))
	assert.ErrorIs(t, repo.Rotate(ctx, model.Rotation{FamilyID: family.ID, PresentedJTI: "a", NextJTI: "c"}), model.ErrRotationConflict)

	require.NoError(t, repo.Revoke(ctx, family.ID))
	assert.ErrorIs(t, repo.Rotate(ctx, model.Rotation{FamilyID: family.ID, PresentedJTI: "b", NextJTI: "d"}), model.ErrTokenRevoked)

	got, err := repo.GetByID(ctx, family.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.CurrentJTI)
	assert.NotNil(t, got.RevokedAt)
}

func TestRefreshFamilyRepository_Expired(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().RefreshFamilies()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, model.RefreshFamily{ID: uuid.New(), ExpiresAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Create(ctx, model.RefreshFamily{ID: uuid.New(), ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.CountExpired(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteExpired(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRegistrationRepository_Complete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Registrations()
	now := time.Now()

	created, err := repo.CreatePending(ctx,
		model.Principal{Identifier: "Alice", Email: "alice@example.com", IsActive: true},
		model.VerificationToken{TokenHash: []byte("hash"), ExpiresAt: now.Add(time.Hour)},
	)
	require.NoError(t, err)
	assert.False(t, created.IsActive)

	_, err = repo.CreatePending(ctx, model.Principal{Identifier: "alice"}, model.VerificationToken{TokenHash: []byte("other")})
	assert.ErrorIs(t, err, model.ErrAlreadyRegistered)

	_, err = repo.Complete(ctx, []byte("unknown"), []byte("cred"), now)
	assert.ErrorIs(t, err, model.ErrVerificationInvalid)

	_, err = repo.Complete(ctx, []byte("hash"), []byte("cred"), now.Add(2*time.Hour))
	assert.ErrorIs(t, err, model.ErrVerificationExpired)

	activated, err := repo.Complete(ctx, []byte("hash"), []byte("cred"), now)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Equal(t, []byte("cred"), activated.CredentialHash)

	_, err = repo.Complete(ctx, []byte("hash"), []byte("cred"), now)
	assert.ErrorIs(t, err, model.ErrVerificationConsumed)

	p, err := store.Principals().GetByIdentifier(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, p.CanAuthenticate())
}

func TestProfileRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Profiles()
	principalID := uuid.New()

	created, err := repo.CreateIfAbsent(ctx, model.Profile{PrincipalID: principalID})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, model.Profile{PrincipalID: principalID})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPasswordResetRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now()

	pending, err := store.Registrations().CreatePending(ctx,
		model.Principal{Identifier: "bob", Email: "bob@example.com"},
		model.VerificationToken{TokenHash: []byte("activation"), ExpiresAt: now.Add(time.Hour)},
	)
	require.NoError(t, err)

	resets := store.PasswordResets()
	_, err = resets.CreateReset(ctx, "bob@example.com", model.VerificationToken{TokenHash: []byte("reset"), ExpiresAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, model.ErrNotFound, "inactive principals get no reset token")

	_, err = resets.CompleteReset(ctx, []byte("activation"), []byte("new"), now)
	assert.ErrorIs(t, err, model.ErrVerificationInvalid, "activation tokens do not reset passwords")

	_, err = store.Registrations().Complete(ctx, []byte("activation"), []byte("old"), now)
	require.NoError(t, err)

	_, err = resets.CreateReset(ctx, "nobody@example.com", model.VerificationToken{TokenHash: []byte("x")})
	assert.ErrorIs(t, err, model.ErrNotFound)

	owner, err := resets.CreateReset(ctx, "BOB@example.com", model.VerificationToken{TokenHash: []byte("reset"), ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, pending.ID, owner.ID)

	_, err = store.Registrations().Complete(ctx, []byte("reset"), []byte("other"), now)
	assert.ErrorIs(t, err, model.ErrVerificationInvalid, "reset tokens do not activate")

	_, err = resets.CompleteReset(ctx, []byte("reset"), []byte("new"), now.Add(2*time.Hour))
	assert.ErrorIs(t, err, model.ErrVerificationExpired)

	updated, err := resets.CompleteReset(ctx, []byte("reset"), []byte("new"), now)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), updated.CredentialHash)

	_, err = resets.CompleteReset(ctx, []byte("reset"), []byte("again"), now)
	assert.ErrorIs(t, err, model.ErrVerificationConsumed)
}

func TestPrincipalRepository_UpdateCredential(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Principals()

	active, err := repo.Create(ctx, model.Principal{Identifier: "carol", IsActive: true, CredentialHash: []byte("old")})
	require.NoError(t, err)
	inactive, err := repo.Create(ctx, model.Principal{Identifier: "dave"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateCredential(ctx, active.ID, []byte("new"), time.Now()))
	got, err := repo.GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got.CredentialHash)

	assert.ErrorIs(t, repo.UpdateCredential(ctx, inactive.ID, []byte("new"), time.Now()), model.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateCredential(ctx, uuid.New(), []byte("new"), time.Now()), model.ErrNotFound)
}
