//go:build integration

package postgres_test

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/observer-server/database"
	"github.com/dtroode/observer-server/internal/model"
	repo "github.com/dtroode/observer-server/internal/repository/postgres"
	"github.com/dtroode/observer-server/internal/router"
	"github.com/dtroode/observer-server/internal/tier"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "observer_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/observer_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// connect migrates every store's modules into the one test database.
func connect(t *testing.T) *repo.Connection {
	t.Helper()
	ctx := context.Background()

	conn, err := repo.NewConnection(ctx, model.StoreIdentity, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	r, err := router.New(router.DefaultCatalog())
	require.NoError(t, err)

	db := conn.DB()
	t.Cleanup(func() { _ = db.Close() })
	for _, store := range []model.StoreName{model.StoreIdentity, model.StoreClinical, model.StoreResearch} {
		_, err := database.Migrate(ctx, db, store, r)
		require.NoError(t, err)
	}
	return conn
}

func hash(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func TestRepositories_Identity(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)

	principals := repo.NewPrincipalRepository(conn)
	tiers := repo.NewTierRepository(conn)
	profiles := repo.NewProfileRepository(conn)

	t.Run("principal_repository", func(t *testing.T) {
		p := model.Principal{
			Identifier:     "Alice",
			Email:          "alice@example.com",
			CredentialHash: []byte("hash"),
			IsActive:       true,
		}
		saved, err := principals.Create(ctx, p)
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, saved.ID)

		byIdentifier, err := principals.GetByIdentifier(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, saved.ID, byIdentifier.ID)

		_, err = principals.Create(ctx, model.Principal{Identifier: "ALICE"})
		require.ErrorIs(t, err, model.ErrAlreadyRegistered)

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, principals.TouchLastLogin(ctx, saved.ID, at))
		byID, err := principals.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, byID.LastLoginAt)
		assert.True(t, at.Equal(*byID.LastLoginAt))

		_, err = principals.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("tier_and_profile_repository", func(t *testing.T) {
		list, err := tiers.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 5)

		t1, err := tiers.GetByLevel(ctx, 1)
		require.NoError(t, err)

		p, err := principals.Create(ctx, model.Principal{Identifier: "bob", IsActive: true})
		require.NoError(t, err)

		created, err := profiles.CreateIfAbsent(ctx, model.Profile{PrincipalID: p.ID, TierID: &t1.ID})
		require.NoError(t, err)
		require.True(t, created)

		created, err = profiles.CreateIfAbsent(ctx, model.Profile{PrincipalID: p.ID})
		require.NoError(t, err)
		require.False(t, created)

		profile, err := profiles.GetByPrincipalID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, profile.TierID)
		assert.Equal(t, t1.ID, *profile.TierID)
	})
}

func TestRefreshFamilyRepository_Rotate(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)

	principal, err := repo.NewPrincipalRepository(conn).Create(ctx, model.Principal{Identifier: "carol", IsActive: true})
	require.NoError(t, err)

	families := repo.NewRefreshFamilyRepository(conn)
	family := model.RefreshFamily{
		ID:          uuid.New(),
		PrincipalID: principal.ID,
		CurrentJTI:  "jti-1",
		CurrentHash: hash("jti-1"),
		IssuedAt:    time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, families.Create(ctx, family))

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := families.Rotate(ctx, model.Rotation{
				FamilyID:     family.ID,
				PresentedJTI: "jti-1",
				NextJTI:      fmt.Sprintf("jti-2-%d", i),
				NextHash:     hash("next"),
				ExpiresAt:    time.Now().Add(time.Hour),
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case model.ErrRotationConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)

	require.NoError(t, families.Revoke(ctx, family.ID))
	err = families.Rotate(ctx, model.Rotation{FamilyID: family.ID, PresentedJTI: "whatever"})
	require.ErrorIs(t, err, model.ErrTokenRevoked)

	n, err := families.CountExpired(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestRegistrationRepository_Complete(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)

	registrations := repo.NewRegistrationRepository(conn)
	tokenHash := hash("verification-token")

	pending, err := registrations.CreatePending(ctx,
		model.Principal{Identifier: "dave", Email: "dave@example.com"},
		model.VerificationToken{TokenHash: tokenHash, ExpiresAt: time.Now().Add(time.Hour)},
	)
	require.NoError(t, err)
	require.False(t, pending.IsActive)

	_, err = registrations.Complete(ctx, hash("unknown"), []byte("cred"), time.Now())
	require.ErrorIs(t, err, model.ErrVerificationInvalid)

	activated, err := registrations.Complete(ctx, tokenHash, []byte("cred"), time.Now())
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Equal(t, []byte("cred"), activated.CredentialHash)

	_, err = registrations.Complete(ctx, tokenHash, []byte("other"), time.Now())
	require.ErrorIs(t, err, model.ErrVerificationConsumed)

	_, err = registrations.CreatePending(ctx,
		model.Principal{Identifier: "DAVE"},
		model.VerificationToken{TokenHash: hash("second"), ExpiresAt: time.Now().Add(time.Hour)},
	)
	require.ErrorIs(t, err, model.ErrAlreadyRegistered)
}

func TestPasswordResetRepository_CompleteReset(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)

	principals := repo.NewPrincipalRepository(conn)
	resets := repo.NewPasswordResetRepository(conn)

	owner, err := principals.Create(ctx, model.Principal{
		Identifier:     "erin",
		Email:          "erin@example.com",
		CredentialHash: []byte("old"),
		IsActive:       true,
	})
	require.NoError(t, err)

	_, err = resets.CreateReset(ctx, "nobody@example.com",
		model.VerificationToken{TokenHash: hash("missing"), ExpiresAt: time.Now().Add(time.Hour)})
	require.ErrorIs(t, err, model.ErrNotFound)

	tokenHash := hash("reset-token")
	got, err := resets.CreateReset(ctx, "ERIN@example.com",
		model.VerificationToken{TokenHash: tokenHash, ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, owner.ID, got.ID)

	_, err = repo.NewRegistrationRepository(conn).Complete(ctx, tokenHash, []byte("x"), time.Now())
	require.ErrorIs(t, err, model.ErrVerificationInvalid)

	updated, err := resets.CompleteReset(ctx, tokenHash, []byte("new"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), updated.CredentialHash)

	_, err = resets.CompleteReset(ctx, tokenHash, []byte("again"), time.Now())
	require.ErrorIs(t, err, model.ErrVerificationConsumed)

	require.NoError(t, principals.UpdateCredential(ctx, owner.ID, []byte("changed"), time.Now()))
	reloaded, err := principals.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("changed"), reloaded.CredentialHash)
}

func TestResourceRepository_TierScope(t *testing.T) {
	ctx := context.Background()
	conn := connect(t)

	_, err := conn.Exec(ctx, `
		INSERT INTO patient (id, mrn) VALUES ('00000000-0000-0000-0000-0000000000a1', 'MRN-1');
		INSERT INTO encounter (id, patient_id, tier_level, started_at) VALUES
			('00000000-0000-0000-0000-0000000000e1', '00000000-0000-0000-0000-0000000000a1', 1, NOW()),
			('00000000-0000-0000-0000-0000000000e3', '00000000-0000-0000-0000-0000000000a1', 3, NOW());
		INSERT INTO encounter_file (id, encounter_id, file_name) VALUES
			('00000000-0000-0000-0000-0000000000f1', '00000000-0000-0000-0000-0000000000e1', 'a.pdf'),
			('00000000-0000-0000-0000-0000000000f3', '00000000-0000-0000-0000-0000000000e3', 'b.pdf');`)
	require.NoError(t, err)

	r, err := router.New(router.DefaultCatalog())
	require.NoError(t, err)
	engine, err := tier.NewEngine(r, tier.DefaultResources()...)
	require.NoError(t, err)
	resources := repo.NewResourceRepository(conn)

	tier1 := model.AccessPrincipal{ID: uuid.New(), Authenticated: true, TierLevel: 1}

	_, q, err := engine.Query(tier1, router.EntityEncounterFile, model.Page{})
	require.NoError(t, err)
	records, total, err := resources.List(ctx, q)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000f1", records[0].ID)

	var row map[string]any
	require.NoError(t, json.Unmarshal(records[0].Data, &row))
	assert.Equal(t, "a.pdf", row["file_name"])

	_, err = resources.Get(ctx, q, "00000000-0000-0000-0000-0000000000f3")
	require.ErrorIs(t, err, model.ErrNotFound)

	_, q, err = engine.Query(tier1, router.EntityPatient, model.Page{})
	require.NoError(t, err)
	_, total, err = resources.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	anonymous := model.Anonymous()
	_, q, err = engine.Query(anonymous, router.EntityEncounter, model.Page{})
	require.NoError(t, err)
	records, total, err = resources.List(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)
}
