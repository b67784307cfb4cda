package tier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/router"
)

type encounter struct {
	ID    string
	Level int
}

type attachment struct {
	ID          string
	EncounterID string
}

type provider struct {
	ID         string
	Encounters []string
}

func principalAt(level int) model.AccessPrincipal {
	return model.AccessPrincipal{ID: uuid.New(), Authenticated: true, TierLevel: level}
}

func superuser() model.AccessPrincipal {
	return model.AccessPrincipal{ID: uuid.New(), Authenticated: true, Superuser: true}
}

var encounterSelector = DirectSelector[encounter]{
	KeyOf:   func(e encounter) string { return e.ID },
	LevelOf: func(e encounter) int { return e.Level },
}

func sampleEncounters() []encounter {
	return []encounter{{"e1", 1}, {"e2", 2}, {"e3", 3}, {"e4", 4}, {"e5", 5}, {"e3b", 3}}
}

func ids(items []encounter) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	r, err := router.New(router.DefaultCatalog())
	require.NoError(t, err)
	e, err := NewEngine(r, DefaultResources()...)
	require.NoError(t, err)
	return e
}

func TestFilter_Direct(t *testing.T) {
	items := sampleEncounters()

	tests := []struct {
		name      string
		principal model.AccessPrincipal
		want      []string
	}{
		{"anonymous", model.Anonymous(), []string{}},
		{"no tier", principalAt(0), []string{}},
		{"tier 1", principalAt(1), []string{"e1"}},
		{"tier 3 inclusive", principalAt(3), []string{"e1", "e2", "e3", "e3b"}},
		{"tier 5", principalAt(5), []string{"e1", "e2", "e3", "e4", "e5", "e3b"}},
		{"superuser", superuser(), []string{"e1", "e2", "e3", "e4", "e5", "e3b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(items, tt.principal, encounterSelector)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilter_MonotonicInTier(t *testing.T) {
	items := sampleEncounters()
	for low := 1; low <= 5; low++ {
		for high := low; high <= 5; high++ {
			lowSet := Filter(items, principalAt(low), encounterSelector)
			highSet := Filter(items, principalAt(high), encounterSelector)
			assert.Subset(t, ids(highSet), ids(lowSet), "tier %d within tier %d", low, high)
			for _, item := range highSet {
				assert.LessOrEqual(t, item.Level, high)
			}
		}
	}
}

func TestFilter_SuperuserSeesEverything(t *testing.T) {
	for _, items := range [][]encounter{
		sampleEncounters(),
		{{"x", 99}, {"y", -1}},
		{},
	} {
		assert.Equal(t, items, Filter(items, superuser(), encounterSelector))
	}
}

func TestFilter_DerivedDeduplicates(t *testing.T) {
	encounters := sampleEncounters()
	providers := []provider{
		{ID: "p1", Encounters: []string{"e1", "e2", "e3"}},
		{ID: "p2", Encounters: []string{"e5"}},
		{ID: "p1", Encounters: []string{"e1", "e2", "e3"}},
		{ID: "p3", Encounters: nil},
	}
	sel := DerivedSelector[provider, encounter]{
		Parents:     encounters,
		ParentKey:   func(e encounter) string { return e.ID },
		ParentLevel: func(e encounter) int { return e.Level },
		KeyOf:       func(p provider) string { return p.ID },
		Links:       func(p provider) []string { return p.Encounters },
	}

	got := Filter(providers, principalAt(2), sel)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	got = Filter(providers, principalAt(5), sel)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[1].ID)

	assert.Empty(t, Filter(providers, principalAt(0), sel))
}

func TestAuthorizeObject(t *testing.T) {
	tier3 := encounter{ID: "e3", Level: 3}

	assert.False(t, AuthorizeObject(principalAt(1), tier3, encounterSelector))
	assert.True(t, AuthorizeObject(principalAt(3), tier3, encounterSelector))
	assert.True(t, AuthorizeObject(principalAt(4), tier3, encounterSelector))
	assert.True(t, AuthorizeObject(superuser(), tier3, encounterSelector))
	assert.False(t, AuthorizeObject(model.Anonymous(), tier3, encounterSelector))

	files := DerivedSelector[attachment, encounter]{
		Parents:     []encounter{tier3},
		ParentKey:   func(e encounter) string { return e.ID },
		ParentLevel: func(e encounter) int { return e.Level },
		KeyOf:       func(a attachment) string { return a.ID },
		Links:       func(a attachment) []string { return []string{a.EncounterID} },
	}
	file := attachment{ID: "f1", EncounterID: "e3"}
	assert.False(t, AuthorizeObject(principalAt(2), file, files))
	assert.True(t, AuthorizeObject(principalAt(3), file, files))
}

func TestScope_Direct(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Resource(router.EntityEncounter)
	require.NoError(t, err)

	pred, err := e.Scope(principalAt(3), res)
	require.NoError(t, err)
	assert.Equal(t, `"encounter"."tier_level" <= $1`, pred.Clause)
	assert.Equal(t, []any{3}, pred.Args)
	assert.False(t, pred.Deny)

	pred, err = e.Scope(superuser(), res)
	require.NoError(t, err)
	assert.Equal(t, model.Predicate{}, pred)

	pred, err = e.Scope(model.Anonymous(), res)
	require.NoError(t, err)
	assert.True(t, pred.Deny)

	pred, err = e.Scope(principalAt(0), res)
	require.NoError(t, err)
	assert.True(t, pred.Deny)
}

func TestScope_Derived(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		entity model.EntityType
		want   string
	}{
		{
			router.EntityEncounterFile,
			`"encounter_file"."encounter_id" IN (SELECT "encounter"."id" FROM "encounter" WHERE "encounter"."tier_level" <= $1)`,
		},
		{
			router.EntityProvider,
			`"provider"."id" IN (SELECT "encounter"."provider_id" FROM "encounter" WHERE "encounter"."tier_level" <= $1)`,
		},
		{
			router.EntityMultiModalData,
			`"multimodal_data"."id" IN (SELECT "encounter_multimodal_data"."multimodal_data_id" FROM "encounter_multimodal_data" WHERE "encounter_multimodal_data"."encounter_id" IN (SELECT "encounter"."id" FROM "encounter" WHERE "encounter"."tier_level" <= $1))`,
		},
		{
			router.EntityNote,
			`"note"."visit_occurrence_id" IN (SELECT "visit_occurrence"."id" FROM "visit_occurrence" WHERE "visit_occurrence"."tier_level" <= $1)`,
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.entity), func(t *testing.T) {
			res, err := e.Resource(tt.entity)
			require.NoError(t, err)
			pred, err := e.Scope(principalAt(2), res)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred.Clause)
			assert.Equal(t, []any{2}, pred.Args)
		})
	}
}

func TestScope_CrossStoreParentIsConfigurationError(t *testing.T) {
	e := newTestEngine(t)
	res := childOf(router.EntityNote, router.EntityEncounter, "encounter_id")

	_, err := e.Scope(principalAt(5), res)
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))

	_, err = e.Scope(superuser(), res)
	assert.True(t, model.IsConfigurationError(err), "veto applies before any data is returned")
}

func TestScope_WhitelistedButCrossStoreParent(t *testing.T) {
	e := newTestEngine(t)
	res := childOf(router.EntityEncounter, router.EntityTier, "tier_id")

	_, err := e.Scope(principalAt(5), res)
	assert.True(t, model.IsConfigurationError(err))
}

func TestNewEngine_Invalid(t *testing.T) {
	r, err := router.New(router.DefaultCatalog())
	require.NoError(t, err)

	tests := []struct {
		name string
		res  Resource
	}{
		{"unregistered entity", direct("invoice")},
		{"bad identifier", Resource{Entity: router.EntityEncounter, Table: "encounter; drop", KeyColumn: "id", LevelColumn: "tier_level"}},
		{"derived without parent", Resource{Entity: router.EntityNote, Table: "note", KeyColumn: "id", Mode: Derived}},
		{"parent in other store", childOf(router.EntityNote, router.EntityEncounter, "encounter_id")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(r, tt.res)
			require.Error(t, err)
			assert.True(t, model.IsConfigurationError(err))
		})
	}

	_, err = NewEngine(r, direct(router.EntityEncounter), direct(router.EntityEncounter))
	assert.True(t, model.IsConfigurationError(err))
}

func TestEngine_Query(t *testing.T) {
	e := newTestEngine(t)

	store, q, err := e.Query(principalAt(2), router.EntityVisitOccurrence, model.Page{Number: 0, Size: 10000})
	require.NoError(t, err)
	assert.Equal(t, model.StoreResearch, store)
	assert.Equal(t, "visit_occurrence", q.Table)
	assert.Equal(t, "id", q.KeyColumn)
	assert.Equal(t, model.Page{Number: 1, Size: model.MaxPageSize}, q.Page)
	assert.Equal(t, []any{2}, q.Filter.Args)

	_, _, err = e.Query(principalAt(2), router.EntityPrincipal, model.Page{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEngine_Entities(t *testing.T) {
	e := newTestEngine(t)
	entities := e.Entities()
	assert.Len(t, entities, len(DefaultResources()))
	assert.Contains(t, entities, router.EntityEncounter)
	assert.NotContains(t, entities, router.EntityPrincipal)
}

func TestPolicies(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	res, err := e.Resource(router.EntityEncounter)
	require.NoError(t, err)

	endpoint := AllOf(AuthenticatedPolicy{}, TierPolicy{Engine: e})

	tests := []struct {
		name      string
		policy    Policy
		principal model.AccessPrincipal
		want      bool
	}{
		{"authenticated anonymous", AuthenticatedPolicy{}, model.Anonymous(), false},
		{"authenticated tiered", AuthenticatedPolicy{}, principalAt(1), true},
		{"superuser policy rejects tiered", SuperuserPolicy{}, principalAt(5), false},
		{"superuser policy", SuperuserPolicy{}, superuser(), true},
		{"tier policy without tier", TierPolicy{Engine: e}, principalAt(0), false},
		{"endpoint tiered", endpoint, principalAt(1), true},
		{"endpoint superuser", endpoint, superuser(), true},
		{"endpoint anonymous", endpoint, model.Anonymous(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.policy.Authorize(ctx, tt.principal, res)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAllOf_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	policy := AllOf(
		PolicyFunc(func(context.Context, model.AccessPrincipal, Resource) (bool, error) {
			return false, boom
		}),
		PolicyFunc(func(context.Context, model.AccessPrincipal, Resource) (bool, error) {
			called = true
			return true, nil
		}),
	)

	ok, err := policy.Authorize(context.Background(), superuser(), Resource{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "direct", Direct.String())
	assert.Equal(t, "derived", Derived.String())
	assert.Equal(t, fmt.Sprintf("mode(%d)", 7), Mode(7).String())
}
