// Package access turns a request's credentials into an authorization
// context and serves tier scoped reads through it.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/tier"
)

// Verifier resolves an access token to a principal id without side effects.
type Verifier interface {
	Verify(accessToken string) (uuid.UUID, bool)
}

// Assembler composes the session layer, the tier engine and the per-store
// repositories for the business layer.
type Assembler struct {
	verifier   Verifier
	principals model.PrincipalStore
	profiles   model.ProfileStore
	tiers      model.TierStore
	engine     *tier.Engine
	stores     map[model.StoreName]model.ResourceStore
	policy     tier.Policy
	logger     *logger.Logger
}

// Config groups the Assembler dependencies.
type Config struct {
	Verifier   Verifier
	Principals model.PrincipalStore
	Profiles   model.ProfileStore
	Tiers      model.TierStore
	Engine     *tier.Engine
	Stores     map[model.StoreName]model.ResourceStore
	// Policy gates collection and item reads. Defaults to authenticated
	// principals that pass the tier policy.
	Policy tier.Policy
	Logger *logger.Logger
}

// NewAssembler checks that every resource the engine knows can be served by
// one of the given stores.
func NewAssembler(cfg Config) (*Assembler, error) {
	for _, entity := range cfg.Engine.Entities() {
		res, err := cfg.Engine.Resource(entity)
		if err != nil {
			return nil, err
		}
		store, err := cfg.Engine.Store(res)
		if err != nil {
			return nil, err
		}
		if _, ok := cfg.Stores[store]; !ok {
			return nil, model.NewConfigurationError("access", "no repository for store %q serving %q", store, entity)
		}
	}
	policy := cfg.Policy
	if policy == nil {
		policy = tier.AllOf(tier.AuthenticatedPolicy{}, tier.TierPolicy{Engine: cfg.Engine})
	}
	return &Assembler{
		verifier:   cfg.Verifier,
		principals: cfg.Principals,
		profiles:   cfg.Profiles,
		tiers:      cfg.Tiers,
		engine:     cfg.Engine,
		stores:     cfg.Stores,
		policy:     policy,
		logger:     cfg.Logger,
	}, nil
}

// Resolve builds the access principal for accessToken. Anything short of an
// active principal yields anonymous; a missing profile or tier yields no
// data access.
func (a *Assembler) Resolve(ctx context.Context, accessToken string) model.AccessPrincipal {
	id, ok := a.verifier.Verify(accessToken)
	if !ok {
		return model.Anonymous()
	}

	principal, err := a.principals.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.logger.Error("Access assembler: failed to get principal",
				"principal_id", id.String(),
				"error", err.Error())
		}
		return model.Anonymous()
	}
	if !principal.IsActive || principal.DeactivatedAt != nil {
		return model.Anonymous()
	}

	return model.AccessPrincipal{
		ID:            principal.ID,
		Authenticated: true,
		Superuser:     principal.IsSuperuser,
		TierLevel:     a.tierLevel(ctx, principal.ID),
	}
}

func (a *Assembler) tierLevel(ctx context.Context, principalID uuid.UUID) int {
	profile, err := a.profiles.GetByPrincipalID(ctx, principalID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.logger.Error("Access assembler: failed to get profile",
				"principal_id", principalID.String(),
				"error", err.Error())
		}
		return model.AnonymousTierLevel
	}
	if profile.TierID == nil {
		return model.AnonymousTierLevel
	}
	t, err := a.tiers.GetByID(ctx, *profile.TierID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.logger.Error("Access assembler: failed to get tier",
				"principal_id", principalID.String(),
				"tier_id", *profile.TierID,
				"error", err.Error())
		}
		return model.AnonymousTierLevel
	}
	return t.Level
}

// Collection returns the page of entity that principal may see.
func (a *Assembler) Collection(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType, page model.Page) (model.RecordPage, error) {
	page = page.Normalize()
	empty := model.RecordPage{Page: page.Number, Results: []model.Record{}}

	allowed, err := a.authorize(ctx, principal, entity)
	if err != nil {
		return model.RecordPage{}, err
	}
	if !allowed || !page.InRange() {
		return empty, nil
	}

	repo, query, err := a.query(principal, entity, page)
	if err != nil {
		return model.RecordPage{}, err
	}
	if query.Filter.Deny {
		return empty, nil
	}

	records, count, err := repo.List(ctx, query)
	if err != nil {
		return model.RecordPage{}, fmt.Errorf("failed to list %s: %w", entity, err)
	}
	if records == nil {
		records = []model.Record{}
	}
	return model.RecordPage{Count: count, Page: query.Page.Number, Results: records}, nil
}

// Item returns one record of entity. A record principal may not see is
// reported exactly like a missing one.
func (a *Assembler) Item(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType, id string) (model.Record, error) {
	allowed, err := a.authorize(ctx, principal, entity)
	if err != nil {
		return model.Record{}, err
	}
	if !allowed {
		return model.Record{}, model.ErrNotFound
	}

	repo, query, err := a.query(principal, entity, model.Page{})
	if err != nil {
		return model.Record{}, err
	}
	if query.Filter.Deny {
		return model.Record{}, model.ErrNotFound
	}

	record, err := repo.Get(ctx, query, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Record{}, model.ErrNotFound
		}
		return model.Record{}, fmt.Errorf("failed to get %s: %w", entity, err)
	}
	return record, nil
}

func (a *Assembler) authorize(ctx context.Context, principal model.AccessPrincipal, entity model.EntityType) (bool, error) {
	if !principal.Authenticated {
		return false, model.ErrUnauthenticated
	}
	res, err := a.engine.Resource(entity)
	if err != nil {
		return false, err
	}
	return a.policy.Authorize(ctx, principal, res)
}

func (a *Assembler) query(principal model.AccessPrincipal, entity model.EntityType, page model.Page) (model.ResourceStore, model.ResourceQuery, error) {
	store, query, err := a.engine.Query(principal, entity, page)
	if err != nil {
		return nil, model.ResourceQuery{}, err
	}
	repo, ok := a.stores[store]
	if !ok {
		return nil, model.ResourceQuery{}, model.NewConfigurationError("access", "no repository for store %q", store)
	}
	return repo, query, nil
}
