// Package tier decides which protected rows a principal may see based on
// the numeric level of the principal's tier.
package tier

import (
	"fmt"
	"sort"

	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/router"
)

// Engine applies tier visibility rules to protected resources.
type Engine struct {
	router    *router.Router
	resources map[model.EntityType]Resource
}

// NewEngine registers resources with the engine. Any resource that the
// router cannot place, or whose parent lives in another store, is reported
// as a ConfigurationError.
func NewEngine(r *router.Router, resources ...Resource) (*Engine, error) {
	e := &Engine{
		router:    r,
		resources: make(map[model.EntityType]Resource, len(resources)),
	}
	for _, res := range resources {
		if err := res.validate(); err != nil {
			return nil, model.NewConfigurationError("tier", "resource %q: %v", res.Entity, err)
		}
		if _, err := e.Store(res); err != nil {
			return nil, err
		}
		if _, dup := e.resources[res.Entity]; dup {
			return nil, model.NewConfigurationError("tier", "resource %q registered twice", res.Entity)
		}
		e.resources[res.Entity] = res
	}
	return e, nil
}

// Resource returns the registered resource for entity. Entities that are
// not tier protected are reported as not found.
func (e *Engine) Resource(entity model.EntityType) (Resource, error) {
	res, ok := e.resources[entity]
	if !ok {
		return Resource{}, fmt.Errorf("resource %q: %w", entity, model.ErrNotFound)
	}
	return res, nil
}

// Entities lists registered resources in stable order.
func (e *Engine) Entities() []model.EntityType {
	out := make([]model.EntityType, 0, len(e.resources))
	for entity := range e.resources {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Store names the store that must serve queries for res, checking that a
// derived parent shares it.
func (e *Engine) Store(res Resource) (model.StoreName, error) {
	store, err := e.router.ResolveStore(res.Entity)
	if err != nil {
		return "", err
	}
	if res.Mode != Derived || res.Parent == nil {
		return store, nil
	}
	if err := e.router.CheckCrossReference(res.Entity, res.Parent.Entity); err != nil {
		return "", err
	}
	parentStore, err := e.router.ResolveStore(res.Parent.Entity)
	if err != nil {
		return "", err
	}
	if parentStore != store {
		return "", model.NewConfigurationError("tier",
			"resource %q derives visibility from %q in store %q", res.Entity, res.Parent.Entity, parentStore)
	}
	return store, nil
}

// Query builds the authorized read for a page of entity.
func (e *Engine) Query(principal model.AccessPrincipal, entity model.EntityType, page model.Page) (model.StoreName, model.ResourceQuery, error) {
	res, err := e.Resource(entity)
	if err != nil {
		return "", model.ResourceQuery{}, err
	}
	store, err := e.Store(res)
	if err != nil {
		return "", model.ResourceQuery{}, err
	}
	filter, err := e.Scope(principal, res)
	if err != nil {
		return "", model.ResourceQuery{}, err
	}
	return store, model.ResourceQuery{
		Table:     res.Table,
		KeyColumn: res.KeyColumn,
		Filter:    filter,
		Page:      page.Normalize(),
	}, nil
}

// visibleLevel returns the highest tier level principal may see and whether
// filtering applies at all.
func visibleLevel(principal model.AccessPrincipal) (level int, unrestricted bool, none bool) {
	switch {
	case principal.Authenticated && principal.Superuser:
		return 0, true, false
	case !principal.HasTier():
		return model.AnonymousTierLevel, false, true
	default:
		return principal.TierLevel, false, false
	}
}
