package router

import (
	"sort"

	"github.com/dtroode/observer-server/internal/model"
)

// Router decides which store an entity type lives in and which cross-store
// interactions are allowed.
type Router struct {
	catalog *Catalog
}

// New builds a Router over catalog. Every entity in required must be
// registered, otherwise a ConfigurationError is returned and the process
// is expected to abort.
func New(catalog *Catalog, required ...model.EntityType) (*Router, error) {
	if catalog == nil {
		return nil, model.NewConfigurationError("router", "catalog is nil")
	}
	for _, entity := range required {
		if _, ok := catalog.entities[entity]; !ok {
			return nil, model.NewConfigurationError("router", "entity %q has no store", entity)
		}
	}
	return &Router{catalog: catalog}, nil
}

// Catalog returns the catalog the router was built over.
func (r *Router) Catalog() *Catalog {
	return r.catalog
}

// ResolveStore returns the store that holds entity.
func (r *Router) ResolveStore(entity model.EntityType) (model.StoreName, error) {
	store, ok := r.catalog.entities[entity]
	if !ok {
		return "", model.NewConfigurationError("router", "entity %q has no store", entity)
	}
	return store, nil
}

// AuthorizeCrossReference reports whether a and b may relate. Entities in
// the same store always may; entities in different stores only when the
// pair is whitelisted.
func (r *Router) AuthorizeCrossReference(a, b model.EntityType) bool {
	storeA, okA := r.catalog.entities[a]
	storeB, okB := r.catalog.entities[b]
	if !okA || !okB {
		return false
	}
	if storeA == storeB {
		return true
	}
	_, ok := r.catalog.crossRefs[newEntityPair(a, b)]
	return ok
}

// CheckCrossReference is AuthorizeCrossReference for query paths, where a
// veto is a configuration error.
func (r *Router) CheckCrossReference(a, b model.EntityType) error {
	if r.AuthorizeCrossReference(a, b) {
		return nil
	}
	return model.NewConfigurationError("router", "relation between %q and %q crosses stores", a, b)
}

// AuthorizeMigrationTarget reports whether the schema of module may be
// applied to store. Routed modules go to exactly their store; unrouted
// modules only to the default store.
func (r *Router) AuthorizeMigrationTarget(module string, store model.StoreName) bool {
	routed, ok := r.catalog.modules[module]
	if !ok {
		return store == model.StoreDefault
	}
	return routed == store
}

// ModulesFor returns the module labels routed to store, sorted.
func (r *Router) ModulesFor(store model.StoreName) []string {
	var modules []string
	for module, routed := range r.catalog.modules {
		if routed == store {
			modules = append(modules, module)
		}
	}
	sort.Strings(modules)
	return modules
}

// Dereference validates a reference held by an entity of type from. The
// reference must name the store its entity actually lives in and the
// relation must be allowed.
func (r *Router) Dereference(from model.EntityType, ref model.Reference) error {
	store, err := r.ResolveStore(ref.Entity)
	if err != nil {
		return err
	}
	if store != ref.Store {
		return model.NewConfigurationError("router", "reference to %q names store %q, entity lives in %q", ref.Entity, ref.Store, store)
	}
	return r.CheckCrossReference(from, ref.Entity)
}
