package tier

import "github.com/dtroode/observer-server/internal/model"

// Selector restricts in-memory items of type T to a visible tier level.
type Selector[T any] interface {
	// Restrict returns a predicate accepting items visible at level.
	Restrict(level int) func(item T) bool
	// Key identifies an item for deduplication.
	Key(item T) string
}

// DirectSelector reads the tier level from the item itself.
type DirectSelector[T any] struct {
	KeyOf   func(T) string
	LevelOf func(T) int
}

func (s DirectSelector[T]) Restrict(level int) func(T) bool {
	return func(item T) bool {
		return s.LevelOf(item) <= level
	}
}

func (s DirectSelector[T]) Key(item T) string {
	return s.KeyOf(item)
}

// DerivedSelector grants visibility of an item through its parents. The
// eligible parent keys are computed once per Restrict call; an item is
// visible when any of its links points at an eligible parent.
type DerivedSelector[T, P any] struct {
	Parents     []P
	ParentKey   func(P) string
	ParentLevel func(P) int
	KeyOf       func(T) string
	Links       func(T) []string
}

func (s DerivedSelector[T, P]) Restrict(level int) func(T) bool {
	eligible := make(map[string]struct{})
	for _, parent := range s.Parents {
		if s.ParentLevel(parent) <= level {
			eligible[s.ParentKey(parent)] = struct{}{}
		}
	}
	return func(item T) bool {
		for _, link := range s.Links(item) {
			if _, ok := eligible[link]; ok {
				return true
			}
		}
		return false
	}
}

func (s DerivedSelector[T, P]) Key(item T) string {
	return s.KeyOf(item)
}

// Filter returns the items principal may see, in input order and without
// duplicates. Superusers get every item back untouched.
func Filter[T any](items []T, principal model.AccessPrincipal, selector Selector[T]) []T {
	level, unrestricted, none := visibleLevel(principal)
	if unrestricted {
		return items
	}
	out := make([]T, 0)
	if none {
		return out
	}

	visible := selector.Restrict(level)
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if !visible(item) {
			continue
		}
		key := selector.Key(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// AuthorizeObject reports whether principal may see item. Callers must
// answer a denial as if the item did not exist.
func AuthorizeObject[T any](principal model.AccessPrincipal, item T, selector Selector[T]) bool {
	level, unrestricted, none := visibleLevel(principal)
	if unrestricted {
		return true
	}
	if none {
		return false
	}
	return selector.Restrict(level)(item)
}
