package tier

import (
	"fmt"

	"github.com/dtroode/observer-server/internal/model"
)

// Scope returns the row predicate restricting res to what principal may see.
func (e *Engine) Scope(principal model.AccessPrincipal, res Resource) (model.Predicate, error) {
	if err := res.validate(); err != nil {
		return model.Predicate{}, model.NewConfigurationError("tier", "resource %q: %v", res.Entity, err)
	}
	if _, err := e.Store(res); err != nil {
		return model.Predicate{}, err
	}

	level, unrestricted, none := visibleLevel(principal)
	if unrestricted {
		return model.Predicate{}, nil
	}
	if none {
		return model.Predicate{Deny: true}, nil
	}

	switch res.Mode {
	case Direct:
		return model.Predicate{
			Clause: fmt.Sprintf("%s.%s <= $1", quote(res.Table), quote(res.LevelColumn)),
			Args:   []any{level},
		}, nil
	default:
		return model.Predicate{
			Clause: derivedClause(res),
			Args:   []any{level},
		}, nil
	}
}

func derivedClause(res Resource) string {
	p := res.Parent
	eligible := fmt.Sprintf("SELECT %s.%s FROM %s WHERE %s.%s <= $1",
		quote(p.Table), quote(p.ParentColumn), quote(p.Table), quote(p.Table), quote(p.ParentLevelColumn))
	if p.Via != nil {
		eligible = fmt.Sprintf("SELECT %s.%s FROM %s WHERE %s.%s IN (%s)",
			quote(p.Via.Table), quote(p.Via.ChildColumn), quote(p.Via.Table),
			quote(p.Via.Table), quote(p.Via.ParentColumn), eligible)
	}
	return fmt.Sprintf("%s.%s IN (%s)", quote(res.Table), quote(p.ChildColumn), eligible)
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}
