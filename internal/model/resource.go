package model

import (
	"context"
	"encoding/json"
	"math"
)

// DefaultPageSize is used when a caller does not ask for a page size.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ResourceStore reads protected rows from one physical store.
type ResourceStore interface {
	List(ctx context.Context, query ResourceQuery) ([]Record, int, error)
	Get(ctx context.Context, query ResourceQuery, id string) (Record, error)
}

// Record is one protected row rendered as JSON.
type Record struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// RecordPage is a page of authorized records.
type RecordPage struct {
	Count   int      `json:"count"`
	Page    int      `json:"page"`
	Results []Record `json:"results"`
}

// Page selects a window of a collection. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// InRange reports whether the offset of a normalized page fits a 32-bit
// row offset.
func (p Page) InRange() bool {
	return p.Size > 0 && p.Number > 0 && p.Number-1 <= math.MaxInt32/p.Size
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Predicate is a store-side row filter. Clause uses positional parameters
// starting at $1. Deny means no row may match; Clause is then ignored.
type Predicate struct {
	Clause string
	Args   []any
	Deny   bool
}

// ResourceQuery is a fully authorized read against one table.
type ResourceQuery struct {
	Table     string
	KeyColumn string
	Filter    Predicate
	Page      Page
}
