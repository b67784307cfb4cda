package model

import "github.com/google/uuid"

// StoreName identifies a physical data partition.
type StoreName string

const (
	// StoreIdentity holds principals, profiles, tiers and session state.
	StoreIdentity StoreName = "identity"
	// StoreClinical holds encounter records and their attachments.
	StoreClinical StoreName = "clinical"
	// StoreResearch holds de-identified research data.
	StoreResearch StoreName = "research"
	// StoreDefault receives schemas of modules that are not routed.
	StoreDefault StoreName = "default"
)

// EntityType names a kind of persisted entity.
type EntityType string

// Reference points at an entity that may live in another store. It carries
// only the identifier; integrity is checked when the reference is followed.
type Reference struct {
	Store  StoreName
	Entity EntityType
	ID     string
}

// NewReference builds a reference to an entity identified by a UUID.
func NewReference(store StoreName, entity EntityType, id uuid.UUID) Reference {
	return Reference{Store: store, Entity: entity, ID: id.String()}
}
