package router

import (
	"sort"

	"github.com/dtroode/observer-server/internal/model"
)

// Module labels group entity types and decide where their schema lives.
const (
	ModuleAccounts = "accounts"
	ModuleSessions = "sessions"
	ModuleClinical = "clinical"
	ModuleResearch = "research"
)

// Identity store entities.
const (
	EntityPrincipal         model.EntityType = "principal"
	EntityProfile           model.EntityType = "profile"
	EntityTier              model.EntityType = "tier"
	EntityOrganization      model.EntityType = "organization"
	EntityCohort            model.EntityType = "cohort"
	EntityAuditTrail        model.EntityType = "audit_trail"
	EntityRefreshFamily     model.EntityType = "refresh_family"
	EntityVerificationToken model.EntityType = "verification_token"
)

// Clinical store entities.
const (
	EntityPatient         model.EntityType = "patient"
	EntityProvider        model.EntityType = "provider"
	EntityDepartment      model.EntityType = "department"
	EntityEncounterSource model.EntityType = "encounter_source"
	EntityEncounter       model.EntityType = "encounter"
	EntityEncounterFile   model.EntityType = "encounter_file"
	EntityMultiModalData  model.EntityType = "multimodal_data"
)

// Research store entities.
const (
	EntityPerson              model.EntityType = "person"
	EntityResearchProvider    model.EntityType = "research_provider"
	EntityVisitOccurrence     model.EntityType = "visit_occurrence"
	EntityNote                model.EntityType = "note"
	EntityConditionOccurrence model.EntityType = "condition_occurrence"
	EntityDrugExposure        model.EntityType = "drug_exposure"
	EntityProcedureOccurrence model.EntityType = "procedure_occurrence"
	EntityMeasurement         model.EntityType = "measurement"
	EntityObservation         model.EntityType = "observation"
	EntityPatientSurvey       model.EntityType = "patient_survey"
	EntityProviderSurvey      model.EntityType = "provider_survey"
	EntityAuditLog            model.EntityType = "audit_log"
	EntityConcept             model.EntityType = "concept"
)

// EntitySpec pins an entity type to the module that owns it.
type EntitySpec struct {
	Type   model.EntityType
	Module string
}

// CatalogSpec is the raw placement table a Catalog is built from.
type CatalogSpec struct {
	Stores          []model.StoreName
	Modules         map[string]model.StoreName
	Entities        []EntitySpec
	CrossReferences [][2]model.EntityType
}

type entityPair struct {
	a, b model.EntityType
}

func newEntityPair(a, b model.EntityType) entityPair {
	if a > b {
		a, b = b, a
	}
	return entityPair{a: a, b: b}
}

// Catalog is the immutable entity to store mapping. It is built once at
// process start and shared by reference.
type Catalog struct {
	stores    map[model.StoreName]struct{}
	modules   map[string]model.StoreName
	entities  map[model.EntityType]model.StoreName
	owners    map[model.EntityType]string
	crossRefs map[entityPair]struct{}
}

// NewCatalog validates spec and builds a Catalog. Every gap in the mapping
// is reported as a ConfigurationError.
func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	c := &Catalog{
		stores:    make(map[model.StoreName]struct{}, len(spec.Stores)),
		modules:   make(map[string]model.StoreName, len(spec.Modules)),
		entities:  make(map[model.EntityType]model.StoreName, len(spec.Entities)),
		owners:    make(map[model.EntityType]string, len(spec.Entities)),
		crossRefs: make(map[entityPair]struct{}, len(spec.CrossReferences)),
	}

	for _, store := range spec.Stores {
		if store == "" || store == model.StoreDefault {
			return nil, model.NewConfigurationError("router", "store name %q is reserved", store)
		}
		c.stores[store] = struct{}{}
	}

	for module, store := range spec.Modules {
		if _, ok := c.stores[store]; !ok {
			return nil, model.NewConfigurationError("router", "module %q routed to unknown store %q", module, store)
		}
		c.modules[module] = store
	}

	for _, entity := range spec.Entities {
		store, ok := c.modules[entity.Module]
		if !ok {
			return nil, model.NewConfigurationError("router", "entity %q belongs to unrouted module %q", entity.Type, entity.Module)
		}
		if _, dup := c.entities[entity.Type]; dup {
			return nil, model.NewConfigurationError("router", "entity %q registered twice", entity.Type)
		}
		c.entities[entity.Type] = store
		c.owners[entity.Type] = entity.Module
	}

	for _, ref := range spec.CrossReferences {
		for _, entity := range ref {
			if _, ok := c.entities[entity]; !ok {
				return nil, model.NewConfigurationError("router", "cross reference names unregistered entity %q", entity)
			}
		}
		c.crossRefs[newEntityPair(ref[0], ref[1])] = struct{}{}
	}

	return c, nil
}

// MustCatalog is like NewCatalog but panics on an invalid spec.
func MustCatalog(spec CatalogSpec) *Catalog {
	c, err := NewCatalog(spec)
	if err != nil {
		panic(err)
	}
	return c
}

// Stores returns the routed store names in stable order.
func (c *Catalog) Stores() []model.StoreName {
	stores := make([]model.StoreName, 0, len(c.stores))
	for store := range c.stores {
		stores = append(stores, store)
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i] < stores[j] })
	return stores
}

// DefaultSpec returns the placement of every entity type the platform knows.
func DefaultSpec() CatalogSpec {
	return CatalogSpec{
		Stores: []model.StoreName{model.StoreIdentity, model.StoreClinical, model.StoreResearch},
		Modules: map[string]model.StoreName{
			ModuleAccounts: model.StoreIdentity,
			ModuleSessions: model.StoreIdentity,
			ModuleClinical: model.StoreClinical,
			ModuleResearch: model.StoreResearch,
		},
		Entities: []EntitySpec{
			{Type: EntityPrincipal, Module: ModuleAccounts},
			{Type: EntityProfile, Module: ModuleAccounts},
			{Type: EntityTier, Module: ModuleAccounts},
			{Type: EntityOrganization, Module: ModuleAccounts},
			{Type: EntityCohort, Module: ModuleAccounts},
			{Type: EntityAuditTrail, Module: ModuleAccounts},
			{Type: EntityRefreshFamily, Module: ModuleSessions},
			{Type: EntityVerificationToken, Module: ModuleSessions},

			{Type: EntityPatient, Module: ModuleClinical},
			{Type: EntityProvider, Module: ModuleClinical},
			{Type: EntityDepartment, Module: ModuleClinical},
			{Type: EntityEncounterSource, Module: ModuleClinical},
			{Type: EntityEncounter, Module: ModuleClinical},
			{Type: EntityEncounterFile, Module: ModuleClinical},
			{Type: EntityMultiModalData, Module: ModuleClinical},

			{Type: EntityPerson, Module: ModuleResearch},
			{Type: EntityResearchProvider, Module: ModuleResearch},
			{Type: EntityVisitOccurrence, Module: ModuleResearch},
			{Type: EntityNote, Module: ModuleResearch},
			{Type: EntityConditionOccurrence, Module: ModuleResearch},
			{Type: EntityDrugExposure, Module: ModuleResearch},
			{Type: EntityProcedureOccurrence, Module: ModuleResearch},
			{Type: EntityMeasurement, Module: ModuleResearch},
			{Type: EntityObservation, Module: ModuleResearch},
			{Type: EntityPatientSurvey, Module: ModuleResearch},
			{Type: EntityProviderSurvey, Module: ModuleResearch},
			{Type: EntityAuditLog, Module: ModuleResearch},
			{Type: EntityConcept, Module: ModuleResearch},
		},
		// Tier levels are stored on clinical and research rows as plain
		// integers; cohorts keep visit ids. All by identifier only.
		CrossReferences: [][2]model.EntityType{
			{EntityEncounter, EntityTier},
			{EntityVisitOccurrence, EntityTier},
			{EntityCohort, EntityVisitOccurrence},
		},
	}
}

// DefaultCatalog builds the catalog from DefaultSpec.
func DefaultCatalog() *Catalog {
	return MustCatalog(DefaultSpec())
}
