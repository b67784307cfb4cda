package tier

import (
	"fmt"
	"regexp"

	"github.com/dtroode/observer-server/internal/model"
	"github.com/dtroode/observer-server/internal/router"
)

// Mode tells how the tier level of a resource row is determined.
type Mode int

const (
	// Direct rows carry their own tier level column.
	Direct Mode = iota
	// Derived rows inherit visibility from related parent rows.
	Derived
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Derived:
		return "derived"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Resource describes a protected entity and how its rows are scoped.
type Resource struct {
	Entity      model.EntityType
	Table       string
	KeyColumn   string
	Mode        Mode
	LevelColumn string
	Parent      *Relation
}

// Relation links a derived resource to the direct resource it inherits
// visibility from. A child row is visible when ChildColumn matches
// ParentColumn of at least one accessible parent row. When Via is set the
// match goes through a join table.
type Relation struct {
	Entity            model.EntityType
	Table             string
	ParentColumn      string
	ParentLevelColumn string
	ChildColumn       string
	Via               *JoinTable
}

// JoinTable connects child and parent keys in many-to-many relations.
type JoinTable struct {
	Table        string
	ChildColumn  string
	ParentColumn string
}

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdentifiers(names ...string) error {
	for _, name := range names {
		if !identifierRe.MatchString(name) {
			return fmt.Errorf("invalid identifier %q", name)
		}
	}
	return nil
}

func (r Resource) validate() error {
	if err := validIdentifiers(r.Table, r.KeyColumn); err != nil {
		return err
	}
	switch r.Mode {
	case Direct:
		if r.Parent != nil {
			return fmt.Errorf("direct resource has a parent")
		}
		return validIdentifiers(r.LevelColumn)
	case Derived:
		p := r.Parent
		if p == nil {
			return fmt.Errorf("derived resource has no parent")
		}
		if err := validIdentifiers(p.Table, p.ParentColumn, p.ParentLevelColumn, p.ChildColumn); err != nil {
			return err
		}
		if p.Via != nil {
			return validIdentifiers(p.Via.Table, p.Via.ChildColumn, p.Via.ParentColumn)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %s", r.Mode)
	}
}

func direct(entity model.EntityType) Resource {
	return Resource{
		Entity:      entity,
		Table:       string(entity),
		KeyColumn:   "id",
		Mode:        Direct,
		LevelColumn: "tier_level",
	}
}

// childOf builds a resource whose rows reference a direct parent by foreign key.
func childOf(entity, parent model.EntityType, fk string) Resource {
	return Resource{
		Entity:    entity,
		Table:     string(entity),
		KeyColumn: "id",
		Mode:      Derived,
		Parent: &Relation{
			Entity:            parent,
			Table:             string(parent),
			ParentColumn:      "id",
			ParentLevelColumn: "tier_level",
			ChildColumn:       fk,
		},
	}
}

// referencedBy builds a resource that is visible when any accessible parent
// row points at it.
func referencedBy(entity, parent model.EntityType, fk string) Resource {
	return Resource{
		Entity:    entity,
		Table:     string(entity),
		KeyColumn: "id",
		Mode:      Derived,
		Parent: &Relation{
			Entity:            parent,
			Table:             string(parent),
			ParentColumn:      fk,
			ParentLevelColumn: "tier_level",
			ChildColumn:       "id",
		},
	}
}

// DefaultResources lists every tier protected entity exposed over the API.
func DefaultResources() []Resource {
	return []Resource{
		direct(router.EntityEncounter),
		childOf(router.EntityEncounterFile, router.EntityEncounter, "encounter_id"),
		referencedBy(router.EntityPatient, router.EntityEncounter, "patient_id"),
		referencedBy(router.EntityProvider, router.EntityEncounter, "provider_id"),
		{
			Entity:    router.EntityMultiModalData,
			Table:     string(router.EntityMultiModalData),
			KeyColumn: "id",
			Mode:      Derived,
			Parent: &Relation{
				Entity:            router.EntityEncounter,
				Table:             string(router.EntityEncounter),
				ParentColumn:      "id",
				ParentLevelColumn: "tier_level",
				ChildColumn:       "id",
				Via: &JoinTable{
					Table:        "encounter_multimodal_data",
					ChildColumn:  "multimodal_data_id",
					ParentColumn: "encounter_id",
				},
			},
		},

		direct(router.EntityVisitOccurrence),
		childOf(router.EntityNote, router.EntityVisitOccurrence, "visit_occurrence_id"),
		childOf(router.EntityConditionOccurrence, router.EntityVisitOccurrence, "visit_occurrence_id"),
		childOf(router.EntityDrugExposure, router.EntityVisitOccurrence, "visit_occurrence_id"),
		childOf(router.EntityProcedureOccurrence, router.EntityVisitOccurrence, "visit_occurrence_id"),
		childOf(router.EntityMeasurement, router.EntityVisitOccurrence, "visit_occurrence_id"),
		childOf(router.EntityObservation, router.EntityVisitOccurrence, "visit_occurrence_id"),
		referencedBy(router.EntityPerson, router.EntityVisitOccurrence, "person_id"),
		referencedBy(router.EntityResearchProvider, router.EntityVisitOccurrence, "provider_id"),
	}
}
