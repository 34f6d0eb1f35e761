// Package agents provides the agent data model: identity, personality,
// relationships, mental models, and the typed per-subsystem extension records.
// Logic that needs storage lives in the engine; this package stays pure.
package agents

import (
	"fmt"
	"slices"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Sex represents biological sex for demographic simulation.
type Sex uint8

const (
	SexMale   Sex = 0
	SexFemale Sex = 1
)

func (s Sex) String() string {
	if s == SexFemale {
		return "female"
	}
	return "male"
}

// Attraction is the simplified orientation model: which sexes an agent can
// develop spark toward.
type Attraction struct {
	Men   bool `json:"men"`
	Women bool `json:"women"`
}

// AttractedTo reports whether the agent can be attracted to someone of sex s.
func (a Attraction) AttractedTo(s Sex) bool {
	if s == SexFemale {
		return a.Women
	}
	return a.Men
}

// AdultAge is the age from which agents can develop spark and marry.
const AdultAge = 18

// Agent is the core entity representing a person in the simulation.
// Family links are back-references by id; nothing here owns another agent.
type Agent struct {
	ID      AgentID `json:"id"`
	WorldID uint64  `json:"world_id"`

	// Identity
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	BirthYear  int        `json:"birth_year"`
	Sex        Sex        `json:"sex"`
	Attraction Attraction `json:"attraction"`

	Personality Personality `json:"personality"`

	Alive      bool    `json:"alive"`
	DeathTick  *uint64 `json:"death_tick,omitempty"`
	DeathCause string  `json:"death_cause,omitempty"`

	// Family
	MotherID *AgentID  `json:"mother_id,omitempty"`
	FatherID *AgentID  `json:"father_id,omitempty"`
	SpouseID *AgentID  `json:"spouse_id,omitempty"`
	ChildIDs []AgentID `json:"child_ids,omitempty"`

	// Foreign keys into external world entities.
	LocationID  *uint64 `json:"location_id,omitempty"`
	ResidenceID *uint64 `json:"residence_id,omitempty"`

	// Relationships owned by this agent, keyed by the other agent.
	Relationships map[AgentID]*RelationshipDetails `json:"relationships,omitempty"`

	// Subsystem-owned state.
	Ext Extensions `json:"ext"`

	BornTick uint64 `json:"born_tick"`
}

// Extensions holds one optional record per subsystem. Each subsystem creates
// its own record on first use and never touches the others.
type Extensions struct {
	Mind       *Mind             `json:"mind,omitempty"`
	Romance    *RomanceRecord    `json:"romance,omitempty"`
	Family     *FamilyRecord     `json:"family,omitempty"`
	Grief      *GriefRecord      `json:"grief,omitempty"`
	Education  *EducationRecord  `json:"education,omitempty"`
	Employment *EmploymentRecord `json:"employment,omitempty"`
	Finances   *Finances         `json:"finances,omitempty"`
	Building   *BuildingRecord   `json:"building,omitempty"`
}

// Name returns the agent's full name.
func (a *Agent) Name() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return fmt.Sprintf("%s %s", a.FirstName, a.LastName)
}

// Age returns the agent's age in the given year.
func (a *Agent) Age(year int) int {
	return year - a.BirthYear
}

// IsAdult reports whether the agent is at least AdultAge in year.
func (a *Agent) IsAdult(year int) bool {
	return a.Age(year) >= AdultAge
}

// IsMarried reports whether the agent currently has a spouse.
func (a *Agent) IsMarried() bool {
	return a.SpouseID != nil
}

// IsParentOf reports whether id is one of the agent's children.
func (a *Agent) IsParentOf(id AgentID) bool {
	return slices.Contains(a.ChildIDs, id)
}

// IsChildOf reports whether id is the agent's mother or father.
func (a *Agent) IsChildOf(id AgentID) bool {
	return (a.MotherID != nil && *a.MotherID == id) || (a.FatherID != nil && *a.FatherID == id)
}

// IsSiblingOf reports whether the two agents share a parent.
func (a *Agent) IsSiblingOf(b *Agent) bool {
	if a.ID == b.ID {
		return false
	}
	if a.MotherID != nil && b.MotherID != nil && *a.MotherID == *b.MotherID {
		return true
	}
	return a.FatherID != nil && b.FatherID != nil && *a.FatherID == *b.FatherID
}

// Kinship classifies how b is related to a from a's point of view.
type Kinship uint8

const (
	KinNone Kinship = iota
	KinSpouse
	KinParent
	KinChild
	KinSibling
)

func (k Kinship) String() string {
	switch k {
	case KinSpouse:
		return "spouse"
	case KinParent:
		return "parent"
	case KinChild:
		return "child"
	case KinSibling:
		return "sibling"
	default:
		return "none"
	}
}

// KinshipTo returns how b relates to a (b is a's spouse, parent, child, sibling).
func (a *Agent) KinshipTo(b *Agent) Kinship {
	switch {
	case a.SpouseID != nil && *a.SpouseID == b.ID:
		return KinSpouse
	case a.IsChildOf(b.ID):
		return KinParent
	case a.IsParentOf(b.ID):
		return KinChild
	case a.IsSiblingOf(b):
		return KinSibling
	default:
		return KinNone
	}
}

// IsFamily reports whether b is close family of a.
func (a *Agent) IsFamily(b *Agent) bool {
	return a.KinshipTo(b) != KinNone
}

// Relationship returns a's record toward other, or nil.
func (a *Agent) Relationship(other AgentID) *RelationshipDetails {
	if a.Relationships == nil {
		return nil
	}
	return a.Relationships[other]
}

// EnsureRelationship returns a's record toward other, creating it at tick.
func (a *Agent) EnsureRelationship(other AgentID, tick uint64) *RelationshipDetails {
	if a.Relationships == nil {
		a.Relationships = make(map[AgentID]*RelationshipDetails)
	}
	rel, ok := a.Relationships[other]
	if !ok {
		rel = NewRelationship(other, tick)
		a.Relationships[other] = rel
	}
	return rel
}

// IDPtr returns a pointer to a copy of id.
func IDPtr(id AgentID) *AgentID {
	return &id
}
