// Life-event records. Each is created by an explicit triggering event, mutated
// only by its owning subsystem, and moved to a history list when it completes.
// None of them are ever deleted.
package agents

import (
	"github.com/google/uuid"
)

// ── Romance ──────────────────────────────────────────────────────────

// RomanceStage is a step in the romance lifecycle.
type RomanceStage string

const (
	StageAttracted RomanceStage = "attracted"
	StageDating    RomanceStage = "dating"
	StageEngaged   RomanceStage = "engaged"
	StageMarried   RomanceStage = "married"
	StageDivorced  RomanceStage = "divorced"
)

// PairKey identifies an unordered pair of agents.
type PairKey struct {
	Low  AgentID `json:"low"`
	High AgentID `json:"high"`
}

// MakePairKey orders a and b.
func MakePairKey(a, b AgentID) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// Other returns the member of the pair that is not id.
func (k PairKey) Other(id AgentID) AgentID {
	if k.Low == id {
		return k.High
	}
	return k.Low
}

// RomanticRelationship tracks one couple through the lifecycle. A divorced
// record is terminal; a later reunion starts a new record.
type RomanticRelationship struct {
	ID          uuid.UUID    `json:"id"`
	Pair        PairKey      `json:"pair"`
	InitiatorID AgentID      `json:"initiator_id"`
	Stage       RomanceStage `json:"stage"`
	AttractedAt uint64       `json:"attracted_at"`
	DatingSince *uint64      `json:"dating_since,omitempty"`
	EngagedAt   *uint64      `json:"engaged_at,omitempty"`
	MarriedAt   *uint64      `json:"married_at,omitempty"`
	EndedAt     *uint64      `json:"ended_at,omitempty"`
	EndReason   string       `json:"end_reason,omitempty"`
	Dates       int          `json:"dates"`
}

// Active reports whether the record still belongs in the active registry.
func (r *RomanticRelationship) Active() bool {
	return r.EndedAt == nil && r.Stage != StageDivorced
}

// RomanceRecord is the romance extension: the current record (if any) plus
// every record that has ended.
type RomanceRecord struct {
	Current *RomanticRelationship  `json:"current,omitempty"`
	Past    []RomanticRelationship `json:"past,omitempty"`
}

// RomanceOf returns a's romance record, creating it if needed.
func RomanceOf(a *Agent) *RomanceRecord {
	if a.Ext.Romance == nil {
		a.Ext.Romance = &RomanceRecord{}
	}
	return a.Ext.Romance
}

// ── Family ───────────────────────────────────────────────────────────

// Pregnancy is an in-progress pregnancy owned by the mother.
type Pregnancy struct {
	ID          uuid.UUID `json:"id"`
	MotherID    AgentID   `json:"mother_id"`
	FatherID    AgentID   `json:"father_id"`
	ConceivedAt uint64    `json:"conceived_at"`
	DueAt       uint64    `json:"due_at"`
	BornAt      *uint64   `json:"born_at,omitempty"`
	ChildID     *AgentID  `json:"child_id,omitempty"`
}

// FamilyRecord is the reproduction extension.
type FamilyRecord struct {
	Pregnancy       *Pregnancy  `json:"pregnancy,omitempty"`
	PastPregnancies []Pregnancy `json:"past_pregnancies,omitempty"`
}

// FamilyOf returns a's family record, creating it if needed.
func FamilyOf(a *Agent) *FamilyRecord {
	if a.Ext.Family == nil {
		a.Ext.Family = &FamilyRecord{}
	}
	return a.Ext.Family
}

// ── Grief ────────────────────────────────────────────────────────────

// GriefStage is one of the ordered grief stages.
type GriefStage uint8

const (
	GriefDenial GriefStage = iota
	GriefAnger
	GriefBargaining
	GriefDepression
	GriefAcceptance
)

func (g GriefStage) String() string {
	switch g {
	case GriefDenial:
		return "denial"
	case GriefAnger:
		return "anger"
	case GriefBargaining:
		return "bargaining"
	case GriefDepression:
		return "depression"
	default:
		return "acceptance"
	}
}

// BehaviorModifiers are multiplicative effects other subsystems consume.
// The neutral value of every field is 1.
type BehaviorModifiers struct {
	Social float64 `json:"social"`
	Work   float64 `json:"work"`
	Risk   float64 `json:"risk"`
	Stress float64 `json:"stress"`
}

// NeutralModifiers leaves behavior unchanged.
func NeutralModifiers() BehaviorModifiers {
	return BehaviorModifiers{Social: 1, Work: 1, Risk: 1, Stress: 1}
}

// Combine multiplies two modifier sets.
func (m BehaviorModifiers) Combine(o BehaviorModifiers) BehaviorModifiers {
	return BehaviorModifiers{
		Social: m.Social * o.Social,
		Work:   m.Work * o.Work,
		Risk:   m.Risk * o.Risk,
		Stress: m.Stress * o.Stress,
	}
}

// GrievingState tracks grief for one deceased relative.
type GrievingState struct {
	ID               uuid.UUID         `json:"id"`
	DeceasedID       AgentID           `json:"deceased_id"`
	Kinship          Kinship           `json:"kinship"`
	DeathTick        uint64            `json:"death_tick"`
	InitialIntensity float64           `json:"initial_intensity"`
	Intensity        float64           `json:"intensity"`
	Stage            GriefStage        `json:"stage"`
	StageStartedAt   uint64            `json:"stage_started_at"`
	RecoveryRate     float64           `json:"recovery_rate"`
	Modifiers        BehaviorModifiers `json:"modifiers"`
	ResolvedAt       *uint64           `json:"resolved_at,omitempty"`
}

// GriefRecord is the grief extension.
type GriefRecord struct {
	Active []GrievingState `json:"active,omitempty"`
	Past   []GrievingState `json:"past,omitempty"`
}

// GriefOf returns a's grief record, creating it if needed.
func GriefOf(a *Agent) *GriefRecord {
	if a.Ext.Grief == nil {
		a.Ext.Grief = &GriefRecord{}
	}
	return a.Ext.Grief
}

// Modifiers returns the combined behavior modifiers of all active griefs.
func (a *Agent) Modifiers() BehaviorModifiers {
	mods := NeutralModifiers()
	if a.Ext.Grief == nil {
		return mods
	}
	for _, g := range a.Ext.Grief.Active {
		mods = mods.Combine(g.Modifiers)
	}
	return mods
}

// ── Education ────────────────────────────────────────────────────────

// EducationLevel orders schooling.
type EducationLevel uint8

const (
	EducationNone EducationLevel = iota
	EducationPrimary
	EducationSecondary
	EducationUniversity
)

func (l EducationLevel) String() string {
	switch l {
	case EducationPrimary:
		return "primary"
	case EducationSecondary:
		return "secondary"
	case EducationUniversity:
		return "university"
	default:
		return "none"
	}
}

// EnrollmentStatus is the state of one enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "enrolled"
	EnrollmentGraduated EnrollmentStatus = "graduated"
	EnrollmentDropped   EnrollmentStatus = "dropped_out"
)

// EducationData is one enrollment at a school.
type EducationData struct {
	ID                 uuid.UUID        `json:"id"`
	Level              EducationLevel   `json:"level"`
	SchoolID           *uint64          `json:"school_id,omitempty"`
	EnrolledAt         uint64           `json:"enrolled_at"`
	ExpectedGraduation uint64           `json:"expected_graduation"`
	CreditsRequired    float64          `json:"credits_required"`
	Credits            float64          `json:"credits"`
	GPA                float64          `json:"gpa"`
	Periods            int              `json:"periods"`
	Status             EnrollmentStatus `json:"status"`
	EndedAt            *uint64          `json:"ended_at,omitempty"`
}

// EducationRecord is the education extension.
type EducationRecord struct {
	Current      *EducationData  `json:"current,omitempty"`
	History      []EducationData `json:"history,omitempty"`
	HighestLevel EducationLevel  `json:"highest_level"`
}

// EducationOf returns a's education record, creating it if needed.
func EducationOf(a *Agent) *EducationRecord {
	if a.Ext.Education == nil {
		a.Ext.Education = &EducationRecord{}
	}
	return a.Ext.Education
}

// HighestEducation returns the highest completed level.
func (a *Agent) HighestEducation() EducationLevel {
	if a.Ext.Education == nil {
		return EducationNone
	}
	return a.Ext.Education.HighestLevel
}

// ── Employment ───────────────────────────────────────────────────────

// EndReason explains why an occupation ended.
type EndReason string

const (
	EndFired          EndReason = "fired"
	EndQuit           EndReason = "quit"
	EndRetired        EndReason = "retired"
	EndDeath          EndReason = "death"
	EndBusinessClosed EndReason = "business_closed"
)

// Occupation is one job held at a business.
type Occupation struct {
	ID           uuid.UUID `json:"id"`
	BusinessID   uint64    `json:"business_id"`
	BusinessType string    `json:"business_type"`
	Position     string    `json:"position"`
	Salary       float64   `json:"salary"`
	MinAge       int       `json:"min_age"`
	RequiredEdu  uint8     `json:"required_education"`
	HiredBy      *AgentID  `json:"hired_by,omitempty"`
	StartedAt    uint64    `json:"started_at"`
	EndedAt      *uint64   `json:"ended_at,omitempty"`
	EndReason    EndReason `json:"end_reason,omitempty"`
}

// EmploymentRecord is the employment extension.
type EmploymentRecord struct {
	Current *Occupation  `json:"current,omitempty"`
	Past    []Occupation `json:"past,omitempty"`
	Retired bool         `json:"retired"`
}

// EmploymentOf returns a's employment record, creating it if needed.
func EmploymentOf(a *Agent) *EmploymentRecord {
	if a.Ext.Employment == nil {
		a.Ext.Employment = &EmploymentRecord{}
	}
	return a.Ext.Employment
}

// CurrentOccupation returns a's current job, or nil.
func (a *Agent) CurrentOccupation() *Occupation {
	if a.Ext.Employment == nil {
		return nil
	}
	return a.Ext.Employment.Current
}

// IsRetired reports whether a has permanently retired.
func (a *Agent) IsRetired() bool {
	return a.Ext.Employment != nil && a.Ext.Employment.Retired
}

// ── Construction ─────────────────────────────────────────────────────

// CommissionStatus is the state of a construction commission.
type CommissionStatus string

const (
	CommissionCommissioned CommissionStatus = "commissioned"
	CommissionInProgress   CommissionStatus = "in_progress"
	CommissionDelayed      CommissionStatus = "delayed"
	CommissionCompleted    CommissionStatus = "completed"
	CommissionAbandoned    CommissionStatus = "abandoned"
)

// Terminal reports whether no further transition is possible.
func (s CommissionStatus) Terminal() bool {
	return s == CommissionCompleted || s == CommissionAbandoned
}

// Commission is a construction project paid for by a client.
type Commission struct {
	ID             uuid.UUID        `json:"id"`
	ClientID       AgentID          `json:"client_id"`
	BuilderID      uint64           `json:"builder_id"`
	Kind           string           `json:"kind"`
	Cost           float64          `json:"cost"`
	BaseDuration   uint64           `json:"base_duration"`
	Progress       float64          `json:"progress"`
	Status         CommissionStatus `json:"status"`
	NoiseSeed      int64            `json:"noise_seed"`
	Milestones     []int            `json:"milestones,omitempty"`
	CommissionedAt uint64           `json:"commissioned_at"`
	StartedAt      *uint64          `json:"started_at,omitempty"`
	EndedAt        *uint64          `json:"ended_at,omitempty"`
	EndReason      string           `json:"end_reason,omitempty"`
	StructureID    *uint64          `json:"structure_id,omitempty"`
}

// BuildingRecord is the construction extension on the client.
type BuildingRecord struct {
	Active []Commission `json:"active,omitempty"`
	Past   []Commission `json:"past,omitempty"`
}

// BuildingOf returns a's building record, creating it if needed.
func BuildingOf(a *Agent) *BuildingRecord {
	if a.Ext.Building == nil {
		a.Ext.Building = &BuildingRecord{}
	}
	return a.Ext.Building
}
