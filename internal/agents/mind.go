// Mental models: one agent's private knowledge and beliefs about another.
package agents

import (
	"github.com/talgya/hamlet/internal/mathx"
)

// RelationshipClass seeds the initial confidence of a mental model.
type RelationshipClass uint8

const (
	ClassStranger RelationshipClass = iota
	ClassNeighbor
	ClassCoworker
	ClassFamily
)

func (c RelationshipClass) String() string {
	switch c {
	case ClassNeighbor:
		return "neighbor"
	case ClassCoworker:
		return "coworker"
	case ClassFamily:
		return "family"
	default:
		return "stranger"
	}
}

// InitialConfidence returns the seed confidence for a new model of this class.
// Family > coworker > neighbor > stranger.
func (c RelationshipClass) InitialConfidence() float64 {
	switch c {
	case ClassFamily:
		return 0.9
	case ClassCoworker:
		return 0.6
	case ClassNeighbor:
		return 0.45
	default:
		return 0.3
	}
}

// EvidenceType classifies how a piece of belief evidence was obtained.
type EvidenceType string

const (
	EvidenceObservation EvidenceType = "direct_observation"
	EvidenceHearsay     EvidenceType = "hearsay"
	EvidenceRumor       EvidenceType = "rumor"
	EvidenceReflection  EvidenceType = "reflection"
)

// Common belief qualities.
const (
	QualityTrustworthy = "trustworthy"
	QualityKind        = "kind"
	QualityAttractive  = "attractive"
	QualityCompetent   = "competent"
	QualityDishonest   = "dishonest"
)

// Well-known fact flags and value keys.
const (
	FactMarried  = "married"
	FactParent   = "parent"
	FactRetired  = "retired"
	FactDeceased = "deceased"
	FactEmployed = "employed"

	ValueFirstName  = "first_name"
	ValueLastName   = "last_name"
	ValueOccupation = "occupation"
	ValueWorkplace  = "workplace"
	ValueResidence  = "residence"
	ValueSpouse     = "spouse"
)

// Evidence is one observation supporting a belief.
type Evidence struct {
	Type     EvidenceType `json:"type"`
	Strength float64      `json:"strength"`
	Tick     uint64       `json:"tick"`
	SourceID *AgentID     `json:"source_id,omitempty"`
}

// BeliefFacet is the evidence an observer holds about one quality of a subject.
// Confidence is the plain mean of evidence strengths.
type BeliefFacet struct {
	Evidence   []Evidence `json:"evidence"`
	Confidence float64    `json:"confidence"`
}

// Add appends evidence and recomputes confidence.
func (f *BeliefFacet) Add(ev Evidence) {
	ev.Strength = mathx.Clamp01(ev.Strength)
	f.Evidence = append(f.Evidence, ev)
	strengths := make([]float64, len(f.Evidence))
	for i, e := range f.Evidence {
		strengths[i] = e.Strength
	}
	f.Confidence = mathx.Clamp01(mathx.Mean(strengths))
}

// Observations are the facts and values a model starts with.
type Observations struct {
	Facts  []string          `json:"facts,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// MentalModel is what an observer knows and believes about one subject.
type MentalModel struct {
	SubjectID   AgentID                 `json:"subject_id"`
	Class       RelationshipClass       `json:"class"`
	Confidence  float64                 `json:"confidence"`
	Facts       map[string]bool         `json:"facts"`
	Values      map[string]string       `json:"values"`
	Beliefs     map[string]*BeliefFacet `json:"beliefs"`
	CreatedAt   uint64                  `json:"created_at"`
	LastUpdated uint64                  `json:"last_updated"`
	LastDecayed uint64                  `json:"last_decayed"`
}

// NewMentalModel creates a model seeded by class and initial observations.
func NewMentalModel(subject AgentID, obs Observations, class RelationshipClass, tick uint64) *MentalModel {
	m := &MentalModel{
		SubjectID:   subject,
		Class:       class,
		Confidence:  class.InitialConfidence(),
		Facts:       make(map[string]bool),
		Values:      make(map[string]string),
		Beliefs:     make(map[string]*BeliefFacet),
		CreatedAt:   tick,
		LastUpdated: tick,
	}
	m.Learn(obs, tick)
	return m
}

// Learn merges observations into the model.
func (m *MentalModel) Learn(obs Observations, tick uint64) {
	for _, f := range obs.Facts {
		m.Facts[f] = true
	}
	for k, v := range obs.Values {
		m.Values[k] = v
	}
	m.LastUpdated = tick
}

// AddEvidence appends evidence toward quality and returns the facet.
func (m *MentalModel) AddEvidence(quality string, ev Evidence) *BeliefFacet {
	f, ok := m.Beliefs[quality]
	if !ok {
		f = &BeliefFacet{}
		m.Beliefs[quality] = f
	}
	f.Add(ev)
	if ev.Tick > m.LastUpdated {
		m.LastUpdated = ev.Tick
	}
	return f
}

// Decay lowers confidence linearly for every idle tick since the model was
// last used or last decayed, whichever is later.
func (m *MentalModel) Decay(perTick, floor float64, tick uint64) {
	from := max(m.LastUpdated, m.LastDecayed)
	if tick <= from {
		return
	}
	m.Confidence -= perTick * float64(tick-from)
	if m.Confidence < floor {
		m.Confidence = floor
	}
	m.LastDecayed = tick
}

// Touch marks the model as used, restoring some confidence.
func (m *MentalModel) Touch(boost float64, tick uint64) {
	m.Confidence = mathx.Clamp01(m.Confidence + boost)
	m.LastUpdated = tick
}

// Mind is the mental-model extension record.
type Mind struct {
	Models map[AgentID]*MentalModel `json:"models"`
}

// MindOf returns a's mind, creating it if needed.
func MindOf(a *Agent) *Mind {
	if a.Ext.Mind == nil {
		a.Ext.Mind = &Mind{}
	}
	if a.Ext.Mind.Models == nil {
		a.Ext.Mind.Models = make(map[AgentID]*MentalModel)
	}
	return a.Ext.Mind
}

// ModelOf returns a's model of subject, or nil.
func (a *Agent) ModelOf(subject AgentID) *MentalModel {
	if a.Ext.Mind == nil {
		return nil
	}
	return a.Ext.Mind.Models[subject]
}
