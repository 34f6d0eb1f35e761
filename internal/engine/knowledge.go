// Knowledge and belief: mental models, belief evidence and gossip.
package engine

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/mathx"
)

// Propagation tuning.
const (
	MinTrustToAccept       = 0.5
	HearsayMultiplier      = 0.6
	RumorMultiplier        = 0.3
	SalienceThreshold      = 0.35
	ConfidenceDecayPerTick = 0.002
	MinConfidence          = 0.05

	// observeBoost restores confidence when an agent sees a subject first hand.
	observeBoost = 0.05
)

// PropagationResult counts what a listener took in.
type PropagationResult struct {
	Facts    int      `json:"facts"`
	Values   int      `json:"values"`
	Beliefs  int      `json:"beliefs"`
	Subjects int      `json:"subjects"`
	Accepted bool     `json:"accepted"` // trust cleared the bar for facts and values
	Shared   []string `json:"shared,omitempty"`
}

func (r *PropagationResult) add(o PropagationResult) {
	r.Facts += o.Facts
	r.Values += o.Values
	r.Beliefs += o.Beliefs
	r.Subjects += o.Subjects
	r.Accepted = r.Accepted || o.Accepted
	r.Shared = append(r.Shared, o.Shared...)
}

// ensureModel returns observer's model of subject, creating it if needed.
func ensureModel(observer *agents.Agent, subject agents.AgentID, obs agents.Observations, class agents.RelationshipClass, tick uint64) (*agents.MentalModel, bool) {
	mind := agents.MindOf(observer)
	if m, ok := mind.Models[subject]; ok {
		return m, false
	}
	m := agents.NewMentalModel(subject, obs, class, tick)
	mind.Models[subject] = m
	return m, true
}

// promote raises a model's relationship class, reseeding confidence upward.
func promote(m *agents.MentalModel, class agents.RelationshipClass) {
	if class <= m.Class {
		return
	}
	m.Class = class
	m.Confidence = math.Max(m.Confidence, class.InitialConfidence())
}

// InitializeMentalModel creates observer's model of subject seeded by class.
// If a model already exists it is returned unchanged.
func (s *Simulation) InitializeMentalModel(ctx context.Context, observerID, subjectID agents.AgentID, obs agents.Observations, class agents.RelationshipClass, tick uint64) (*agents.MentalModel, error) {
	observer, _, err := s.loadPair(ctx, observerID, subjectID)
	if err != nil {
		return nil, err
	}
	m, created := ensureModel(observer, subjectID, obs, class, tick)
	if !created {
		return m, nil
	}
	if err := s.save(ctx, observer); err != nil {
		return nil, err
	}
	return m, nil
}

// AddBelief appends evidence about one quality of subject to observer's
// model, creating a stranger-class model if there is none.
func (s *Simulation) AddBelief(ctx context.Context, observerID, subjectID agents.AgentID, quality string, ev agents.Evidence) (agents.BeliefFacet, error) {
	observer, _, err := s.loadPair(ctx, observerID, subjectID)
	if err != nil {
		return agents.BeliefFacet{}, err
	}
	m, _ := ensureModel(observer, subjectID, agents.Observations{}, agents.ClassStranger, ev.Tick)
	facet := m.AddEvidence(quality, ev)
	if err := s.save(ctx, observer); err != nil {
		return agents.BeliefFacet{}, err
	}
	return *facet, nil
}

// propagate passes what speaker knows about subject to listener. Facts and
// values cross only when trust is high enough; beliefs always cross, as
// hearsay weakened by trust and by the speaker's own confidence.
func propagate(speaker, listener *agents.Agent, subject agents.AgentID, trust float64, tick uint64) PropagationResult {
	var res PropagationResult
	if subject == listener.ID || subject == speaker.ID {
		return res
	}
	src := speaker.ModelOf(subject)
	if src == nil {
		return res
	}
	trust = mathx.Clamp01(trust)
	res.Accepted = trust >= MinTrustToAccept

	var dst *agents.MentalModel
	target := func() *agents.MentalModel {
		if dst == nil {
			dst, _ = ensureModel(listener, subject, agents.Observations{}, agents.ClassStranger, tick)
		}
		return dst
	}

	if res.Accepted {
		for _, fact := range slices.Sorted(maps.Keys(src.Facts)) {
			known := listener.ModelOf(subject)
			if !src.Facts[fact] || (known != nil && known.Facts[fact]) {
				continue
			}
			target().Facts[fact] = true
			res.Facts++
		}
		for _, key := range slices.Sorted(maps.Keys(src.Values)) {
			known := listener.ModelOf(subject)
			if known != nil {
				if _, ok := known.Values[key]; ok {
					continue
				}
			}
			target().Values[key] = src.Values[key]
			res.Values++
		}
	}

	for _, quality := range slices.Sorted(maps.Keys(src.Beliefs)) {
		facet := src.Beliefs[quality]
		target().AddEvidence(quality, agents.Evidence{
			Type:     agents.EvidenceHearsay,
			Strength: HearsayMultiplier * trust * facet.Confidence,
			Tick:     tick,
			SourceID: agents.IDPtr(speaker.ID),
		})
		res.Beliefs++
		res.Shared = append(res.Shared, quality)
	}
	if dst != nil {
		dst.LastUpdated = tick
		res.Subjects = 1
	}
	return res
}

// PropagateKnowledge has speaker tell listener what they know about subject.
// Only the listener's record changes.
func (s *Simulation) PropagateKnowledge(ctx context.Context, speakerID, listenerID, subjectID agents.AgentID, trust float64, tick uint64) (PropagationResult, error) {
	speaker, listener, err := s.loadPair(ctx, speakerID, listenerID)
	if err != nil {
		return PropagationResult{}, err
	}
	if _, err := s.store.GetAgent(ctx, subjectID); err != nil {
		return PropagationResult{}, fmt.Errorf("load subject %d: %w", subjectID, err)
	}
	res := propagate(speaker, listener, subjectID, trust, tick)
	if res.Subjects == 0 {
		return res, nil
	}
	if err := s.save(ctx, listener); err != nil {
		return PropagationResult{}, err
	}
	return res, nil
}

// Salience is how much subject is on observer's mind: confidence in their
// model, strength of feeling either way, romantic interest and kinship.
func Salience(observer *agents.Agent, subject agents.AgentID) float64 {
	var sal float64
	if m := observer.ModelOf(subject); m != nil {
		sal += 0.4 * m.Confidence
		if m.Class == agents.ClassFamily {
			sal += 0.3
		}
	} else if isCloseKin(observer, subject) {
		sal += 0.3
	}
	if rel := observer.Relationship(subject); rel != nil {
		sal += 0.3 * math.Min(1, math.Abs(rel.Charge)/20)
		sal += 0.2 * math.Min(1, rel.Spark/agents.RomanceSpark)
	}
	return sal
}

func isCloseKin(a *agents.Agent, id agents.AgentID) bool {
	return (a.SpouseID != nil && *a.SpouseID == id) || a.IsChildOf(id) || a.IsParentOf(id)
}

// trustToward returns listener's trust in speaker, or the base trust of strangers.
func trustToward(listener *agents.Agent, speaker agents.AgentID) float64 {
	if rel := listener.Relationship(speaker); rel != nil {
		return rel.Trust
	}
	return agents.TrustFromCharge(0)
}

// salientSubjects lists the subjects speaker thinks about enough to gossip about.
func salientSubjects(speaker *agents.Agent, exclude ...agents.AgentID) []agents.AgentID {
	if speaker.Ext.Mind == nil {
		return nil
	}
	var out []agents.AgentID
	for _, id := range slices.Sorted(maps.Keys(speaker.Ext.Mind.Models)) {
		if id == speaker.ID || slices.Contains(exclude, id) {
			continue
		}
		if Salience(speaker, id) > SalienceThreshold {
			out = append(out, id)
		}
	}
	return out
}

// PropagateAllKnowledge has speaker share everything about every subject
// salient to them, at the listener's trust in the speaker.
func (s *Simulation) PropagateAllKnowledge(ctx context.Context, speakerID, listenerID agents.AgentID, tick uint64) (PropagationResult, error) {
	speaker, listener, err := s.loadPair(ctx, speakerID, listenerID)
	if err != nil {
		return PropagationResult{}, err
	}
	trust := trustToward(listener, speaker.ID)
	var total PropagationResult
	for _, subject := range salientSubjects(speaker, listener.ID) {
		total.add(propagate(speaker, listener, subject, trust, tick))
	}
	if total.Subjects == 0 {
		return total, nil
	}
	if err := s.save(ctx, listener); err != nil {
		return PropagationResult{}, err
	}
	return total, nil
}

// DecayMentalModels fades confidence in every model observer has not used lately.
func (s *Simulation) DecayMentalModels(ctx context.Context, observerID agents.AgentID, tick uint64) error {
	observer, err := s.store.GetAgent(ctx, observerID)
	if err != nil {
		return fmt.Errorf("load agent %d: %w", observerID, err)
	}
	if !decayModels(observer, tick) {
		return nil
	}
	return s.save(ctx, observer)
}

// decayAll decays every living agent in list and saves the changed ones in
// one write. list must be freshly loaded.
func (s *Simulation) decayAll(ctx context.Context, list []*agents.Agent, tick uint64) error {
	var changed []*agents.Agent
	for _, a := range list {
		if a.Alive && decayModels(a, tick) {
			changed = append(changed, a)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return s.save(ctx, changed...)
}

func decayModels(observer *agents.Agent, tick uint64) bool {
	if observer.Ext.Mind == nil || len(observer.Ext.Mind.Models) == 0 {
		return false
	}
	for _, m := range observer.Ext.Mind.Models {
		m.Decay(ConfidenceDecayPerTick, MinConfidence, tick)
	}
	return true
}

// visibleObservations is what anyone can see of subject in passing.
func visibleObservations(subject *agents.Agent) agents.Observations {
	obs := agents.Observations{Values: map[string]string{
		agents.ValueFirstName: subject.FirstName,
		agents.ValueLastName:  subject.LastName,
	}}
	if subject.IsMarried() {
		obs.Facts = append(obs.Facts, agents.FactMarried)
		obs.Values[agents.ValueSpouse] = strconv.FormatUint(uint64(*subject.SpouseID), 10)
	}
	if len(subject.ChildIDs) > 0 {
		obs.Facts = append(obs.Facts, agents.FactParent)
	}
	if occ := subject.CurrentOccupation(); occ != nil {
		obs.Facts = append(obs.Facts, agents.FactEmployed)
		obs.Values[agents.ValueOccupation] = occ.Position
		obs.Values[agents.ValueWorkplace] = strconv.FormatUint(occ.BusinessID, 10)
	}
	if subject.IsRetired() {
		obs.Facts = append(obs.Facts, agents.FactRetired)
	}
	if !subject.Alive {
		obs.Facts = append(obs.Facts, agents.FactDeceased)
	}
	if subject.ResidenceID != nil {
		obs.Values[agents.ValueResidence] = strconv.FormatUint(*subject.ResidenceID, 10)
	}
	return obs
}

// observe records a first-hand look at subject: visible facts plus direct
// evidence of their temperament.
func observe(observer, subject *agents.Agent, class agents.RelationshipClass, tick uint64) *agents.MentalModel {
	obs := visibleObservations(subject)
	m, created := ensureModel(observer, subject.ID, obs, class, tick)
	if !created {
		m.Learn(obs, tick)
		promote(m, class)
		m.Touch(observeBoost, tick)
	}
	p := subject.Personality
	m.AddEvidence(agents.QualityKind, agents.Evidence{Type: agents.EvidenceObservation, Strength: p.Agreeableness, Tick: tick})
	m.AddEvidence(agents.QualityCompetent, agents.Evidence{Type: agents.EvidenceObservation, Strength: p.Conscientiousness, Tick: tick})
	return m
}

// Observe has observer take a first-hand look at subject.
func (s *Simulation) Observe(ctx context.Context, observerID, subjectID agents.AgentID, tick uint64) (*agents.MentalModel, error) {
	observer, subject, err := s.loadPair(ctx, observerID, subjectID)
	if err != nil {
		return nil, err
	}
	m := observe(observer, subject, agents.ClassNeighbor, tick)
	if err := s.save(ctx, observer); err != nil {
		return nil, err
	}
	return m, nil
}
