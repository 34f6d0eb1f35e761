// Reproduction: conception, pregnancy and birth.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/entropy"
)

// Pregnancy rules.
const (
	PregnancyTicks = 270

	MotherMinAge = 18
	MotherMaxAge = 45
	FatherMinAge = 18
	FatherMaxAge = 65

	// MonthlyConceptionChance is the chance an eligible couple conceives in a month.
	MonthlyConceptionChance = 0.08
)

// ConceptionResult is the outcome of a conception attempt.
type ConceptionResult struct {
	Eligibility
	Pregnancy *agents.Pregnancy `json:"pregnancy,omitempty"`
}

// BirthResult reports a birth.
type BirthResult struct {
	Child     *agents.Agent    `json:"child"`
	Pregnancy agents.Pregnancy `json:"pregnancy"`
}

// ConceptionEligibility checks whether mother and father can conceive in year.
func ConceptionEligibility(mother, father *agents.Agent, year int) Eligibility {
	switch {
	case !mother.Alive || !father.Alive:
		return Ineligible("both parents must be alive")
	case mother.Sex != agents.SexFemale || father.Sex != agents.SexMale:
		return Ineligible("the couple cannot conceive together")
	case mother.SpouseID == nil || *mother.SpouseID != father.ID || father.SpouseID == nil || *father.SpouseID != mother.ID:
		return Ineligible("the couple is not married to each other")
	case mother.Age(year) < MotherMinAge || mother.Age(year) > MotherMaxAge:
		return Ineligible("the mother is outside childbearing age")
	case father.Age(year) < FatherMinAge || father.Age(year) > FatherMaxAge:
		return Ineligible("the father is outside fathering age")
	case mother.Ext.Family != nil && mother.Ext.Family.Pregnancy != nil:
		return Ineligible("the mother is already pregnant")
	}
	return Eligible()
}

// Conceive starts a pregnancy for an eligible married couple.
func (s *Simulation) Conceive(ctx context.Context, motherID, fatherID agents.AgentID, tick uint64) (ConceptionResult, error) {
	mother, father, err := s.loadPair(ctx, motherID, fatherID)
	if err != nil {
		return ConceptionResult{}, err
	}
	if e := ConceptionEligibility(mother, father, s.Year(tick)); !e.OK {
		return ConceptionResult{Eligibility: e}, nil
	}
	p := agents.Pregnancy{
		ID:          uuid.New(),
		MotherID:    mother.ID,
		FatherID:    father.ID,
		ConceivedAt: tick,
		DueAt:       tick + PregnancyTicks,
	}
	rec := p
	agents.FamilyOf(mother).Pregnancy = &rec
	if err := s.save(ctx, mother); err != nil {
		return ConceptionResult{}, err
	}
	reg := p
	s.Registry.Pregnancies[mother.ID] = &reg
	s.emit(ctx, chronicle.KindConception, tick, pair(mother, father), mother.ID, father.ID)
	return ConceptionResult{Eligibility: Eligible(), Pregnancy: &p}, nil
}

// GiveBirth delivers the mother's child. The pregnancy must be due.
func (s *Simulation) GiveBirth(ctx context.Context, motherID agents.AgentID, tick uint64) (BirthResult, error) {
	loaded, err := s.loadAgents(ctx, motherID)
	if err != nil {
		return BirthResult{}, err
	}
	mother := loaded[0]
	if mother.Ext.Family == nil || mother.Ext.Family.Pregnancy == nil {
		return BirthResult{}, fmt.Errorf("%w: %d", ErrNotPregnant, motherID)
	}
	preg := *mother.Ext.Family.Pregnancy
	if tick < preg.DueAt {
		return BirthResult{}, fmt.Errorf("%w: due at %d, now %d", ErrNotDue, preg.DueAt, tick)
	}
	loaded, err = s.loadAgents(ctx, preg.FatherID)
	if err != nil {
		return BirthResult{}, err
	}
	father := loaded[0]

	siblings, err := s.siblingsOf(ctx, mother, father)
	if err != nil {
		return BirthResult{}, err
	}

	// The child needs an id before anyone can refer to it. Nothing after
	// this point can fail except the final save.
	child := s.spawner.SpawnChild(mother, father, s.Year(tick), tick)
	if _, err := s.store.CreateAgent(ctx, child); err != nil {
		return BirthResult{}, fmt.Errorf("create child: %w", err)
	}

	mother.ChildIDs = append(mother.ChildIDs, child.ID)
	father.ChildIDs = append(father.ChildIDs, child.ID)
	for _, parent := range []*agents.Agent{mother, father} {
		learnFamily(parent, child, tick)
		learnFamily(child, parent, tick)
		seedFamilyRelationship(parent, child, tick)
	}
	for _, pr := range [][2]*agents.Agent{{mother, father}, {father, mother}} {
		if m := pr[0].ModelOf(pr[1].ID); m != nil {
			m.Facts[agents.FactParent] = true
			m.LastUpdated = tick
		}
	}
	for _, sib := range siblings {
		learnFamily(sib, child, tick)
		learnFamily(child, sib, tick)
		seedFamilyRelationship(sib, child, tick)
	}

	born := tick
	preg.BornAt = &born
	preg.ChildID = agents.IDPtr(child.ID)
	fam := agents.FamilyOf(mother)
	fam.Pregnancy = nil
	fam.PastPregnancies = append(fam.PastPregnancies, preg)

	all := append([]*agents.Agent{mother, father, child}, siblings...)
	if err := s.save(ctx, all...); err != nil {
		return BirthResult{}, err
	}
	delete(s.Registry.Pregnancies, mother.ID)
	s.emit(ctx, chronicle.KindBirth, tick, with(named(child), "year", itoa(s.Year(tick))), child.ID, mother.ID, father.ID)
	return BirthResult{Child: child, Pregnancy: preg}, nil
}

// siblingsOf loads the living children of either parent.
func (s *Simulation) siblingsOf(ctx context.Context, mother, father *agents.Agent) ([]*agents.Agent, error) {
	seen := make(map[agents.AgentID]bool)
	var ids []agents.AgentID
	for _, id := range append(append([]agents.AgentID{}, mother.ChildIDs...), father.ChildIDs...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	list, err := s.loadAgents(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, a := range list {
		if a.Alive {
			out = append(out, a)
		}
	}
	return out, nil
}

// learnFamily gives owner a family-class model of relative.
func learnFamily(owner, relative *agents.Agent, tick uint64) {
	m, created := ensureModel(owner, relative.ID, visibleObservations(relative), agents.ClassFamily, tick)
	if !created {
		m.Learn(visibleObservations(relative), tick)
		promote(m, agents.ClassFamily)
	}
}

// ProgressPregnancies delivers every due pregnancy.
func (s *Simulation) ProgressPregnancies(ctx context.Context, tick uint64) {
	for _, id := range s.Registry.Mothers() {
		p := s.Registry.Pregnancies[id]
		if tick < p.DueAt {
			continue
		}
		res, err := s.GiveBirth(ctx, id, tick)
		if err != nil {
			slog.Warn("birth skipped", "tick", tick, "mother", id, "error", err)
			continue
		}
		slog.Info("birth", "tick", tick, "child", res.Child.Name(), "mother", id)
	}
}

// AttemptConceptions gives every married couple its monthly chance.
func (s *Simulation) AttemptConceptions(ctx context.Context, tick uint64) error {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	year := s.Year(tick)
	byID := make(map[agents.AgentID]*agents.Agent, len(list))
	for _, a := range list {
		byID[a.ID] = a
	}
	for _, mother := range list {
		if mother.Sex != agents.SexFemale || mother.SpouseID == nil {
			continue
		}
		father, ok := byID[*mother.SpouseID]
		if !ok || !ConceptionEligibility(mother, father, year).OK {
			continue
		}
		// Large families grow more slowly.
		chance := MonthlyConceptionChance / float64(1+len(mother.ChildIDs)/2)
		if !entropy.Chance(s.rng, chance) {
			continue
		}
		if _, err := s.Conceive(ctx, mother.ID, father.ID, tick); err != nil {
			slog.Warn("conception skipped", "tick", tick, "mother", mother.ID, "error", err)
		}
	}
	return nil
}
