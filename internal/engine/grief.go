// Death and grief.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/mathx"
)

// Grief tuning.
const (
	GriefDecayRate       = 0.01
	GriefResolvedBelow   = 0.05
	griefNeuroticismBase = 0.7
	griefNeuroticismSpan = 0.6
)

// griefWeights scales initial intensity by how the deceased was related.
var griefWeights = map[agents.Kinship]float64{
	agents.KinSpouse:  1.0,
	agents.KinChild:   0.95,
	agents.KinParent:  0.8,
	agents.KinSibling: 0.6,
}

// stageTicks is each stage's base duration before the recovery rate applies.
var stageTicks = [...]float64{
	agents.GriefDenial:     7,
	agents.GriefAnger:      21,
	agents.GriefBargaining: 30,
	agents.GriefDepression: 60,
	agents.GriefAcceptance: 90,
}

// stageIntensity modulates intensity within each stage.
var stageIntensity = [...]float64{
	agents.GriefDenial:     0.8,
	agents.GriefAnger:      1.1,
	agents.GriefBargaining: 1.0,
	agents.GriefDepression: 1.2,
	agents.GriefAcceptance: 0.6,
}

// InitialGriefIntensity is how hard the loss of a relative of kin hits an
// agent with neuroticism n.
func InitialGriefIntensity(kin agents.Kinship, n float64) float64 {
	return mathx.Clamp01(griefWeights[kin] * (griefNeuroticismBase + griefNeuroticismSpan*n))
}

// StageDuration is how many ticks stage lasts at recovery rate.
func StageDuration(stage agents.GriefStage, rate float64) uint64 {
	if rate <= 0 {
		rate = 1
	}
	return uint64(math.Ceil(stageTicks[stage] / rate))
}

// GriefIntensity is the grief felt ticksSince the death while in stage. The
// stage multiplier can lift it above the initial intensity; it never goes
// below zero.
func GriefIntensity(initial float64, ticksSince uint64, stage agents.GriefStage) float64 {
	return math.Max(0, initial*math.Exp(-GriefDecayRate*float64(ticksSince))*stageIntensity[stage])
}

// GriefModifiers maps intensity onto behavior multipliers.
func GriefModifiers(intensity float64, stage agents.GriefStage) agents.BehaviorModifiers {
	risk := 1 + 0.5*intensity
	if stage == agents.GriefAnger {
		risk += 0.25 * intensity
	}
	return agents.BehaviorModifiers{
		Social: 1 - 0.5*intensity,
		Work:   1 - 0.4*intensity,
		Risk:   risk,
		Stress: 1 + intensity,
	}
}

// startGrief opens grief in griever for deceased.
func startGrief(griever, deceased *agents.Agent, kin agents.Kinship, tick uint64) agents.GrievingState {
	i0 := InitialGriefIntensity(kin, griever.Personality.Neuroticism)
	g := agents.GrievingState{
		ID:               uuid.New(),
		DeceasedID:       deceased.ID,
		Kinship:          kin,
		DeathTick:        tick,
		InitialIntensity: i0,
		Stage:            agents.GriefDenial,
		StageStartedAt:   tick,
		RecoveryRate:     griever.Personality.RecoveryRate(),
	}
	g.Intensity = GriefIntensity(i0, 0, g.Stage)
	g.Modifiers = GriefModifiers(g.Intensity, g.Stage)
	rec := agents.GriefOf(griever)
	rec.Active = append(rec.Active, g)
	return g
}

// GriefUpdate reports how one grief moved during a progress step.
type GriefUpdate struct {
	DeceasedID agents.AgentID    `json:"deceased_id"`
	From       agents.GriefStage `json:"from"`
	To         agents.GriefStage `json:"to"`
	Intensity  float64           `json:"intensity"`
	Resolved   bool              `json:"resolved"`
}

// advanceGrief moves every active grief of a to tick and archives resolved ones.
func advanceGrief(a *agents.Agent, tick uint64) []GriefUpdate {
	if a.Ext.Grief == nil || len(a.Ext.Grief.Active) == 0 {
		return nil
	}
	rec := a.Ext.Grief
	var updates []GriefUpdate
	active := rec.Active[:0]
	for _, g := range rec.Active {
		u := GriefUpdate{DeceasedID: g.DeceasedID, From: g.Stage}
		for g.Stage < agents.GriefAcceptance {
			d := StageDuration(g.Stage, g.RecoveryRate)
			if tick < g.StageStartedAt+d {
				break
			}
			g.StageStartedAt += d
			g.Stage++
		}
		g.Intensity = GriefIntensity(g.InitialIntensity, tick-g.DeathTick, g.Stage)
		g.Modifiers = GriefModifiers(g.Intensity, g.Stage)
		u.To, u.Intensity = g.Stage, g.Intensity

		if g.Intensity < GriefResolvedBelow {
			at := tick
			g.ResolvedAt = &at
			g.Modifiers = agents.NeutralModifiers()
			rec.Past = append(rec.Past, g)
			u.Resolved = true
		} else {
			active = append(active, g)
		}
		updates = append(updates, u)
	}
	rec.Active = active
	return updates
}

// ProgressGrief advances a's grief and reports stage changes and resolutions.
func (s *Simulation) ProgressGrief(ctx context.Context, id agents.AgentID, tick uint64) ([]GriefUpdate, error) {
	loaded, err := s.loadAgents(ctx, id)
	if err != nil {
		return nil, err
	}
	a := loaded[0]
	updates := advanceGrief(a, tick)
	if len(updates) == 0 {
		return nil, nil
	}
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.emitGrief(ctx, a, updates, tick)
	return updates, nil
}

func (s *Simulation) emitGrief(ctx context.Context, a *agents.Agent, updates []GriefUpdate, tick uint64) {
	for _, u := range updates {
		other := fmt.Sprintf("agent %d", u.DeceasedID)
		if m := a.ModelOf(u.DeceasedID); m != nil && m.Values[agents.ValueFirstName] != "" {
			other = m.Values[agents.ValueFirstName] + " " + m.Values[agents.ValueLastName]
		}
		data := with(named(a), "other", other)
		switch {
		case u.Resolved:
			s.emit(ctx, chronicle.KindGriefResolved, tick, data, a.ID, u.DeceasedID)
		case u.To != u.From:
			s.emit(ctx, chronicle.KindGriefStage, tick, with(data, "stage", u.To.String()), a.ID, u.DeceasedID)
		}
	}
}

// DeathResult summarizes a death and its consequences.
type DeathResult struct {
	Widowed  *agents.AgentID  `json:"widowed,omitempty"`
	Grievers []agents.AgentID `json:"grievers,omitempty"`
}

// Die records the death of id and ripples it through the family, the
// deceased's employer, school and builders. Every agent touched is written
// in one store call.
func (s *Simulation) Die(ctx context.Context, id agents.AgentID, cause string, tick uint64) (DeathResult, error) {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return DeathResult{}, fmt.Errorf("list agents: %w", err)
	}
	var deceased *agents.Agent
	for _, a := range list {
		if a.ID == id {
			deceased = a
		}
	}
	if deceased == nil {
		loaded, err := s.loadAgents(ctx, id)
		if err != nil {
			return DeathResult{}, err
		}
		deceased = loaded[0]
	}
	if !deceased.Alive {
		return DeathResult{}, fmt.Errorf("%w: %d", ErrAlreadyDead, id)
	}

	// Kinship has to be read before the spouse link is cleared.
	type relative struct {
		a   *agents.Agent
		kin agents.Kinship
	}
	var relatives []relative
	var partner *agents.Agent
	for _, a := range list {
		if a.ID == id || !a.Alive {
			continue
		}
		if kin := a.KinshipTo(deceased); kin != agents.KinNone {
			relatives = append(relatives, relative{a, kin})
		}
		if currentRomance(a, id) != nil || (a.SpouseID != nil && *a.SpouseID == id) {
			partner = a
		}
	}

	at := tick
	deceased.Alive = false
	deceased.DeathTick = &at
	deceased.DeathCause = cause
	touched := []*agents.Agent{deceased}
	res := DeathResult{}

	if partner != nil {
		if s.endRomanceByDeath(deceased, partner, tick) {
			res.Widowed = agents.IDPtr(partner.ID)
		}
		touched = append(touched, partner)
	}

	ended := endOccupation(deceased, agents.EndDeath, tick)
	if deceased.Ext.Education != nil && deceased.Ext.Education.Current != nil {
		endEnrollment(deceased, agents.EnrollmentDropped, tick)
	}
	if fam := deceased.Ext.Family; fam != nil && fam.Pregnancy != nil {
		fam.PastPregnancies = append(fam.PastPregnancies, *fam.Pregnancy)
		fam.Pregnancy = nil
	}
	abandoned := abandonAll(deceased, "the client died", tick)

	for _, r := range relatives {
		startGrief(r.a, deceased, r.kin, tick)
		if m := r.a.ModelOf(id); m != nil {
			m.Facts[agents.FactDeceased] = true
			m.LastUpdated = tick
		}
		res.Grievers = append(res.Grievers, r.a.ID)
		if partner == nil || r.a.ID != partner.ID {
			touched = append(touched, r.a)
		}
	}

	if err := s.save(ctx, touched...); err != nil {
		return DeathResult{}, err
	}
	delete(s.Registry.Pregnancies, id)
	delete(s.Registry.Enrollments, id)
	for _, c := range abandoned {
		delete(s.Registry.Commissions, c.ID)
	}

	if ended != nil {
		if err := s.releasePosition(ctx, deceased, *ended); err != nil {
			slog.Warn("vacancy not reopened", "agent", id, "business", ended.BusinessID, "error", err)
		}
	}
	if err := s.orphanBusinesses(ctx, id); err != nil {
		slog.Warn("businesses not released", "agent", id, "error", err)
	}

	year := s.Year(tick)
	s.emit(ctx, chronicle.KindDeath, tick, with(named(deceased), "cause", cause, "age", itoa(deceased.Age(year))), id)
	if res.Widowed != nil {
		s.emit(ctx, chronicle.KindWidowed, tick, pair(partner, deceased), partner.ID, id)
	}
	for _, r := range relatives {
		s.emit(ctx, chronicle.KindGriefBegan, tick, with(pair(r.a, deceased), "kinship", r.kin.String()), r.a.ID, id)
	}
	slog.Info("death", "tick", tick, "agent", deceased.Name(), "cause", cause, "grievers", len(res.Grievers))
	return res, nil
}

// orphanBusinesses hands the deceased's businesses to the town.
func (s *Simulation) orphanBusinesses(ctx context.Context, owner agents.AgentID) error {
	list, err := s.store.ListBusinesses(ctx, s.WorldID)
	if err != nil {
		return err
	}
	for _, b := range list {
		if b.OwnerID == nil || *b.OwnerID != uint64(owner) {
			continue
		}
		b.OwnerID = nil
		if err := s.store.UpdateBusiness(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// MortalityChance is the daily chance of a natural death at age.
func MortalityChance(age int) float64 {
	var annual float64
	switch {
	case age < 1:
		annual = 0.03
	case age < 5:
		annual = 0.01
	case age < 40:
		annual = 0.003
	case age >= 100:
		return 1
	default:
		annual = 0.003 * math.Exp(0.085*float64(age-40))
	}
	return mathx.Clamp01(annual / TicksPerYear)
}

// causeOfDeath picks a plausible natural cause for age.
func causeOfDeath(age int, roll float64) string {
	switch {
	case age < 5:
		return "fever"
	case age >= 70:
		return "old age"
	case roll < 0.3:
		return "an accident"
	default:
		return "illness"
	}
}
