// Romance: attraction, courtship, engagement, marriage and divorce.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/mathx"
)

// Romance thresholds.
const (
	AttractionSpark      = 5.0
	DateAcceptSpark      = 3.0
	MarriageCharge       = 20.0
	MarriageTrust        = 0.7
	MinDatingTicks       = 90
	EngagementTicks      = 60
	DivorceChargePenalty = -30.0

	// An attraction nobody acts on fades after this long.
	AttractionFadeTicks = 180
)

// Romance end reasons.
const (
	EndDivorce = "divorce"
	EndWidowed = "widowed"
	EndFaded   = "faded"
	EndDeath   = "death"
)

// RomanceResult is the outcome of a romance step that can be declined.
type RomanceResult struct {
	Eligibility
	Relationship *agents.RomanticRelationship `json:"relationship,omitempty"`
}

// ProposalResult is the outcome of a marriage proposal.
type ProposalResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// DateResult reports how a date went.
type DateResult struct {
	Quality      float64                     `json:"quality"`
	Relationship agents.RomanticRelationship `json:"relationship"`
}

// currentRomance returns a's active record with other, or nil.
func currentRomance(a *agents.Agent, other agents.AgentID) *agents.RomanticRelationship {
	if a.Ext.Romance == nil || a.Ext.Romance.Current == nil {
		return nil
	}
	cur := a.Ext.Romance.Current
	if !cur.Active() || cur.Pair != agents.MakePairKey(a.ID, other) {
		return nil
	}
	return cur
}

func hasActiveRomance(a *agents.Agent) bool {
	return a.Ext.Romance != nil && a.Ext.Romance.Current != nil && a.Ext.Romance.Current.Active()
}

// setRomance writes rec onto both partners and the registry.
func (s *Simulation) setRomance(a, b *agents.Agent, rec agents.RomanticRelationship) {
	ra, rb := rec, rec
	agents.RomanceOf(a).Current = &ra
	agents.RomanceOf(b).Current = &rb
	s.Registry.putRomance(&rec)
}

// archiveRomance moves rec to both partners' history and drops it from the
// registry.
func (s *Simulation) archiveRomance(a, b *agents.Agent, rec agents.RomanticRelationship) {
	for _, p := range []*agents.Agent{a, b} {
		r := agents.RomanceOf(p)
		r.Past = append(r.Past, rec)
		if r.Current != nil && r.Current.ID == rec.ID {
			r.Current = nil
		}
	}
	delete(s.Registry.Romances, rec.Pair)
}

func bothAlive(a, b *agents.Agent) error {
	if !a.Alive {
		return fmt.Errorf("%w: %d", ErrAgentDead, a.ID)
	}
	if !b.Alive {
		return fmt.Errorf("%w: %d", ErrAgentDead, b.ID)
	}
	return nil
}

func spark(owner *agents.Agent, other agents.AgentID) float64 {
	if rel := owner.Relationship(other); rel != nil {
		return rel.Spark
	}
	return 0
}

func charge(owner *agents.Agent, other agents.AgentID) float64 {
	if rel := owner.Relationship(other); rel != nil {
		return rel.Charge
	}
	return 0
}

// BeginAttraction opens a romance once a's spark toward b is strong enough.
func (s *Simulation) BeginAttraction(ctx context.Context, aID, bID agents.AgentID, tick uint64) (RomanceResult, error) {
	a, b, err := s.loadPair(ctx, aID, bID)
	if err != nil {
		return RomanceResult{}, err
	}
	if err := bothAlive(a, b); err != nil {
		return RomanceResult{}, err
	}
	year := s.Year(tick)
	switch {
	case !a.IsAdult(year) || !b.IsAdult(year):
		return RomanceResult{Eligibility: Ineligible("both must be adults")}, nil
	case a.IsMarried() || b.IsMarried():
		return RomanceResult{Eligibility: Ineligible("already married")}, nil
	case hasActiveRomance(a) || hasActiveRomance(b):
		return RomanceResult{Eligibility: Ineligible("already courting")}, nil
	case spark(a, b.ID) < AttractionSpark:
		return RomanceResult{Eligibility: Ineligible("not attracted")}, nil
	}

	rec := agents.RomanticRelationship{
		ID:          uuid.New(),
		Pair:        agents.MakePairKey(a.ID, b.ID),
		InitiatorID: a.ID,
		Stage:       agents.StageAttracted,
		AttractedAt: tick,
	}
	s.setRomance(a, b, rec)
	if err := s.save(ctx, a, b); err != nil {
		delete(s.Registry.Romances, rec.Pair)
		return RomanceResult{}, err
	}
	s.emit(ctx, chronicle.KindAttraction, tick, pair(a, b), a.ID, b.ID)
	return RomanceResult{Eligibility: Eligible(), Relationship: &rec}, nil
}

// AskOnDate moves an attracted pair to courting if the recipient is willing.
func (s *Simulation) AskOnDate(ctx context.Context, askerID, recipientID agents.AgentID, tick uint64) (RomanceResult, error) {
	asker, recipient, err := s.loadPair(ctx, askerID, recipientID)
	if err != nil {
		return RomanceResult{}, err
	}
	if err := bothAlive(asker, recipient); err != nil {
		return RomanceResult{}, err
	}
	cur := currentRomance(asker, recipient.ID)
	if cur == nil {
		return RomanceResult{}, fmt.Errorf("%w: %d and %d", ErrNoRomance, askerID, recipientID)
	}
	if cur.Stage != agents.StageAttracted {
		return RomanceResult{}, fmt.Errorf("%w: %s, want %s", ErrWrongStage, cur.Stage, agents.StageAttracted)
	}
	if asker.IsMarried() || recipient.IsMarried() {
		return RomanceResult{Eligibility: Ineligible("already married")}, nil
	}
	if spark(recipient, asker.ID) < DateAcceptSpark {
		return RomanceResult{Eligibility: Ineligible("no spark in return")}, nil
	}
	if charge(recipient, asker.ID) < 0 {
		return RomanceResult{Eligibility: Ineligible("recipient dislikes the asker")}, nil
	}

	rec := *cur
	rec.Stage = agents.StageDating
	since := tick
	rec.DatingSince = &since
	s.setRomance(asker, recipient, rec)
	if err := s.save(ctx, asker, recipient); err != nil {
		s.Registry.putRomance(cur)
		return RomanceResult{}, err
	}
	s.emit(ctx, chronicle.KindDating, tick, pair(asker, recipient), asker.ID, recipient.ID)
	return RomanceResult{Eligibility: Eligible(), Relationship: &rec}, nil
}

// GoOnDate is one outing of a courting pair. Both partners' records move by
// the same quality.
func (s *Simulation) GoOnDate(ctx context.Context, aID, bID agents.AgentID, tick uint64) (DateResult, error) {
	a, b, err := s.loadPair(ctx, aID, bID)
	if err != nil {
		return DateResult{}, err
	}
	if err := bothAlive(a, b); err != nil {
		return DateResult{}, err
	}
	cur := currentRomance(a, b.ID)
	if cur == nil {
		return DateResult{}, fmt.Errorf("%w: %d and %d", ErrNoRomance, aID, bID)
	}
	if cur.Stage != agents.StageDating {
		return DateResult{}, fmt.Errorf("%w: %s, want %s", ErrWrongStage, cur.Stage, agents.StageDating)
	}

	compat := agents.Compatibility(a.Personality, b.Personality)
	q := 0.3 + 0.4*compat + (s.rng.Float64()-0.5)*0.8
	q = mathx.Clamp(q*a.Modifiers().Social, -1, 1)
	s.interact(ctx, a, b, q, tick)
	s.interact(ctx, b, a, q, tick)

	rec := *cur
	rec.Dates++
	s.setRomance(a, b, rec)
	if err := s.save(ctx, a, b); err != nil {
		s.Registry.putRomance(cur)
		return DateResult{}, err
	}
	if q > 0 {
		s.emit(ctx, chronicle.KindDate, tick, pair(a, b), a.ID, b.ID)
	}
	return DateResult{Quality: q, Relationship: rec}, nil
}

// ProposeMarriage asks partner to marry. Acceptance is decided here; an
// ineligible proposal is declined with a reason and changes nothing.
func (s *Simulation) ProposeMarriage(ctx context.Context, proposerID, partnerID agents.AgentID, tick uint64) (ProposalResult, error) {
	proposer, partner, err := s.loadPair(ctx, proposerID, partnerID)
	if err != nil {
		return ProposalResult{}, err
	}
	cur := currentRomance(proposer, partner.ID)
	if r := proposalCheck(proposer, partner, cur, tick); r != "" {
		if cur != nil && cur.Stage == agents.StageDating {
			s.emit(ctx, chronicle.KindRejection, tick, with(pair(proposer, partner), "reason", r), proposer.ID, partner.ID)
		}
		return ProposalResult{Reason: r}, nil
	}

	rec := *cur
	rec.Stage = agents.StageEngaged
	at := tick
	rec.EngagedAt = &at
	s.setRomance(proposer, partner, rec)
	if err := s.save(ctx, proposer, partner); err != nil {
		s.Registry.putRomance(cur)
		return ProposalResult{}, err
	}
	s.emit(ctx, chronicle.KindEngagement, tick, pair(proposer, partner), proposer.ID, partner.ID)
	return ProposalResult{Accepted: true}, nil
}

// proposalCheck returns why a proposal fails, or "" when it is accepted.
func proposalCheck(proposer, partner *agents.Agent, cur *agents.RomanticRelationship, tick uint64) string {
	switch {
	case !proposer.Alive || !partner.Alive:
		return "one of the pair has died"
	case cur == nil || cur.Stage != agents.StageDating:
		return "the pair is not courting"
	case proposer.IsMarried() || partner.IsMarried():
		return "already married"
	case cur.DatingSince == nil || tick < *cur.DatingSince+MinDatingTicks:
		return "they have not courted long enough"
	case charge(proposer, partner.ID) < MarriageCharge:
		return "the proposer's affection is not deep enough"
	case charge(partner, proposer.ID) < MarriageCharge:
		return "the partner's affection is not deep enough"
	case partner.Relationship(proposer.ID).Trust < MarriageTrust:
		return "the partner does not trust the proposer enough"
	}
	return ""
}

// Marry weds an engaged pair. Both spouse ids are set in the same write.
func (s *Simulation) Marry(ctx context.Context, aID, bID agents.AgentID, tick uint64) (agents.RomanticRelationship, error) {
	a, b, err := s.loadPair(ctx, aID, bID)
	if err != nil {
		return agents.RomanticRelationship{}, err
	}
	if err := bothAlive(a, b); err != nil {
		return agents.RomanticRelationship{}, err
	}
	cur := currentRomance(a, b.ID)
	if cur == nil || cur.Stage != agents.StageEngaged {
		return agents.RomanticRelationship{}, fmt.Errorf("%w: %d and %d", ErrNotEngaged, aID, bID)
	}
	if a.IsMarried() || b.IsMarried() {
		return agents.RomanticRelationship{}, fmt.Errorf("%w: %d and %d", ErrAlreadyMarried, aID, bID)
	}

	rec := *cur
	rec.Stage = agents.StageMarried
	at := tick
	rec.MarriedAt = &at
	a.SpouseID = agents.IDPtr(b.ID)
	b.SpouseID = agents.IDPtr(a.ID)
	if a.ResidenceID != nil {
		res := *a.ResidenceID
		b.ResidenceID = &res
	} else if b.ResidenceID != nil {
		res := *b.ResidenceID
		a.ResidenceID = &res
	}
	learnSpouse(a, b, tick)
	learnSpouse(b, a, tick)
	s.setRomance(a, b, rec)
	if err := s.save(ctx, a, b); err != nil {
		s.Registry.putRomance(cur)
		return agents.RomanticRelationship{}, err
	}
	s.emit(ctx, chronicle.KindMarriage, tick, with(pair(a, b), "year", itoa(s.Year(tick))), a.ID, b.ID)
	return rec, nil
}

func learnSpouse(owner, spouse *agents.Agent, tick uint64) {
	m, _ := ensureModel(owner, spouse.ID, visibleObservations(spouse), agents.ClassFamily, tick)
	promote(m, agents.ClassFamily)
	m.Facts[agents.FactMarried] = true
	m.Values[agents.ValueSpouse] = strconv.FormatUint(uint64(owner.ID), 10)
	m.LastUpdated = tick
}

// Divorce ends initiator's marriage. Both partners take a charge penalty and
// the record is archived as divorced.
func (s *Simulation) Divorce(ctx context.Context, initiatorID agents.AgentID, tick uint64) (agents.RomanticRelationship, error) {
	loaded, err := s.loadAgents(ctx, initiatorID)
	if err != nil {
		return agents.RomanticRelationship{}, err
	}
	initiator := loaded[0]
	if initiator.SpouseID == nil {
		return agents.RomanticRelationship{}, fmt.Errorf("%w: %d", ErrNotMarried, initiatorID)
	}
	loaded, err = s.loadAgents(ctx, *initiator.SpouseID)
	if err != nil {
		return agents.RomanticRelationship{}, err
	}
	spouse := loaded[0]

	adjustCharge(initiator, spouse, DivorceChargePenalty, tick)
	adjustCharge(spouse, initiator, DivorceChargePenalty, tick)
	initiator.SpouseID, spouse.SpouseID = nil, nil
	forgetSpouse(initiator, spouse.ID, tick)
	forgetSpouse(spouse, initiator.ID, tick)

	rec := agents.RomanticRelationship{
		ID:          uuid.New(),
		Pair:        agents.MakePairKey(initiator.ID, spouse.ID),
		InitiatorID: initiator.ID,
	}
	if cur := currentRomance(initiator, spouse.ID); cur != nil {
		rec = *cur
	}
	rec.Stage = agents.StageDivorced
	at := tick
	rec.EndedAt = &at
	rec.EndReason = EndDivorce
	s.archiveRomance(initiator, spouse, rec)
	if err := s.save(ctx, initiator, spouse); err != nil {
		return agents.RomanticRelationship{}, err
	}
	s.emit(ctx, chronicle.KindDivorce, tick, pair(initiator, spouse), initiator.ID, spouse.ID)
	return rec, nil
}

func forgetSpouse(owner *agents.Agent, former agents.AgentID, tick uint64) {
	if m := owner.ModelOf(former); m != nil {
		m.Facts[agents.FactMarried] = false
		delete(m.Values, agents.ValueSpouse)
		m.LastUpdated = tick
	}
}

// endRomanceByDeath closes whatever romance deceased was part of. A widowed
// spouse stops being married; the record keeps its married stage.
func (s *Simulation) endRomanceByDeath(deceased, partner *agents.Agent, tick uint64) bool {
	cur := currentRomance(deceased, partner.ID)
	if cur == nil {
		cur = currentRomance(partner, deceased.ID)
	}
	widowed := partner.SpouseID != nil && *partner.SpouseID == deceased.ID
	if cur == nil && !widowed {
		return false
	}
	rec := agents.RomanticRelationship{
		ID:          uuid.New(),
		Pair:        agents.MakePairKey(deceased.ID, partner.ID),
		InitiatorID: deceased.ID,
		Stage:       agents.StageMarried,
	}
	if cur != nil {
		rec = *cur
	}
	at := tick
	rec.EndedAt = &at
	rec.EndReason = EndDeath
	if widowed {
		rec.EndReason = EndWidowed
		partner.SpouseID = nil
		deceased.SpouseID = nil
		if m := partner.ModelOf(deceased.ID); m != nil {
			m.Facts[agents.FactDeceased] = true
		}
	}
	s.archiveRomance(deceased, partner, rec)
	return widowed
}

// ProgressRomance advances every active romance by one day.
func (s *Simulation) ProgressRomance(ctx context.Context, tick uint64) {
	for _, key := range s.Registry.RomancePairs() {
		rec, ok := s.Registry.Romances[key]
		if !ok {
			continue
		}
		initiator, other := rec.InitiatorID, rec.Pair.Other(rec.InitiatorID)
		var err error
		switch rec.Stage {
		case agents.StageAttracted:
			switch {
			case entropy.Chance(s.rng, 0.1):
				var res RomanceResult
				res, err = s.AskOnDate(ctx, initiator, other, tick)
				if err == nil && !res.OK {
					slog.Debug("date declined", "tick", tick, "asker", initiator, "reason", res.Reason)
				}
			case tick >= rec.AttractedAt+AttractionFadeTicks:
				err = s.fadeRomance(ctx, *rec, tick)
			}
		case agents.StageDating:
			if entropy.Chance(s.rng, 1.0/7) {
				_, err = s.GoOnDate(ctx, initiator, other, tick)
			}
			if err == nil && rec.DatingSince != nil && tick >= *rec.DatingSince+MinDatingTicks && entropy.Chance(s.rng, 1.0/30) {
				_, err = s.ProposeMarriage(ctx, initiator, other, tick)
			}
		case agents.StageEngaged:
			if rec.EngagedAt != nil && tick >= *rec.EngagedAt+EngagementTicks {
				_, err = s.Marry(ctx, initiator, other, tick)
			}
		case agents.StageMarried:
			if tick%TicksPerMonth == 0 {
				err = s.maybeDivorce(ctx, key, tick)
			}
		}
		if err != nil {
			slog.Warn("romance step skipped", "tick", tick, "pair", fmt.Sprintf("%d-%d", key.Low, key.High), "stage", rec.Stage, "error", err)
		}
	}
}

func (s *Simulation) fadeRomance(ctx context.Context, rec agents.RomanticRelationship, tick uint64) error {
	a, b, err := s.loadPair(ctx, rec.Pair.Low, rec.Pair.High)
	if err != nil {
		return err
	}
	at := tick
	rec.EndedAt = &at
	rec.EndReason = EndFaded
	s.archiveRomance(a, b, rec)
	return s.save(ctx, a, b)
}

// maybeDivorce gives an unhappy marriage a monthly chance of ending.
func (s *Simulation) maybeDivorce(ctx context.Context, key agents.PairKey, tick uint64) error {
	a, b, err := s.loadPair(ctx, key.Low, key.High)
	if err != nil {
		return err
	}
	ca, cb := charge(a, b.ID), charge(b, a.ID)
	if min(ca, cb) > agents.EnmityCharge {
		return nil
	}
	if !entropy.Chance(s.rng, 0.1*a.Modifiers().Risk) {
		return nil
	}
	initiator := a
	if cb < ca {
		initiator = b
	}
	_, err = s.Divorce(ctx, initiator.ID, tick)
	return err
}
