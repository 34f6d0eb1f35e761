// Construction: commissioning buildings and working on them day by day.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/economy"
	"github.com/talgya/hamlet/internal/mathx"
	"github.com/talgya/hamlet/internal/social"
)

// Structure kinds.
const (
	StructureHouse  = "house"
	StructureBarn   = "barn"
	StructureShop   = "shop"
	StructureChurch = "church"
)

// StructureSpec is the price and base build time of a structure kind.
type StructureSpec struct {
	Cost     float64
	Duration uint64
}

// StructureSpecs lists what builders can be commissioned to build.
var StructureSpecs = map[string]StructureSpec{
	StructureHouse:  {Cost: 400, Duration: 60},
	StructureBarn:   {Cost: 250, Duration: 40},
	StructureShop:   {Cost: 600, Duration: 80},
	StructureChurch: {Cost: 1200, Duration: 180},
}

// Milestones are the progress percentages that are announced.
var Milestones = []int{25, 50, 75}

// DelayThreshold is how many points behind schedule a project may fall
// before it counts as delayed.
const DelayThreshold = 10.0

// noiseStep spaces consecutive days along the noise field.
const noiseStep = 0.15

// ConstructionProgress reports one day of work.
type ConstructionProgress struct {
	Commission agents.Commission `json:"commission"`
	Worked     float64           `json:"worked"`
	Milestones []int             `json:"milestones,omitempty"`
	Completed  bool              `json:"completed"`
	Structure  *social.Structure `json:"structure,omitempty"`
}

// WorkerModifier scales daily progress by crew size.
func WorkerModifier(workers int) float64 {
	return mathx.Clamp(0.5+0.25*float64(workers), 0.5, 2)
}

// dailyVariation draws this day's pace from the commission's noise stream.
func (s *Simulation) dailyVariation(c *agents.Commission, day uint64) float64 {
	n, ok := s.noise[c.ID]
	if !ok {
		n = opensimplex.NewNormalized(c.NoiseSeed)
		s.noise[c.ID] = n
	}
	return 0.8 + 0.4*n.Eval2(float64(day)*noiseStep, 0)
}

// CommissionConstruction has client pay a builder for a new structure.
func (s *Simulation) CommissionConstruction(ctx context.Context, clientID agents.AgentID, builderID uint64, kind string, tick uint64) (agents.Commission, error) {
	spec, ok := StructureSpecs[kind]
	if !ok {
		return agents.Commission{}, fmt.Errorf("%w: %q", ErrUnknownStructure, kind)
	}
	b, owner, err := s.loadBusiness(ctx, builderID)
	if err != nil {
		return agents.Commission{}, err
	}
	if b.Type != social.BusinessBuilder {
		return agents.Commission{}, fmt.Errorf("%w: %s is a %s", ErrNotBuilder, b.Name, b.Type)
	}
	loaded, err := s.loadAgents(ctx, clientID)
	if err != nil {
		return agents.Commission{}, err
	}
	client := loaded[0]
	if !client.Alive {
		return agents.Commission{}, fmt.Errorf("%w: %d", ErrAgentDead, clientID)
	}

	memo := fmt.Sprintf("%s from %s", kind, b.Name)
	touched := []*agents.Agent{client}
	if owner != nil && owner.ID != client.ID {
		if _, err := economy.Transfer(client, owner, spec.Cost, economy.TxCommission, memo, tick); err != nil {
			return agents.Commission{}, err
		}
		touched = append(touched, owner)
	} else if _, err := economy.Debit(client, spec.Cost, economy.TxCommission, memo, tick); err != nil {
		return agents.Commission{}, err
	}

	c := agents.Commission{
		ID:             uuid.New(),
		ClientID:       client.ID,
		BuilderID:      b.ID,
		Kind:           kind,
		Cost:           spec.Cost,
		BaseDuration:   spec.Duration,
		Status:         agents.CommissionCommissioned,
		NoiseSeed:      int64(s.rng.Float64() * (1 << 53)),
		CommissionedAt: tick,
	}
	rec := agents.BuildingOf(client)
	rec.Active = append(rec.Active, c)
	if err := s.save(ctx, touched...); err != nil {
		return agents.Commission{}, err
	}
	reg := c
	s.Registry.Commissions[c.ID] = &reg
	s.emit(ctx, chronicle.KindCommissioned, tick, with(named(client),
		"kind", kind, "builder", b.Name, "amount", chronicle.Money(spec.Cost)), client.ID)
	return c, nil
}

// loadCommission finds an active commission and its client.
func (s *Simulation) loadCommission(ctx context.Context, id uuid.UUID) (*agents.Agent, int, error) {
	reg, ok := s.Registry.Commissions[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrCommissionNotFound, id)
	}
	loaded, err := s.loadAgents(ctx, reg.ClientID)
	if err != nil {
		return nil, 0, err
	}
	client := loaded[0]
	if client.Ext.Building != nil {
		if i := slices.IndexFunc(client.Ext.Building.Active, func(c agents.Commission) bool { return c.ID == id }); i >= 0 {
			return client, i, nil
		}
		for _, c := range client.Ext.Building.Past {
			if c.ID == id {
				return nil, 0, fmt.Errorf("%w: %s", ErrCommissionClosed, id)
			}
		}
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrCommissionNotFound, id)
}

// archiveCommission moves the active commission at i to history.
func archiveCommission(client *agents.Agent, i int) agents.Commission {
	rec := client.Ext.Building
	c := rec.Active[i]
	rec.Active = slices.Delete(rec.Active, i, i+1)
	rec.Past = append(rec.Past, c)
	return c
}

// ProgressConstruction works one day on a commission with the given crew.
func (s *Simulation) ProgressConstruction(ctx context.Context, id uuid.UUID, workers int, tick uint64) (ConstructionProgress, error) {
	client, i, err := s.loadCommission(ctx, id)
	if err != nil {
		return ConstructionProgress{}, err
	}
	c := &client.Ext.Building.Active[i]
	if c.Status.Terminal() {
		return ConstructionProgress{}, fmt.Errorf("%w: %s", ErrCommissionClosed, id)
	}
	if c.Status == agents.CommissionCommissioned {
		at := tick
		c.StartedAt = &at
		c.Status = agents.CommissionInProgress
	}
	day := tick - *c.StartedAt

	before := c.Progress
	worked := (100 / float64(c.BaseDuration)) * WorkerModifier(workers) * s.dailyVariation(c, day)
	c.Progress = math.Min(100, c.Progress+worked)
	res := ConstructionProgress{Worked: c.Progress - before}
	for _, m := range Milestones {
		if before < float64(m) && c.Progress >= float64(m) {
			c.Milestones = append(c.Milestones, m)
			res.Milestones = append(res.Milestones, m)
		}
	}

	wasDelayed := c.Status == agents.CommissionDelayed
	expected := math.Min(100, 100*float64(day+1)/float64(c.BaseDuration))
	switch {
	case c.Progress >= 100:
		b, err := s.store.GetBusiness(ctx, c.BuilderID)
		if err != nil {
			return ConstructionProgress{}, fmt.Errorf("load builder %d: %w", c.BuilderID, err)
		}
		res.Completed = true
		res.Structure = &social.Structure{
			WorldID:      s.WorldID,
			SettlementID: b.SettlementID,
			Kind:         c.Kind,
			OwnerID:      uint64(client.ID),
			BuiltAt:      tick,
			BuilderID:    b.ID,
		}
	case expected-c.Progress > DelayThreshold:
		c.Status = agents.CommissionDelayed
	default:
		c.Status = agents.CommissionInProgress
	}

	if res.Completed {
		// The structure is created last so only the save can fail after it.
		sid, err := s.store.CreateStructure(ctx, res.Structure)
		if err != nil {
			return ConstructionProgress{}, fmt.Errorf("create structure: %w", err)
		}
		res.Structure.ID = sid
		c.Status = agents.CommissionCompleted
		at := tick
		c.EndedAt = &at
		c.StructureID = &sid
		if c.Kind == StructureHouse {
			client.ResidenceID = &sid
		}
		res.Commission = archiveCommission(client, i)
	} else {
		res.Commission = *c
	}
	if err := s.save(ctx, client); err != nil {
		return ConstructionProgress{}, err
	}
	if res.Completed {
		delete(s.Registry.Commissions, id)
		delete(s.noise, id)
	} else {
		reg := res.Commission
		s.Registry.Commissions[id] = &reg
	}

	kind := res.Commission.Kind
	data := with(named(client), "kind", kind)
	for _, m := range res.Milestones {
		s.emit(ctx, chronicle.KindMilestone, tick, with(named(client), "kind", kind, "percent", chronicle.Percent(m)), client.ID)
	}
	switch {
	case res.Completed:
		s.emit(ctx, chronicle.KindCompleted, tick, data, client.ID)
	case res.Commission.Status == agents.CommissionDelayed && !wasDelayed:
		s.emit(ctx, chronicle.KindDelayed, tick, data, client.ID)
	}
	return res, nil
}

// abandonAll abandons every active commission of client.
func abandonAll(client *agents.Agent, reason string, tick uint64) []agents.Commission {
	if client.Ext.Building == nil {
		return nil
	}
	var out []agents.Commission
	for len(client.Ext.Building.Active) > 0 {
		c := &client.Ext.Building.Active[0]
		c.Status = agents.CommissionAbandoned
		c.EndReason = reason
		at := tick
		c.EndedAt = &at
		out = append(out, archiveCommission(client, 0))
	}
	return out
}

// AbandonConstruction stops work on a commission for good.
func (s *Simulation) AbandonConstruction(ctx context.Context, id uuid.UUID, reason string, tick uint64) (agents.Commission, error) {
	client, i, err := s.loadCommission(ctx, id)
	if err != nil {
		return agents.Commission{}, err
	}
	c := &client.Ext.Building.Active[i]
	if c.Status.Terminal() {
		return agents.Commission{}, fmt.Errorf("%w: %s", ErrCommissionClosed, id)
	}
	c.Status = agents.CommissionAbandoned
	c.EndReason = reason
	at := tick
	c.EndedAt = &at
	done := archiveCommission(client, i)
	if err := s.save(ctx, client); err != nil {
		return agents.Commission{}, err
	}
	delete(s.Registry.Commissions, id)
	delete(s.noise, id)
	s.emit(ctx, chronicle.KindAbandoned, tick, with(named(client), "kind", done.Kind, "reason", reason), client.ID)
	return done, nil
}

// ProgressAllConstruction works one day on every active commission. A
// builder's crew is its staff; a closed builder abandons its projects.
func (s *Simulation) ProgressAllConstruction(ctx context.Context, tick uint64) {
	for _, id := range s.Registry.CommissionIDs() {
		c := s.Registry.Commissions[id]
		b, err := s.store.GetBusiness(ctx, c.BuilderID)
		if err != nil {
			slog.Warn("construction skipped", "tick", tick, "commission", id, "error", err)
			continue
		}
		if b.Closed {
			if _, err := s.AbandonConstruction(ctx, id, "the builder closed", tick); err != nil {
				slog.Warn("abandon failed", "tick", tick, "commission", id, "error", err)
			}
			continue
		}
		if _, err := s.ProgressConstruction(ctx, id, len(b.EmployeeIDs), tick); err != nil {
			slog.Warn("construction skipped", "tick", tick, "commission", id, "error", err)
		}
	}
}

// CommissionHousing has married couples without a home of their own order a
// house when they can afford it.
func (s *Simulation) CommissionHousing(ctx context.Context, tick uint64) error {
	builder, err := s.firstBusinessOfType(ctx, social.BusinessBuilder)
	if err != nil || builder == nil {
		return err
	}
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	cost := StructureSpecs[StructureHouse].Cost
	for _, a := range list {
		if !a.Alive || !a.IsMarried() || a.ResidenceID != nil || a.Wealth() < cost*1.2 {
			continue
		}
		if a.Ext.Building != nil && len(a.Ext.Building.Active) > 0 {
			continue
		}
		// One house per couple: the spouse with the lower id orders it.
		if *a.SpouseID < a.ID {
			continue
		}
		if _, err := s.CommissionConstruction(ctx, a.ID, *builder, StructureHouse, tick); err != nil {
			slog.Warn("commission skipped", "tick", tick, "agent", a.ID, "error", err)
		}
	}
	return nil
}
