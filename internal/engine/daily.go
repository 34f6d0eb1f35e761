// Day, month and year passes over the whole population.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/drama"
	"github.com/talgya/hamlet/internal/entropy"
)

// Daily social tuning.
const (
	ConversationChance = 0.3
	MaxBystanders      = 2
	decayEvery         = 7
	marketEvery        = 7
)

// Attach wires the simulation's passes into e.
func (s *Simulation) Attach(e *Engine) {
	e.OnDay = s.TickDay
	e.OnMonth = s.TickMonth
	e.OnYear = s.TickYear
}

// place groups agents who can meet: same location, else same residence.
func place(a *agents.Agent) uint64 {
	switch {
	case a.LocationID != nil:
		return *a.LocationID
	case a.ResidenceID != nil:
		return *a.ResidenceID
	default:
		return 0
	}
}

// TickDay runs one day: knowledge decay, deaths, conversations, romance,
// births, grief and construction. Population stats are refreshed by the
// monthly and yearly passes.
func (s *Simulation) TickDay(ctx context.Context, tick uint64) error {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	year := s.Year(tick)
	// Decay works on the fresh snapshot so the population is written once.
	if tick%decayEvery == 0 {
		if err := s.decayAll(ctx, list, tick); err != nil {
			slog.Warn("decay skipped", "tick", tick, "error", err)
		}
	}

	var living []*agents.Agent
	for _, a := range list {
		if !a.Alive {
			continue
		}
		age := a.Age(year)
		if entropy.Chance(s.rng, MortalityChance(age)) {
			if _, err := s.Die(ctx, a.ID, causeOfDeath(age, s.rng.Float64()), tick); err != nil {
				slog.Warn("death skipped", "tick", tick, "agent", a.ID, "error", err)
			}
			continue
		}
		living = append(living, a)
	}

	s.converseAll(ctx, living, tick)
	s.ProgressRomance(ctx, tick)
	s.ProgressPregnancies(ctx, tick)
	for _, a := range living {
		if a.Ext.Grief == nil || len(a.Ext.Grief.Active) == 0 {
			continue
		}
		if _, err := s.ProgressGrief(ctx, a.ID, tick); err != nil {
			slog.Warn("grief step skipped", "tick", tick, "agent", a.ID, "error", err)
		}
	}
	s.ProgressAllConstruction(ctx, tick)
	if tick%marketEvery == 0 {
		if err := s.MarketDay(ctx, tick); err != nil {
			return err
		}
	}

	s.LastTick = tick
	return s.FlushEvents(ctx)
}

// converseAll has some agents strike up a conversation with someone nearby.
// A conversation that leaves strong spark behind may start a romance.
func (s *Simulation) converseAll(ctx context.Context, living []*agents.Agent, tick uint64) {
	groups := make(map[uint64][]agents.AgentID)
	for _, a := range living {
		groups[place(a)] = append(groups[place(a)], a.ID)
	}
	for _, a := range living {
		if !entropy.Chance(s.rng, ConversationChance*a.Modifiers().Social) {
			continue
		}
		here := groups[place(a)]
		if len(here) < 2 {
			continue
		}
		other := here[s.rng.Intn(len(here))]
		if other == a.ID {
			continue
		}
		var bystanders []agents.AgentID
		for _, id := range here {
			if id != a.ID && id != other && len(bystanders) < MaxBystanders && entropy.Chance(s.rng, 0.5) {
				bystanders = append(bystanders, id)
			}
		}
		res, err := s.Converse(ctx, a.ID, other, bystanders, tick)
		if err != nil {
			slog.Debug("conversation skipped", "tick", tick, "agent", a.ID, "error", err)
			continue
		}
		if res.Initiator.Spark >= AttractionSpark {
			if _, err := s.BeginAttraction(ctx, a.ID, other, tick); err != nil {
				slog.Debug("attraction skipped", "tick", tick, "agent", a.ID, "error", err)
			}
		}
	}
}

// TickMonth runs the monthly passes: school, payroll, hiring, conception,
// debts, markets and the drama report.
func (s *Simulation) TickMonth(ctx context.Context, tick uint64) error {
	s.ProgressAllEducation(ctx, tick)

	pay, err := s.PaySalaries(ctx, tick)
	if err != nil {
		return err
	}
	hired, err := s.FillVacancies(ctx, tick)
	if err != nil {
		return err
	}
	if err := s.AttemptConceptions(ctx, tick); err != nil {
		return err
	}
	defaults, err := s.DefaultOverdueDebts(ctx, tick)
	if err != nil {
		return err
	}
	if err := s.OfferLoans(ctx, tick); err != nil {
		return err
	}
	if err := s.RecomputeMarkets(ctx); err != nil {
		return err
	}
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	s.updateStats(list)
	report := excavate(list)

	slog.Info("monthly report",
		"date", SimTime(tick, s.StartYear),
		"population", s.Stats.Population,
		"employed", s.Stats.Employed,
		"students", s.Stats.Students,
		"salaries_paid", pay.Paid,
		"salaries_unpaid", pay.Unpaid,
		"hired", hired,
		"defaults", defaults,
		"drama", len(report.Situations),
	)
	return s.FlushEvents(ctx)
}

// TickYear runs the yearly passes: retirement, enrollment and housing.
func (s *Simulation) TickYear(ctx context.Context, tick uint64) error {
	retired, err := s.RetireElderly(ctx, tick)
	if err != nil {
		return err
	}
	if err := s.EnrollEligible(ctx, tick); err != nil {
		return err
	}
	if err := s.CommissionHousing(ctx, tick); err != nil {
		return err
	}
	if err := s.refreshStats(ctx); err != nil {
		return err
	}
	slog.Info("yearly report",
		"year", s.Year(tick),
		"population", s.Stats.Population,
		"deaths", s.Stats.Deaths,
		"married", s.Stats.Married,
		"grieving", s.Stats.Grieving,
		"retired", retired,
		"total_wealth", fmt.Sprintf("%.2f", s.Stats.TotalWealth),
	)
	return s.FlushEvents(ctx)
}

func (s *Simulation) refreshStats(ctx context.Context) error {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	s.updateStats(list)
	return nil
}

// ExcavateDrama runs the pattern detectors over the current population.
func (s *Simulation) ExcavateDrama(ctx context.Context) (drama.Report, error) {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return drama.Report{}, fmt.Errorf("list agents: %w", err)
	}
	return excavate(list), nil
}

func excavate(list []*agents.Agent) drama.Report {
	r := drama.Excavate(list)
	for _, sit := range r.Situations {
		slog.Debug("drama", "kind", sit.Kind, "agents", sit.AgentIDs, "summary", sit.Summary)
	}
	return r
}
