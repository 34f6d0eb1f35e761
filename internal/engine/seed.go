// Founding a new settlement.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/social"
)

// SeedOptions configures a new settlement.
type SeedOptions struct {
	SettlementName string
	Population     int
}

// SeedResult reports what was founded.
type SeedResult struct {
	SettlementID uint64           `json:"settlement_id"`
	AgentIDs     []agents.AgentID `json:"agent_ids"`
	BusinessIDs  []uint64         `json:"business_ids"`
	Couples      int              `json:"couples"`
}

// businessPlan is a business to found and the jobs it offers.
type businessPlan struct {
	name      string
	kind      social.BusinessType
	townOwned bool
	vacancies []social.Vacancy
}

var foundingBusinesses = []businessPlan{
	{name: "Fenn Farm", kind: social.BusinessFarm, vacancies: []social.Vacancy{
		{Position: "farmhand", MinAge: 16, Salary: 12},
		{Position: "farmhand", MinAge: 16, Salary: 12},
	}},
	{name: "Crane Mill", kind: social.BusinessMill, vacancies: []social.Vacancy{
		{Position: "miller's hand", MinAge: 16, Salary: 20},
	}},
	{name: "Hollis Smithy", kind: social.BusinessSmithy, vacancies: []social.Vacancy{
		{Position: "apprentice", MinAge: 16, Salary: 15},
	}},
	{name: "General Store", kind: social.BusinessStore, vacancies: []social.Vacancy{
		{Position: "clerk", RequiredEducation: uint8(agents.EducationPrimary), MinAge: 16, Salary: 18},
	}},
	{name: "The Wren Tavern", kind: social.BusinessTavern, vacancies: []social.Vacancy{
		{Position: "barkeep", MinAge: 18, Salary: 14},
	}},
	{name: "Schoolhouse", kind: social.BusinessSchool, townOwned: true, vacancies: []social.Vacancy{
		{Position: "teacher", RequiredEducation: uint8(agents.EducationSecondary), MinAge: 21, Salary: 25},
	}},
	{name: "Barlow & Sons Builders", kind: social.BusinessBuilder, vacancies: []social.Vacancy{
		{Position: "carpenter", MinAge: 16, Salary: 20},
		{Position: "carpenter", MinAge: 16, Salary: 20},
	}},
}

// Seed founds a settlement with a founding population, married couples and
// the businesses that employ them.
func (s *Simulation) Seed(ctx context.Context, opts SeedOptions, tick uint64) (SeedResult, error) {
	if opts.Population < 2 {
		return SeedResult{}, fmt.Errorf("seed: population %d is too small", opts.Population)
	}
	settlement := &social.Settlement{WorldID: s.WorldID, Name: opts.SettlementName, Founded: s.Year(tick)}
	sid, err := s.store.CreateSettlement(ctx, settlement)
	if err != nil {
		return SeedResult{}, fmt.Errorf("create settlement: %w", err)
	}
	res := SeedResult{SettlementID: sid}

	people := make([]*agents.Agent, 0, opts.Population)
	for range opts.Population {
		a := s.spawner.SpawnFounder(s.WorldID, s.Year(tick), tick)
		loc := sid
		a.LocationID = &loc
		a.Personality = a.Personality.Clamp()
		if _, err := s.store.CreateAgent(ctx, a); err != nil {
			return SeedResult{}, fmt.Errorf("create founder: %w", err)
		}
		people = append(people, a)
		res.AgentIDs = append(res.AgentIDs, a.ID)
	}

	res.Couples = s.pairFounders(people, tick)
	for _, a := range people {
		for range 3 {
			other := people[s.rng.Intn(len(people))]
			if other.ID != a.ID {
				observe(a, other, agents.ClassNeighbor, tick)
			}
		}
	}

	owners := s.pickOwners(people)
	for i, plan := range foundingBusinesses {
		b := &social.Business{
			WorldID:      s.WorldID,
			SettlementID: sid,
			Name:         plan.name,
			Type:         plan.kind,
			Vacancies:    append([]social.Vacancy(nil), plan.vacancies...),
		}
		var owner *agents.Agent
		if !plan.townOwned && i < len(owners) {
			owner = owners[i]
			id := uint64(owner.ID)
			b.OwnerID = &id
			b.EmployeeIDs = []uint64{id}
		}
		bid, err := s.store.CreateBusiness(ctx, b)
		if err != nil {
			return SeedResult{}, fmt.Errorf("create business: %w", err)
		}
		res.BusinessIDs = append(res.BusinessIDs, bid)
		if owner != nil {
			agents.EmploymentOf(owner).Current = &agents.Occupation{
				ID:           uuid.New(),
				BusinessID:   bid,
				BusinessType: string(plan.kind),
				Position:     PositionProprietor,
				StartedAt:    tick,
			}
			// Proprietors start with the capital to pay wages.
			f := agents.FinancesOf(owner)
			f.SetWealth(f.Wealth + 500)
		}
	}

	if err := s.save(ctx, people...); err != nil {
		return SeedResult{}, err
	}
	if _, err := s.FillVacancies(ctx, tick); err != nil {
		return SeedResult{}, err
	}
	if err := s.refreshStats(ctx); err != nil {
		return SeedResult{}, err
	}
	slog.Info("settlement founded",
		"settlement", opts.SettlementName,
		"population", len(people),
		"couples", res.Couples,
		"businesses", len(res.BusinessIDs),
	)
	return res, s.FlushEvents(ctx)
}

// pairFounders marries off roughly half the compatible adults.
func (s *Simulation) pairFounders(people []*agents.Agent, tick uint64) int {
	couples := 0
	for i, a := range people {
		if a.IsMarried() || s.rng.Float64() < 0.5 {
			continue
		}
		for _, b := range people[i+1:] {
			if b.IsMarried() || !a.Attraction.AttractedTo(b.Sex) || !b.Attraction.AttractedTo(a.Sex) {
				continue
			}
			s.foundMarriage(a, b, tick)
			couples++
			break
		}
	}
	return couples
}

// foundMarriage makes a and b a couple who married before the settlement was
// founded.
func (s *Simulation) foundMarriage(a, b *agents.Agent, tick uint64) {
	a.SpouseID, b.SpouseID = agents.IDPtr(b.ID), agents.IDPtr(a.ID)
	for _, p := range [][2]*agents.Agent{{a, b}, {b, a}} {
		rel := p[0].EnsureRelationship(p[1].ID, tick)
		rel.Compatibility = agents.Compatibility(p[0].Personality, p[1].Personality)
		rel.Charge = MarriageCharge + 5
		rel.Spark = agents.RomanceSpark + 5
		rel.Recompute()
		learnSpouse(p[0], p[1], tick)
	}
	at := tick
	rec := agents.RomanticRelationship{
		ID:          uuid.New(),
		Pair:        agents.MakePairKey(a.ID, b.ID),
		InitiatorID: a.ID,
		Stage:       agents.StageMarried,
		AttractedAt: tick,
		DatingSince: &at,
		EngagedAt:   &at,
		MarriedAt:   &at,
	}
	s.setRomance(a, b, rec)
}

// pickOwners draws distinct adults to own the founding businesses.
func (s *Simulation) pickOwners(people []*agents.Agent) []*agents.Agent {
	idx := make([]int, len(people))
	for i := range idx {
		idx[i] = i
	}
	for i := len(idx) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
	owners := make([]*agents.Agent, 0, len(foundingBusinesses))
	for _, i := range idx {
		if len(owners) == len(foundingBusinesses) {
			break
		}
		owners = append(owners, people[i])
	}
	return owners
}
