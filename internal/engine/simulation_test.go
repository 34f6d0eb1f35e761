package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/drama"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/persistence"
	"github.com/talgya/hamlet/internal/social"
)

func TestSimTime(t *testing.T) {
	tests := []struct {
		tick uint64
		want string
	}{
		{0, "Spring Day 1, Year 1839"},
		{89, "Spring Day 90, Year 1839"},
		{90, "Summer Day 1, Year 1839"},
		{359, "Winter Day 90, Year 1839"},
		{360, "Spring Day 1, Year 1840"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SimTime(tt.tick, testYear))
	}
}

func TestEngineLayers(t *testing.T) {
	var days, months, years int
	e := NewEngine(0)
	e.OnDay = func(context.Context, uint64) error { days++; return nil }
	e.OnMonth = func(_ context.Context, tick uint64) error {
		assert.Zero(t, tick%TicksPerMonth)
		months++
		return nil
	}
	e.OnYear = func(context.Context, uint64) error { years++; return nil }

	require.NoError(t, e.RunFor(context.Background(), 2*TicksPerYear))
	assert.Equal(t, 720, days)
	assert.Equal(t, 24, months)
	assert.Equal(t, 2, years)
	assert.Equal(t, uint64(720), e.Tick)
}

func TestEngineStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(10)
	e.OnDay = func(_ context.Context, tick uint64) error {
		if tick == 15 {
			cancel()
		}
		return nil
	}
	require.NoError(t, e.RunFor(ctx, 100))
	assert.Equal(t, uint64(15), e.Tick)
}

func TestEngineReturnsCallbackError(t *testing.T) {
	e := NewEngine(0)
	e.OnDay = func(_ context.Context, tick uint64) error {
		if tick == 3 {
			return ErrAgentDead
		}
		return nil
	}
	err := e.RunFor(context.Background(), 10)
	assert.ErrorIs(t, err, ErrAgentDead)
	assert.Equal(t, uint64(3), e.Tick)
}

func TestSeed(t *testing.T) {
	f := newFixture(t, entropy.NewSeeded(42))
	res, err := f.sim.Seed(f.ctx, SeedOptions{SettlementName: "Millbrook", Population: 20}, 0)
	require.NoError(t, err)

	st, err := f.mem.GetSettlement(f.ctx, res.SettlementID)
	require.NoError(t, err)
	assert.Equal(t, "Millbrook", st.Name)
	assert.Equal(t, testYear, st.Founded)

	list, err := f.mem.ListAgents(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 20)
	married := 0
	for _, a := range list {
		assert.True(t, a.Alive)
		assert.True(t, a.IsAdult(testYear), "%s is %d", a.Name(), a.Age(testYear))
		require.NotNil(t, a.LocationID)
		assert.Equal(t, res.SettlementID, *a.LocationID)
		if a.SpouseID == nil {
			continue
		}
		married++
		spouse := f.get(*a.SpouseID)
		require.NotNil(t, spouse.SpouseID)
		assert.Equal(t, a.ID, *spouse.SpouseID)
		assert.True(t, a.Relationship(spouse.ID).AreRomantic)
	}
	assert.Equal(t, 2*res.Couples, married)
	assert.Len(t, f.sim.Registry.Romances, res.Couples)

	require.Len(t, res.BusinessIDs, len(foundingBusinesses))
	for _, id := range res.BusinessIDs {
		b := f.getBusiness(id)
		if b.Type == social.BusinessSchool {
			assert.Nil(t, b.OwnerID)
			continue
		}
		require.NotNil(t, b.OwnerID, b.Name)
		owner := f.get(agents.AgentID(*b.OwnerID))
		occ := owner.CurrentOccupation()
		require.NotNil(t, occ)
		assert.Equal(t, PositionProprietor, occ.Position)
		assert.Equal(t, id, occ.BusinessID)
		assert.True(t, b.Employs(uint64(owner.ID)))
		assert.GreaterOrEqual(t, owner.Wealth(), 500.0)
	}
	assert.Equal(t, 20, f.sim.Stats.Population)
	assert.Greater(t, f.sim.Stats.Employed, len(foundingBusinesses)-1)

	_, err = f.sim.Seed(f.ctx, SeedOptions{SettlementName: "Nowhere", Population: 1}, 0)
	assert.Error(t, err)
}

func TestRunAYearAndRehydrate(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a full simulated year")
	}
	f := newFixture(t, entropy.NewSeeded(42))
	_, err := f.sim.Seed(f.ctx, SeedOptions{SettlementName: "Millbrook", Population: 16}, 0)
	require.NoError(t, err)

	e := NewEngine(0)
	f.sim.Attach(e)
	require.NoError(t, e.RunFor(f.ctx, TicksPerYear))
	assert.Equal(t, uint64(TicksPerYear), f.sim.LastTick)
	assert.Equal(t, f.sim.Stats.Population+f.sim.Stats.Deaths, countAgents(t, f))
	assert.Empty(t, f.sim.pending, "events are flushed every day")

	stored, err := f.mem.RecentEvents(f.ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	// A restarted simulation finds the same work in flight.
	restarted := NewSimulation(f.mem, Options{WorldID: 1, StartYear: testYear, Rng: entropy.NewSeeded(1)})
	require.NoError(t, restarted.Load(f.ctx))
	assert.Equal(t, f.sim.Registry.RomancePairs(), restarted.Registry.RomancePairs())
	assert.Equal(t, f.sim.Registry.Mothers(), restarted.Registry.Mothers())
	assert.Equal(t, f.sim.Registry.Students(), restarted.Registry.Students())
	assert.ElementsMatch(t, f.sim.Registry.CommissionIDs(), restarted.Registry.CommissionIDs())
	assert.Empty(t, restarted.Registry.Conversations)
	assert.Equal(t, f.sim.Stats, restarted.Stats)
}

// countingStore records how often the population is listed and how many
// agents each write carries.
type countingStore struct {
	*persistence.Memory
	lists  int
	writes []int
}

func (c *countingStore) ListAgents(ctx context.Context, worldID uint64) ([]*agents.Agent, error) {
	c.lists++
	return c.Memory.ListAgents(ctx, worldID)
}

func (c *countingStore) UpdateAgents(ctx context.Context, list ...*agents.Agent) error {
	c.writes = append(c.writes, len(list))
	return c.Memory.UpdateAgents(ctx, list...)
}

func TestTickDayListsPopulationOnce(t *testing.T) {
	store := &countingStore{Memory: persistence.NewMemory()}
	f := &fixture{t: t, ctx: context.Background(), mem: store.Memory}
	// Nobody dies or talks.
	f.sim = NewSimulation(store, Options{WorldID: 1, StartYear: testYear, Rng: entropy.NewScripted(0.99)})
	a := f.person("Ada", agents.SexFemale, 30)
	b := f.person("Asa", agents.SexMale, 30)
	for _, pr := range [][2]agents.AgentID{{a, b}, {b, a}} {
		_, err := f.sim.InitializeMentalModel(f.ctx, pr[0], pr[1], agents.Observations{}, agents.ClassNeighbor, 0)
		require.NoError(t, err)
	}

	store.lists, store.writes = 0, nil
	require.NoError(t, f.sim.TickDay(f.ctx, 3))
	assert.Equal(t, 1, store.lists)
	assert.Empty(t, store.writes)

	store.lists, store.writes = 0, nil
	require.NoError(t, f.sim.TickDay(f.ctx, decayEvery))
	require.NotEmpty(t, store.writes)
	assert.Equal(t, 2, store.writes[0], "decay saves the population in one write")
	assert.Less(t, f.get(a).ModelOf(b).Confidence, agents.ClassNeighbor.InitialConfidence())
	assert.Less(t, f.get(b).ModelOf(a).Confidence, agents.ClassNeighbor.InitialConfidence())
	assert.Equal(t, uint64(decayEvery), f.sim.LastTick)
}

func countAgents(t *testing.T, f *fixture) int {
	t.Helper()
	list, err := f.mem.ListAgents(f.ctx, 1)
	require.NoError(t, err)
	return len(list)
}

func TestRegistryRehydrate(t *testing.T) {
	f := newFixture(t, nil)
	a, b := courtingPair(t, f)
	mother, father := couple(f)
	_, err := f.sim.Conceive(f.ctx, mother, father, 5)
	require.NoError(t, err)
	client := f.person("Clara", agents.SexFemale, 35, withWealth(1000))
	c, err := f.sim.CommissionConstruction(f.ctx, client, builder(f, nil), StructureBarn, 6)
	require.NoError(t, err)

	r := NewRegistry()
	list, err := f.mem.ListAgents(f.ctx, 1)
	require.NoError(t, err)
	r.Rehydrate(list)

	require.Contains(t, r.Romances, agents.MakePairKey(a, b))
	assert.Equal(t, agents.StageDating, r.Romances[agents.MakePairKey(a, b)].Stage)
	assert.Equal(t, []agents.AgentID{mother}, r.Mothers())
	require.Contains(t, r.Commissions, c.ID)
	assert.Equal(t, c, *r.Commissions[c.ID])
	assert.Empty(t, r.Enrollments)
}

func TestExcavateDramaFindsAffair(t *testing.T) {
	f := newFixture(t, nil)
	husband := f.person("Hiram", agents.SexMale, 40)
	wife := f.person("Esther", agents.SexFemale, 38)
	other := f.person("Delia", agents.SexFemale, 30)
	marry(f, husband, wife)
	f.feel(husband, wife, 20, 10)
	f.feel(wife, husband, 20, 10)
	f.feel(husband, other, 5, 8)

	r, err := f.sim.ExcavateDrama(f.ctx)
	require.NoError(t, err)
	affairs := r.ByKind(drama.ExtramaritalAffair)
	require.Len(t, affairs, 1)
	assert.Equal(t, []agents.AgentID{husband, wife, other}, affairs[0].AgentIDs)
	assert.Contains(t, affairs[0].Summary, "Hiram Test is married to Esther Test")
}
