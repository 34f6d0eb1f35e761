package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/persistence"
	"github.com/talgya/hamlet/internal/social"
)

const testYear = 1839

type fixture struct {
	t   *testing.T
	ctx context.Context
	sim *Simulation
	mem *persistence.Memory
}

func newFixture(t *testing.T, rng entropy.Source) *fixture {
	t.Helper()
	mem := persistence.NewMemory()
	if rng == nil {
		rng = entropy.NewSeeded(7)
	}
	return &fixture{
		t:   t,
		ctx: context.Background(),
		sim: NewSimulation(mem, Options{WorldID: 1, StartYear: testYear, Rng: rng}),
		mem: mem,
	}
}

func neutral() agents.Personality {
	return agents.Personality{Openness: 0.5, Conscientiousness: 0.5, Extroversion: 0.5, Agreeableness: 0.5, Neuroticism: 0.5}
}

// person creates a living adult of the given sex and age with a neutral
// personality; opts adjust the record before it is stored.
func (f *fixture) person(first string, sex agents.Sex, age int, opts ...func(*agents.Agent)) agents.AgentID {
	f.t.Helper()
	a := &agents.Agent{
		WorldID:     1,
		FirstName:   first,
		LastName:    "Test",
		BirthYear:   testYear - age,
		Sex:         sex,
		Attraction:  agents.Attraction{Men: sex == agents.SexFemale, Women: sex == agents.SexMale},
		Personality: neutral(),
		Alive:       true,
	}
	for _, o := range opts {
		o(a)
	}
	id, err := f.mem.CreateAgent(f.ctx, a)
	require.NoError(f.t, err)
	return id
}

func withPersonality(p agents.Personality) func(*agents.Agent) {
	return func(a *agents.Agent) { a.Personality = p }
}

func withWealth(w float64) func(*agents.Agent) {
	return func(a *agents.Agent) { agents.FinancesOf(a).SetWealth(w) }
}

func (f *fixture) get(id agents.AgentID) *agents.Agent {
	f.t.Helper()
	a, err := f.mem.GetAgent(f.ctx, id)
	require.NoError(f.t, err)
	return a
}

// edit applies fn to a stored agent and writes it back.
func (f *fixture) edit(id agents.AgentID, fn func(*agents.Agent)) {
	f.t.Helper()
	a := f.get(id)
	fn(a)
	require.NoError(f.t, f.mem.UpdateAgents(f.ctx, a))
}

// feel sets owner's charge and spark toward other directly.
func (f *fixture) feel(owner, other agents.AgentID, charge, spark float64) {
	f.t.Helper()
	f.edit(owner, func(a *agents.Agent) {
		rel := a.EnsureRelationship(other, 0)
		rel.Charge = charge
		rel.Spark = spark
		rel.Recompute()
	})
}

func (f *fixture) business(b social.Business) uint64 {
	f.t.Helper()
	b.WorldID = 1
	id, err := f.mem.CreateBusiness(f.ctx, &b)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) getBusiness(id uint64) *social.Business {
	f.t.Helper()
	b, err := f.mem.GetBusiness(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func ownerID(id agents.AgentID) *uint64 {
	v := uint64(id)
	return &v
}
