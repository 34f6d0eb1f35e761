package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/simerr"
)

func marry(f *fixture, a, b agents.AgentID) {
	f.edit(a, func(x *agents.Agent) { x.SpouseID = agents.IDPtr(b) })
	f.edit(b, func(x *agents.Agent) { x.SpouseID = agents.IDPtr(a) })
}

func couple(f *fixture) (mother, father agents.AgentID) {
	mother = f.person("Martha", agents.SexFemale, 28, withPersonality(agents.Personality{
		Openness: 0.9, Conscientiousness: 0.2, Extroversion: 0.7, Agreeableness: 0.4, Neuroticism: 0.1,
	}))
	father = f.person("Josiah", agents.SexMale, 32, withPersonality(agents.Personality{
		Openness: 0.3, Conscientiousness: 0.8, Extroversion: 0.1, Agreeableness: 1.0, Neuroticism: 0.5,
	}))
	marry(f, mother, father)
	return mother, father
}

func TestConceptionEligibility(t *testing.T) {
	f := newFixture(t, nil)
	mother, father := couple(f)
	stranger := f.person("Abel", agents.SexMale, 30)
	old := f.person("Mercy", agents.SexFemale, 50)
	marry(f, old, stranger)

	tests := []struct {
		name   string
		mother agents.AgentID
		father agents.AgentID
		ok     bool
	}{
		{"married couple", mother, father, true},
		{"not married to each other", mother, stranger, false},
		{"mother too old", old, stranger, false},
		{"roles reversed", father, mother, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ConceptionEligibility(f.get(tt.mother), f.get(tt.father), testYear)
			assert.Equal(t, tt.ok, e.OK, e.Reason)
		})
	}
}

func TestPregnancyToBirth(t *testing.T) {
	f := newFixture(t, entropy.NewSeeded(11))
	mother, father := couple(f)

	res, err := f.sim.Conceive(f.ctx, mother, father, 10)
	require.NoError(t, err)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, uint64(10+PregnancyTicks), res.Pregnancy.DueAt)
	assert.Contains(t, f.sim.Registry.Pregnancies, mother)

	again, err := f.sim.Conceive(f.ctx, mother, father, 11)
	require.NoError(t, err)
	assert.False(t, again.OK)

	_, err = f.sim.GiveBirth(f.ctx, mother, 10+PregnancyTicks-1)
	assert.ErrorIs(t, err, ErrNotDue)

	before, err := f.mem.ListAgents(f.ctx, 1)
	require.NoError(t, err)

	birth, err := f.sim.GiveBirth(f.ctx, mother, 10+PregnancyTicks)
	require.NoError(t, err)

	after, err := f.mem.ListAgents(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)

	child := f.get(birth.Child.ID)
	require.NotNil(t, child.MotherID)
	require.NotNil(t, child.FatherID)
	assert.Equal(t, mother, *child.MotherID)
	assert.Equal(t, father, *child.FatherID)
	assert.Equal(t, "Test", child.LastName)
	assert.Equal(t, testYear, child.BirthYear)

	m, fa := f.get(mother), f.get(father)
	mt, ft := m.Personality.Traits(), fa.Personality.Traits()
	for i, v := range child.Personality.Traits() {
		avg := (mt[i] + ft[i]) / 2
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v-avg, agents.MutationWindow+1e-9, "trait %d", i)
		assert.GreaterOrEqual(t, v-avg, -agents.MutationWindow-1e-9, "trait %d", i)
	}

	assert.True(t, m.IsParentOf(child.ID))
	assert.True(t, fa.IsParentOf(child.ID))
	assert.Equal(t, agents.ClassFamily, child.ModelOf(mother).Class)
	assert.Equal(t, agents.ClassFamily, m.ModelOf(child.ID).Class)
	assert.InDelta(t, agents.FamilyCharge, m.Relationship(child.ID).Charge, 1e-9)
	assert.InDelta(t, agents.FamilyCharge, child.Relationship(father).Charge, 1e-9)

	assert.Nil(t, m.Ext.Family.Pregnancy)
	require.Len(t, m.Ext.Family.PastPregnancies, 1)
	assert.Equal(t, child.ID, *m.Ext.Family.PastPregnancies[0].ChildID)
	assert.NotContains(t, f.sim.Registry.Pregnancies, mother)

	_, err = f.sim.GiveBirth(f.ctx, mother, 1000)
	assert.ErrorIs(t, err, ErrNotPregnant)
}

func TestSecondChildMeetsSibling(t *testing.T) {
	f := newFixture(t, entropy.NewSeeded(3))
	mother, father := couple(f)

	_, err := f.sim.Conceive(f.ctx, mother, father, 0)
	require.NoError(t, err)
	first, err := f.sim.GiveBirth(f.ctx, mother, PregnancyTicks)
	require.NoError(t, err)

	_, err = f.sim.Conceive(f.ctx, mother, father, 400)
	require.NoError(t, err)
	second, err := f.sim.GiveBirth(f.ctx, mother, 400+PregnancyTicks)
	require.NoError(t, err)

	older, younger := f.get(first.Child.ID), f.get(second.Child.ID)
	assert.True(t, older.IsSiblingOf(younger))
	assert.Equal(t, agents.ClassFamily, older.ModelOf(younger.ID).Class)
	assert.InDelta(t, agents.FamilyCharge, younger.Relationship(older.ID).Charge, 1e-9)
	assert.Len(t, f.get(mother).ChildIDs, 2)
}

func TestGiveBirthWithMissingSiblingCreatesNoChild(t *testing.T) {
	f := newFixture(t, nil)
	mother, father := couple(f)
	_, err := f.sim.Conceive(f.ctx, mother, father, 0)
	require.NoError(t, err)
	f.edit(mother, func(a *agents.Agent) { a.ChildIDs = []agents.AgentID{404} })
	before := countAgents(t, f)

	_, err = f.sim.GiveBirth(f.ctx, mother, PregnancyTicks)
	assert.ErrorIs(t, err, simerr.ErrNotFound)
	assert.Equal(t, before, countAgents(t, f))
	m := f.get(mother)
	require.NotNil(t, m.Ext.Family.Pregnancy)
	assert.Empty(t, m.Ext.Family.PastPregnancies)
	assert.Contains(t, f.sim.Registry.Pregnancies, mother)
}

func TestProgressPregnanciesDeliversDueBirths(t *testing.T) {
	f := newFixture(t, nil)
	mother, father := couple(f)
	_, err := f.sim.Conceive(f.ctx, mother, father, 5)
	require.NoError(t, err)

	f.sim.ProgressPregnancies(f.ctx, 100)
	assert.Empty(t, f.get(mother).ChildIDs)

	f.sim.ProgressPregnancies(f.ctx, 5+PregnancyTicks)
	assert.Len(t, f.get(mother).ChildIDs, 1)
	assert.Empty(t, f.sim.Registry.Pregnancies)
}

func TestAttemptConceptions(t *testing.T) {
	f := newFixture(t, entropy.NewScripted(0.01))
	mother, _ := couple(f)

	require.NoError(t, f.sim.AttemptConceptions(f.ctx, 30))
	assert.NotNil(t, f.get(mother).Ext.Family.Pregnancy)

	g := newFixture(t, entropy.NewScripted(0.99))
	m2, _ := couple(g)
	require.NoError(t, g.sim.AttemptConceptions(g.ctx, 30))
	assert.Nil(t, g.get(m2).Ext.Family)
}
