package drama

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
)

func person(id agents.AgentID) *agents.Agent {
	return &agents.Agent{ID: id, FirstName: "P", LastName: string(rune('A' + id)), Alive: true}
}

func feel(a, b *agents.Agent, charge, spark float64) {
	rel := a.EnsureRelationship(b.ID, 0)
	rel.Charge = charge
	rel.Spark = spark
	rel.Recompute()
}

func TestExtramaritalAffair(t *testing.T) {
	a, spouse, lover := person(1), person(2), person(3)
	a.SpouseID = agents.IDPtr(spouse.ID)
	spouse.SpouseID = agents.IDPtr(a.ID)
	feel(a, spouse, 20, 10)
	feel(spouse, a, 20, 10)
	feel(a, lover, 5, 2)

	r := Excavate([]*agents.Agent{a, spouse, lover})
	got := r.ByKind(ExtramaritalAffair)
	require.Len(t, got, 1)
	assert.Equal(t, []agents.AgentID{1, 2, 3}, got[0].AgentIDs)
	assert.Equal(t, 1, r.Count(UnrequitedLove))
}

func TestUnrequitedAndTriangle(t *testing.T) {
	a, b, c := person(1), person(2), person(3)
	feel(a, b, 0, 5)
	feel(b, c, 0, 5)
	feel(c, a, 0, 5)

	r := Excavate([]*agents.Agent{c, b, a})
	assert.Equal(t, 3, r.Count(UnrequitedLove))
	tri := r.ByKind(LoveTriangle)
	require.Len(t, tri, 1)
	assert.Equal(t, []agents.AgentID{1, 2, 3}, tri[0].AgentIDs)
}

func TestMutualLoveIsNotUnrequited(t *testing.T) {
	a, b := person(1), person(2)
	feel(a, b, 0, 5)
	feel(b, a, 0, 1)
	assert.Zero(t, Excavate([]*agents.Agent{a, b}).Count(UnrequitedLove))
}

func TestRivalries(t *testing.T) {
	mother := person(9)
	a, b := person(1), person(2)
	a.MotherID, b.MotherID = agents.IDPtr(mother.ID), agents.IDPtr(mother.ID)
	feel(a, b, -20, 0)
	feel(b, a, -15, 0)
	agents.EmploymentOf(a).Current = &agents.Occupation{BusinessID: 10, BusinessType: "smithy"}
	agents.EmploymentOf(b).Current = &agents.Occupation{BusinessID: 11, BusinessType: "smithy"}

	r := Excavate([]*agents.Agent{a, b, mother})
	assert.Equal(t, 1, r.Count(Rivalry))
	assert.Equal(t, 1, r.Count(SiblingRivalry))
	assert.Equal(t, 1, r.Count(BusinessRivalry))

	agents.EmploymentOf(b).Current.BusinessID = 10
	assert.Zero(t, Excavate([]*agents.Agent{a, b}).Count(BusinessRivalry))
}

func TestAsymmetricFriendship(t *testing.T) {
	a, b := person(1), person(2)
	feel(a, b, 12, 0)
	feel(b, a, -12, 0)
	got := Excavate([]*agents.Agent{a, b}).ByKind(AsymmetricFriendship)
	require.Len(t, got, 1)
	assert.Equal(t, []agents.AgentID{1, 2}, got[0].AgentIDs)
}

func TestMisanthropy(t *testing.T) {
	grump := person(1)
	list := []*agents.Agent{grump}
	for i := agents.AgentID(2); i < 2+MisanthropeThreshold; i++ {
		p := person(i)
		feel(grump, p, -11, 0)
		list = append(list, p)
	}
	assert.Equal(t, 1, Excavate(list).Count(Misanthropy))
	assert.Zero(t, Excavate(list[:MisanthropeThreshold]).Count(Misanthropy))
}

func TestDeadAgentsAreIgnored(t *testing.T) {
	a, b := person(1), person(2)
	feel(a, b, 0, 5)
	b.Alive = false
	assert.Empty(t, Excavate([]*agents.Agent{a, b}).Situations)
}

func TestReportOrder(t *testing.T) {
	a, b, c := person(1), person(2), person(3)
	a.SpouseID = agents.IDPtr(b.ID)
	b.SpouseID = agents.IDPtr(a.ID)
	feel(a, c, -11, 3)
	feel(c, a, -11, 0)

	r := Excavate([]*agents.Agent{a, b, c})
	var kinds []Kind
	for _, s := range r.Situations {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []Kind{UnrequitedLove, ExtramaritalAffair, Rivalry}, kinds)
}
