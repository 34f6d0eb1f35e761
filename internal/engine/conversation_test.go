package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/simerr"
)

func TestConverseFirstMeetingWithGossipAndEavesdropper(t *testing.T) {
	// Draws: gossip topic, small talk, eavesdrop roll, quality jitter.
	f := newFixture(t, entropy.NewScripted(0.9, 0.9, 0.0, 0.5))
	initiator, recipient, subject := gossipers(f)
	f.feel(initiator, subject, -20, 0)
	bystander := f.person("Ida", agents.SexFemale, 28)

	c, err := f.sim.StartConversation(f.ctx, initiator, recipient, []agents.AgentID{bystander, initiator}, 10)
	require.NoError(t, err)
	assert.Equal(t, []agents.AgentID{bystander}, c.Bystanders)
	require.Equal(t, []Topic{
		{Kind: TopicSelf},
		{Kind: TopicGossip, SubjectID: subject},
		{Kind: TopicSmallTalk},
	}, c.Topics)
	assert.Contains(t, f.sim.Registry.Conversations, c.ID)

	turn, err := f.sim.ConductTurn(f.ctx, c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, TopicSelf, turn.Topic.Kind)
	assert.Equal(t, "Ruth", f.get(initiator).ModelOf(recipient).Values[agents.ValueFirstName])
	assert.Equal(t, "Hester", f.get(recipient).ModelOf(initiator).Values[agents.ValueFirstName])

	turn, err = f.sim.ConductTurn(f.ctx, c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, turn.ToRecipient.Beliefs)
	assert.False(t, turn.ToRecipient.Accepted)
	assert.Equal(t, []agents.AgentID{bystander}, turn.Eavesdroppers)

	overheard := f.get(bystander).ModelOf(subject)
	require.NotNil(t, overheard)
	facet := overheard.Beliefs[agents.QualityTrustworthy]
	require.Len(t, facet.Evidence, 2)
	for _, ev := range facet.Evidence {
		assert.Equal(t, agents.EvidenceRumor, ev.Type)
	}

	_, err = f.sim.ConductTurn(f.ctx, c.ID, 10)
	require.NoError(t, err)
	_, err = f.sim.ConductTurn(f.ctx, c.ID, 10)
	assert.ErrorIs(t, err, ErrConversationFinished)

	res, err := f.sim.EndConversation(f.ctx, c.ID, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Quality, 1e-9)
	assert.Equal(t, []agents.AgentID{bystander}, res.Eavesdroppers)
	assert.Equal(t, 1, res.Initiator.Interactions)
	assert.Equal(t, 1, res.Recipient.Interactions)
	assert.Equal(t, 1, f.get(recipient).Relationship(initiator).Interactions)
	assert.NotContains(t, f.sim.Registry.Conversations, c.ID)
}

func TestConverseBetweenAcquaintancesIsSmallTalk(t *testing.T) {
	f := newFixture(t, entropy.NewScripted(0.5))
	a := f.person("Ada", agents.SexFemale, 30)
	b := f.person("Clara", agents.SexFemale, 30)
	f.feel(a, b, 5, 0)

	res, err := f.sim.Converse(f.ctx, a, b, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []Topic{{Kind: TopicSmallTalk}}, res.Topics)
	// 0.5*compat + 0.3*sign(charge) + jitter 0.
	assert.InDelta(t, 0.8, res.Quality, 1e-9)
	assert.Greater(t, f.get(b).Relationship(a).Charge, 0.0)
	assert.Empty(t, f.sim.Registry.Conversations)
}

func TestConversationErrors(t *testing.T) {
	f := newFixture(t, nil)
	a := f.person("Ada", agents.SexFemale, 30)
	dead := f.person("Clara", agents.SexFemale, 30, func(x *agents.Agent) { x.Alive = false })

	_, err := f.sim.StartConversation(f.ctx, a, dead, nil, 1)
	assert.ErrorIs(t, err, ErrAgentDead)
	assert.Empty(t, f.sim.Registry.Conversations)

	_, err = f.sim.ConductTurn(f.ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, simerr.ErrNotFound)

	_, err = f.sim.EndConversation(f.ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestInteractionQualityDampenedByGrief(t *testing.T) {
	f := newFixture(t, entropy.NewScripted(0.5))
	a := f.person("Ada", agents.SexFemale, 30)
	b := f.person("Clara", agents.SexFemale, 30)
	f.edit(a, func(x *agents.Agent) {
		agents.GriefOf(x).Active = []agents.GrievingState{{
			Modifiers: agents.BehaviorModifiers{Social: 0.5, Work: 1, Risk: 1, Stress: 1},
		}}
	})
	q := f.sim.interactionQuality(f.get(a), f.get(b))
	assert.InDelta(t, 0.25, q, 1e-9)
}
