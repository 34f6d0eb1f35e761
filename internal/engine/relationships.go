// Relationship dynamics: compatibility, charge, spark and trust between pairs.
package engine

import (
	"context"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
)

// UpdateRelationship applies one interaction of the given quality to owner's
// record toward subject. Only owner's record changes; call again with the
// roles swapped for a mutual update.
func (s *Simulation) UpdateRelationship(ctx context.Context, ownerID, subjectID agents.AgentID, quality float64, tick uint64) (agents.RelationshipDetails, error) {
	owner, subject, err := s.loadPair(ctx, ownerID, subjectID)
	if err != nil {
		return agents.RelationshipDetails{}, err
	}
	rel := s.interact(ctx, owner, subject, quality, tick)
	if err := s.save(ctx, owner); err != nil {
		return agents.RelationshipDetails{}, err
	}
	return *rel, nil
}

// interact folds an interaction into owner's record toward subject and
// reports any change in friendship or enmity.
func (s *Simulation) interact(ctx context.Context, owner, subject *agents.Agent, quality float64, tick uint64) *agents.RelationshipDetails {
	rel := owner.EnsureRelationship(subject.ID, tick)
	wasFriend, wasEnemy := rel.AreFriends, rel.AreEnemies

	compat := agents.Compatibility(owner.Personality, subject.Personality)
	rel.Compatibility = compat
	rel.ApplyInteraction(
		agents.ChargeIncrement(owner, subject, compat),
		agents.SparkIncrement(owner, subject, s.Year(tick)),
		quality, tick,
	)

	if rel.AreFriends && !wasFriend {
		s.emit(ctx, chronicle.KindFriendship, tick, pair(owner, subject), owner.ID, subject.ID)
	}
	if rel.AreEnemies && !wasEnemy {
		s.emit(ctx, chronicle.KindEnmity, tick, pair(owner, subject), owner.ID, subject.ID)
	}
	return rel
}

// AdjustCharge applies an event-driven shock to owner's charge toward subject.
func (s *Simulation) AdjustCharge(ctx context.Context, ownerID, subjectID agents.AgentID, delta float64, tick uint64) (agents.RelationshipDetails, error) {
	owner, subject, err := s.loadPair(ctx, ownerID, subjectID)
	if err != nil {
		return agents.RelationshipDetails{}, err
	}
	rel := adjustCharge(owner, subject, delta, tick)
	if err := s.save(ctx, owner); err != nil {
		return agents.RelationshipDetails{}, err
	}
	return *rel, nil
}

func adjustCharge(owner, subject *agents.Agent, delta float64, tick uint64) *agents.RelationshipDetails {
	rel := owner.EnsureRelationship(subject.ID, tick)
	rel.Compatibility = agents.Compatibility(owner.Personality, subject.Personality)
	rel.AdjustCharge(delta, tick)
	return rel
}

// seedFamilyRelationship gives two new relatives warm records toward each other.
func seedFamilyRelationship(a, b *agents.Agent, tick uint64) {
	adjustCharge(a, b, agents.FamilyCharge, tick)
	adjustCharge(b, a, agents.FamilyCharge, tick)
}
