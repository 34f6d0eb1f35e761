// Conversations: topic selection, gossip exchange and eavesdropping.
package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/entropy"
	"github.com/talgya/hamlet/internal/mathx"
)

// Conversation tuning.
const (
	MaxTopics       = 3
	EavesdropChance = 0.15
	SmallTalkWeight = 0.2
)

// TopicKind says what a conversation turn is about.
type TopicKind string

const (
	TopicGossip    TopicKind = "gossip"
	TopicSelf      TopicKind = "self_disclosure"
	TopicSmallTalk TopicKind = "small_talk"
)

// Topic is one subject of conversation. SubjectID is set for gossip.
type Topic struct {
	Kind      TopicKind      `json:"kind"`
	SubjectID agents.AgentID `json:"subject_id,omitempty"`
}

// Conversation is an encounter in progress. It lives only in the registry.
type Conversation struct {
	ID          uuid.UUID        `json:"id"`
	InitiatorID agents.AgentID   `json:"initiator_id"`
	RecipientID agents.AgentID   `json:"recipient_id"`
	Bystanders  []agents.AgentID `json:"bystanders,omitempty"`
	LocationID  *uint64          `json:"location_id,omitempty"`
	Topics      []Topic          `json:"topics"`
	StartedAt   uint64           `json:"started_at"`
	Turns       int              `json:"turns"`

	Shared        PropagationResult `json:"shared"`
	Eavesdroppers []agents.AgentID  `json:"eavesdroppers,omitempty"`
}

// TurnResult reports one conversation turn.
type TurnResult struct {
	Topic         Topic             `json:"topic"`
	ToRecipient   PropagationResult `json:"to_recipient"`
	ToInitiator   PropagationResult `json:"to_initiator"`
	Eavesdroppers []agents.AgentID  `json:"eavesdroppers,omitempty"`
}

// ConversationResult summarizes a finished conversation.
type ConversationResult struct {
	ConversationID uuid.UUID                  `json:"conversation_id"`
	Quality        float64                    `json:"quality"`
	Topics         []Topic                    `json:"topics"`
	Shared         PropagationResult          `json:"shared"`
	Eavesdroppers  []agents.AgentID           `json:"eavesdroppers,omitempty"`
	Initiator      agents.RelationshipDetails `json:"initiator"` // initiator's record toward recipient
	Recipient      agents.RelationshipDetails `json:"recipient"` // recipient's record toward initiator
}

// StartConversation opens a conversation between two living agents and picks
// its topics.
func (s *Simulation) StartConversation(ctx context.Context, initiatorID, recipientID agents.AgentID, bystanders []agents.AgentID, tick uint64) (*Conversation, error) {
	initiator, recipient, err := s.loadPair(ctx, initiatorID, recipientID)
	if err != nil {
		return nil, err
	}
	if !initiator.Alive || !recipient.Alive {
		return nil, fmt.Errorf("%w: conversation between %d and %d", ErrAgentDead, initiatorID, recipientID)
	}
	var present []agents.AgentID
	for _, id := range bystanders {
		if id != initiatorID && id != recipientID {
			present = append(present, id)
		}
	}
	c := &Conversation{
		ID:          uuid.New(),
		InitiatorID: initiatorID,
		RecipientID: recipientID,
		Bystanders:  present,
		LocationID:  initiator.LocationID,
		Topics:      s.selectTopics(initiator, recipient),
		StartedAt:   tick,
	}
	s.Registry.Conversations[c.ID] = c
	return c, nil
}

// selectTopics draws up to MaxTopics subjects weighted by salience to the
// initiator. Small talk competes as a low-weight option. People meeting for
// the first time always introduce themselves.
func (s *Simulation) selectTopics(initiator, recipient *agents.Agent) []Topic {
	var topics []Topic
	if initiator.Relationship(recipient.ID) == nil && recipient.Relationship(initiator.ID) == nil {
		topics = append(topics, Topic{Kind: TopicSelf})
	}

	type option struct {
		topic  Topic
		weight float64
	}
	options := []option{{topic: Topic{Kind: TopicSmallTalk}, weight: SmallTalkWeight}}
	if initiator.Ext.Mind != nil {
		for _, id := range salientSubjects(initiator, recipient.ID) {
			options = append(options, option{topic: Topic{Kind: TopicGossip, SubjectID: id}, weight: Salience(initiator, id)})
		}
		// Subjects below the gossip threshold can still come up, rarely.
		if len(options) == 1 {
			for id, m := range initiator.Ext.Mind.Models {
				if id != recipient.ID && id != initiator.ID && m.Confidence > 0 {
					options = append(options, option{topic: Topic{Kind: TopicGossip, SubjectID: id}, weight: 0.5 * Salience(initiator, id)})
				}
			}
			slices.SortFunc(options[1:], func(a, b option) int {
				return cmp.Compare(a.topic.SubjectID, b.topic.SubjectID)
			})
		}
	}

	for len(topics) < MaxTopics && len(options) > 0 {
		var total float64
		for _, o := range options {
			total += o.weight
		}
		if total <= 0 {
			break
		}
		r := s.rng.Float64() * total
		pick := len(options) - 1
		for i, o := range options {
			if r < o.weight {
				pick = i
				break
			}
			r -= o.weight
		}
		topics = append(topics, options[pick].topic)
		if options[pick].topic.Kind == TopicSmallTalk {
			break
		}
		options = append(options[:pick], options[pick+1:]...)
	}
	if len(topics) == 0 {
		topics = append(topics, Topic{Kind: TopicSmallTalk})
	}
	return topics
}

// ConductTurn discusses the next topic. Both participants speak; bystanders
// may overhear.
func (s *Simulation) ConductTurn(ctx context.Context, conversationID uuid.UUID, tick uint64) (TurnResult, error) {
	c, ok := s.Registry.Conversations[conversationID]
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if c.Turns >= len(c.Topics) {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrConversationFinished, conversationID)
	}
	ids := append([]agents.AgentID{c.InitiatorID, c.RecipientID}, c.Bystanders...)
	loaded, err := s.loadAgents(ctx, ids...)
	if err != nil {
		return TurnResult{}, err
	}
	initiator, recipient := loaded[0], loaded[1]
	var bystanders []*agents.Agent
	for _, b := range loaded[2:] {
		if b.Alive {
			bystanders = append(bystanders, b)
		}
	}

	topic := c.Topics[c.Turns]
	res := TurnResult{Topic: topic}
	switch topic.Kind {
	case TopicSelf:
		observe(recipient, initiator, agents.ClassNeighbor, tick)
		observe(initiator, recipient, agents.ClassNeighbor, tick)
		res.ToRecipient.Subjects, res.ToInitiator.Subjects = 1, 1
	case TopicGossip:
		res.ToRecipient = propagate(initiator, recipient, topic.SubjectID, trustToward(recipient, initiator.ID), tick)
		res.ToInitiator = propagate(recipient, initiator, topic.SubjectID, trustToward(initiator, recipient.ID), tick)
		for _, b := range bystanders {
			if b.ID == topic.SubjectID || !entropy.Chance(s.rng, EavesdropChance) {
				continue
			}
			if overhear(b, []*agents.Agent{initiator, recipient}, topic.SubjectID, tick) > 0 {
				res.Eavesdroppers = append(res.Eavesdroppers, b.ID)
			}
		}
	}

	toSave := []*agents.Agent{initiator, recipient}
	for _, b := range bystanders {
		if containsID(res.Eavesdroppers, b.ID) {
			toSave = append(toSave, b)
		}
	}
	if err := s.save(ctx, toSave...); err != nil {
		return TurnResult{}, err
	}

	c.Turns++
	c.Shared.add(res.ToRecipient)
	c.Shared.add(res.ToInitiator)
	c.Eavesdroppers = append(c.Eavesdroppers, res.Eavesdroppers...)
	return res, nil
}

// overhear gives a bystander rumor-strength evidence for every belief the
// speakers hold about subject, and returns how many pieces were picked up.
func overhear(bystander *agents.Agent, speakers []*agents.Agent, subject agents.AgentID, tick uint64) int {
	n := 0
	for _, sp := range speakers {
		src := sp.ModelOf(subject)
		if src == nil {
			continue
		}
		for quality, facet := range src.Beliefs {
			m, _ := ensureModel(bystander, subject, agents.Observations{}, agents.ClassStranger, tick)
			m.AddEvidence(quality, agents.Evidence{
				Type:     agents.EvidenceRumor,
				Strength: RumorMultiplier * facet.Confidence,
				Tick:     tick,
				SourceID: agents.IDPtr(sp.ID),
			})
			n++
		}
	}
	return n
}

// interactionQuality judges how an encounter went. Compatible pairs and
// those already well disposed get along; grief dampens sociability.
func (s *Simulation) interactionQuality(initiator, recipient *agents.Agent) float64 {
	compat := agents.Compatibility(initiator.Personality, recipient.Personality)
	var disposition float64
	if rel := initiator.Relationship(recipient.ID); rel != nil {
		disposition = mathx.Sign(rel.Charge)
	}
	q := 0.5*compat + 0.3*disposition + (s.rng.Float64()-0.5)*0.6
	q *= initiator.Modifiers().Social
	return mathx.Clamp(q, -1, 1)
}

// EndConversation closes the conversation and updates both participants'
// relationships, one explicit update per direction.
func (s *Simulation) EndConversation(ctx context.Context, conversationID uuid.UUID, tick uint64) (ConversationResult, error) {
	c, ok := s.Registry.Conversations[conversationID]
	if !ok {
		return ConversationResult{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	initiator, recipient, err := s.loadPair(ctx, c.InitiatorID, c.RecipientID)
	if err != nil {
		return ConversationResult{}, err
	}
	q := s.interactionQuality(initiator, recipient)

	fromInitiator, err := s.UpdateRelationship(ctx, c.InitiatorID, c.RecipientID, q, tick)
	if err != nil {
		return ConversationResult{}, err
	}
	fromRecipient, err := s.UpdateRelationship(ctx, c.RecipientID, c.InitiatorID, q, tick)
	if err != nil {
		return ConversationResult{}, err
	}
	delete(s.Registry.Conversations, conversationID)

	slog.Debug("conversation",
		"tick", tick,
		"initiator", initiator.Name(),
		"recipient", recipient.Name(),
		"quality", fmt.Sprintf("%.2f", q),
		"topics", describeTopics(c.Topics),
		"beliefs_shared", c.Shared.Beliefs,
	)
	return ConversationResult{
		ConversationID: c.ID,
		Quality:        q,
		Topics:         c.Topics,
		Shared:         c.Shared,
		Eavesdroppers:  c.Eavesdroppers,
		Initiator:      fromInitiator,
		Recipient:      fromRecipient,
	}, nil
}

// Converse runs a whole conversation: start, every topic, end.
func (s *Simulation) Converse(ctx context.Context, initiatorID, recipientID agents.AgentID, bystanders []agents.AgentID, tick uint64) (ConversationResult, error) {
	c, err := s.StartConversation(ctx, initiatorID, recipientID, bystanders, tick)
	if err != nil {
		return ConversationResult{}, err
	}
	for range c.Topics {
		if _, err := s.ConductTurn(ctx, c.ID, tick); err != nil {
			delete(s.Registry.Conversations, c.ID)
			return ConversationResult{}, err
		}
	}
	return s.EndConversation(ctx, c.ID, tick)
}

func describeTopics(topics []Topic) string {
	parts := make([]string, len(topics))
	for i, t := range topics {
		if t.Kind == TopicGossip {
			parts[i] = fmt.Sprintf("%s:%d", t.Kind, t.SubjectID)
		} else {
			parts[i] = string(t.Kind)
		}
	}
	return strings.Join(parts, ",")
}

func containsID(ids []agents.AgentID, id agents.AgentID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
