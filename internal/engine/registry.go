package engine

import (
	"cmp"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
)

// Registry indexes the life events currently in flight so the tick loop does
// not have to scan every agent. The agent records remain the source of truth;
// everything here except conversations can be rebuilt from them.
type Registry struct {
	Romances      map[agents.PairKey]*agents.RomanticRelationship
	Pregnancies   map[agents.AgentID]*agents.Pregnancy // keyed by mother
	Enrollments   map[agents.AgentID]*agents.EducationData
	Commissions   map[uuid.UUID]*agents.Commission
	Conversations map[uuid.UUID]*Conversation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Romances:      make(map[agents.PairKey]*agents.RomanticRelationship),
		Pregnancies:   make(map[agents.AgentID]*agents.Pregnancy),
		Enrollments:   make(map[agents.AgentID]*agents.EducationData),
		Commissions:   make(map[uuid.UUID]*agents.Commission),
		Conversations: make(map[uuid.UUID]*Conversation),
	}
}

// Rehydrate rebuilds the registry from persisted agents. Conversations are
// ephemeral and are dropped.
func (r *Registry) Rehydrate(list []*agents.Agent) {
	*r = *NewRegistry()
	for _, a := range list {
		if a.Ext.Romance != nil && a.Ext.Romance.Current != nil && a.Ext.Romance.Current.Active() {
			rec := *a.Ext.Romance.Current
			r.Romances[rec.Pair] = &rec
		}
		if !a.Alive {
			continue
		}
		if a.Ext.Family != nil && a.Ext.Family.Pregnancy != nil {
			p := *a.Ext.Family.Pregnancy
			r.Pregnancies[a.ID] = &p
		}
		if a.Ext.Education != nil && a.Ext.Education.Current != nil {
			e := *a.Ext.Education.Current
			r.Enrollments[a.ID] = &e
		}
		if a.Ext.Building != nil {
			for _, c := range a.Ext.Building.Active {
				r.Commissions[c.ID] = &c
			}
		}
	}
}

func (r *Registry) putRomance(rec *agents.RomanticRelationship) {
	if rec == nil || !rec.Active() {
		return
	}
	cp := *rec
	r.Romances[rec.Pair] = &cp
}

// RomancePairs returns the active pairs in a stable order.
func (r *Registry) RomancePairs() []agents.PairKey {
	return slices.SortedFunc(maps.Keys(r.Romances), func(a, b agents.PairKey) int {
		if a.Low != b.Low {
			return cmp.Compare(a.Low, b.Low)
		}
		return cmp.Compare(a.High, b.High)
	})
}

// Mothers returns the ids of agents with an active pregnancy, sorted.
func (r *Registry) Mothers() []agents.AgentID {
	return slices.Sorted(maps.Keys(r.Pregnancies))
}

// Students returns the ids of enrolled agents, sorted.
func (r *Registry) Students() []agents.AgentID {
	return slices.Sorted(maps.Keys(r.Enrollments))
}

// CommissionIDs returns the active commission ids in commissioning order.
func (r *Registry) CommissionIDs() []uuid.UUID {
	ids := slices.Collect(maps.Keys(r.Commissions))
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		ca, cb := r.Commissions[a], r.Commissions[b]
		if ca.CommissionedAt != cb.CommissionedAt {
			return cmp.Compare(ca.CommissionedAt, cb.CommissionedAt)
		}
		return slices.Compare(a[:], b[:])
	})
	return ids
}
