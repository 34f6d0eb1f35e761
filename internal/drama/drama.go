// Package drama finds narratively interesting configurations in the
// relationship graph. Every detector is a read-only query over the agents it
// is given; nothing here changes state or is stored.
package drama

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/talgya/hamlet/internal/agents"
)

// Kind names a pattern.
type Kind string

const (
	UnrequitedLove       Kind = "unrequited_love"
	LoveTriangle         Kind = "love_triangle"
	ExtramaritalAffair   Kind = "extramarital_affair"
	AsymmetricFriendship Kind = "asymmetric_friendship"
	Rivalry              Kind = "rivalry"
	SiblingRivalry       Kind = "sibling_rivalry"
	BusinessRivalry      Kind = "business_rivalry"
	Misanthropy          Kind = "misanthropy"
)

// kindOrder is the report order.
var kindOrder = []Kind{
	UnrequitedLove, LoveTriangle, ExtramaritalAffair, AsymmetricFriendship,
	Rivalry, SiblingRivalry, BusinessRivalry, Misanthropy,
}

// MisanthropeThreshold is how many enemies make someone a misanthrope.
const MisanthropeThreshold = 5

// Situation is one detected pattern. AgentIDs are in the order the kind
// documents: lover first for love, [married, spouse, lover] for affairs.
type Situation struct {
	Kind     Kind             `json:"kind"`
	AgentIDs []agents.AgentID `json:"agent_ids"`
	Summary  string           `json:"summary"`
}

// Report is the result of one pass.
type Report struct {
	Situations []Situation `json:"situations"`
}

// Count returns how many situations of kind were found.
func (r Report) Count(kind Kind) int {
	n := 0
	for _, s := range r.Situations {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// ByKind returns the situations of kind.
func (r Report) ByKind(kind Kind) []Situation {
	var out []Situation
	for _, s := range r.Situations {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// graph is the living population with its love, friend and dislike sets.
type graph struct {
	byID    map[agents.AgentID]*agents.Agent
	ids     []agents.AgentID
	love    map[agents.AgentID][]agents.AgentID
	friends map[agents.AgentID][]agents.AgentID
	dislike map[agents.AgentID][]agents.AgentID
}

func newGraph(list []*agents.Agent) *graph {
	g := &graph{
		byID:    make(map[agents.AgentID]*agents.Agent),
		love:    make(map[agents.AgentID][]agents.AgentID),
		friends: make(map[agents.AgentID][]agents.AgentID),
		dislike: make(map[agents.AgentID][]agents.AgentID),
	}
	for _, a := range list {
		if a.Alive {
			g.byID[a.ID] = a
		}
	}
	g.ids = slices.Sorted(maps.Keys(g.byID))
	for _, id := range g.ids {
		a := g.byID[id]
		for _, other := range slices.Sorted(maps.Keys(a.Relationships)) {
			if _, alive := g.byID[other]; !alive {
				continue
			}
			rel := a.Relationships[other]
			if rel.Spark > 0 {
				g.love[id] = append(g.love[id], other)
			}
			if rel.AreFriends {
				g.friends[id] = append(g.friends[id], other)
			}
			if rel.AreEnemies {
				g.dislike[id] = append(g.dislike[id], other)
			}
		}
	}
	return g
}

func (g *graph) name(id agents.AgentID) string {
	return g.byID[id].Name()
}

func (g *graph) loves(a, b agents.AgentID) bool    { return slices.Contains(g.love[a], b) }
func (g *graph) dislikes(a, b agents.AgentID) bool { return slices.Contains(g.dislike[a], b) }

func (g *graph) unrequited(a, b agents.AgentID) bool {
	return g.loves(a, b) && !g.loves(b, a)
}

// Excavate runs every detector over list.
func Excavate(list []*agents.Agent) Report {
	g := newGraph(list)
	var out []Situation
	for _, detect := range []func(*graph) []Situation{
		unrequitedLove, loveTriangles, affairs, asymmetricFriendships,
		rivalries, misanthropes,
	} {
		out = append(out, detect(g)...)
	}
	rank := make(map[Kind]int, len(kindOrder))
	for i, k := range kindOrder {
		rank[k] = i
	}
	slices.SortStableFunc(out, func(a, b Situation) int {
		if c := cmp.Compare(rank[a.Kind], rank[b.Kind]); c != 0 {
			return c
		}
		return slices.Compare(a.AgentIDs, b.AgentIDs)
	})
	return Report{Situations: out}
}

func unrequitedLove(g *graph) []Situation {
	var out []Situation
	for _, a := range g.ids {
		for _, b := range g.love[a] {
			if g.unrequited(a, b) {
				out = append(out, Situation{
					Kind:     UnrequitedLove,
					AgentIDs: []agents.AgentID{a, b},
					Summary:  fmt.Sprintf("%s pines for %s, who does not return the feeling", g.name(a), g.name(b)),
				})
			}
		}
	}
	return out
}

// loveTriangles finds directed 3-cycles of unrequited love. Each cycle is
// reported once, starting from its lowest id.
func loveTriangles(g *graph) []Situation {
	var out []Situation
	for _, a := range g.ids {
		for _, b := range g.love[a] {
			if b <= a || !g.unrequited(a, b) {
				continue
			}
			for _, c := range g.love[b] {
				if c <= a || c == b || !g.unrequited(b, c) || !g.unrequited(c, a) {
					continue
				}
				out = append(out, Situation{
					Kind:     LoveTriangle,
					AgentIDs: []agents.AgentID{a, b, c},
					Summary:  fmt.Sprintf("%s loves %s, who loves %s, who loves %s", g.name(a), g.name(b), g.name(c), g.name(a)),
				})
			}
		}
	}
	return out
}

func affairs(g *graph) []Situation {
	var out []Situation
	for _, a := range g.ids {
		spouse := g.byID[a].SpouseID
		if spouse == nil {
			continue
		}
		for _, x := range g.love[a] {
			if x == *spouse {
				continue
			}
			out = append(out, Situation{
				Kind:     ExtramaritalAffair,
				AgentIDs: []agents.AgentID{a, *spouse, x},
				Summary:  fmt.Sprintf("%s is married to %s but has feelings for %s", g.name(a), spouseName(g, *spouse), g.name(x)),
			})
		}
	}
	return out
}

func spouseName(g *graph, id agents.AgentID) string {
	if a, ok := g.byID[id]; ok {
		return a.Name()
	}
	return fmt.Sprintf("agent %d", id)
}

func asymmetricFriendships(g *graph) []Situation {
	var out []Situation
	for _, a := range g.ids {
		for _, b := range g.friends[a] {
			if g.dislikes(b, a) {
				out = append(out, Situation{
					Kind:     AsymmetricFriendship,
					AgentIDs: []agents.AgentID{a, b},
					Summary:  fmt.Sprintf("%s counts %s a friend, but %s cannot stand them", g.name(a), g.name(b), g.name(b)),
				})
			}
		}
	}
	return out
}

// rivalries reports every mutual dislike once, and again as a sibling or
// business rivalry when the pair is related or competes in the same trade.
func rivalries(g *graph) []Situation {
	var out []Situation
	for _, a := range g.ids {
		for _, b := range g.dislike[a] {
			if b <= a || !g.dislikes(b, a) {
				continue
			}
			ids := []agents.AgentID{a, b}
			out = append(out, Situation{
				Kind:     Rivalry,
				AgentIDs: ids,
				Summary:  fmt.Sprintf("%s and %s despise each other", g.name(a), g.name(b)),
			})
			pa, pb := g.byID[a], g.byID[b]
			if pa.IsSiblingOf(pb) {
				out = append(out, Situation{
					Kind:     SiblingRivalry,
					AgentIDs: ids,
					Summary:  fmt.Sprintf("Siblings %s and %s are at each other's throats", g.name(a), g.name(b)),
				})
			}
			oa, ob := pa.CurrentOccupation(), pb.CurrentOccupation()
			if oa != nil && ob != nil && oa.BusinessType == ob.BusinessType && oa.BusinessID != ob.BusinessID {
				out = append(out, Situation{
					Kind:     BusinessRivalry,
					AgentIDs: ids,
					Summary:  fmt.Sprintf("%s and %s are rivals in the %s trade", g.name(a), g.name(b), oa.BusinessType),
				})
			}
		}
	}
	return out
}

func misanthropes(g *graph) []Situation {
	var out []Situation
	for _, a := range g.ids {
		if n := len(g.dislike[a]); n >= MisanthropeThreshold {
			out = append(out, Situation{
				Kind:     Misanthropy,
				AgentIDs: []agents.AgentID{a},
				Summary:  fmt.Sprintf("%s dislikes %d of their neighbors", g.name(a), n),
			})
		}
	}
	return out
}
