// Package engine runs the social simulation. Every exported method on
// Simulation is one subsystem action: it loads copies of the records it needs,
// validates, mutates the copies and writes them back in a single store call,
// so a hard failure never leaves a partial update behind.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/economy"
	"github.com/talgya/hamlet/internal/entropy"
)

// Calendar. One tick is one sim-day.
const (
	TicksPerMonth = 30
	TicksPerYear  = 360
)

// maxRecentEvents bounds the in-memory event buffer.
const maxRecentEvents = 1000

// Options configures a Simulation.
type Options struct {
	WorldID   uint64
	StartYear int
	Rng       entropy.Source
	Narrator  chronicle.Narrator
}

// Simulation holds the collaborators and the in-flight registry for one world.
type Simulation struct {
	WorldID   uint64
	StartYear int
	Registry  *Registry
	Narrator  chronicle.Narrator
	Events    []chronicle.Event // Recent events, newest last
	LastTick  uint64
	Stats     SimStats

	store   Store
	rng     entropy.Source
	spawner *agents.Spawner
	markets map[uint64]*economy.Market
	noise   map[uuid.UUID]opensimplex.Noise
	pending []chronicle.Event
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Population  int     `json:"population"`
	Deaths      int     `json:"deaths"`
	Married     int     `json:"married"`
	Employed    int     `json:"employed"`
	Students    int     `json:"students"`
	Grieving    int     `json:"grieving"`
	TotalWealth float64 `json:"total_wealth"`
}

// NewSimulation creates a simulation over store.
func NewSimulation(store Store, opts Options) *Simulation {
	if opts.Rng == nil {
		opts.Rng = entropy.NewSeeded(entropy.NewSeed())
	}
	if opts.WorldID == 0 {
		opts.WorldID = 1
	}
	return &Simulation{
		WorldID:   opts.WorldID,
		StartYear: opts.StartYear,
		Registry:  NewRegistry(),
		Narrator:  opts.Narrator,
		store:     store,
		rng:       opts.Rng,
		spawner:   agents.NewSpawner(opts.Rng),
		markets:   make(map[uint64]*economy.Market),
		noise:     make(map[uuid.UUID]opensimplex.Noise),
	}
}

// Load rebuilds the registry from the store after a restart.
func (s *Simulation) Load(ctx context.Context) error {
	list, err := s.store.ListAgents(ctx, s.WorldID)
	if err != nil {
		return fmt.Errorf("load agents: %w", err)
	}
	s.Registry.Rehydrate(list)
	s.updateStats(list)
	slog.Info("registry rehydrated",
		"agents", len(list),
		"romances", len(s.Registry.Romances),
		"pregnancies", len(s.Registry.Pregnancies),
		"enrollments", len(s.Registry.Enrollments),
		"commissions", len(s.Registry.Commissions),
	)
	return nil
}

// Year returns the calendar year at tick.
func (s *Simulation) Year(tick uint64) int {
	return s.StartYear + int(tick/TicksPerYear)
}

// Store returns the backing store.
func (s *Simulation) Store() Store {
	return s.store
}

// loadAgents fetches copies of the given agents, in order.
func (s *Simulation) loadAgents(ctx context.Context, ids ...agents.AgentID) ([]*agents.Agent, error) {
	out := make([]*agents.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := s.store.GetAgent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load agent %d: %w", id, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// loadPair fetches two distinct agents.
func (s *Simulation) loadPair(ctx context.Context, a, b agents.AgentID) (*agents.Agent, *agents.Agent, error) {
	if a == b {
		return nil, nil, fmt.Errorf("%w: %d", ErrSameAgent, a)
	}
	list, err := s.loadAgents(ctx, a, b)
	if err != nil {
		return nil, nil, err
	}
	return list[0], list[1], nil
}

func (s *Simulation) save(ctx context.Context, list ...*agents.Agent) error {
	if err := s.store.UpdateAgents(ctx, list...); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	return nil
}

// emit narrates an event and queues it for the event store.
func (s *Simulation) emit(ctx context.Context, kind chronicle.Kind, tick uint64, data map[string]string, ids ...agents.AgentID) {
	ev := chronicle.Phrase(ctx, s.Narrator, chronicle.New(kind, tick, data, ids...))
	s.pending = append(s.pending, ev)
	s.Events = append(s.Events, ev)
	if len(s.Events) > maxRecentEvents {
		s.Events = s.Events[len(s.Events)-maxRecentEvents:]
	}
	slog.Debug("event", "tick", tick, "kind", kind, "text", ev.Text)
}

// FlushEvents writes queued events to the event store.
func (s *Simulation) FlushEvents(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.store.SaveEvents(ctx, s.pending); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

// pair builds template data naming two agents.
func pair(a, b *agents.Agent) map[string]string {
	return map[string]string{"name": a.Name(), "other": b.Name()}
}

// with adds key/value pairs to template data.
func with(data map[string]string, kv ...string) map[string]string {
	if data == nil {
		data = make(map[string]string, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return data
}

func named(a *agents.Agent) map[string]string {
	return map[string]string{"name": a.Name()}
}

func itoa(v int) string { return strconv.Itoa(v) }

func (s *Simulation) updateStats(list []*agents.Agent) {
	st := SimStats{}
	for _, a := range list {
		if !a.Alive {
			st.Deaths++
			continue
		}
		st.Population++
		st.TotalWealth += a.Wealth()
		if a.IsMarried() {
			st.Married++
		}
		if a.CurrentOccupation() != nil {
			st.Employed++
		}
		if a.Ext.Education != nil && a.Ext.Education.Current != nil {
			st.Students++
		}
		if a.Ext.Grief != nil && len(a.Ext.Grief.Active) > 0 {
			st.Grieving++
		}
	}
	s.Stats = st
}
