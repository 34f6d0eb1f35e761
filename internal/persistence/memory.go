package persistence

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/social"
)

// Memory is an in-process store. Agents are kept as JSON so every read is a
// fresh deep copy, the same way the database hands back its blobs.
type Memory struct {
	mu sync.Mutex

	agents      map[agents.AgentID][]byte
	businesses  map[uint64][]byte
	settlements map[uint64]social.Settlement
	structures  map[uint64]social.Structure
	events      []chronicle.Event
	meta        map[string]string

	nextAgent, nextBusiness, nextSettlement, nextStructure uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:      make(map[agents.AgentID][]byte),
		businesses:  make(map[uint64][]byte),
		settlements: make(map[uint64]social.Settlement),
		structures:  make(map[uint64]social.Structure),
		meta:        make(map[string]string),
	}
}

func decodeAgent(data []byte) (*agents.Agent, error) {
	var a agents.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode agent: %w", err)
	}
	return &a, nil
}

// GetAgent returns a copy of the agent with id.
func (m *Memory) GetAgent(_ context.Context, id agents.AgentID) (*agents.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAgentNotFound, id)
	}
	return decodeAgent(data)
}

// ListAgents returns copies of every agent in the world, ordered by id.
func (m *Memory) ListAgents(_ context.Context, worldID uint64) ([]*agents.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*agents.Agent
	for _, data := range m.agents {
		a, err := decodeAgent(data)
		if err != nil {
			return nil, err
		}
		if a.WorldID == worldID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b *agents.Agent) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateAgent assigns a an id and stores it.
func (m *Memory) CreateAgent(_ context.Context, a *agents.Agent) (agents.AgentID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAgent++
	a.ID = agents.AgentID(m.nextAgent)
	data, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("encode agent: %w", err)
	}
	m.agents[a.ID] = data
	return a.ID, nil
}

// UpdateAgents replaces every given agent, or none of them if any is missing.
func (m *Memory) UpdateAgents(_ context.Context, list ...*agents.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	encoded := make(map[agents.AgentID][]byte, len(list))
	for _, a := range list {
		if _, ok := m.agents[a.ID]; !ok {
			return fmt.Errorf("%w: %d", ErrAgentNotFound, a.ID)
		}
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode agent %d: %w", a.ID, err)
		}
		encoded[a.ID] = data
	}
	for id, data := range encoded {
		m.agents[id] = data
	}
	return nil
}

// GetBusiness returns a copy of the business with id.
func (m *Memory) GetBusiness(_ context.Context, id uint64) (*social.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.businesses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBusinessNotFound, id)
	}
	var b social.Business
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode business: %w", err)
	}
	return &b, nil
}

// ListBusinesses returns copies of every business in the world, ordered by id.
func (m *Memory) ListBusinesses(ctx context.Context, worldID uint64) ([]*social.Business, error) {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.businesses))
	for id := range m.businesses {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	slices.Sort(ids)

	var out []*social.Business
	for _, id := range ids {
		b, err := m.GetBusiness(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.WorldID == worldID {
			out = append(out, b)
		}
	}
	return out, nil
}

// CreateBusiness assigns b an id and stores it.
func (m *Memory) CreateBusiness(_ context.Context, b *social.Business) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBusiness++
	b.ID = m.nextBusiness
	data, err := json.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("encode business: %w", err)
	}
	m.businesses[b.ID] = data
	return b.ID, nil
}

// UpdateBusiness replaces a stored business.
func (m *Memory) UpdateBusiness(_ context.Context, b *social.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.businesses[b.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrBusinessNotFound, b.ID)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode business %d: %w", b.ID, err)
	}
	m.businesses[b.ID] = data
	return nil
}

// GetSettlement returns the settlement with id.
func (m *Memory) GetSettlement(_ context.Context, id uint64) (*social.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSettlementNotFound, id)
	}
	return &s, nil
}

// ListSettlements returns every settlement in the world, ordered by id.
func (m *Memory) ListSettlements(_ context.Context, worldID uint64) ([]*social.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*social.Settlement
	for _, s := range m.settlements {
		if s.WorldID == worldID {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *social.Settlement) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateSettlement assigns s an id and stores it.
func (m *Memory) CreateSettlement(_ context.Context, s *social.Settlement) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSettlement++
	s.ID = m.nextSettlement
	m.settlements[s.ID] = *s
	return s.ID, nil
}

// GetStructure returns the structure with id.
func (m *Memory) GetStructure(_ context.Context, id uint64) (*social.Structure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.structures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrStructureNotFound, id)
	}
	return &s, nil
}

// ListStructures returns every structure in the world, ordered by id.
func (m *Memory) ListStructures(_ context.Context, worldID uint64) ([]*social.Structure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*social.Structure
	for _, s := range m.structures {
		if s.WorldID == worldID {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *social.Structure) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateStructure assigns s an id and stores it.
func (m *Memory) CreateStructure(_ context.Context, s *social.Structure) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStructure++
	s.ID = m.nextStructure
	m.structures[s.ID] = *s
	return s.ID, nil
}

// SaveEvents appends events.
func (m *Memory) SaveEvents(_ context.Context, events []chronicle.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (m *Memory) RecentEvents(_ context.Context, limit int) ([]chronicle.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chronicle.Event, 0, min(limit, len(m.events)))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// SaveMeta stores a key-value pair of world metadata.
func (m *Memory) SaveMeta(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

// GetMeta returns a metadata value, or "" if unset.
func (m *Memory) GetMeta(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[key], nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
