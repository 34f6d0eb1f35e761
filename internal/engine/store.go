package engine

import (
	"context"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/social"
)

// AgentStore persists agents. Reads return copies. UpdateAgents writes all
// of its arguments or none of them.
type AgentStore interface {
	GetAgent(ctx context.Context, id agents.AgentID) (*agents.Agent, error)
	ListAgents(ctx context.Context, worldID uint64) ([]*agents.Agent, error)
	CreateAgent(ctx context.Context, a *agents.Agent) (agents.AgentID, error)
	UpdateAgents(ctx context.Context, list ...*agents.Agent) error
}

// BusinessStore persists businesses.
type BusinessStore interface {
	GetBusiness(ctx context.Context, id uint64) (*social.Business, error)
	ListBusinesses(ctx context.Context, worldID uint64) ([]*social.Business, error)
	CreateBusiness(ctx context.Context, b *social.Business) (uint64, error)
	UpdateBusiness(ctx context.Context, b *social.Business) error
}

// SettlementStore persists settlements.
type SettlementStore interface {
	GetSettlement(ctx context.Context, id uint64) (*social.Settlement, error)
	ListSettlements(ctx context.Context, worldID uint64) ([]*social.Settlement, error)
	CreateSettlement(ctx context.Context, s *social.Settlement) (uint64, error)
}

// StructureStore persists finished structures.
type StructureStore interface {
	GetStructure(ctx context.Context, id uint64) (*social.Structure, error)
	ListStructures(ctx context.Context, worldID uint64) ([]*social.Structure, error)
	CreateStructure(ctx context.Context, s *social.Structure) (uint64, error)
}

// EventStore records narrated events.
type EventStore interface {
	SaveEvents(ctx context.Context, events []chronicle.Event) error
	RecentEvents(ctx context.Context, limit int) ([]chronicle.Event, error)
}

// Store is everything the simulation reads and writes.
type Store interface {
	AgentStore
	BusinessStore
	SettlementStore
	StructureStore
	EventStore
}
