// Package persistence stores agents and world entities. Memory keeps everything
// in process; DB keeps it in SQLite. Both hand out copies, so callers can
// mutate what they read freely and nothing changes until they write it back.
package persistence

import "github.com/talgya/hamlet/internal/simerr"

var (
	ErrAgentNotFound      = simerr.New(simerr.ErrNotFound, "agent not found")
	ErrBusinessNotFound   = simerr.New(simerr.ErrNotFound, "business not found")
	ErrSettlementNotFound = simerr.New(simerr.ErrNotFound, "settlement not found")
	ErrStructureNotFound  = simerr.New(simerr.ErrNotFound, "structure not found")
)
