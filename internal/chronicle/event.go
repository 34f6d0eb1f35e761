// Package chronicle records notable simulation events and renders them as text.
// Every event kind carries a fixed template, so narration never depends on an
// external text generator being available.
package chronicle

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/hamlet/internal/agents"
)

// Category groups event kinds for reporting.
type Category string

const (
	CategorySocial    Category = "social"
	CategoryRomance   Category = "romance"
	CategoryFamily    Category = "family"
	CategoryDeath     Category = "death"
	CategoryEducation Category = "education"
	CategoryEconomy   Category = "economy"
	CategoryBuilding  Category = "building"
	CategoryDrama     Category = "drama"
)

// Event is a notable occurrence. Data holds the template fields; Text is the
// rendered narration, filled in by Phrase.
type Event struct {
	ID       uuid.UUID         `json:"id"`
	Tick     uint64            `json:"tick"`
	Kind     Kind              `json:"kind"`
	Category Category          `json:"category"`
	AgentIDs []agents.AgentID  `json:"agent_ids,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Text     string            `json:"text"`
}

// New creates an event of kind at tick with the given template fields.
func New(kind Kind, tick uint64, data map[string]string, ids ...agents.AgentID) Event {
	return Event{
		ID:       uuid.New(),
		Tick:     tick,
		Kind:     kind,
		Category: kind.Category(),
		AgentIDs: ids,
		Data:     data,
	}
}

// Narrator phrases a structured event as natural-language text.
type Narrator interface {
	PhraseEvent(ctx context.Context, ev Event) (string, error)
}

// Phrase fills ev.Text, using n when it is set and falling back to the
// kind's template on any failure.
func Phrase(ctx context.Context, n Narrator, ev Event) Event {
	if n != nil {
		text, err := n.PhraseEvent(ctx, ev)
		if err == nil && text != "" {
			ev.Text = text
			return ev
		}
		if err != nil {
			slog.Debug("narration fallback", "kind", ev.Kind, "error", err)
		}
	}
	ev.Text = Render(ev)
	return ev
}
