// Event narration: rephrases structured events as short period prose.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/talgya/hamlet/internal/chronicle"
)

const narrationSystem = `You are the chronicler of a small nineteenth-century farming hamlet.
Rewrite the event you are given as one sentence of plain period prose. Keep every name and number exactly as given. Do not invent people or events, and do not mention that this is a simulation.`

// Narrator phrases events through the client. Results are cached by the
// event's template text so repeated identical events cost one call.
type Narrator struct {
	client  *Client
	cache   *lru.Cache[string, string]
	timeout time.Duration
}

// NewNarrator creates a narrator over client with a cache of cacheSize entries.
func NewNarrator(client *Client, cacheSize int) (*Narrator, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("narration cache: %w", err)
	}
	return &Narrator{client: client, cache: cache, timeout: 5 * time.Second}, nil
}

// PhraseEvent implements chronicle.Narrator.
func (n *Narrator) PhraseEvent(ctx context.Context, ev chronicle.Event) (string, error) {
	plain := chronicle.Render(ev)
	if text, ok := n.cache.Get(plain); ok {
		return text, nil
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Event (%s): %s", ev.Kind, plain)
	text, err := n.client.Complete(ctx, narrationSystem, prompt, 120)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	n.cache.Add(plain, text)
	return text, nil
}
