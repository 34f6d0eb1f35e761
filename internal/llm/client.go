// Package llm provides an Anthropic Messages API client and the event
// narrator built on it. The simulation never depends on it: every caller
// falls back to template text when a call fails or is over budget.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultURL   = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-haiku-4-5-20251001"

	defaultPerMinute = 20
	maxErrorBody     = 1 << 10
)

var (
	ErrDisabled    = errors.New("llm client not configured")
	ErrRateLimited = errors.New("llm call budget exhausted")
	ErrEmpty       = errors.New("empty response")
)

// StatusError is a non-200 reply from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Body)
}

// Temporary reports whether the call may succeed if tried later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client calls the Messages API within a per-minute call budget.
type Client struct {
	URL   string
	Model string

	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client allowing perMinute calls a minute, bursting up
// to perMinute. Returns nil if apiKey is empty.
func NewClient(apiKey string, perMinute int) *Client {
	if apiKey == "" {
		return nil
	}
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	return &Client{
		URL:        defaultURL,
		Model:      defaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type response struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// text joins the text blocks of the reply.
func (r response) text() string {
	var b strings.Builder
	for _, blk := range r.Content {
		if blk.Type == "" || blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// Complete sends one user prompt and returns the reply text. It never waits
// for budget: a call over the limit fails at once with ErrRateLimited.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}

	resp, err := c.send(ctx, request{
		Model:     c.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	text := resp.text()
	if text == "" {
		return "", ErrEmpty
	}
	slog.Debug("llm call",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)
	return text, nil
}

func (c *Client) send(ctx context.Context, body request) (response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return response{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
