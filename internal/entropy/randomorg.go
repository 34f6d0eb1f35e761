package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	randomOrgURL = "https://api.random.org/json-rpc/4/invoke"

	// batchSize fractions are requested per call; the pool is topped up
	// once it falls below lowWater.
	batchSize = 100
	lowWater  = 10
)

// Client draws true random numbers from random.org in batches and serves
// them from a local pool. When the service cannot be reached it serves
// crypto/rand values instead, so callers never see an error. It is safe for
// concurrent use.
type Client struct {
	URL string

	apiKey     string
	httpClient *http.Client

	mu       sync.Mutex
	pool     []float64
	calls    int
	fallback int
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		URL:        randomOrgURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Float64 returns the next pooled value in [0, 1).
func (c *Client) Float64() float64 {
	if !c.Enabled() {
		return cryptoFloat()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < lowWater {
		c.topUp()
	}
	if len(c.pool) == 0 {
		c.fallback++
		return cryptoFloat()
	}
	v := c.pool[0]
	c.pool = c.pool[1:]
	return v
}

func (c *Client) Intn(n int) int {
	return scale(c.Float64(), n)
}

// Fallbacks reports how many values were served from crypto/rand because the
// pool was empty.
func (c *Client) Fallbacks() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallback
}

// topUp fetches one batch into the pool. Failures are logged and leave the
// pool as it was. c.mu is held.
func (c *Client) topUp() {
	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()
	c.calls++
	data, err := c.fetch(ctx, c.calls)
	if err != nil {
		slog.Debug("random.org refill failed", "error", err, "pooled", len(c.pool))
		return
	}
	c.pool = append(c.pool, data...)
	slog.Debug("random.org pool refilled", "count", len(data))
}

type rpcParams struct {
	APIKey        string `json:"apiKey"`
	N             int    `json:"n"`
	DecimalPlaces int    `json:"decimalPlaces"`
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

type rpcResponse struct {
	Result *struct {
		Random struct {
			Data []float64 `json:"data"`
		} `json:"random"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// fetch asks for one batch of decimal fractions.
func (c *Client) fetch(ctx context.Context, id int) ([]float64, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "generateDecimalFractions",
		Params:  rpcParams{APIKey: c.apiKey, N: batchSize, DecimalPlaces: 6},
		ID:      id,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("response has no result")
	}
	data := out.Result.Random.Data[:0]
	for _, v := range out.Result.Random.Data {
		if v >= 0 && v < 1 {
			data = append(data, v)
		}
	}
	return data, nil
}

// cryptoFloat is a uniform value in [0, 1) from the top 53 bits of a
// crypto/rand word.
func cryptoFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// NewSeed draws a seed from crypto/rand for runs that do not pin one.
func NewSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
