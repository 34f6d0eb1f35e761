package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededIsReproducible(t *testing.T) {
	a := NewSeeded(7)
	b := NewSeeded(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
		assert.Equal(t, a.Intn(10), b.Intn(10))
	}
}

func TestScriptedReplaysThenRepeatsLast(t *testing.T) {
	s := NewScripted(0.1, 0.9)
	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 0.9, s.Float64())
	assert.Equal(t, 0.9, s.Float64())
}

func TestScriptedIntnStaysInRange(t *testing.T) {
	s := NewScripted(0.999999)
	assert.Equal(t, 4, s.Intn(5))
	assert.Equal(t, 0, NewScripted(0).Intn(5))
}

func TestChanceAndUniform(t *testing.T) {
	assert.True(t, Chance(NewScripted(0.2), 0.3))
	assert.False(t, Chance(NewScripted(0.3), 0.3))
	assert.InDelta(t, 15.0, Uniform(NewScripted(0.5), 10, 20), 1e-9)
}

func TestNilClientFallsBack(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
	v := c.Float64()
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Less(t, v, 1.0)
	assert.Nil(t, NewClient(""))
}

func fakeRandomOrg(t *testing.T, handler func(w http.ResponseWriter, req rpcRequest)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("test-key")
	c.URL = srv.URL
	return c
}

func TestClientServesPoolInOrder(t *testing.T) {
	var calls atomic.Int32
	c := fakeRandomOrg(t, func(w http.ResponseWriter, req rpcRequest) {
		calls.Add(1)
		assert.Equal(t, "generateDecimalFractions", req.Method)
		assert.Equal(t, "test-key", req.Params.APIKey)
		assert.Equal(t, batchSize, req.Params.N)
		data := make([]float64, batchSize)
		for i := range data {
			data[i] = (float64(i) + 0.5) / batchSize
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"random": map[string]any{"data": data}},
		})
	})

	assert.InDelta(t, 0.005, c.Float64(), 1e-12)
	assert.InDelta(t, 0.015, c.Float64(), 1e-12)
	assert.Equal(t, 0, c.Intn(10))
	assert.Equal(t, 3, c.Intn(100))
	for range batchSize - lowWater - 3 {
		c.Float64()
	}
	assert.Equal(t, int32(1), calls.Load())
	c.Float64()
	assert.Equal(t, int32(2), calls.Load(), "a low pool is topped up")
	assert.Zero(t, c.Fallbacks())
}

func TestClientFallsBackOnServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, req rpcRequest)
	}{
		{"http error", func(w http.ResponseWriter, _ rpcRequest) {
			http.Error(w, "down", http.StatusBadGateway)
		}},
		{"rpc error", func(w http.ResponseWriter, _ rpcRequest) {
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"bad key"}}`))
		}},
		{"garbage", func(w http.ResponseWriter, _ rpcRequest) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fakeRandomOrg(t, tt.handler)
			v := c.Float64()
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
			assert.Equal(t, 1, c.Fallbacks())
		})
	}
}
