package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hamlet/internal/chronicle"
)

func fakeAPI(t *testing.T, reply string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"text":` + jsonString(reply) + `}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestNewClientDisabledWithoutKey(t *testing.T) {
	c := NewClient("", 10)
	assert.Nil(t, c)
	assert.False(t, c.Enabled())

	_, err := c.Complete(context.Background(), "", "hi", 10)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCompleteReturnsText(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, "Good morrow.", &calls)

	c := NewClient("test-key", 60)
	c.URL = srv.URL

	text, err := c.Complete(context.Background(), "system", "hello", 50)
	require.NoError(t, err)
	assert.Equal(t, "Good morrow.", text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("test-key", 60)
	c.URL = srv.URL

	_, err := c.Complete(context.Background(), "", "hello", 50)
	assert.ErrorContains(t, err, "API error 503")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "overloaded", se.Body)
	assert.True(t, se.Temporary())
	assert.False(t, (&StatusError{Code: http.StatusBadRequest}).Temporary())
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"The mill "},{"type":"tool_use"},{"type":"text","text":"burned."}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", 60)
	c.URL = srv.URL
	text, err := c.Complete(context.Background(), "", "hello", 50)
	require.NoError(t, err)
	assert.Equal(t, "The mill burned.", text)
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", 60)
	c.URL = srv.URL
	_, err := c.Complete(context.Background(), "", "hello", 50)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCompleteRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, "ok", &calls)

	c := NewClient("test-key", 1)
	c.URL = srv.URL

	_, err := c.Complete(context.Background(), "", "one", 10)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "", "two", 10)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNarratorCachesByRenderedText(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, "  Ada Crane and Silas Pike wed in the spring of 1839.  ", &calls)

	c := NewClient("test-key", 60)
	c.URL = srv.URL
	n, err := NewNarrator(c, 8)
	require.NoError(t, err)

	ev := chronicle.New(chronicle.KindMarriage, 10, map[string]string{
		"name": "Ada Crane", "other": "Silas Pike", "year": "1839",
	})

	for range 3 {
		text, err := n.PhraseEvent(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, "Ada Crane and Silas Pike wed in the spring of 1839.", text)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestPhraseFallsBackWhenNarratorFails(t *testing.T) {
	n, err := NewNarrator(NewClient("", 0), 4)
	require.NoError(t, err)

	ev := chronicle.New(chronicle.KindMarriage, 10, map[string]string{
		"name": "Ada Crane", "other": "Silas Pike", "year": "1839",
	})
	got := chronicle.Phrase(context.Background(), n, ev)
	assert.Equal(t, "Ada Crane and Silas Pike were married in 1839", got.Text)
}
