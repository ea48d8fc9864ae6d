package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/sansad-rag/internal/core/ask"
	"github.com/jinford/sansad-rag/internal/platform/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Millisecond,
		Retryable:       isRateLimitError,
	}
}

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Connection successful"}}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
}`

func TestNewChatGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewChatGenerator("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestChatGenerator_Generate(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	gen, err := NewChatGenerator("dummy-key", WithChatBaseURL(server.URL), WithChatRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "ping", ask.DefaultGenerationConfig())
	require.NoError(t, err)

	assert.Equal(t, "Connection successful", text)
	assert.Equal(t, DefaultModel, received["model"])
	assert.InDelta(t, 0.7, received["temperature"], 1e-9)
	assert.InDelta(t, 0.8, received["top_p"], 1e-9)
}

func TestChatGenerator_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	gen, err := NewChatGenerator("dummy-key",
		WithChatBaseURL(server.URL),
		WithChatRetryPolicy(fastPolicy()),
	)
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "ping", ask.DefaultGenerationConfig())
	require.NoError(t, err)
	assert.Equal(t, "Connection successful", text)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
