package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/sansad-rag/internal/core/index"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder, err := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)
	require.NoError(t, err)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
}

func TestNewEmbedderDefaults(t *testing.T) {
	embedder, err := NewEmbedder("dummy-key")
	require.NoError(t, err)

	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelName())
	assert.Equal(t, 384, embedder.Dimension())
}

func TestNewEmbedderRequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestEmbedder_EmptyInputDoesNotCallAPI(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL))
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, index.ErrEmptyInput)

	_, err = embedder.BatchEmbed(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, index.ErrEmptyInput)

	assert.Zero(t, calls.Load())
}

func TestEmbedder_Embed(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.5, -0.25, 1]}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 3, "total_tokens": 3}
		}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL), WithEmbeddingDimension(3))
	require.NoError(t, err)

	vector, err := embedder.Embed(context.Background(), "  budget allocation  ")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.5, -0.25, 1}, vector)
	assert.Equal(t, "budget allocation", received["input"])
	assert.EqualValues(t, 3, received["dimensions"])
	assert.Equal(t, DefaultEmbeddingModel, received["model"])
}

func TestEmbedder_BatchEmbedReordersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [2, 2]},
				{"object": "embedding", "index": 0, "embedding": [1, 1]}
			],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL), WithEmbeddingDimension(2))
	require.NoError(t, err)

	vectors, err := embedder.BatchEmbed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, vectors)
}

func TestEmbedder_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1]}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 1, "total_tokens": 1}
		}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder("dummy-key",
		WithEmbeddingBaseURL(server.URL),
		WithEmbeddingDimension(1),
		WithEmbeddingRetryPolicy(fastPolicy()),
	)
	require.NoError(t, err)

	vector, err := embedder.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1}, vector)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEmbedder_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "list", "data": [], "model": "m", "usage": {"prompt_tokens": 0, "total_tokens": 0}}`))
	}))
	defer server.Close()

	embedder, err := NewEmbedder("dummy-key", WithEmbeddingBaseURL(server.URL))
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "question")
	require.Error(t, err)
}
