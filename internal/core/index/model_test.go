package index

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevanceScore(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		expected float64
	}{
		{"距離0は1", 0, 1},
		{"距離0.25", 0.25, 0.75},
		{"距離1は0", 1, 0},
		{"距離1超は0にクランプ", 1.7, 0},
		{"負の距離は1にクランプ", -0.5, 1},
		{"NaNは0", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RelevanceScore(tt.distance), 1e-9)
		})
	}
}

func TestRelevanceScore_Monotonic(t *testing.T) {
	prev := RelevanceScore(0)
	for d := 0.0; d <= 3.0; d += 0.01 {
		score := RelevanceScore(d)
		assert.LessOrEqual(t, score, prev)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
}

func TestMetadata_JSONKeepsExtrasAtTopLevel(t *testing.T) {
	meta := Metadata{
		Source:      "AU1234.pdf",
		ChunkIndex:  2,
		TotalChunks: 5,
		Ministry:    "Ministry of Finance",
		Session:     "5",
		Extra:       map[string]any{"question_type": "UNSTARRED"},
	}

	data, err := json.Marshal(meta)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "UNSTARRED", flat["question_type"])
	assert.Equal(t, "AU1234.pdf", flat["source"])
	assert.NotContains(t, flat, "original_url")

	var decoded Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, meta, decoded)
}

func TestMetadata_UnmarshalLenientTypes(t *testing.T) {
	var meta Metadata
	err := json.Unmarshal([]byte(`{"source":"x.pdf","chunk_index":"3","total_chunks":7,"page":12,"session":null}`), &meta)
	require.NoError(t, err)

	assert.Equal(t, 3, meta.ChunkIndex)
	assert.Equal(t, 7, meta.TotalChunks)
	assert.Equal(t, "12", meta.Page)
	assert.Empty(t, meta.Session)
	assert.Nil(t, meta.Extra)
}

func TestMinistryIndex(t *testing.T) {
	idx := NewMinistryIndex("B", "", "A")
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"A", "B"}, idx.Names())

	idx.Add("C")
	idx.Add("")
	idx.Remove("A")
	assert.True(t, idx.Contains("C"))
	assert.False(t, idx.Contains("A"))

	idx.Replace([]string{"Z"})
	assert.Equal(t, []string{"Z"}, idx.Names())

	idx.Clear()
	assert.Equal(t, 0, idx.Len())
}

func TestValidateEmbeddingInput(t *testing.T) {
	_, err := ValidateEmbeddingInput(" \n\t")
	assert.ErrorIs(t, err, ErrEmptyInput)

	text, err := ValidateEmbeddingInput("  hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}
