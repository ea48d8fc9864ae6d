package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

func TestStateFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	state := NewStateFile(filepath.Join(t.TempDir(), "nested", "monitor_state.json"))

	empty, err := state.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	checked := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, state.Save(ctx, map[string]ingestion.Digest{
		"MINISTRY OF FINANCE": {Hash: "abc", Count: 12, CheckedAt: checked},
	}))

	loaded, err := state.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "MINISTRY OF FINANCE")
	assert.Equal(t, "abc", loaded["MINISTRY OF FINANCE"].Hash)
	assert.Equal(t, 12, loaded["MINISTRY OF FINANCE"].Count)
	assert.True(t, checked.Equal(loaded["MINISTRY OF FINANCE"].CheckedAt))
}

func TestStateFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewStateFile(path).Load(context.Background())
	require.Error(t, err)
}
