package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/core/index/indextest"
	"github.com/jinford/sansad-rag/internal/core/ingestion/chunk"
	"github.com/jinford/sansad-rag/internal/platform/retry"
)

const finance = "Ministry of Finance"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubExtractor はバイト列をそのまま1ページのテキストとして扱う
// "ERR" で始まる入力は抽出失敗、"|" はページ区切り、"!page" はページ単位の失敗
type stubExtractor struct{}

func (stubExtractor) ExtractPages(ctx context.Context, data []byte) ([]Page, error) {
	s := string(data)
	if strings.HasPrefix(s, "ERR") {
		return nil, errors.New("corrupt pdf")
	}
	var pages []Page
	for i, part := range strings.Split(s, "|") {
		if part == "!page" {
			pages = append(pages, Page{Number: i + 1, Err: errors.New("bad page")})
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: part})
	}
	return pages, nil
}

type memBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploadErr error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (m *memBlobStore) Upload(ctx context.Context, data []byte, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.blobs[path] = data
	return "mem://" + path, nil
}

func (m *memBlobStore) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for p := range m.blobs {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *memBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[path]
	return ok, nil
}

func (m *memBlobStore) Delete(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, path)
	return true, nil
}

type staticLister struct {
	sources []SourceDocument
	err     error
}

func (l staticLister) ListSources(ctx context.Context, ministry string) ([]SourceDocument, error) {
	return l.sources, l.err
}

func source(name, body string) SourceDocument {
	return SourceDocument{
		Name: name,
		URL:  "https://sansad.in/getFile/loksabhaquestions/annex/185/" + name + "?source=pqals",
		Fetch: func(ctx context.Context) ([]byte, error) {
			return []byte(body), nil
		},
	}
}

func newTestStore(t *testing.T) (*index.DocumentStore, *indextest.MemoryRepository) {
	t.Helper()
	repo := indextest.NewMemoryRepository()
	store := index.NewDocumentStore(context.Background(), repo, indextest.NewHashEmbedder(32),
		index.WithStoreLogger(discardLogger()),
		index.WithRetryPolicy(retry.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, Multiplier: 2}),
	)
	return store, repo
}

func TestCoordinator_EndToEndSingleDocument(t *testing.T) {
	store, _ := newTestStore(t)
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()))

	result, err := coord.IngestSources(context.Background(), finance, []SourceDocument{
		source("AU100.pdf", "Budget allocation is 100 crore. Next session is in March."),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, result.Chunks)
	assert.NotEmpty(t, result.RunID.String())

	results, err := store.SearchByText(context.Background(), "budget allocation", finance, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "AU100.pdf_chunk_0", results[0].ID)
	assert.Equal(t, 0, results[0].Metadata.ChunkIndex)
	assert.Equal(t, 1, results[0].Metadata.TotalChunks)
	assert.Equal(t, "AU100.pdf", results[0].Metadata.Source)
	assert.Equal(t, finance, results[0].Ministry)
	assert.Contains(t, results[0].Metadata.OriginalURL, "AU100.pdf")
	assert.True(t, store.IsMinistryIndexed(finance))
}

func TestCoordinator_IsolatesPerSourceFailures(t *testing.T) {
	store, repo := newTestStore(t)
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()))

	fetchFails := SourceDocument{
		Name: "AU2.pdf",
		Fetch: func(ctx context.Context) ([]byte, error) {
			return nil, errors.New("404")
		},
	}

	result, err := coord.IngestSources(context.Background(), finance, []SourceDocument{
		source("AU1.pdf", "ERR broken"),
		fetchFails,
		source("AU3.pdf", "   "),
		source("AU4.pdf", "!page|Rural roads received funds. The scheme continues."),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Sources)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, repo.Len())

	rec, ok := repo.Record("AU4.pdf_chunk_0")
	require.True(t, ok)
	assert.Equal(t, "Rural roads received funds The scheme continues", rec.Text)
}

func TestCoordinator_SkipsAlreadyIndexedSources(t *testing.T) {
	store, _ := newTestStore(t)
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()))
	fetched := 0
	src := source("AU5.pdf", "First answer. Second answer.")
	fetch := src.Fetch
	src.Fetch = func(ctx context.Context) ([]byte, error) {
		fetched++
		return fetch(ctx)
	}

	first, err := coord.IngestSources(context.Background(), finance, []SourceDocument{src})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Ingested)

	second, err := coord.IngestSources(context.Background(), finance, []SourceDocument{src})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Ingested)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, fetched)
}

func TestCoordinator_ArchivesSourcesAndReingestsStored(t *testing.T) {
	store, repo := newTestStore(t)
	blobs := newMemBlobStore()
	coord := NewCoordinator(store, stubExtractor{},
		WithCoordinatorLogger(discardLogger()),
		WithBlobStore(blobs),
	)

	_, err := coord.IngestSources(context.Background(), finance, []SourceDocument{
		source("AU6.pdf", "Answer six is here. It has two sentences."),
	})
	require.NoError(t, err)

	exists, err := blobs.Exists(context.Background(), "Ministry of Finance/AU6.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	// 登録済みの省庁は force なしでは何もしない
	result, err := coord.IngestStored(context.Background(), finance, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sources)

	_, err = store.ClearAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, repo.Len())

	result, err = coord.IngestStored(context.Background(), finance, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sources)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, repo.Len())

	result, err = coord.IngestStored(context.Background(), finance, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, repo.Len())
}

func TestCoordinator_ArchiveFailureDoesNotAbort(t *testing.T) {
	store, repo := newTestStore(t)
	blobs := newMemBlobStore()
	blobs.uploadErr = errors.New("storage unreachable")
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()), WithBlobStore(blobs))

	result, err := coord.IngestSources(context.Background(), finance, []SourceDocument{
		source("AU7.pdf", "Still indexed."),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, repo.Len())
}

func TestCoordinator_IngestStoredRequiresBlobStore(t *testing.T) {
	store, _ := newTestStore(t)
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()))

	_, err := coord.IngestStored(context.Background(), finance, false)
	assert.ErrorIs(t, err, ErrBlobStoreNotConfigured)
}

func TestCoordinator_IngestMinistry(t *testing.T) {
	store, _ := newTestStore(t)
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()))

	_, err := coord.IngestMinistry(context.Background(), finance, staticLister{err: errors.New("api down")})
	require.Error(t, err)

	result, err := coord.IngestMinistry(context.Background(), finance, staticLister{sources: []SourceDocument{
		source("AU8.pdf", "One. Two."),
		source("AU9.pdf", "Three. Four."),
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Ingested)
}

func TestCoordinator_StopsOnCanceledContext(t *testing.T) {
	store, _ := newTestStore(t)
	coord := NewCoordinator(store, stubExtractor{}, WithCoordinatorLogger(discardLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := coord.IngestSources(ctx, finance, []SourceDocument{source("AU10.pdf", "Text.")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Ingested)
}

func TestBuildChunks(t *testing.T) {
	chunker := chunk.NewSentenceChunker(60, 0)
	src := SourceDocument{Name: "AU11.pdf", URL: "https://example.org/AU11.pdf", Date: "2024-12-02", Session: "5"}

	chunks, err := BuildChunks(chunker, src, finance, []Page{
		{Number: 1, Text: "The allocation for 2024-25 is Rs. 500 crore."},
		{Number: 2, Err: errors.New("broken")},
		{Number: 3, Text: "Funds were released in two tranches. Utilisation is monitored quarterly."},
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, ChunkID("AU11.pdf", i), c.ID)
		assert.Equal(t, i, c.Metadata.ChunkIndex)
		assert.Equal(t, len(chunks), c.Metadata.TotalChunks)
		assert.Equal(t, "AU11.pdf", c.Metadata.Source)
		assert.Equal(t, "5", c.Metadata.Session)
		assert.Equal(t, "2024-12-02", c.Metadata.Date)
		assert.Equal(t, finance, c.Ministry)
		assert.NotContains(t, c.Text, "Page")
	}

	again, err := BuildChunks(chunker, src, finance, []Page{
		{Number: 1, Text: "The allocation for 2024-25 is Rs. 500 crore."},
		{Number: 3, Text: "Funds were released in two tranches. Utilisation is monitored quarterly."},
	})
	require.NoError(t, err)
	assert.Equal(t, chunks, again)

	_, err = BuildChunks(chunker, src, finance, []Page{{Number: 1, Err: errors.New("x")}})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestSourceNameFromURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"https://sansad.in/getFile/loksabhaquestions/annex/185/AU1234.pdf?source=pqals", "AU1234.pdf"},
		{"https://sansad.in/files/AS12.pdf", "AS12.pdf"},
		{"AU1.pdf", "AU1.pdf"},
		{"https://sansad.in/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, SourceNameFromURL(tt.raw))
		})
	}
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "AU1.pdf_chunk_3", ChunkID("AU1.pdf", 3))
	assert.Equal(t, "a_b.pdf_chunk_0", ChunkID("a/b.pdf", 0))
}
