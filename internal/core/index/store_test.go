package index_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/core/index/indextest"
	"github.com/jinford/sansad-rag/internal/platform/retry"
)

const (
	finance   = "Ministry of Finance"
	education = "Ministry of Education"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, Multiplier: 2}
}

func newStore(t *testing.T, repo *indextest.MemoryRepository, embedder *indextest.HashEmbedder, opts ...index.StoreOption) *index.DocumentStore {
	t.Helper()
	opts = append([]index.StoreOption{
		index.WithStoreLogger(discardLogger()),
		index.WithRetryPolicy(fastRetry(3)),
	}, opts...)
	return index.NewDocumentStore(context.Background(), repo, embedder, opts...)
}

func TestDocumentStore_AddDocumentsIsIdempotent(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	chunks := indextest.TestChunks("LS-1.pdf", finance, 25)

	added, err := store.AddDocuments(context.Background(), chunks, finance)
	require.NoError(t, err)
	assert.Equal(t, 25, added)

	added, err = store.AddDocuments(context.Background(), chunks, finance)
	require.NoError(t, err)
	assert.Equal(t, 25, added)

	assert.Equal(t, 25, repo.Len())
	count, err := store.MinistryDocumentCount(context.Background(), finance)
	require.NoError(t, err)
	assert.EqualValues(t, 25, count)
}

func TestDocumentStore_AddDocumentsPreservesCreatedAt(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	chunks := indextest.TestChunks("LS-1.pdf", finance, 1)

	_, err := store.AddDocuments(context.Background(), chunks, finance)
	require.NoError(t, err)
	first, ok := repo.Record(chunks[0].ID)
	require.True(t, ok)

	_, err = store.AddDocuments(context.Background(), chunks, finance)
	require.NoError(t, err)
	second, ok := repo.Record(chunks[0].ID)
	require.True(t, ok)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestDocumentStore_AddDocumentsCommitsBatchesIndependently(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	chunks := indextest.TestChunks("LS-2.pdf", finance, 25)
	repo.FailUpsertIDs[chunks[13].ID] = errors.New("constraint violation")

	store := newStore(t, repo, indextest.NewHashEmbedder(16), index.WithRetryPolicy(fastRetry(1)))

	added, err := store.AddDocuments(context.Background(), chunks, finance)
	require.NoError(t, err)
	assert.Equal(t, 15, added)
	assert.Equal(t, 15, repo.Len())
	assert.True(t, store.IsMinistryIndexed(finance))

	// 失敗したバッチ（10..19）は1件も保存されない
	for _, c := range chunks[10:20] {
		_, ok := repo.Record(c.ID)
		assert.False(t, ok, c.ID)
	}
}

func TestDocumentStore_AddDocumentsFailsWhenEveryBatchFails(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	repo.FailTransacts = 100

	added, err := store.AddDocuments(context.Background(), indextest.TestChunks("LS-3.pdf", finance, 12), finance)
	require.Error(t, err)
	assert.Equal(t, 0, added)
	assert.False(t, store.IsMinistryIndexed(finance))
	// 2バッチ × 3回試行
	assert.Equal(t, 6, repo.Transacts-1)
}

func TestDocumentStore_AddDocumentsRetriesTransientFailures(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	repo.FailTransacts = 2

	added, err := store.AddDocuments(context.Background(), indextest.TestChunks("LS-4.pdf", finance, 3), finance)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
}

func TestDocumentStore_AddDocumentsNonRetryableFailsFast(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	policy := fastRetry(3)
	policy.Retryable = func(err error) bool { return false }
	store := newStore(t, repo, indextest.NewHashEmbedder(16), index.WithRetryPolicy(policy))
	before := repo.Transacts
	repo.FailTransacts = 1

	_, err := store.AddDocuments(context.Background(), indextest.TestChunks("LS-5.pdf", finance, 3), finance)
	require.Error(t, err)
	assert.Equal(t, 1, repo.Transacts-before)
}

func TestDocumentStore_AddDocumentsSkipsUnusableChunks(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	embedder := indextest.NewHashEmbedder(16)
	chunks := indextest.TestChunks("LS-6.pdf", finance, 4)
	chunks[0].Text = "   "
	embedder.Fail[chunks[1].Text] = errors.New("model unavailable")

	store := newStore(t, repo, embedder)

	added, err := store.AddDocuments(context.Background(), chunks, finance)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	_, ok := repo.Record(chunks[0].ID)
	assert.False(t, ok)
	_, ok = repo.Record(chunks[1].ID)
	assert.False(t, ok)
}

func TestDocumentStore_AddDocumentsRejectsDimensionMismatch(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16), index.WithDimension(384))

	added, err := store.AddDocuments(context.Background(), indextest.TestChunks("LS-7.pdf", finance, 2), finance)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, repo.Len())
}

func TestDocumentStore_AddDocumentsResolvesMinistryFromChunk(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	chunks := indextest.TestChunks("LS-8.pdf", education, 2)
	chunks[1].Ministry = ""

	added, err := store.AddDocuments(context.Background(), chunks, "")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	rec, ok := repo.Record(chunks[1].ID)
	require.True(t, ok)
	assert.Equal(t, education, rec.Ministry)
	assert.True(t, store.IsMinistryIndexed(education))
}

func TestDocumentStore_SearchIsScopedToMinistry(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(32))
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []index.Chunk{
		{ID: "f_chunk_0", Text: "Budget allocation for rural roads", Metadata: index.Metadata{Source: "f"}},
		{ID: "f_chunk_1", Text: "Customs duty on imported gold", Metadata: index.Metadata{Source: "f"}},
	}, finance)
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, []index.Chunk{
		{ID: "e_chunk_0", Text: "Budget allocation for rural schools", Metadata: index.Metadata{Source: "e"}},
	}, education)
	require.NoError(t, err)

	results, err := store.SearchByText(ctx, "budget allocation rural", finance, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, finance, r.Ministry)
	}
	assert.Equal(t, "f_chunk_0", results[0].ID)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.GreaterOrEqual(t, results[0].RelevanceScore, results[1].RelevanceScore)
}

func TestDocumentStore_SearchRequiresMinistry(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	embedder := indextest.NewHashEmbedder(16)
	store := newStore(t, repo, embedder)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, indextest.TestChunks("AU1.pdf", finance, 2), finance)
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, indextest.TestChunks("AU2.pdf", education, 2), education)
	require.NoError(t, err)
	calls := embedder.Calls()

	for _, ministry := range []string{"", "   "} {
		results, err := store.SearchByText(ctx, "question answered", ministry, 10)
		assert.ErrorIs(t, err, index.ErrMinistryRequired)
		assert.Empty(t, results)
	}
	assert.Equal(t, calls, embedder.Calls())
}

func TestDocumentStore_SearchEmptyQuery(t *testing.T) {
	embedder := indextest.NewHashEmbedder(16)
	store := newStore(t, indextest.NewMemoryRepository(), embedder)

	results, err := store.SearchByText(context.Background(), "  ", finance, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, embedder.Calls())
}

func TestDocumentStore_SearchDefaultLimit(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	_, err := store.AddDocuments(context.Background(), indextest.TestChunks("LS-9.pdf", finance, 15), finance)
	require.NoError(t, err)

	results, err := store.SearchByText(context.Background(), "question", finance, 0)
	require.NoError(t, err)
	assert.Len(t, results, index.DefaultSearchLimit)
}

func TestDocumentStore_LoadsMinistriesOnConstruction(t *testing.T) {
	repo := indextest.NewMemoryRepository(
		index.Record{Chunk: index.Chunk{ID: "a", Text: "a", Ministry: finance}, Embedding: make([]float32, 16)},
		index.Record{Chunk: index.Chunk{ID: "b", Text: "b", Ministry: education}, Embedding: make([]float32, 16)},
	)
	store := newStore(t, repo, indextest.NewHashEmbedder(16))

	assert.True(t, store.IsMinistryIndexed(finance))
	assert.True(t, store.IsMinistryIndexed(education))
	assert.False(t, store.IsMinistryIndexed("Ministry of Defence"))
	assert.Equal(t, []string{education, finance}, store.IndexedMinistries())
}

func TestDocumentStore_StartsEmptyWhenLoadFails(t *testing.T) {
	repo := indextest.NewMemoryRepository(
		index.Record{Chunk: index.Chunk{ID: "a", Text: "a", Ministry: finance}, Embedding: make([]float32, 16)},
	)
	repo.FailTransacts = 3

	store := newStore(t, repo, indextest.NewHashEmbedder(16))

	assert.Empty(t, store.IndexedMinistries())
	require.NoError(t, store.ReloadMinistries(context.Background()))
	assert.True(t, store.IsMinistryIndexed(finance))
}

func TestDocumentStore_ClearOperationsUpdateIndexState(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, indextest.TestChunks("f.pdf", finance, 3), finance)
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, indextest.TestChunks("e.pdf", education, 2), education)
	require.NoError(t, err)

	deleted, err := store.ClearMinistry(ctx, finance)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)
	assert.False(t, store.IsMinistryIndexed(finance))
	assert.True(t, store.IsMinistryIndexed(education))

	_, err = store.ClearMinistry(ctx, "")
	assert.ErrorIs(t, err, index.ErrMinistryRequired)

	deleted, err = store.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.Empty(t, store.IndexedMinistries())
	assert.Equal(t, 0, repo.Len())
}

func TestDocumentStore_SourceIndexedAndGetDocument(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, indextest.TestChunks("AU123.pdf", finance, 2), finance)
	require.NoError(t, err)

	exists, err := store.SourceIndexed(ctx, "AU123.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.SourceIndexed(ctx, "AU999.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	doc, err := store.GetDocument(ctx, "AU123.pdf_chunk_1")
	require.NoError(t, err)
	require.True(t, doc.IsPresent())
	assert.Equal(t, 1, doc.MustGet().Metadata.ChunkIndex)

	missing, err := store.GetDocument(ctx, "nope")
	require.NoError(t, err)
	assert.True(t, missing.IsAbsent())
}

func TestDocumentStore_Health(t *testing.T) {
	repo := indextest.NewMemoryRepository()
	store := newStore(t, repo, indextest.NewHashEmbedder(16))
	_, err := store.AddDocuments(context.Background(), indextest.TestChunks("h.pdf", finance, 4), finance)
	require.NoError(t, err)

	health := store.Health(context.Background())
	assert.True(t, health.Connected)
	assert.EqualValues(t, 4, health.TotalDocuments)
	assert.EqualValues(t, 1, health.MinistryCount)
	assert.Equal(t, []string{finance}, health.IndexedMinistries)

	repo.FailTransacts = 3
	health = store.Health(context.Background())
	assert.False(t, health.Connected)
	assert.NotEmpty(t, health.Error)
}
