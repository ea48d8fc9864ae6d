package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/infra/postgres/sqlc"
)

type stubQuerier struct {
	sqlc.Querier
	upserted   []sqlc.UpsertDocumentParams
	searchArgs sqlc.SearchDocumentsParams
	searchRows []sqlc.SearchDocumentsRow
	document   sqlc.Document
	getErr     error
}

func (s *stubQuerier) UpsertDocument(ctx context.Context, arg sqlc.UpsertDocumentParams) error {
	s.upserted = append(s.upserted, arg)
	return nil
}

func (s *stubQuerier) SearchDocuments(ctx context.Context, arg sqlc.SearchDocumentsParams) ([]sqlc.SearchDocumentsRow, error) {
	s.searchArgs = arg
	return s.searchRows, nil
}

func (s *stubQuerier) GetDocument(ctx context.Context, id string) (sqlc.Document, error) {
	return s.document, s.getErr
}

func TestDocumentQueries_UpsertEncodesMetadata(t *testing.T) {
	stub := &stubQuerier{}
	q := NewDocumentQueries(stub)

	err := q.UpsertDocument(context.Background(), index.Record{
		Chunk: index.Chunk{
			ID:       "AU12.pdf_chunk_0",
			Text:     "Budget allocation is 100 crore",
			Ministry: "Ministry of Finance",
			Metadata: index.Metadata{Source: "AU12.pdf", TotalChunks: 1, Ministry: "Ministry of Finance"},
		},
		Embedding: []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	require.Len(t, stub.upserted, 1)

	got := stub.upserted[0]
	assert.Equal(t, "Ministry of Finance", got.Ministry)
	assert.Equal(t, []float32{0.1, 0.2}, got.Embedding.Slice())
	assert.JSONEq(t, `{"source":"AU12.pdf","chunk_index":0,"total_chunks":1,"ministry":"Ministry of Finance"}`, string(got.DocMetadata))
}

func TestDocumentQueries_SearchPassesMinistryFilter(t *testing.T) {
	stub := &stubQuerier{
		searchRows: []sqlc.SearchDocumentsRow{{
			ID:          "a",
			Text:        "text",
			DocMetadata: []byte(`{"source":"a.pdf","chunk_index":0,"total_chunks":1,"session":"5"}`),
			Ministry:    "Ministry of Education",
			Distance:    0.3,
		}},
	}
	q := NewDocumentQueries(stub)

	results, err := q.SearchByMinistry(context.Background(), []float32{1, 0}, "Ministry of Education", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Ministry of Education", stub.searchArgs.Ministry)
	assert.EqualValues(t, 3, stub.searchArgs.RowLimit)
	assert.Equal(t, "5", results[0].Metadata.Session)
	assert.InDelta(t, 0.3, results[0].Distance, 1e-9)
}

func TestDocumentQueries_GetDocument(t *testing.T) {
	now := time.Now()
	stub := &stubQuerier{document: sqlc.Document{
		ID:          "a",
		Text:        "t",
		Embedding:   pgvector.NewVector([]float32{1}),
		DocMetadata: []byte(`{"source":"a.pdf","chunk_index":2,"total_chunks":3}`),
		Ministry:    "M",
		CreatedAt:   pgtype.Timestamptz{Time: now, Valid: true},
	}}
	q := NewDocumentQueries(stub)

	got, err := q.GetDocument(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, got.IsPresent())
	assert.Equal(t, 2, got.MustGet().Metadata.ChunkIndex)
	assert.Equal(t, now, got.MustGet().CreatedAt)

	stub.getErr = pgx.ErrNoRows
	got, err = q.GetDocument(context.Background(), "missing")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())

	stub.getErr = errors.New("conn closed")
	_, err = q.GetDocument(context.Background(), "a")
	require.Error(t, err)
}
