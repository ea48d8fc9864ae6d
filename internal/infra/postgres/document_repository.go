package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/sansad-rag/internal/platform/database"
)

// DocumentRepository は core/index.Repository を実装する PostgreSQL リポジトリ。
// 操作ごとに短いトランザクションを開き、終了時に必ず解放する。
type DocumentRepository struct {
	db database.TxBeginner
}

// NewDocumentRepository は新しい DocumentRepository を返す。
func NewDocumentRepository(db database.TxBeginner) *DocumentRepository {
	return &DocumentRepository{db: db}
}

var _ index.Repository = (*DocumentRepository)(nil)

// Transact は1つのトランザクション内で fn を実行する。
func (r *DocumentRepository) Transact(ctx context.Context, fn func(q index.Queries) error) error {
	_, err := database.Transact(ctx, r.db, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(NewDocumentQueries(sqlc.New(tx)))
	})
	return err
}

// DocumentQueries は sqlc.Querier を index.Queries に適合させる。
type DocumentQueries struct {
	q sqlc.Querier
}

// NewDocumentQueries は新しい DocumentQueries を返す。
func NewDocumentQueries(q sqlc.Querier) *DocumentQueries {
	return &DocumentQueries{q: q}
}

var _ index.Queries = (*DocumentQueries)(nil)

func (d *DocumentQueries) UpsertDocument(ctx context.Context, record index.Record) error {
	meta, err := MetadataToJSONB(record.Metadata)
	if err != nil {
		return err
	}

	if err := d.q.UpsertDocument(ctx, sqlc.UpsertDocumentParams{
		ID:          record.ID,
		Text:        record.Text,
		Embedding:   pgvector.NewVector(record.Embedding),
		DocMetadata: meta,
		Ministry:    record.Ministry,
	}); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (d *DocumentQueries) SearchByMinistry(ctx context.Context, embedding []float32, ministry string, limit int) ([]index.SearchResult, error) {
	rows, err := d.q.SearchDocuments(ctx, sqlc.SearchDocumentsParams{
		QueryVector: pgvector.NewVector(embedding),
		Ministry:    ministry,
		RowLimit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	results := make([]index.SearchResult, 0, len(rows))
	for _, row := range rows {
		result, err := convertSearchRow(row)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (d *DocumentQueries) CountByMinistry(ctx context.Context, ministry string) (int64, error) {
	count, err := d.q.CountDocumentsByMinistry(ctx, ministry)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (d *DocumentQueries) DeleteByMinistry(ctx context.Context, ministry string) (int64, error) {
	deleted, err := d.q.DeleteDocumentsByMinistry(ctx, ministry)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return deleted, nil
}

func (d *DocumentQueries) DeleteAll(ctx context.Context) (int64, error) {
	deleted, err := d.q.DeleteAllDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all documents: %w", err)
	}
	return deleted, nil
}

func (d *DocumentQueries) ListMinistries(ctx context.Context) ([]string, error) {
	names, err := d.q.ListMinistries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ministries: %w", err)
	}
	return names, nil
}

func (d *DocumentQueries) SourceExists(ctx context.Context, source string) (bool, error) {
	exists, err := d.q.SourceExists(ctx, source)
	if err != nil {
		return false, fmt.Errorf("failed to check source: %w", err)
	}
	return exists, nil
}

func (d *DocumentQueries) GetDocument(ctx context.Context, id string) (mo.Option[index.Record], error) {
	row, err := d.q.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[index.Record](), nil
		}
		return mo.None[index.Record](), fmt.Errorf("failed to get document: %w", err)
	}

	record, err := convertDocument(row)
	if err != nil {
		return mo.None[index.Record](), err
	}
	return mo.Some(record), nil
}

func (d *DocumentQueries) Stats(ctx context.Context) (index.Stats, error) {
	row, err := d.q.GetDocumentStats(ctx)
	if err != nil {
		return index.Stats{}, fmt.Errorf("failed to get document stats: %w", err)
	}
	return index.Stats{
		TotalDocuments: row.TotalDocuments,
		MinistryCount:  row.MinistryCount,
	}, nil
}
