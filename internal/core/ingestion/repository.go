package ingestion

import (
	"context"

	"github.com/jinford/sansad-rag/internal/core/index"
)

// DocumentIndex は取り込みで利用するドキュメントストアの操作
// テスト時のモック用に消費者側で定義
type DocumentIndex interface {
	SourceIndexed(ctx context.Context, source string) (bool, error)
	AddDocuments(ctx context.Context, chunks []index.Chunk, ministry string) (int, error)
	IsMinistryIndexed(ministry string) bool
}

var _ DocumentIndex = (*index.DocumentStore)(nil)
