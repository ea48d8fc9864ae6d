package index

import (
	"context"

	"github.com/samber/mo"
)

// Repository はドキュメントストアの永続化境界です
// Transact は fn が返すまで1つのトランザクションを保持し、
// fn がエラーを返した場合はロールバックします
type Repository interface {
	Transact(ctx context.Context, fn func(q Queries) error) error
}

// Queries はトランザクション内で利用できる操作の集合です
type Queries interface {
	// UpsertDocument は ID をキーに挿入または置換します（created_at は維持）
	UpsertDocument(ctx context.Context, record Record) error
	// SearchByMinistry は ministry に一致するレコードを距離の昇順で最大 limit 件返します
	SearchByMinistry(ctx context.Context, embedding []float32, ministry string, limit int) ([]SearchResult, error)
	CountByMinistry(ctx context.Context, ministry string) (int64, error)
	DeleteByMinistry(ctx context.Context, ministry string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	// ListMinistries は重複を除いた省庁名を返します
	ListMinistries(ctx context.Context) ([]string, error)
	// SourceExists はメタデータの source が一致するレコードの有無を返します
	SourceExists(ctx context.Context, source string) (bool, error)
	GetDocument(ctx context.Context, id string) (mo.Option[Record], error)
	Stats(ctx context.Context) (Stats, error)
}
