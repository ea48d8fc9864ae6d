package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/sansad-rag/internal/platform/retry"
)

const (
	// DefaultBatchSize は1トランザクションで書き込むチャンク数のデフォルト値
	DefaultBatchSize = 10
	// DefaultSearchLimit は検索件数のデフォルト値
	DefaultSearchLimit = 10
)

// ErrMinistryRequired は省庁が指定されていない場合のエラー
var ErrMinistryRequired = errors.New("ministry is required")

// DocumentStore は省庁ごとに分割されたベクトルインデックスです
//
// 各操作は1つのトランザクションを再試行ポリシーで包んで実行します。
// 埋め込みの計算はトランザクションの外で行います。
type DocumentStore struct {
	repo       Repository
	embedder   Embedder
	ministries *MinistryIndex
	batchSize  int
	dimension  int
	policy     retry.Policy
	logger     *slog.Logger
}

// StoreOption は DocumentStore のオプション設定
type StoreOption func(*DocumentStore)

// WithStoreLogger は DocumentStore にロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *DocumentStore) {
		s.logger = logger
	}
}

// WithBatchSize はバッチサイズを上書きする
func WithBatchSize(size int) StoreOption {
	return func(s *DocumentStore) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithRetryPolicy は再試行ポリシーを上書きする
func WithRetryPolicy(policy retry.Policy) StoreOption {
	return func(s *DocumentStore) {
		s.policy = policy
	}
}

// WithDimension は保存するベクトルの次元を固定する
// 指定しない場合は Embedder の次元を使用する
func WithDimension(dimension int) StoreOption {
	return func(s *DocumentStore) {
		if dimension > 0 {
			s.dimension = dimension
		}
	}
}

// NewDocumentStore は DocumentStore を作成し、登録済み省庁の集合を読み込みます
// 読み込みに失敗した場合は空の集合で開始し、警告を記録します
func NewDocumentStore(ctx context.Context, repo Repository, embedder Embedder, opts ...StoreOption) *DocumentStore {
	s := &DocumentStore{
		repo:       repo,
		embedder:   embedder,
		ministries: NewMinistryIndex(),
		batchSize:  DefaultBatchSize,
		dimension:  embedder.Dimension(),
		policy:     retry.DefaultPolicy(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	if err := s.ReloadMinistries(ctx); err != nil {
		s.logger.Warn("failed to load indexed ministries, starting empty", "error", err)
	}

	return s
}

// ReloadMinistries は登録済み省庁の集合をストアから再計算します
func (s *DocumentStore) ReloadMinistries(ctx context.Context) error {
	names, err := retry.DoValue(ctx, s.retryPolicy("list_ministries"), func(ctx context.Context) ([]string, error) {
		var names []string
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			names, err = q.ListMinistries(ctx)
			return err
		})
		return names, err
	})
	if err != nil {
		return fmt.Errorf("failed to list ministries: %w", err)
	}

	s.ministries.Replace(names)
	s.logger.Info("loaded indexed ministries", "count", len(names))
	return nil
}

// AddDocuments はチャンクを埋め込み、バッチ単位で upsert します
//
// 各バッチは独立してコミットされ、失敗したバッチは記録して次へ進みます。
// 空のテキスト、省庁の決まらないチャンク、埋め込みに失敗したチャンクはスキップします。
// エラーを返すのは全てのバッチが失敗した場合のみです。
func (s *DocumentStore) AddDocuments(ctx context.Context, chunks []Chunk, ministry string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	added := 0
	failedBatches := 0
	var lastErr error

	for start, batch := 0, 0; start < len(chunks); start, batch = start+s.batchSize, batch+1 {
		end := min(start+s.batchSize, len(chunks))

		records := s.embedBatch(ctx, chunks[start:end], ministry, batch)
		if len(records) == 0 {
			continue
		}

		err := retry.Do(ctx, s.retryPolicy("add_documents"), func(ctx context.Context) error {
			return s.repo.Transact(ctx, func(q Queries) error {
				for _, record := range records {
					if err := q.UpsertDocument(ctx, record); err != nil {
						return fmt.Errorf("failed to upsert %s: %w", record.ID, err)
					}
				}
				return nil
			})
		})
		if err != nil {
			failedBatches++
			lastErr = err
			s.logger.Error("failed to store batch", "batch", batch, "count", len(records), "error", err)
			continue
		}

		added += len(records)
		for _, record := range records {
			s.ministries.Add(record.Ministry)
		}
		s.logger.Debug("stored batch", "batch", batch, "count", len(records))
	}

	if added == 0 && failedBatches > 0 {
		return 0, fmt.Errorf("all %d batches failed: %w", failedBatches, lastErr)
	}

	s.logger.Info("added documents", "ministry", ministry, "count", added, "failed_batches", failedBatches)
	return added, nil
}

func (s *DocumentStore) embedBatch(ctx context.Context, chunks []Chunk, ministry string, batch int) []Record {
	records := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		text, err := ValidateEmbeddingInput(chunk.Text)
		if err != nil {
			s.logger.Warn("skipping empty chunk", "batch", batch, "id", chunk.ID)
			continue
		}

		target := resolveMinistry(ministry, chunk)
		if target == "" {
			s.logger.Warn("skipping chunk without ministry", "batch", batch, "id", chunk.ID)
			continue
		}

		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("failed to embed chunk", "batch", batch, "id", chunk.ID, "error", err)
			continue
		}
		if s.dimension > 0 && len(embedding) != s.dimension {
			s.logger.Warn("skipping chunk", "batch", batch, "id", chunk.ID,
				"error", fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), s.dimension))
			continue
		}

		chunk.Text = text
		chunk.Ministry = target
		if chunk.Metadata.Ministry == "" {
			chunk.Metadata.Ministry = target
		}
		records = append(records, Record{Chunk: chunk, Embedding: embedding})
	}
	return records
}

func resolveMinistry(ministry string, chunk Chunk) string {
	if ministry != "" {
		return ministry
	}
	if chunk.Ministry != "" {
		return chunk.Ministry
	}
	return chunk.Metadata.Ministry
}

// SearchByText はクエリに近いチャンクを距離の昇順で返します
// 空のクエリは空の結果を返し、省庁が空の場合は ErrMinistryRequired を返します
func (s *DocumentStore) SearchByText(ctx context.Context, query, ministry string, limit int) ([]SearchResult, error) {
	ministry = strings.TrimSpace(ministry)
	if ministry == "" {
		return nil, ErrMinistryRequired
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := retry.DoValue(ctx, s.retryPolicy("search"), func(ctx context.Context) ([]SearchResult, error) {
		var results []SearchResult
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			results, err = q.SearchByMinistry(ctx, embedding, ministry, limit)
			return err
		})
		return results, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	for i := range results {
		results[i].RelevanceScore = RelevanceScore(results[i].Distance)
	}

	s.logger.Debug("search completed", "ministry", ministry, "count", len(results))
	return results, nil
}

// IsMinistryIndexed は読み込み時点の集合と以降の書き込みに基づいて判定します
func (s *DocumentStore) IsMinistryIndexed(ministry string) bool {
	return s.ministries.Contains(ministry)
}

// IndexedMinistries はソート済みの省庁名を返します
func (s *DocumentStore) IndexedMinistries() []string {
	return s.ministries.Names()
}

// MinistryDocumentCount はストアに問い合わせて件数を返します
func (s *DocumentStore) MinistryDocumentCount(ctx context.Context, ministry string) (int64, error) {
	count, err := retry.DoValue(ctx, s.retryPolicy("count"), func(ctx context.Context) (int64, error) {
		var count int64
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			count, err = q.CountByMinistry(ctx, ministry)
			return err
		})
		return count, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents for %s: %w", ministry, err)
	}
	return count, nil
}

// ClearMinistry は省庁のレコードを全て削除します
func (s *DocumentStore) ClearMinistry(ctx context.Context, ministry string) (int64, error) {
	if ministry == "" {
		return 0, ErrMinistryRequired
	}

	deleted, err := retry.DoValue(ctx, s.retryPolicy("clear_ministry"), func(ctx context.Context) (int64, error) {
		var deleted int64
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			deleted, err = q.DeleteByMinistry(ctx, ministry)
			return err
		})
		return deleted, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", ministry, err)
	}

	s.ministries.Remove(ministry)
	s.logger.Info("cleared ministry", "ministry", ministry, "count", deleted)
	return deleted, nil
}

// ClearAll はストアの全レコードを削除します
func (s *DocumentStore) ClearAll(ctx context.Context) (int64, error) {
	deleted, err := retry.DoValue(ctx, s.retryPolicy("clear_all"), func(ctx context.Context) (int64, error) {
		var deleted int64
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			deleted, err = q.DeleteAll(ctx)
			return err
		})
		return deleted, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear documents: %w", err)
	}

	s.ministries.Clear()
	s.logger.Info("cleared all documents", "count", deleted)
	return deleted, nil
}

// SourceIndexed はソース識別子を持つレコードが既に存在するかを返します
func (s *DocumentStore) SourceIndexed(ctx context.Context, source string) (bool, error) {
	exists, err := retry.DoValue(ctx, s.retryPolicy("source_exists"), func(ctx context.Context) (bool, error) {
		var exists bool
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			exists, err = q.SourceExists(ctx, source)
			return err
		})
		return exists, err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check source %s: %w", source, err)
	}
	return exists, nil
}

// GetDocument は ID でレコードを取得します
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (mo.Option[Record], error) {
	record, err := retry.DoValue(ctx, s.retryPolicy("get_document"), func(ctx context.Context) (mo.Option[Record], error) {
		record := mo.None[Record]()
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			record, err = q.GetDocument(ctx, id)
			return err
		})
		return record, err
	})
	if err != nil {
		return mo.None[Record](), fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return record, nil
}

// Health は接続状態と件数を返します
func (s *DocumentStore) Health(ctx context.Context) Health {
	health := Health{IndexedMinistries: s.ministries.Names()}

	stats, err := retry.DoValue(ctx, s.retryPolicy("stats"), func(ctx context.Context) (Stats, error) {
		var stats Stats
		err := s.repo.Transact(ctx, func(q Queries) error {
			var err error
			stats, err = q.Stats(ctx)
			return err
		})
		return stats, err
	})
	if err != nil {
		health.Error = err.Error()
		return health
	}

	health.Connected = true
	health.TotalDocuments = stats.TotalDocuments
	health.MinistryCount = stats.MinistryCount
	return health
}

// retryPolicy は操作名付きのログを出力する再試行ポリシーを返します
func (s *DocumentStore) retryPolicy(op string) retry.Policy {
	policy := s.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.logger.Warn("store operation failed, retrying",
			"operation", op,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}
	return policy
}
