package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/sansad-rag/internal/core/ingestion/chunk"
)

// ErrBlobStoreNotConfigured は保存済み原本の再取り込みにBlobStoreが無い場合のエラー
var ErrBlobStoreNotConfigured = errors.New("blob store not configured")

// Result は1回の取り込み処理の集計
type Result struct {
	RunID    uuid.UUID
	Ministry string
	Sources  int // 対象となった原本数
	Ingested int // 保存まで完了した原本数
	Skipped  int // 取り込み済み・テキスト無しで飛ばした原本数
	Failed   int // 取得・抽出・保存に失敗した原本数
	Chunks   int // 保存したチャンク数
	Duration time.Duration
}

type outcome int

const (
	outcomeIngested outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Coordinator は省庁単位で 原本 → テキスト → チャンク → ストア の取り込みを駆動する
//
// 1つの原本の失敗は記録して次へ進み、処理全体を中断しない。
type Coordinator struct {
	index     DocumentIndex
	extractor TextExtractor
	chunker   *chunk.SentenceChunker
	blobs     BlobStore
	logger    *slog.Logger
}

// CoordinatorOption は Coordinator のオプション設定
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger は Coordinator にロガーを設定する
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithChunker はチャンク分割の設定を上書きする
func WithChunker(chunker *chunk.SentenceChunker) CoordinatorOption {
	return func(c *Coordinator) {
		if chunker != nil {
			c.chunker = chunker
		}
	}
}

// WithBlobStore は原本の保存先を設定する
func WithBlobStore(blobs BlobStore) CoordinatorOption {
	return func(c *Coordinator) {
		c.blobs = blobs
	}
}

// NewCoordinator は新しい Coordinator を作成する
func NewCoordinator(idx DocumentIndex, extractor TextExtractor, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		index:     idx,
		extractor: extractor,
		chunker:   chunk.NewSentenceChunker(chunk.DefaultMaxChars, chunk.DefaultOverlapChars),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// IngestMinistry は lister から原本一覧を取得して取り込む
// 一覧の取得自体が失敗した場合のみエラーを返す
func (c *Coordinator) IngestMinistry(ctx context.Context, ministry string, lister SourceLister) (*Result, error) {
	sources, err := lister.ListSources(ctx, ministry)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources for %s: %w", ministry, err)
	}
	return c.IngestSources(ctx, ministry, sources)
}

// IngestSources は与えられた原本を順に取り込む
// コンテキストが終了した場合は途中までの集計とともにそのエラーを返す
func (c *Coordinator) IngestSources(ctx context.Context, ministry string, sources []SourceDocument) (*Result, error) {
	return c.ingestSources(ctx, ministry, sources, true)
}

func (c *Coordinator) ingestSources(ctx context.Context, ministry string, sources []SourceDocument, dedup bool) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:    uuid.New(),
		Ministry: ministry,
		Sources:  len(sources),
	}
	logger := c.logger.With("run_id", result.RunID.String(), "ministry", ministry)
	logger.Info("ingestion started", "count", len(sources))

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		switch o, chunks := c.ingestOne(ctx, logger.With("source", source.Name), ministry, source, dedup); o {
		case outcomeIngested:
			result.Ingested++
			result.Chunks += chunks
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	result.Duration = time.Since(start)
	logger.Info("ingestion completed",
		"ingested", result.Ingested,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}

func (c *Coordinator) ingestOne(ctx context.Context, logger *slog.Logger, ministry string, source SourceDocument, dedup bool) (outcome, int) {
	if source.Name == "" {
		source.Name = SourceNameFromURL(source.URL)
	}
	if source.Name == "" || source.Fetch == nil {
		logger.Warn("skipping source without name or fetcher", "url", source.URL)
		return outcomeSkipped, 0
	}

	if dedup {
		indexed, err := c.index.SourceIndexed(ctx, source.Name)
		if err != nil {
			// 重複チェックに失敗しても upsert は冪等なので処理を続ける
			logger.Warn("failed to check source, continuing", "error", err)
		} else if indexed {
			logger.Info("source already indexed, skipping")
			return outcomeSkipped, 0
		}
	}

	data, err := source.Fetch(ctx)
	if err != nil {
		logger.Error("failed to fetch source", "url", source.URL, "error", err)
		return outcomeFailed, 0
	}

	pages, err := c.extractor.ExtractPages(ctx, data)
	if err != nil {
		logger.Error("failed to extract text", "error", err)
		return outcomeFailed, 0
	}
	for _, page := range pages {
		if page.Err != nil {
			logger.Warn("failed to extract page", "page", page.Number, "error", page.Err)
		}
	}

	chunks, err := BuildChunks(c.chunker, source, ministry, pages)
	if errors.Is(err, ErrNoText) {
		logger.Warn("no text extracted, skipping")
		return outcomeSkipped, 0
	}
	if err != nil {
		logger.Error("failed to build chunks", "error", err)
		return outcomeFailed, 0
	}

	c.archive(ctx, logger, ministry, source, data)

	added, err := c.index.AddDocuments(ctx, chunks, ministry)
	if err != nil {
		logger.Error("failed to store chunks", "count", len(chunks), "error", err)
		return outcomeFailed, 0
	}
	if added == 0 {
		logger.Warn("no chunks stored", "count", len(chunks))
		return outcomeFailed, 0
	}

	logger.Info("source ingested", "count", added, "total_chunks", len(chunks))
	return outcomeIngested, added
}

// archive は原本をBlobStoreに保存する（失敗は記録のみ）
func (c *Coordinator) archive(ctx context.Context, logger *slog.Logger, ministry string, source SourceDocument, data []byte) {
	if c.blobs == nil || source.Archived {
		return
	}
	location, err := c.blobs.Upload(ctx, data, ArchivePath(ministry, source.Name))
	if err != nil {
		logger.Error("failed to archive source", "error", err)
		return
	}
	logger.Debug("archived source", "location", location)
}

// IngestStored はBlobStoreに保存済みの原本を再取り込みする
// force が false で省庁が既に登録済みの場合は何もしない。
// force が true の場合は取り込み済みの原本も再度 upsert する
func (c *Coordinator) IngestStored(ctx context.Context, ministry string, force bool) (*Result, error) {
	if c.blobs == nil {
		return nil, ErrBlobStoreNotConfigured
	}

	if !force && c.index.IsMinistryIndexed(ministry) {
		c.logger.Info("ministry already indexed, skipping", "ministry", ministry)
		return &Result{RunID: uuid.New(), Ministry: ministry}, nil
	}

	paths, err := c.blobs.List(ctx, ministry+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list stored sources for %s: %w", ministry, err)
	}

	sources := make([]SourceDocument, 0, len(paths))
	for _, p := range paths {
		if !strings.EqualFold(path.Ext(p), ".pdf") {
			continue
		}
		blobPath := p
		sources = append(sources, SourceDocument{
			Name:     path.Base(blobPath),
			URL:      blobPath,
			Archived: true,
			Fetch: func(ctx context.Context) ([]byte, error) {
				return c.blobs.Download(ctx, blobPath)
			},
		})
	}

	return c.ingestSources(ctx, ministry, sources, !force)
}
