package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/sansad-rag/internal/core/ask"
	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/core/ingestion"
	"github.com/jinford/sansad-rag/internal/core/ingestion/chunk"
	"github.com/jinford/sansad-rag/internal/infra/filestore"
	"github.com/jinford/sansad-rag/internal/infra/gemini"
	"github.com/jinford/sansad-rag/internal/infra/openai"
	"github.com/jinford/sansad-rag/internal/infra/pdf"
	"github.com/jinford/sansad-rag/internal/infra/postgres"
	"github.com/jinford/sansad-rag/internal/infra/sansad"
	"github.com/jinford/sansad-rag/internal/infra/tokenizer"
	"github.com/jinford/sansad-rag/internal/platform/config"
	"github.com/jinford/sansad-rag/internal/platform/database"
	"github.com/jinford/sansad-rag/internal/platform/retry"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Config        *config.Config
	Catalog       *config.Catalog
	DocumentStore *index.DocumentStore
	Coordinator   *ingestion.Coordinator
	Monitor       *ingestion.Monitor
	AskService    *ask.Service
	Sansad        *sansad.Client
	BlobStore     *filestore.Store

	logger *slog.Logger
	pool   *pgxpool.Pool
}

type containerOptions struct {
	logger       *slog.Logger
	repository   index.Repository
	embedder     index.Embedder
	generator    ask.Generator
	tokenCounter ask.TokenCounter
	extractor    ingestion.TextExtractor
	skipMigrate  bool
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerRepository はドキュメントリポジトリを差し替える
// 指定した場合はデータベースへ接続しない
func WithContainerRepository(repo index.Repository) ContainerOption {
	return func(opts *containerOptions) {
		opts.repository = repo
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder index.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerGenerator は回答生成モデルを差し替える
func WithContainerGenerator(generator ask.Generator) ContainerOption {
	return func(opts *containerOptions) {
		opts.generator = generator
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter ask.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// WithContainerExtractor は PDF のテキスト抽出器を差し替える
func WithContainerExtractor(extractor ingestion.TextExtractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithoutMigrate は起動時のマイグレーションを行わない
func WithoutMigrate() ContainerOption {
	return func(opts *containerOptions) {
		opts.skipMigrate = true
	}
}

// NewContainer は設定からコンテナを生成する
// APIキーが未設定のモデルは呼び出し時にエラーを返す実装で代替し、起動自体は失敗させない
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	catalog, err := config.LoadCatalog(cfg.MinistryCatalogPath)
	if err != nil {
		return nil, err
	}

	c := &ServiceContainer{
		Config:  cfg,
		Catalog: catalog,
		logger:  logger,
	}

	// Repository (PostgreSQL)
	repo := options.repository
	if repo == nil {
		pool, err := database.NewPool(ctx, connectionParams(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.pool = pool

		if !options.skipMigrate {
			if _, err := database.Migrate(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, fmt.Errorf("マイグレーションに失敗しました: %w", err)
			}
		}
		repo = postgres.NewDocumentRepository(pool)
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = newEmbedder(cfg.Embedding, logger)
	}

	// DocumentStore
	c.DocumentStore = index.NewDocumentStore(ctx, repo, embedder,
		index.WithStoreLogger(logger),
		index.WithBatchSize(cfg.Store.BatchSize),
		index.WithDimension(cfg.Embedding.Dimension),
		index.WithRetryPolicy(storeRetryPolicy(cfg.Store)),
	)

	// BlobStore / Sansad / Coordinator
	blobs, err := filestore.NewStore(cfg.Storage.RootDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("原本保存先の初期化に失敗しました: %w", err)
	}
	c.BlobStore = blobs

	c.Sansad = sansad.NewClient(sansad.Config{
		APIURL:            cfg.Sansad.APIURL,
		LokSabha:          cfg.Sansad.LokSabha,
		Session:           cfg.Sansad.Session,
		PageSize:          cfg.Sansad.PageSize,
		RequestsPerSecond: cfg.Sansad.RequestsPerSecond,
		ListTimeout:       cfg.Sansad.ListTimeout,
		FetchTimeout:      cfg.Sansad.FetchTimeout,
	}, catalog, sansad.WithClientLogger(logger))

	extractor := options.extractor
	if extractor == nil {
		extractor = pdf.NewExtractor(pdf.WithExtractorLogger(logger))
	}
	c.Coordinator = ingestion.NewCoordinator(c.DocumentStore, extractor,
		ingestion.WithCoordinatorLogger(logger),
		ingestion.WithChunker(chunk.NewSentenceChunker(cfg.Chunking.MaxChars, cfg.Chunking.Overlap)),
		ingestion.WithBlobStore(blobs),
	)
	c.Monitor = ingestion.NewMonitor(c.Coordinator, c.Sansad, filestore.NewStateFile(cfg.Monitor.StatePath),
		ingestion.WithMonitorLogger(logger),
	)

	// AskService
	generator := options.generator
	if generator == nil {
		generator = newGenerator(ctx, cfg.LLM, logger)
	}
	askOpts := []ask.ServiceOption{
		ask.WithAskLogger(logger),
		ask.WithSearcher(c.DocumentStore),
		ask.WithGenerationConfig(ask.GenerationConfig{
			Temperature:     cfg.LLM.Temperature,
			TopP:            cfg.LLM.TopP,
			TopK:            cfg.LLM.TopK,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		}),
		ask.WithWorkers(cfg.LLM.Workers),
		ask.WithModelTimeout(cfg.LLM.Timeout),
	}
	if counter := tokenCounter(options.tokenCounter, cfg.LLM, logger); counter != nil {
		askOpts = append(askOpts, ask.WithTokenCounter(counter, cfg.LLM.MaxDocTokens))
	}
	c.AskService = ask.NewService(generator, askOpts...)

	return c, nil
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() {
	if c != nil && c.pool != nil {
		c.pool.Close()
	}
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Pool はデータベース接続プールを返す。リポジトリを差し替えた場合は nil
func (c *ServiceContainer) Pool() *pgxpool.Pool {
	if c == nil {
		return nil
	}
	return c.pool
}

func connectionParams(cfg config.DatabaseConfig) database.ConnectionParams {
	return database.ConnectionParams{
		URL:               cfg.URL,
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		DBName:            cfg.DBName,
		SSLMode:           cfg.SSLMode,
		PoolSize:          cfg.PoolSize,
		MaxOverflow:       cfg.MaxOverflow,
		MaxConnLifetime:   cfg.MaxConnLifetime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
	}
}

// storeRetryPolicy は一時的なデータベースエラーのみを再試行するポリシーを返す
func storeRetryPolicy(cfg config.StoreConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.RetryAttempts > 0 {
		policy.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBase > 0 {
		policy.InitialInterval = cfg.RetryBase
	}
	policy.Retryable = database.IsTransient
	return policy
}

func newEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) index.Embedder {
	embedder, err := openai.NewEmbedder(cfg.APIKey,
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithEmbeddingDimension(cfg.Dimension),
	)
	if err != nil {
		logger.Warn("embedder is not configured", "error", err)
		return &unavailableEmbedder{err: err, model: cfg.Model, dimension: cfg.Dimension}
	}
	return embedder
}

func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) ask.Generator {
	var (
		generator ask.Generator
		err       error
	)
	switch cfg.Provider {
	case "openai":
		generator, err = openai.NewChatGenerator(cfg.OpenAIAPIKey, openai.WithChatModel(cfg.Model))
	case "gemini", "":
		generator, err = gemini.NewGenerator(ctx, cfg.GeminiAPIKey, gemini.WithModel(cfg.Model))
	default:
		err = fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		logger.Warn("generator is not configured", "provider", cfg.Provider, "error", err)
		return &unavailableGenerator{err: err}
	}
	return generator
}

// tokenCounter は文書ごとのトークン上限が設定されている場合のみ TokenCounter を用意する
func tokenCounter(override ask.TokenCounter, cfg config.LLMConfig, logger *slog.Logger) ask.TokenCounter {
	if override != nil {
		return override
	}
	if cfg.MaxDocTokens <= 0 {
		return nil
	}
	counter, err := tokenizer.NewTokenCounter()
	if err != nil {
		logger.Warn("token counter is not available", "error", err)
		return nil
	}
	return counter
}

// ErrNotConfigured はモデルが設定されていない場合のエラー
var ErrNotConfigured = errors.New("model is not configured")

// unavailableEmbedder は設定不足で生成できなかった Embedder の代わりに置く
type unavailableEmbedder struct {
	err       error
	model     string
	dimension int
}

func (e *unavailableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %w", ErrNotConfigured, e.err)
}

func (e *unavailableEmbedder) Dimension() int    { return e.dimension }
func (e *unavailableEmbedder) ModelName() string { return e.model }

// unavailableGenerator は設定不足で生成できなかった Generator の代わりに置く
type unavailableGenerator struct {
	err error
}

func (g *unavailableGenerator) Generate(ctx context.Context, prompt string, cfg ask.GenerationConfig) (string, error) {
	return "", fmt.Errorf("%w: %w", ErrNotConfigured, g.err)
}
