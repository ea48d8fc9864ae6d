package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/platform/retry"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension は documents.embedding 列の次元
	DefaultEmbeddingDimension = 384
	// MaxBatchSize は1リクエストで埋め込めるテキスト数の上限
	MaxBatchSize = 100
)

// Embedder は答弁チャンクを OpenAI の埋め込みモデルで固定次元のベクトルに変換する
// 次元は documents.embedding 列に合わせて API 側で縮約させる
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	policy    retry.Policy
}

type embedderOptions struct {
	model     string
	dimension int
	baseURL   string
	policy    retry.Policy
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		if dimension > 0 {
			o.dimension = dimension
		}
	}
}

// WithEmbeddingBaseURL は API のベースURLを上書きする
func WithEmbeddingBaseURL(baseURL string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = baseURL
	}
}

// WithEmbeddingRetryPolicy はレート制限時の再試行ポリシーを上書きする
func WithEmbeddingRetryPolicy(p retry.Policy) EmbedderOption {
	return func(o *embedderOptions) {
		o.policy = p
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	o := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		policy:    rateLimitPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &Embedder{
		client:    openai.NewClient(reqOpts...),
		model:     o.model,
		dimension: o.dimension,
		policy:    o.policy,
	}, nil
}

// Embed は1つのチャンクまたは質問文を埋め込む
// 空白のみのテキストは API を呼ばずに index.ErrEmptyInput を返す
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed, err := index.ValidateEmbeddingInput(text)
	if err != nil {
		return nil, err
	}

	vectors, err := e.BatchEmbed(ctx, []string{trimmed})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbed は最大 MaxBatchSize 件をまとめて埋め込み、入力と同じ順序で返す
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	switch {
	case len(texts) == 0:
		return nil, fmt.Errorf("no texts provided")
	case len(texts) > MaxBatchSize:
		return nil, fmt.Errorf("batch size %d exceeds maximum of %d", len(texts), MaxBatchSize)
	}
	for i, text := range texts {
		if _, err := index.ValidateEmbeddingInput(text); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}

	params := openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dimension)),
	}
	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{OfString: openai.String(texts[0])}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts}
	}

	resp, err := retry.DoValue(ctx, e.policy, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
		return e.client.Embeddings.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings with %s: %w", e.model, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// レスポンスの順序は保証されないため index で並べ直す
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors[data.Index] = vector
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for text %d", i)
		}
	}
	return vectors, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

var _ index.Embedder = (*Embedder)(nil)
