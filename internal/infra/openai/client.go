package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/sansad-rag/internal/core/ask"
	"github.com/jinford/sansad-rag/internal/platform/retry"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// MaxAttempts はレート制限エラー時の最大試行回数
	MaxAttempts = 4

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// ChatGenerator は OpenAI Chat Completions を使用した回答生成の実装
type ChatGenerator struct {
	client openai.Client
	model   string
	baseURL string
	policy  retry.Policy
}

// ChatOption は ChatGenerator のオプション設定
type ChatOption func(*ChatGenerator)

// WithChatModel はモデル名を上書きする
func WithChatModel(model string) ChatOption {
	return func(g *ChatGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithChatRetryPolicy はレート制限時の再試行ポリシーを上書きする
func WithChatRetryPolicy(p retry.Policy) ChatOption {
	return func(g *ChatGenerator) {
		g.policy = p
	}
}

// WithChatBaseURL は API のベースURLを上書きする
func WithChatBaseURL(baseURL string) ChatOption {
	return func(g *ChatGenerator) {
		if baseURL != "" {
			g.baseURL = baseURL
		}
	}
}

// NewChatGenerator は新しい ChatGenerator を作成する
func NewChatGenerator(apiKey string, opts ...ChatOption) (*ChatGenerator, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	g := &ChatGenerator{
		model:  DefaultModel,
		policy: rateLimitPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}

	// 再試行は policy で行う
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if g.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(g.baseURL))
	}
	g.client = openai.NewClient(reqOpts...)

	return g, nil
}

// ModelName はモデル名を返す
func (g *ChatGenerator) ModelName() string {
	return g.model
}

// Generate はプロンプトから回答を生成する
// 候補が返らない場合は空文字列を返す
func (g *ChatGenerator) Generate(ctx context.Context, prompt string, cfg ask.GenerationConfig) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(cfg.Temperature),
		TopP:        openai.Float(cfg.TopP),
	}
	if cfg.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(cfg.MaxOutputTokens))
	}

	completion, err := retry.DoValue(ctx, g.policy, func(ctx context.Context) (*openai.ChatCompletion, error) {
		return g.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

// rateLimitPolicy は 429 のみを 2秒, 4秒, 8秒... (最大32秒) の間隔で再試行する
func rateLimitPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     MaxAttempts,
		InitialInterval: BaseBackoff,
		Multiplier:      2,
		MaxInterval:     MaxBackoff,
		Retryable:       isRateLimitError,
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ ask.Generator = (*ChatGenerator)(nil)
