package ask

import (
	"context"

	"github.com/samber/mo"

	"github.com/jinford/sansad-rag/internal/core/index"
)

// Outcome は回答の種別を表す
type Outcome int

const (
	// OutcomeGrounded はモデルの回答をそのまま（出典付きで）返したことを示す
	OutcomeGrounded Outcome = iota
	// OutcomeIrrelevant は質問が省庁の所管外と判定されたことを示す
	OutcomeIrrelevant
	// OutcomeError はプロンプト構築またはモデル呼び出しに失敗したことを示す
	OutcomeError
	// OutcomeEmpty はモデルが空の回答を返したことを示す
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGrounded:
		return "grounded"
	case OutcomeIrrelevant:
		return "irrelevant"
	case OutcomeError:
		return "error"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// GenerationConfig は生成モデルへのパラメータ
type GenerationConfig struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultGenerationConfig はデフォルトの生成パラメータを返す
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 3000,
	}
}

// Generator は外部の生成モデル
// 空の候補しか返らない場合は空文字列を返す。再試行は呼び出し側の責務
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

// Searcher は質問に近いチャンクを検索する
type Searcher interface {
	SearchByText(ctx context.Context, query, ministry string, limit int) ([]index.SearchResult, error)
}

// TokenCounter はプロンプトのトークン数を数え、文書を切り詰める
type TokenCounter interface {
	CountTokens(text string) int
	Truncate(text string, maxTokens int) string
}

// Request は1件の質問応答リクエスト
type Request struct {
	Question  string
	Ministry  mo.Option[string]
	Documents []index.SearchResult // 関連度順
}

// Answer は利用者に返す最終的な回答
type Answer struct {
	Text    string
	Outcome Outcome
}

// AskParams は検索から回答までを行う質問応答のパラメータ
type AskParams struct {
	Question string
	Ministry string
	Limit    int // 検索件数（デフォルト: 5）
}

// AskResult は質問応答の結果
type AskResult struct {
	Answer  Answer
	Sources []index.SearchResult
}
