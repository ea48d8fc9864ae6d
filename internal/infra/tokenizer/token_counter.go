package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/sansad-rag/internal/core/ask"
)

// DefaultEncoding は使用する tiktoken エンコーディング
const DefaultEncoding = "cl100k_base"

// TokenCounter はトークン数をカウントし、上限に合わせてテキストを切り詰める
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は新しいTokenCounterを作成する
// cl100k_baseエンコーディングを使用する
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenCounter{
		encoding: encoding,
	}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoding == nil {
		// エンコーディングが初期化されていない場合は推定値を返す
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Truncate はテキストを先頭から maxTokens トークン分に切り詰める
func (tc *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if tc.encoding == nil {
		runes := []rune(text)
		if limit := maxTokens * 3; len(runes) > limit {
			return string(runes[:limit])
		}
		return text
	}

	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return tc.encoding.Decode(tokens[:maxTokens])
}

// EstimateTokens はテキストの推定トークン数を返す
// 正確にカウントせず、3文字で1トークンとして概算する
func EstimateTokens(text string) int {
	return len([]rune(text)) / 3
}

// インターフェース実装の確認
var _ ask.TokenCounter = (*TokenCounter)(nil)
