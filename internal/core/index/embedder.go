package index

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyInput は空または空白のみのテキストを埋め込もうとした場合のエラー
	ErrEmptyInput = errors.New("embedding input is empty")

	// ErrDimensionMismatch は埋め込みベクトルの次元がストアの次元と一致しない場合のエラー
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder はテキストを固定次元のベクトルへ変換する外部モデルの境界です
//
// 同じ入力とモデルからは同じベクトルが得られるものとして扱います。
// 再試行は行わず、失敗はそのまま呼び出し元へ返します。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}

// ValidateEmbeddingInput は埋め込み対象のテキストを検証し、前後の空白を除いた値を返します
func ValidateEmbeddingInput(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	return trimmed, nil
}
