package indextest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/jinford/sansad-rag/internal/core/index"
)

// HashEmbedder は単語のハッシュから正規化済みベクトルを作るテスト用 Embedder です
// 共通する単語が多いテキストほど距離が近くなります
type HashEmbedder struct {
	dim int

	mu    sync.Mutex
	calls int
	// Fail に含まれるテキストの埋め込みは失敗します
	Fail map[string]error
}

// NewHashEmbedder は指定次元の HashEmbedder を返します
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim, Fail: make(map[string]error)}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text, err := index.ValidateEmbeddingInput(text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.calls++
	failErr, fail := e.Fail[text]
	e.mu.Unlock()
	if fail {
		return nil, failErr
	}

	vec := make([]float64, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%e.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	for i, v := range vec {
		if norm > 0 {
			out[i] = float32(v / norm)
		}
	}
	return out, nil
}

// Calls は Embed の呼び出し回数を返します
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) Dimension() int {
	return e.dim
}

func (e *HashEmbedder) ModelName() string {
	return "hash-test"
}

var _ index.Embedder = (*HashEmbedder)(nil)
