package indextest

import (
	"fmt"

	"github.com/jinford/sansad-rag/internal/core/index"
)

// TestChunks は source から n 件のチャンクを生成します
func TestChunks(source, ministry string, n int) []index.Chunk {
	chunks := make([]index.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, index.Chunk{
			ID:       fmt.Sprintf("%s_chunk_%d", source, i),
			Text:     fmt.Sprintf("Question %d about %s answered by the minister", i, source),
			Ministry: ministry,
			Metadata: index.Metadata{
				Source:      source,
				ChunkIndex:  i,
				TotalChunks: n,
				Ministry:    ministry,
			},
		})
	}
	return chunks
}
