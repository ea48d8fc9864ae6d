package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/core/ingestion/chunk"
)

// ErrNoText は原本からテキストが1文字も得られなかった場合のエラー
var ErrNoText = errors.New("no text extracted")

// ChunkID はソース識別子とチャンク番号から決定的なIDを作る
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", strings.ReplaceAll(source, "/", "_"), index)
}

// JoinPages は抽出に成功したページをページ区切りマーカーで連結する
func JoinPages(pages []Page) string {
	var sb strings.Builder
	for _, page := range pages {
		if page.Err != nil || strings.TrimSpace(page.Text) == "" {
			continue
		}
		sb.WriteString(chunk.PageMarker(page.Number))
		sb.WriteString(page.Text)
	}
	return sb.String()
}

// BuildChunks はページ列をクリーニング・分割し、メタデータ付きのチャンク列にする
func BuildChunks(chunker *chunk.SentenceChunker, source SourceDocument, ministry string, pages []Page) ([]index.Chunk, error) {
	cleaned := chunk.Clean(JoinPages(pages))
	if cleaned == "" {
		return nil, ErrNoText
	}

	texts := chunker.Chunk(cleaned)
	if len(texts) == 0 {
		return nil, ErrNoText
	}

	chunks := make([]index.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, index.Chunk{
			ID:       ChunkID(source.Name, i),
			Text:     text,
			Ministry: ministry,
			Metadata: index.Metadata{
				Source:      source.Name,
				ChunkIndex:  i,
				TotalChunks: len(texts),
				OriginalURL: source.URL,
				Ministry:    ministry,
				Date:        source.Date,
				Session:     source.Session,
				Filename:    source.Name,
			},
		})
	}
	return chunks, nil
}
