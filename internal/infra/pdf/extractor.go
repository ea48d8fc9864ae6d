package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

// Extractor は PDF のバイト列からページ単位でテキストを抽出する
// 壊れたページはそのページの Err として記録し、残りのページの抽出を続ける
type Extractor struct {
	logger *slog.Logger
}

type ExtractorOption func(*Extractor)

// WithExtractorLogger は Extractor にロガーを設定する
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor は新しい Extractor を作成する
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// ExtractPages は全ページのテキストを抽出する
// 文書自体を開けない場合のみエラーを返す
func (e *Extractor) ExtractPages(ctx context.Context, data []byte) ([]ingestion.Page, error) {
	reader, err := openReader(data)
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	pages := make([]ingestion.Page, 0, total)
	for num := 1; num <= total; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(reader, num)
		if err != nil {
			e.logger.Warn("failed to extract page text", "page", num, "error", err)
		}
		pages = append(pages, ingestion.Page{Number: num, Text: text, Err: err})
	}

	return pages, nil
}

func openReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = fmt.Errorf("failed to open pdf: %v", r)
		}
	}()

	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return reader, nil
}

func pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: not found", num)
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", num, err)
	}
	return text, nil
}

// インターフェース実装の確認
var _ ingestion.TextExtractor = (*Extractor)(nil)
