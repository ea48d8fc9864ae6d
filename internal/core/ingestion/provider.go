package ingestion

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// SourceDocument は取り込み対象の原本（PDF）を表す
type SourceDocument struct {
	Name    string // ソース識別子（URL末尾のファイル名）
	URL     string // 取得元のURL
	Date    string // 答弁日（判明している場合）
	Session string // 会期番号（判明している場合）

	// Archived は原本が既にBlobStoreに保存済みであることを示す
	Archived bool

	// Fetch は原本のバイト列を取得する
	Fetch func(ctx context.Context) ([]byte, error)
}

// SourceLister は省庁ごとの原本一覧を提供する
type SourceLister interface {
	ListSources(ctx context.Context, ministry string) ([]SourceDocument, error)
}

// Page は抽出結果の1ページ分
// 抽出に失敗したページは Err を持ち、Text は空になる
type Page struct {
	Number int
	Text   string
	Err    error
}

// TextExtractor はPDFのバイト列からページ単位でテキストを抽出する
type TextExtractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]Page, error)
}

// BlobStore は原本を保存する外部ストレージ
// 全ての操作は失敗しうるが、再試行に対して冪等である
type BlobStore interface {
	Upload(ctx context.Context, data []byte, path string) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) (bool, error)
}

// SourceNameFromURL はURLのパス末尾からクエリを除いたファイル名を返す
func SourceNameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
		return ""
	}

	name := raw
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// ArchivePath は原本の保存先パスを返す
func ArchivePath(ministry, source string) string {
	return ministry + "/" + source
}
