package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	pageMarker    = regexp.MustCompile(`--- Page \d+ ---`)
	// 文字・数字・空白・基本的な句読点以外は空白に置き換える
	nonEssential = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?()\-]`)
)

// PageMarker はページ結合時に挿入する区切りを返します
func PageMarker(page int) string {
	return fmt.Sprintf("\n--- Page %d ---\n", page)
}

// Clean は抽出直後のテキストをチャンク化に適した形に整形します
//
//   - 連続する空白を1つにまとめる
//   - ページ区切りマーカーを除去する
//   - 文字・数字・空白・. , ! ? ( ) - 以外を空白に置き換える
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	text := whitespaceRun.ReplaceAllString(raw, " ")
	text = pageMarker.ReplaceAllString(text, "")
	text = nonEssential.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
