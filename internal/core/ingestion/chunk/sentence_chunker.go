package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChars はチャンクの最大文字数のデフォルト値
	DefaultMaxChars = 1000
	// DefaultOverlapChars はチャンク間で重複させる文字数のデフォルト値
	DefaultOverlapChars = 200
)

// sentenceTerminator は文末記号（. ! ?）の連続にマッチする
var sentenceTerminator = regexp.MustCompile(`[.!?]+`)

// SentenceChunker は文単位で貪欲にバッファへ詰め、文字数上限でチャンクを区切ります
//
// 文の途中で分割することはありません。上限を超える単一の文はそのまま1チャンクとして出力されます。
// 同じ入力と設定からは常に同じチャンク列が得られます。
type SentenceChunker struct {
	maxChars int
	overlap  int
}

// NewSentenceChunker は新しいSentenceChunkerを作成します
// maxChars が0以下、overlap が負の場合はデフォルト値を使用します
func NewSentenceChunker(maxChars, overlap int) *SentenceChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = DefaultOverlapChars
	}
	return &SentenceChunker{
		maxChars: maxChars,
		overlap:  overlap,
	}
}

// MaxChars は最大文字数を返します
func (c *SentenceChunker) MaxChars() int {
	return c.maxChars
}

// Overlap はオーバーラップ文字数を返します
func (c *SentenceChunker) Overlap() int {
	return c.overlap
}

// Chunk はクリーニング済みテキストをチャンク列に分割します
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	current := ""

	for _, sentence := range sentences {
		if current == "" {
			current = sentence
			continue
		}

		if runeLen(current)+1+runeLen(sentence) <= c.maxChars {
			current += " " + sentence
			continue
		}

		chunks = append(chunks, strings.TrimSpace(current))
		current = c.seed(current, sentence)
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

// seed は直前のチャンク末尾の overlap 文字と次の文から新しいバッファを作ります
// 重複込みで上限を超える場合は文のみで始めます
func (c *SentenceChunker) seed(emitted, sentence string) string {
	if c.overlap <= 0 || runeLen(emitted) <= c.overlap {
		return sentence
	}

	runes := []rune(emitted)
	tail := string(runes[len(runes)-c.overlap:])
	seeded := tail + " " + sentence
	if runeLen(seeded) > c.maxChars {
		return sentence
	}
	return seeded
}

// Sentences はテキストを文末記号で分割し、空の文を除いた文の列を返します
// 文末記号自体は結果に含まれません
func Sentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := sentenceTerminator.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sentences = append(sentences, part)
	}
	return sentences
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
