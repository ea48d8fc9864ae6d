package ask

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jinford/sansad-rag/internal/core/index"
)

const (
	// RefusalMessage は所管外の質問に対する定型の回答
	RefusalMessage = "I apologize, but your question appears to be outside the scope of parliamentary and governmental matters. " +
		"Please ask questions related to government policies, parliamentary procedures, or ministry functions."

	// EmptyResponseMessage はモデルが空の回答を返した場合の定型文
	EmptyResponseMessage = "I apologize, but I couldn't generate a meaningful response. Please try rephrasing your question."

	// ErrorMessage は処理に失敗した場合に利用者へ返す定型文
	ErrorMessage = "I apologize, but I encountered an error while processing your question. " +
		"This might be due to connection issues or service limitations. " +
		"Please try rephrasing your question or wait a moment before retrying."

	// MaxCitations は出典として列挙する文書の上限
	MaxCitations = 3
)

// irrelevancePhrases はモデルが回答を拒否したことを示す語句（小文字）
var irrelevancePhrases = []string{
	"unable to answer this question as it is not relevant to the ministry's affairs",
	"not relevant to the ministry's functions",
	"does not fall under the purview of this ministry",
	"outside the scope of this ministry",
	"not within the jurisdiction of this ministry",
	"not relevant to",
	"outside the scope",
	"not related to parliamentary",
	"not within the jurisdiction",
	"unrelated to government",
	"cannot answer this question as it is not relevant",
}

// IsIrrelevant はモデルの回答に拒否の語句が含まれるかを大文字小文字を区別せずに判定する
func IsIrrelevant(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range irrelevancePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Citations は意味のあるメタデータを持つ上位文書の出典行を返す
func Citations(docs []index.SearchResult) []string {
	var lines []string
	for i, doc := range docs {
		if i >= MaxCitations {
			break
		}
		meta := doc.Metadata
		date := orDefault(meta.Date, "Unknown date")
		session := orDefault(meta.Session, "Unknown session")
		source := sourceName(meta)

		meaningful := date != "Unknown date" ||
			!slices.Contains([]string{"Unknown session", "4"}, session) ||
			!slices.Contains([]string{"Unknown source", "parliamentary_document"}, source)
		if !meaningful {
			continue
		}

		lines = append(lines, fmt.Sprintf("[%d] Parliamentary record from Session %s, dated %s (Source: %s)", i+1, session, date, source))
	}
	return lines
}

// FormatResponse はモデルの回答を検証し、所管外の判定と出典の付与を行う
func FormatResponse(text string, docs []index.SearchResult) Answer {
	formatted := strings.TrimSpace(text)
	if formatted == "" {
		return Answer{Text: EmptyResponseMessage, Outcome: OutcomeEmpty}
	}

	if IsIrrelevant(formatted) {
		return Answer{Text: RefusalMessage, Outcome: OutcomeIrrelevant}
	}

	if citations := Citations(docs); len(citations) > 0 {
		formatted += "\n\n**Sources:**\n" + strings.Join(citations, "\n")
	}

	return Answer{Text: formatted, Outcome: OutcomeGrounded}
}
