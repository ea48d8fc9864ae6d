package ask

import (
	"fmt"
	"strings"

	"github.com/jinford/sansad-rag/internal/core/index"
)

// ConnectionTestPrompt は疎通確認に使うプロンプト
const ConnectionTestPrompt = "Respond with 'Connection successful' if you can process this message."

const (
	defaultDate     = "Unknown date"
	defaultSession  = "4"
	defaultSource   = "Unknown source"
	defaultMinistry = "Unknown Ministry"
	defaultPage     = "Unknown page"
)

// BuildStructuredPrompt は検索結果を根拠として埋め込んだプロンプトを構築する
func BuildStructuredPrompt(question, ministry string, docs []index.SearchResult) string {
	var sb strings.Builder

	subject := orDefault(ministry, "Indian Parliament")
	scope := orDefault(ministry, "parliamentary")

	fmt.Fprintf(&sb, "\nYou are an official representative of the %s in the Indian Parliament.\n\n\n", subject)

	sb.WriteString("USER QUESTION:\n")
	sb.WriteString(question)
	sb.WriteString("\n\n\n")

	sb.WriteString("CONTEXT FROM PARLIAMENTARY RECORDS:\n")
	sb.WriteString(formatContext(ministry, docs))
	sb.WriteString("\n\n\n")

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. RELEVANCE CHECK:\n")
	fmt.Fprintf(&sb, "   * Answer only if the question relates to %s's functions, policies, or responsibilities.\n", scope)
	sb.WriteString("   * If the question is off-topic, respond: \"I am unable to answer this question as it is not relevant to the ministry's affairs.\"\n\n\n")

	sb.WriteString("2. USING CONTEXT:\n")
	sb.WriteString("   * Base your answer primarily on the parliamentary records provided in the context.\n")
	sb.WriteString("   * If the context contains relevant information, cite it specifically (e.g., \"According to the record from [date/session]...\").\n")
	sb.WriteString("   * If the context is insufficient but the question is valid, use your knowledge of Indian government policies and programs.\n")
	sb.WriteString("   * If using general knowledge, clearly state: \"Based on general information about the ministry's policies...\"\n\n\n")

	sb.WriteString("3. ANSWER FORMAT:\n")
	sb.WriteString("   * Begin with a formal answer to the question.\n")
	sb.WriteString("   * Include specific facts, figures, and dates from the context when available.\n")
	sb.WriteString("   * Organize information logically with clear sections.\n")
	sb.WriteString("   * End with any relevant initiatives or future plans mentioned in the context.\n\n\n")

	sb.WriteString("4. TONE:\n")
	sb.WriteString("   * Formal and professional\n")
	sb.WriteString("   * Factual and precise\n")
	sb.WriteString("   * Solution-oriented\n\n\n")

	sb.WriteString("Generate a comprehensive, accurate response based on these instructions.\n")
	sb.WriteString("Do not answer irrelevant questions like what's the climate, etc.\n")

	return sb.String()
}

// BuildSimplePrompt は根拠となる文書が無い場合のプロンプトを構築する
func BuildSimplePrompt(question, ministry string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "\nYou are an AI assistant representing the %s.\n\n\n", orDefault(ministry, "Indian Parliament"))
	fmt.Fprintf(&sb, "Question: %s\n\n\n", question)
	sb.WriteString("Please provide a helpful, accurate response based on your knowledge of Indian parliamentary procedures and government policies.\n\n\n")
	sb.WriteString("Keep the response:\n")
	sb.WriteString("- Factual and professional\n")
	sb.WriteString("- Focused on the ministry's functions if a specific ministry is mentioned\n")
	sb.WriteString("- Helpful for understanding parliamentary/government processes\n\n\n")
	sb.WriteString("If you cannot provide accurate information, clearly state the limitations.\n")

	return sb.String()
}

// formatContext は各文書を SOURCE ブロックに整形し、区切り線で連結する
func formatContext(ministry string, docs []index.SearchResult) string {
	entries := make([]string, 0, len(docs))
	for i, doc := range docs {
		text := strings.TrimSpace(doc.Text)
		if text == "" {
			continue
		}
		meta := doc.Metadata

		var sb strings.Builder
		fmt.Fprintf(&sb, "SOURCE %d:\n", i+1)
		fmt.Fprintf(&sb, "Date: %s\n", orDefault(meta.Date, defaultDate))
		fmt.Fprintf(&sb, "Session: %s\n", orDefault(meta.Session, defaultSession))
		fmt.Fprintf(&sb, "Source: %s\n", sourceName(meta))
		fmt.Fprintf(&sb, "Ministry: %s\n", orDefault(meta.Ministry, orDefault(ministry, defaultMinistry)))
		fmt.Fprintf(&sb, "Page: %s\n", orDefault(meta.Page, defaultPage))
		fmt.Fprintf(&sb, "Content: %s\n", text)
		entries = append(entries, sb.String())
	}
	return strings.Join(entries, "\n---\n")
}

func sourceName(meta index.Metadata) string {
	return orDefault(meta.Filename, orDefault(meta.Source, defaultSource))
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
