package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/jinford/sansad-rag/internal/core/ask"
	"github.com/jinford/sansad-rag/internal/core/index"
	"github.com/jinford/sansad-rag/internal/core/ingestion"
)

// MinistryRow は省庁一覧の1行
type MinistryRow struct {
	Name      string
	Code      int
	Documents int64
}

// renderMinistries は省庁ごとの件数を表形式で出力する
func renderMinistries(w io.Writer, rows []MinistryRow) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Ministry", "Code", "Documents")
	for i, row := range rows {
		code := "-"
		if row.Code != 0 {
			code = strconv.Itoa(row.Code)
		}
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			row.Name,
			code,
			strconv.FormatInt(row.Documents, 10),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// renderSearchResults は検索結果を関連度の高い順に出力する
func renderSearchResults(w io.Writer, results []index.SearchResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Score", "Source", "Date", "Text")
	for i, r := range results {
		if err := table.Append([]string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.3f", r.RelevanceScore),
			orDash(r.Metadata.Source),
			orDash(r.Metadata.Date),
			truncateString(r.Text, 80),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// renderIngestResult は取り込み結果の集計を出力する
func renderIngestResult(w io.Writer, results []*ingestion.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Ministry", "Sources", "Ingested", "Skipped", "Failed", "Chunks", "Duration")
	for _, r := range results {
		if err := table.Append([]string{
			r.Ministry,
			strconv.Itoa(r.Sources),
			strconv.Itoa(r.Ingested),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Chunks),
			r.Duration.Round(time.Millisecond).String(),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// renderAnswer は回答本文と、必要なら参照した文書の一覧を出力する
func renderAnswer(w io.Writer, result *ask.AskResult, showSources bool) error {
	if _, err := fmt.Fprintln(w, result.Answer.Text); err != nil {
		return err
	}
	if !showSources || len(result.Sources) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n参照した文書 (%d件):\n", len(result.Sources)); err != nil {
		return err
	}
	return renderSearchResults(w, result.Sources)
}

// truncateString は文字列を指定の文字数に切り詰める
func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
