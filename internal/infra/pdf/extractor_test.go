package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF は1ページに1つのテキストを持つ最小構成のPDFを生成する
func buildPDF(pageTexts ...string) []byte {
	n := len(pageTexts)
	fontObj := 3 + 2*n

	var objects []string
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n),
	)
	for i, text := range pageTexts {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>", 4+2*i, fontObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractor_ExtractPages(t *testing.T) {
	data := buildPDF("Starred Question 12", "Reply of the Minister")

	pages, err := NewExtractor().ExtractPages(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Starred Question 12", pages[0].Text)
	assert.NoError(t, pages[0].Err)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "Reply of the Minister", pages[1].Text)
}

func TestExtractor_InvalidDocument(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "空", data: nil},
		{name: "PDFではない", data: bytes.Repeat([]byte("plain text "), 20)},
		{name: "EOFなし", data: append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 200)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor().ExtractPages(context.Background(), tt.data)
			assert.Error(t, err)
		})
	}
}

func TestExtractor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor().ExtractPages(ctx, buildPDF("text"))
	assert.ErrorIs(t, err, context.Canceled)
}
