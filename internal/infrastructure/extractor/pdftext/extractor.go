package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

// Decode pulls the text layer page by page. Scanned PDFs without a text layer
// come back empty and are rejected upstream.
func Decode(raw []byte, filename string) (src domain.DocumentTextSource, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrInvalidInput, "decode pdf", fmt.Errorf("malformed pdf %s: %v", filename, r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.DocumentTextSource{}, domain.WrapError(domain.ErrInvalidInput, "decode pdf", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return domain.DocumentTextSource{}, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return domain.DocumentTextSource{
		Text:     strings.Join(pages, "\n"),
		Filename: filename,
	}, nil
}

// pageText rebuilds lines from positioned text runs so label/value pairs stay
// on one line.
func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		return page.GetPlainText(nil)
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		for _, text := range row.Content {
			b.WriteString(text.S)
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
