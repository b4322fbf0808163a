// Package extractor turns stored uploads into the pipeline's text source,
// choosing a decoder by file extension and MIME type.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/extractor/spreadsheet"
)

const DefaultMaxBytes int64 = 32 << 20

type Format string

const (
	FormatText        Format = "text"
	FormatPDF         Format = "pdf"
	FormatSpreadsheet Format = "spreadsheet"
)

type decodeFunc func(raw []byte, filename string) (domain.DocumentTextSource, error)

var decoders = map[Format]decodeFunc{
	FormatText:        plaintext.Decode,
	FormatPDF:         pdftext.Decode,
	FormatSpreadsheet: spreadsheet.Decode,
}

type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func New(storage ports.ObjectStorage, maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{storage: storage, maxBytes: maxBytes}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (domain.DocumentTextSource, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.DocumentTextSource{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes+1))
	if err != nil {
		return domain.DocumentTextSource{}, fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return domain.DocumentTextSource{}, domain.WrapError(domain.ErrInvalidInput, "read source document",
			fmt.Errorf("%s exceeds %d bytes", doc.Filename, e.maxBytes))
	}
	return Decode(raw, doc.Filename, doc.MimeType)
}

// Decode picks a decoder for the file and runs it.
func Decode(raw []byte, filename, mimeType string) (domain.DocumentTextSource, error) {
	format, err := DetectFormat(filename, mimeType)
	if err != nil {
		return domain.DocumentTextSource{}, err
	}
	src, err := decoders[format](raw, filename)
	if err != nil {
		return domain.DocumentTextSource{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return src, nil
}

// DetectFormat prefers the extension and falls back to the MIME type.
func DetectFormat(filename, mimeType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".md", ".csv", ".tsv":
		return FormatText, nil
	case ".pdf":
		return FormatPDF, nil
	case ".xlsx", ".xlsm", ".xltx":
		return FormatSpreadsheet, nil
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return FormatText, nil
	case mimeType == "application/pdf":
		return FormatPDF, nil
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatSpreadsheet, nil
	}
	return "", domain.WrapError(domain.ErrInvalidInput, "detect format",
		fmt.Errorf("unsupported document %q (%s)", filename, mimeType))
}
