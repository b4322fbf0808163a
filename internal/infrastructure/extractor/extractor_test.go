package extractor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

type storageFake struct {
	content string
	err     error
}

func (f *storageFake) Save(context.Context, string, io.Reader) error {
	return errors.New("not implemented")
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		filename string
		mime     string
		want     Format
	}{
		{"rfq.TXT", "", FormatText},
		{"po.pdf", "application/octet-stream", FormatPDF},
		{"boq.xlsx", "", FormatSpreadsheet},
		{"upload", "text/plain; charset=utf-8", FormatText},
		{"upload", "application/pdf", FormatPDF},
	}
	for _, tc := range cases {
		got, err := DetectFormat(tc.filename, tc.mime)
		if err != nil || got != tc.want {
			t.Fatalf("DetectFormat(%q, %q) = %q, %v; want %q", tc.filename, tc.mime, got, err, tc.want)
		}
	}
	if _, err := DetectFormat("photo.png", "image/png"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestExtractPlainText(t *testing.T) {
	e := New(&storageFake{content: "REQUEST FOR QUOTATION\n"}, 0)
	src, err := e.Extract(context.Background(), &domain.Document{StoragePath: "k", Filename: "rfq.txt", MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if src.Text != "REQUEST FOR QUOTATION" || src.Filename != "rfq.txt" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestExtractEnforcesSizeLimit(t *testing.T) {
	e := New(&storageFake{content: strings.Repeat("x", 11)}, 10)
	_, err := e.Extract(context.Background(), &domain.Document{StoragePath: "k", Filename: "big.txt"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestExtractPropagatesStorageErrors(t *testing.T) {
	e := New(&storageFake{err: domain.WrapError(domain.ErrDocumentNotFound, "open file", errors.New("gone"))}, 0)
	_, err := e.Extract(context.Background(), &domain.Document{StoragePath: "k", Filename: "a.txt"})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
