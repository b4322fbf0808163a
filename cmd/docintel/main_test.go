package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func TestRunPrintsSummaryForTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.txt")
	text := "PURCHASE ORDER\nPO No: PO-7781\nSubtotal: 1000.00\nVAT 15%\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out bytes.Buffer
	err := run(&out, config.Config{InferenceDefaultCurrency: "SAR"}, slog.Default(), path, "", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var summary domain.Summary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.Success || summary.DocumentType != domain.DocumentTypePurchaseOrder {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.SourceFile != "order.txt" {
		t.Fatalf("expected source file order.txt, got %q", summary.SourceFile)
	}
}

func TestRunFullIncludesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.txt")
	if err := os.WriteFile(path, []byte("PURCHASE ORDER\nPO No: PO-1\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out bytes.Buffer
	if err := run(&out, config.Config{}, slog.Default(), path, "po", true); err != nil {
		t.Fatalf("run: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if _, ok := result["document"]; !ok {
		t.Fatalf("expected document in full output, got keys %v", result)
	}
}

func TestRunRejectsMissingFile(t *testing.T) {
	var out bytes.Buffer
	if err := run(&out, config.Config{}, slog.Default(), filepath.Join(t.TempDir(), "nope.txt"), "", false); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
