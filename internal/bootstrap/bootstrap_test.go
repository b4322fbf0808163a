package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func TestNewPipelineRunsWithDefaults(t *testing.T) {
	pipeline, err := NewPipeline(config.Config{InferenceDefaultCurrency: "SAR"}, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	result := pipeline.Process(domain.DocumentTextSource{
		Text:     "REQUEST FOR QUOTATION\nRFQ No: RFQ-2026-001\nPlease quote your best price.",
		Filename: "rfq.txt",
	})
	if !result.Success {
		t.Fatalf("expected success, got %s at %s", result.Error, result.FailedStage)
	}
	if result.Classification == nil || result.Classification.DocumentType != domain.DocumentTypeRFQ {
		t.Fatalf("expected RFQ classification, got %+v", result.Classification)
	}
}

func TestNewPipelineLoadsSignalsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.yaml")
	yml := "signals:\n  - name: work_order\n    kind: keyword\n    target: PURCHASE_ORDER\n    weight: 0.9\n    patterns: ['\\bwork\\s+order\\b']\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write signals file: %v", err)
	}

	pipeline, err := NewPipeline(config.Config{ClassifierSignalsFile: path}, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	result := pipeline.Process(domain.DocumentTextSource{Text: "WORK ORDER 44 for pumps"})
	if result.Classification == nil || result.Classification.DocumentType != domain.DocumentTypePurchaseOrder {
		t.Fatalf("expected override signal to classify, got %+v", result.Classification)
	}
}

func TestNewPipelineRejectsMissingSignalsFile(t *testing.T) {
	_, err := NewPipeline(config.Config{ClassifierSignalsFile: filepath.Join(t.TempDir(), "missing.yaml")}, nil, nil)
	if err == nil {
		t.Fatalf("expected error for missing signals file")
	}
}

func TestNewObjectStorageRejectsUnknownBackend(t *testing.T) {
	if _, err := newObjectStorage(config.Config{StorageBackend: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	storage, err := newObjectStorage(config.Config{StorageBackend: "local", StoragePath: t.TempDir()})
	if err != nil || storage == nil {
		t.Fatalf("expected local storage, got %v %v", storage, err)
	}
}

func TestResilienceConfigConvertsMilliseconds(t *testing.T) {
	cfg := ResilienceConfig(config.Config{
		ResilienceRetryMaxAttempts:      5,
		ResilienceRetryInitialBackoffMS: 50,
		ResilienceBreakerOpenTimeoutMS:  1500,
		ResilienceBreakerMinRequests:    -1,
	})
	if cfg.RetryMaxAttempts != 5 || cfg.RetryInitialBackoff != 50*time.Millisecond {
		t.Fatalf("unexpected retry config %+v", cfg)
	}
	if cfg.BreakerOpenTimeout != 1500*time.Millisecond || cfg.BreakerMinRequests != 0 {
		t.Fatalf("unexpected breaker config %+v", cfg)
	}
}
