package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func TestWorkerMetricsFinishDocument(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartDocument()
	if got := testutil.ToFloat64(m.processInFlight); got != 1 {
		t.Fatalf("expected one in-flight document, got %v", got)
	}
	m.FinishDocument("worker", 10*time.Millisecond, nil)
	m.StartDocument()
	m.FinishDocument("worker", 20*time.Millisecond, domain.WrapError(domain.ErrStageFailed, "run pipeline", errors.New("MAPPING: boom")))

	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected no in-flight documents, got %v", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "stage_failed")); got != 1 {
		t.Fatalf("expected one stage failure, got %v", got)
	}
}

func TestProcessStatus(t *testing.T) {
	tests := map[string]error{
		"success":      nil,
		"rejected":     domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty")),
		"temporary":    context.DeadlineExceeded,
		"error":        errors.New("disk on fire"),
		"stage_failed": domain.WrapError(domain.ErrStageFailed, "run pipeline", errors.New("x")),
	}
	for want, err := range tests {
		if got := processStatus(err); got != want {
			t.Fatalf("processStatus(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestNormalizePathCollapsesDocumentIDs(t *testing.T) {
	if got := normalizePath("/v1/documents/8f3c"); got != "/v1/documents/{document_id}" {
		t.Fatalf("unexpected normalized path %q", got)
	}
	if got := normalizePath("/v1/pipeline/process"); got != "/v1/pipeline/process" {
		t.Fatalf("unexpected normalized path %q", got)
	}
}
