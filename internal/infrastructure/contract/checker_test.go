package contract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func mustChecker(t *testing.T) *Checker {
	t.Helper()
	c, err := NewChecker()
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	return c
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestCheckAcceptsSuccessfulSummary(t *testing.T) {
	result := domain.PipelineResult{
		Success:        true,
		SourceFile:     "rfq.txt",
		Classification: &domain.ClassificationResult{DocumentType: domain.DocumentTypeRFQ, Confidence: 1},
		Document:       &domain.CanonicalDocument{Metadata: domain.DocumentMetadata{DocumentType: domain.DocumentTypeRFQ}},
		Validation:     &domain.ValidationResult{CompletenessScore: 80, DataQualityScore: 95, OverallScore: 86},
		Duration:       15 * time.Millisecond,
	}
	if err := mustChecker(t).Check(encode(t, result.Summary())); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheckAcceptsFailureSummary(t *testing.T) {
	result := domain.PipelineResult{Success: false, Error: "map fields: boom", FailedStage: domain.StageMapping}
	if err := mustChecker(t).Check(encode(t, result.Summary())); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheckRejectsBrokenSummaries(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"missing success":   `{"document_type":"RFQ","source_file":"","processing_time_seconds":0}`,
		"unknown type":      `{"success":false,"document_type":"MEMO","source_file":"","processing_time_seconds":0,"error":"x","failed_stage":"MAPPING"}`,
		"success w/o parts": `{"success":true,"document_type":"RFQ","source_file":"","processing_time_seconds":0}`,
		"score out of range": `{"success":true,"document_type":"RFQ","source_file":"","processing_time_seconds":0,` +
			`"classification":{"type":"RFQ","confidence":1.5},` +
			`"extraction":{"fields_mapped":1,"inferences_made":0,"parties_found":0,"line_items":0},` +
			`"validation":{"completeness_score":0,"data_quality_score":0,"overall_score":0,"critical_gaps":0,"important_gaps":0,"anomalies":0},` +
			`"readiness":{"ready_for_processing":false,"requires_manual_review":true}}`,
	}
	c := mustChecker(t)
	for name, raw := range cases {
		if err := c.Check([]byte(raw)); !domain.IsKind(err, domain.ErrContractViolation) {
			t.Fatalf("%s: expected contract violation, got %v", name, err)
		}
	}
}
