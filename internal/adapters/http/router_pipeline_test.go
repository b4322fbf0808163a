package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func readyInvoiceResult() domain.PipelineResult {
	return domain.PipelineResult{
		Success: true,
		Classification: &domain.ClassificationResult{
			DocumentType: domain.DocumentTypeInvoice,
			Confidence:   0.92,
			Method:       domain.MethodKeyword,
		},
		Document: &domain.CanonicalDocument{
			Metadata: domain.DocumentMetadata{DocumentType: domain.DocumentTypeInvoice},
		},
		Validation: &domain.ValidationResult{
			DocumentType:       domain.DocumentTypeInvoice,
			CompletenessScore:  100,
			DataQualityScore:   100,
			OverallScore:       100,
			ReadyForProcessing: true,
		},
		Duration: 3 * time.Millisecond,
	}
}

func TestProcessDocumentReturnsSummary(t *testing.T) {
	pipeline := &pipelineFake{result: readyInvoiceResult()}
	handler := NewRouter(config.Config{}, nil, pipeline, docsErrFake{}).Handler()

	payload, _ := json.Marshal(map[string]any{
		"text":      "TAX INVOICE No. INV-1",
		"filename":  " inv.txt ",
		"user_hint": "invoice",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/process", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(pipeline.sources) != 1 || pipeline.sources[0].Filename != "inv.txt" || pipeline.sources[0].UserHint != "invoice" {
		t.Fatalf("unexpected pipeline input %+v", pipeline.sources)
	}

	var resp struct {
		Summary        domain.Summary               `json:"summary"`
		Classification *domain.ClassificationResult `json:"classification"`
		Error          string                       `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Summary.Success || resp.Summary.DocumentType != domain.DocumentTypeInvoice {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
	if resp.Summary.Readiness == nil || !resp.Summary.Readiness.ReadyForProcessing {
		t.Fatalf("expected readiness in summary, got %+v", resp.Summary.Readiness)
	}
	if resp.Classification == nil || resp.Error != "" {
		t.Fatalf("expected classification without error, got %+v %q", resp.Classification, resp.Error)
	}
}

func TestProcessDocumentStageFailureIs422(t *testing.T) {
	pipeline := &pipelineFake{result: domain.PipelineResult{
		Success:     false,
		FailedStage: domain.StageMapping,
		Error:       "mapping exploded",
	}}
	handler := NewRouter(config.Config{}, nil, pipeline, docsErrFake{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/process", bytes.NewBufferString(`{"text":"anything"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["failed_stage"] != "MAPPING" || resp["error"] != "mapping exploded" {
		t.Fatalf("unexpected failure response %+v", resp)
	}
	if _, ok := resp["document"]; ok {
		t.Fatalf("failed run must not expose a document: %+v", resp)
	}
}

func TestProcessDocumentRequiresTextOrTables(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, &pipelineFake{}, docsErrFake{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/process", bytes.NewBufferString(`{"filename":"x.txt"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(res.Body).Decode(&resp)
	if !bytes.Contains([]byte(resp["error"]), []byte("text is required")) {
		t.Fatalf("expected field message, got %q", resp["error"])
	}
}

func TestProcessDocumentAcceptsTablesOnly(t *testing.T) {
	pipeline := &pipelineFake{result: readyInvoiceResult()}
	handler := NewRouter(config.Config{}, nil, pipeline, docsErrFake{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/process", bytes.NewBufferString(`{"tables":[["Item","Qty"],["Pipe","4"]]}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(pipeline.sources) != 1 || len(pipeline.sources[0].Tables) != 2 {
		t.Fatalf("expected tables to reach the pipeline, got %+v", pipeline.sources)
	}
}

func TestProcessBatchPreservesOrder(t *testing.T) {
	pipeline := &pipelineFake{result: readyInvoiceResult()}
	handler := NewRouter(config.Config{}, nil, pipeline, docsErrFake{}).Handler()

	payload := `{"documents":[{"text":"a","filename":"one.txt"},{"text":"b","filename":"two.txt"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/batch", bytes.NewBufferString(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp struct {
		Results []domain.Summary `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].SourceFile != "one.txt" || resp.Results[1].SourceFile != "two.txt" {
		t.Fatalf("unexpected batch results %+v", resp.Results)
	}
}

func TestProcessBatchRejectsEmptyList(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, &pipelineFake{}, docsErrFake{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/batch", bytes.NewBufferString(`{"documents":[]}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
