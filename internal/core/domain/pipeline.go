package domain

import "time"

// Stage names a pipeline state. FAILED is reachable from every working stage.
type Stage string

const (
	StageClassifying Stage = "CLASSIFYING"
	StageMapping     Stage = "MAPPING"
	StageInferring   Stage = "INFERRING"
	StageValidating  Stage = "VALIDATING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// DocumentTextSource is the inbound contract produced by the text/OCR layer.
type DocumentTextSource struct {
	Text     string     `json:"text"`
	Tables   [][]string `json:"tables,omitempty"`
	Filename string     `json:"filename,omitempty"`
	UserHint string     `json:"user_hint,omitempty"`
}

type StageCounters struct {
	ClassificationSignals int `json:"classification_signals"`
	FieldsMapped          int `json:"fields_mapped"`
	InferencesMade        int `json:"inferences_made"`
	RuleFailures          int `json:"rule_failures"`
	PartiesFound          int `json:"parties_found"`
	LineItems             int `json:"line_items"`
}

// PipelineResult carries either a full document and verdict, or the failing
// stage and its error. There is no partial state.
type PipelineResult struct {
	Success        bool                    `json:"success"`
	SourceFile     string                  `json:"source_file,omitempty"`
	Classification *ClassificationResult   `json:"classification,omitempty"`
	Document       *CanonicalDocument      `json:"document,omitempty"`
	Validation     *ValidationResult       `json:"validation,omitempty"`
	Inferences     []InferenceSignal       `json:"inference_signals,omitempty"`
	RuleFailures   []RuleFailure           `json:"rule_failures,omitempty"`
	Counters       StageCounters           `json:"counters"`
	StageTimings   map[Stage]time.Duration `json:"stage_timings"`
	Duration       time.Duration           `json:"duration"`
	Error          string                  `json:"error,omitempty"`
	FailedStage    Stage                   `json:"failed_stage,omitempty"`
}

type ClassificationSummary struct {
	Type       DocumentType `json:"type"`
	Confidence float64      `json:"confidence"`
}

type ExtractionSummary struct {
	FieldsMapped   int `json:"fields_mapped"`
	InferencesMade int `json:"inferences_made"`
	PartiesFound   int `json:"parties_found"`
	LineItems      int `json:"line_items"`
}

type ValidationSummary struct {
	CompletenessScore float64 `json:"completeness_score"`
	DataQualityScore  float64 `json:"data_quality_score"`
	OverallScore      float64 `json:"overall_score"`
	CriticalGaps      int     `json:"critical_gaps"`
	ImportantGaps     int     `json:"important_gaps"`
	Anomalies         int     `json:"anomalies"`
}

type ReadinessSummary struct {
	ReadyForProcessing   bool `json:"ready_for_processing"`
	RequiresManualReview bool `json:"requires_manual_review"`
}

// Summary is the stable JSON boundary handed to persistence and notification layers.
type Summary struct {
	Success               bool                   `json:"success"`
	DocumentType          DocumentType           `json:"document_type"`
	SourceFile            string                 `json:"source_file"`
	ProcessingTimeSeconds float64                `json:"processing_time_seconds"`
	Classification        *ClassificationSummary `json:"classification,omitempty"`
	Extraction            *ExtractionSummary     `json:"extraction,omitempty"`
	Validation            *ValidationSummary     `json:"validation,omitempty"`
	Readiness             *ReadinessSummary      `json:"readiness,omitempty"`
	Error                 string                 `json:"error,omitempty"`
	FailedStage           Stage                  `json:"failed_stage,omitempty"`
}

func (r PipelineResult) Summary() Summary {
	out := Summary{
		Success:               r.Success,
		DocumentType:          DocumentTypeUnknown,
		SourceFile:            r.SourceFile,
		ProcessingTimeSeconds: r.Duration.Seconds(),
	}
	if !r.Success {
		out.Error = r.Error
		out.FailedStage = r.FailedStage
		return out
	}

	if r.Document != nil {
		out.DocumentType = r.Document.Metadata.DocumentType
	}
	if r.Classification != nil {
		out.Classification = &ClassificationSummary{
			Type:       r.Classification.DocumentType,
			Confidence: r.Classification.Confidence,
		}
	}
	out.Extraction = &ExtractionSummary{
		FieldsMapped:   r.Counters.FieldsMapped,
		InferencesMade: r.Counters.InferencesMade,
		PartiesFound:   r.Counters.PartiesFound,
		LineItems:      r.Counters.LineItems,
	}
	if r.Validation != nil {
		out.Validation = &ValidationSummary{
			CompletenessScore: r.Validation.CompletenessScore,
			DataQualityScore:  r.Validation.DataQualityScore,
			OverallScore:      r.Validation.OverallScore,
			CriticalGaps:      len(r.Validation.CriticalGaps),
			ImportantGaps:     len(r.Validation.ImportantGaps),
			Anomalies:         len(r.Validation.Anomalies),
		}
		out.Readiness = &ReadinessSummary{
			ReadyForProcessing:   r.Validation.ReadyForProcessing,
			RequiresManualReview: r.Validation.RequiresManualReview,
		}
	}
	return out
}

// NeedsReview combines the validator verdict with the classifier's own flag.
func (r PipelineResult) NeedsReview() bool {
	if !r.Success {
		return true
	}
	if r.Classification != nil && r.Classification.RequiresReview {
		return true
	}
	return r.Validation == nil || r.Validation.RequiresManualReview || !r.Validation.ReadyForProcessing
}
