package domain

import "time"

type Criticality string

const (
	CriticalityRequired  Criticality = "required"
	CriticalityImportant Criticality = "important"
	CriticalityOptional  Criticality = "optional"
)

type FieldGap struct {
	FieldName   string      `json:"field_name"`
	Criticality Criticality `json:"criticality"`
	Description string      `json:"description"`
	Remediation string      `json:"remediation"`
}

// ValidationResult is the terminal verdict of a pipeline run.
type ValidationResult struct {
	DocumentID           string       `json:"document_id"`
	DocumentType         DocumentType `json:"document_type"`
	CompletenessScore    float64      `json:"completeness_score"`
	DataQualityScore     float64      `json:"data_quality_score"`
	OverallScore         float64      `json:"overall_score"`
	CriticalGaps         []FieldGap   `json:"critical_gaps"`
	ImportantGaps        []FieldGap   `json:"important_gaps"`
	OptionalGaps         []FieldGap   `json:"optional_gaps"`
	Warnings             []string     `json:"warnings"`
	Anomalies            []string     `json:"anomalies"`
	ReadyForProcessing   bool         `json:"ready_for_processing"`
	RequiresManualReview bool         `json:"requires_manual_review"`
	ValidationTimestamp  time.Time    `json:"validation_timestamp"`
}
