package domain

import (
	"encoding/json"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusReview     DocumentStatus = "review"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the persisted intake record of an uploaded file and the outcome
// of its latest pipeline run.
type Document struct {
	ID                   string          `json:"id"`
	Filename             string          `json:"filename"`
	MimeType             string          `json:"mime_type"`
	StoragePath          string          `json:"storage_path"`
	UserHint             string          `json:"user_hint,omitempty"`
	DocumentType         DocumentType    `json:"document_type,omitempty"`
	Confidence           float64         `json:"confidence,omitempty"`
	OverallScore         float64         `json:"overall_score,omitempty"`
	ReadyForProcessing   bool            `json:"ready_for_processing"`
	RequiresManualReview bool            `json:"requires_manual_review"`
	Summary              json.RawMessage `json:"summary,omitempty"`
	Status               DocumentStatus  `json:"status"`
	Error                string          `json:"error,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ProcessingOutcome is what the worker persists after a successful pipeline run.
type ProcessingOutcome struct {
	DocumentType         DocumentType
	Confidence           float64
	OverallScore         float64
	ReadyForProcessing   bool
	RequiresManualReview bool
	Summary              json.RawMessage
	Result               json.RawMessage
}

// IngestedEvent is published once a source file is stored and its record created.
type IngestedEvent struct {
	DocumentID string `json:"document_id"`
	UserHint   string `json:"user_hint,omitempty"`
}
