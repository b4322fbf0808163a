package domain

import "time"

type ClassificationMethod string

const (
	MethodKeyword   ClassificationMethod = "keyword"
	MethodStructure ClassificationMethod = "structure"
	MethodHybrid    ClassificationMethod = "hybrid"
	MethodUserHint  ClassificationMethod = "user_hint"
	MethodNone      ClassificationMethod = "none"
)

type ClassificationSignal struct {
	Name       string       `json:"signal_name"`
	Target     DocumentType `json:"target"`
	Matched    bool         `json:"matched"`
	Weight     float64      `json:"weight"`
	Confidence float64      `json:"confidence"`
	Evidence   []string     `json:"evidence,omitempty"`
}

type TypeScore struct {
	Type  DocumentType `json:"type"`
	Score float64      `json:"score"`
}

// ClassificationResult is produced once per document and never mutated afterwards.
type ClassificationResult struct {
	DocumentType        DocumentType           `json:"document_type"`
	Confidence          float64                `json:"confidence"`
	Method              ClassificationMethod   `json:"method"`
	Signals             []ClassificationSignal `json:"signals"`
	Reasoning           []string               `json:"reasoning"`
	Alternatives        []TypeScore            `json:"alternatives"`
	RequiresReview      bool                   `json:"requires_review"`
	SuggestedConversion *DocumentType          `json:"suggested_conversion,omitempty"`
	Timestamp           time.Time              `json:"timestamp"`
}

// MatchedSignals counts signals that fired, including synthetic ones.
func (r ClassificationResult) MatchedSignals() int {
	n := 0
	for _, s := range r.Signals {
		if s.Matched {
			n++
		}
	}
	return n
}
