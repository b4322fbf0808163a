package ports

import (
	"context"
	"io"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveOutcome(ctx context.Context, id string, status domain.DocumentStatus, outcome domain.ProcessingOutcome) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, event domain.IngestedEvent) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, domain.IngestedEvent) error) error
}

// TextExtractor turns a stored document into the pipeline's text source.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.DocumentTextSource, error)
}

// DocumentClassifier assigns a document type to raw text.
type DocumentClassifier interface {
	Classify(text, userHint, fileName string) domain.ClassificationResult
}

// FieldMapper builds a canonical document for a known type.
type FieldMapper interface {
	Map(text string, cls *domain.ClassificationResult, fileName string) (*domain.CanonicalDocument, error)
}

// FieldInferencer fills gaps in a canonical document in place.
type FieldInferencer interface {
	Infer(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, []domain.RuleFailure, error)
}

// DocumentValidator scores a canonical document for completeness and quality.
type DocumentValidator interface {
	Validate(doc *domain.CanonicalDocument) (domain.ValidationResult, error)
}

// SummaryChecker enforces the JSON contract of the pipeline summary.
type SummaryChecker interface {
	Check(summary []byte) error
}

// PipelineObserver receives every finished pipeline run.
type PipelineObserver interface {
	ObservePipeline(result domain.PipelineResult)
}
