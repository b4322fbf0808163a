package ports

import (
	"context"
	"io"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, userHint string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// Pipeline runs classification, mapping, inference and validation over one
// text source. It never returns an error: failures are carried in the result.
type Pipeline interface {
	Process(src domain.DocumentTextSource) domain.PipelineResult
}

// BatchPipeline fans a pipeline out over several sources, preserving order.
type BatchPipeline interface {
	Pipeline
	ProcessBatch(ctx context.Context, sources []domain.DocumentTextSource) ([]domain.PipelineResult, error)
}
