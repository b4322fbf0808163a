package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
)

// failedStatusTimeout bounds the failure write, which runs even after the
// processing context has ended.
const failedStatusTimeout = 5 * time.Second

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	pipeline  ports.Pipeline
	contract  ports.SummaryChecker
}

// NewProcessDocumentUseCase wires the worker flow. contract may be nil.
func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	pipeline ports.Pipeline,
	contract ports.SummaryChecker,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		pipeline:  pipeline,
		contract:  contract,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, outcome, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	status := statusFor(result)
	if err := uc.persistOutcome(ctx, documentID, status, outcome); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if !result.Success {
		return domain.WrapError(domain.ErrStageFailed, "run pipeline",
			fmt.Errorf("stage %s: %s", result.FailedStage, result.Error))
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (domain.PipelineResult, domain.ProcessingOutcome, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return domain.PipelineResult{}, domain.ProcessingOutcome{}, err
	}

	src, err := uc.extractSource(ctx, doc)
	if err != nil {
		return domain.PipelineResult{}, domain.ProcessingOutcome{}, err
	}

	result, err := uc.run(ctx, src)
	if err != nil {
		return domain.PipelineResult{}, domain.ProcessingOutcome{}, err
	}

	outcome, err := uc.buildOutcome(result)
	if err != nil {
		return domain.PipelineResult{}, domain.ProcessingOutcome{}, err
	}
	return result, outcome, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractSource(ctx context.Context, doc *domain.Document) (domain.DocumentTextSource, error) {
	src, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return domain.DocumentTextSource{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(src.Text) == "" && len(src.Tables) == 0 {
		return domain.DocumentTextSource{}, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	if src.Filename == "" {
		src.Filename = doc.Filename
	}
	if src.UserHint == "" {
		src.UserHint = doc.UserHint
	}
	return src, nil
}

// run gives up waiting when ctx ends; the abandoned run finishes in the
// background and its result is dropped.
func (uc *ProcessDocumentUseCase) run(ctx context.Context, src domain.DocumentTextSource) (domain.PipelineResult, error) {
	done := make(chan domain.PipelineResult, 1)
	go func() {
		done <- uc.pipeline.Process(src)
	}()
	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return domain.PipelineResult{}, fmt.Errorf("run pipeline: %w", ctx.Err())
	}
}

func (uc *ProcessDocumentUseCase) buildOutcome(result domain.PipelineResult) (domain.ProcessingOutcome, error) {
	summary, err := json.Marshal(result.Summary())
	if err != nil {
		return domain.ProcessingOutcome{}, fmt.Errorf("encode summary: %w", err)
	}
	if uc.contract != nil {
		if err := uc.contract.Check(summary); err != nil {
			return domain.ProcessingOutcome{}, fmt.Errorf("check summary contract: %w", err)
		}
	}
	full, err := json.Marshal(result)
	if err != nil {
		return domain.ProcessingOutcome{}, fmt.Errorf("encode pipeline result: %w", err)
	}

	outcome := domain.ProcessingOutcome{
		DocumentType: domain.DocumentTypeUnknown,
		Summary:      summary,
		Result:       full,
	}
	if result.Document != nil {
		outcome.DocumentType = result.Document.Metadata.DocumentType
	}
	if result.Classification != nil {
		outcome.Confidence = result.Classification.Confidence
	}
	if result.Validation != nil {
		outcome.OverallScore = result.Validation.OverallScore
		outcome.ReadyForProcessing = result.Validation.ReadyForProcessing
	}
	outcome.RequiresManualReview = result.NeedsReview()
	return outcome, nil
}

func (uc *ProcessDocumentUseCase) persistOutcome(ctx context.Context, documentID string, status domain.DocumentStatus, outcome domain.ProcessingOutcome) error {
	if err := uc.repo.SaveOutcome(ctx, documentID, status, outcome); err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedStatusTimeout)
	defer cancel()
	return uc.markStatus(writeCtx, documentID, domain.StatusFailed, processErr.Error())
}

// statusFor maps a finished run to the stored status. A validator verdict of
// ready still lands in review when the classifier itself asked for one.
func statusFor(result domain.PipelineResult) domain.DocumentStatus {
	switch {
	case !result.Success:
		return domain.StatusFailed
	case result.Validation != nil && result.Validation.ReadyForProcessing &&
		(result.Classification == nil || !result.Classification.RequiresReview):
		return domain.StatusReady
	default:
		return domain.StatusReview
	}
}
