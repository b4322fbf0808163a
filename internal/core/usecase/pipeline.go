package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/mapping"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
)

const defaultBatchConcurrency = 4

// PipelineUseCase runs classify, map, infer and validate over one text source.
// It holds no per-run state and may be shared across goroutines.
type PipelineUseCase struct {
	classifier ports.DocumentClassifier
	mapper     ports.FieldMapper
	inferencer ports.FieldInferencer
	validator  ports.DocumentValidator
	observer   ports.PipelineObserver
	logger     *slog.Logger
	batchLimit int
}

func NewPipelineUseCase(
	classifier ports.DocumentClassifier,
	mapper ports.FieldMapper,
	inferencer ports.FieldInferencer,
	validator ports.DocumentValidator,
	observer ports.PipelineObserver,
	logger *slog.Logger,
	batchConcurrency int,
) *PipelineUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if batchConcurrency <= 0 {
		batchConcurrency = defaultBatchConcurrency
	}
	if isNilObserver(observer) {
		observer = nil
	}
	return &PipelineUseCase{
		classifier: classifier,
		mapper:     mapper,
		inferencer: inferencer,
		validator:  validator,
		observer:   observer,
		logger:     logger,
		batchLimit: batchConcurrency,
	}
}

// pipelineRun is the working state of a single Process call.
type pipelineRun struct {
	src        domain.DocumentTextSource
	text       string
	cls        domain.ClassificationResult
	doc        *domain.CanonicalDocument
	signals    []domain.InferenceSignal
	failures   []domain.RuleFailure
	validation domain.ValidationResult
	counters   domain.StageCounters
	timings    map[domain.Stage]time.Duration
}

func (uc *PipelineUseCase) Process(src domain.DocumentTextSource) domain.PipelineResult {
	started := time.Now()
	run := &pipelineRun{
		src:     src,
		text:    composeText(src),
		timings: make(map[domain.Stage]time.Duration, 4),
	}

	stages := []struct {
		stage domain.Stage
		fn    func(*pipelineRun) error
	}{
		{domain.StageClassifying, uc.classify},
		{domain.StageMapping, uc.mapFields},
		{domain.StageInferring, uc.infer},
		{domain.StageValidating, uc.validate},
	}
	for _, s := range stages {
		if err := run.stage(s.stage, s.fn); err != nil {
			result := domain.PipelineResult{
				Success:      false,
				SourceFile:   src.Filename,
				StageTimings: run.timings,
				Duration:     time.Since(started),
				Error:        err.Error(),
				FailedStage:  s.stage,
			}
			uc.logger.Error("pipeline_stage_failed",
				"source_file", src.Filename,
				"stage", s.stage,
				"error", err.Error(),
			)
			uc.observe(result)
			return result
		}
	}

	validation := run.validation
	cls := run.cls
	result := domain.PipelineResult{
		Success:        true,
		SourceFile:     src.Filename,
		Classification: &cls,
		Document:       run.doc,
		Validation:     &validation,
		Inferences:     run.signals,
		RuleFailures:   run.failures,
		Counters:       run.counters,
		StageTimings:   run.timings,
		Duration:       time.Since(started),
	}
	uc.logger.Info("pipeline_completed",
		"source_file", src.Filename,
		"document_type", run.doc.Metadata.DocumentType,
		"confidence", cls.Confidence,
		"overall_score", validation.OverallScore,
		"ready_for_processing", validation.ReadyForProcessing,
		"requires_manual_review", result.NeedsReview(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	uc.observe(result)
	return result
}

// ProcessBatch runs sources concurrently; results keep the input order. A
// cancelled context stops sources that have not started yet.
func (uc *PipelineUseCase) ProcessBatch(ctx context.Context, sources []domain.DocumentTextSource) ([]domain.PipelineResult, error) {
	results := make([]domain.PipelineResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.batchLimit)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = uc.Process(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("process batch: %w", err)
	}
	return results, nil
}

func (run *pipelineRun) stage(stage domain.Stage, fn func(*pipelineRun) error) (err error) {
	started := time.Now()
	defer func() {
		run.timings[stage] = time.Since(started)
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(run)
}

func (uc *PipelineUseCase) classify(run *pipelineRun) error {
	run.cls = uc.classifier.Classify(run.text, run.src.UserHint, run.src.Filename)
	run.counters.ClassificationSignals = run.cls.MatchedSignals()
	return nil
}

func (uc *PipelineUseCase) mapFields(run *pipelineRun) error {
	doc, err := uc.mapper.Map(run.text, &run.cls, run.src.Filename)
	if err != nil {
		return fmt.Errorf("map fields: %w", err)
	}
	if doc == nil {
		return errors.New("map fields: mapper returned no document")
	}
	run.doc = doc
	run.counters.FieldsMapped = len(mapping.PresentFields(doc))
	return nil
}

func (uc *PipelineUseCase) infer(run *pipelineRun) error {
	signals, failures, err := uc.inferencer.Infer(run.doc, run.text)
	if err != nil {
		return fmt.Errorf("infer fields: %w", err)
	}
	run.signals = signals
	run.failures = failures
	run.counters.InferencesMade = len(signals)
	run.counters.RuleFailures = len(failures)
	return nil
}

func (uc *PipelineUseCase) validate(run *pipelineRun) error {
	validation, err := uc.validator.Validate(run.doc)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	run.validation = validation
	run.counters.PartiesFound = countParties(run.doc)
	run.counters.LineItems = len(run.doc.LineItems)
	return nil
}

func (uc *PipelineUseCase) observe(result domain.PipelineResult) {
	if uc.observer != nil {
		uc.observer.ObservePipeline(result)
	}
}

// isNilObserver also catches a nil pointer stored in the interface.
func isNilObserver(observer ports.PipelineObserver) bool {
	if observer == nil {
		return true
	}
	v := reflect.ValueOf(observer)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func countParties(doc *domain.CanonicalDocument) int {
	n := 0
	for _, p := range doc.Parties {
		if p != nil && p.Name != "" {
			n++
		}
	}
	return n
}

// composeText appends pre-extracted tables as pipe-delimited rows so the
// mapper's table path sees them.
func composeText(src domain.DocumentTextSource) string {
	if len(src.Tables) == 0 {
		return src.Text
	}
	var b strings.Builder
	b.WriteString(src.Text)
	for _, row := range src.Tables {
		cells := make([]string, 0, len(row))
		nonEmpty := false
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				nonEmpty = true
			}
			cells = append(cells, cell)
		}
		if !nonEmpty {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}
