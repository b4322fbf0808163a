package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/classify"
	"github.com/kirillkom/procurement-intake/internal/core/inference"
	"github.com/kirillkom/procurement-intake/internal/core/mapping"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
	"github.com/kirillkom/procurement-intake/internal/core/usecase"
	"github.com/kirillkom/procurement-intake/internal/core/validation"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/contract"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/repository/cached"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/storage/s3"
	"github.com/kirillkom/procurement-intake/internal/observability/logging"
	"github.com/kirillkom/procurement-intake/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives pipeline and resilience collectors. Nil disables them.
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	Pipeline  *usecase.PipelineUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var pipelineMetrics *metrics.PipelineMetrics
	if opts.Registerer != nil {
		pipelineMetrics = metrics.NewPipelineMetrics(opts.Registerer, opts.Service)
	}

	executor := resilience.NewExecutor(ResilienceConfig(cfg)).WithLogger(logging.Component(logger, "resilience"))
	if pipelineMetrics != nil {
		executor = executor.WithObserver(pipelineMetrics)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pgRepo := postgres.NewDocumentRepositoryWithExecutor(db, executor)
	if err := pgRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo, err := cached.New(pgRepo, cfg.ReaderCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init document cache: %w", err)
	}

	storage, err := newObjectStorage(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logging.Component(logger, "queue"),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var observer ports.PipelineObserver
	if pipelineMetrics != nil {
		observer = pipelineMetrics
	}
	pipeline, err := NewPipeline(cfg, logger, observer)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	checker, err := contract.NewChecker()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init summary contract: %w", err)
	}

	textExtractor := extractor.New(storage, cfg.APIMaxUploadBytes)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, textExtractor, pipeline, checker)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Pipeline:  pipeline,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewPipeline assembles classify, map, infer and validate without any
// infrastructure. The local CLI uses it directly.
func NewPipeline(cfg config.Config, logger *slog.Logger, observer ports.PipelineObserver) (*usecase.PipelineUseCase, error) {
	logger = logging.Component(logger, "pipeline")
	registry, err := loadClassifierRegistry(cfg.ClassifierSignalsFile)
	if err != nil {
		return nil, err
	}

	classifier := classify.NewClassifier(registry)
	mapper := mapping.NewMapper(classifier)
	inferencer := inference.NewInferencer(inference.Options{
		DefaultCurrency: cfg.InferenceDefaultCurrency,
		Logger:          logger,
	})
	validator := validation.NewValidator()

	return usecase.NewPipelineUseCase(
		classifier,
		mapper,
		inferencer,
		validator,
		observer,
		logger,
		cfg.PipelineBatchConcurrency,
	), nil
}

func loadClassifierRegistry(path string) (*classify.Registry, error) {
	if path == "" {
		return classify.DefaultRegistry(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open classifier signals file: %w", err)
	}
	defer f.Close()

	registry, err := classify.LoadRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("load classifier signals %s: %w", path, err)
	}
	return registry, nil
}

func newObjectStorage(cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return localfs.New(cfg.StoragePath)
	case "s3":
		return s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:     cfg.ResilienceRetryMultiplier,
		SingleAttempt:       []string{postgres.OperationCreate},

		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.ResilienceBreakerOpenTimeoutMS) * time.Millisecond,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenCalls, 0)),
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
