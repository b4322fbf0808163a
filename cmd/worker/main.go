package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/procurement-intake/internal/bootstrap"
	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/observability/logging"
	"github.com/kirillkom/procurement-intake/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: workerMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := time.Duration(cfg.WorkerProcessTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "process_timeout", timeout.String())
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, event domain.IngestedEvent) error {
		if doc, err := app.Repo.GetByID(handlerCtx, event.DocumentID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
		}

		start := time.Now()
		workerMetrics.StartDocument()
		processCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		err := app.ProcessUC.ProcessByID(processCtx, event.DocumentID)
		workerMetrics.FinishDocument(serviceName, time.Since(start), err)
		if err != nil {
			return err
		}
		logger.Info("document_processed",
			"document_id", event.DocumentID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func startMetricsServer(port string, workerMetrics *metrics.WorkerMetrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	return server
}
