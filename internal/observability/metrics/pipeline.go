package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

// PipelineMetrics records finished pipeline runs. It satisfies
// ports.PipelineObserver and resilience.Observer.
type PipelineMetrics struct {
	service string

	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stageDuration      *prometheus.HistogramVec
	stageFailuresTotal *prometheus.CounterVec
	ruleFailuresTotal  *prometheus.CounterVec
	overallScore       *prometheus.HistogramVec
	confidence         *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func NewPipelineMetrics(registerer prometheus.Registerer, service string) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Finished pipeline runs by document type and verdict.",
			},
			[]string{"service", "document_type", "verdict"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a full pipeline run.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"service"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline stage.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
			},
			[]string{"service", "stage"},
		),
		stageFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Pipeline runs aborted by a stage error.",
			},
			[]string{"service", "stage"},
		),
		ruleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inference",
				Name:      "rule_failures_total",
				Help:      "Inference rules that errored while the run continued.",
			},
			[]string{"service", "rule"},
		),
		overallScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "overall_score",
				Help:      "Distribution of overall validation scores.",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"service", "document_type"},
		),
		confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "confidence",
				Help:      "Distribution of classification confidence.",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"service", "method"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "retries_total",
				Help:      "Retried calls to external dependencies by operation.",
			},
			[]string{"service", "operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "breaker_state",
				Help:      "Circuit breaker state by operation: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"service", "operation"},
		),
	}

	registerer.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.stageDuration,
		m.stageFailuresTotal,
		m.ruleFailuresTotal,
		m.overallScore,
		m.confidence,
		m.retriesTotal,
		m.breakerState,
	)
	return m
}

func (m *PipelineMetrics) ObservePipeline(result domain.PipelineResult) {
	m.runDuration.WithLabelValues(m.service).Observe(result.Duration.Seconds())
	for stage, d := range result.StageTimings {
		m.stageDuration.WithLabelValues(m.service, string(stage)).Observe(d.Seconds())
	}
	for _, failure := range result.RuleFailures {
		m.ruleFailuresTotal.WithLabelValues(m.service, failure.RuleName).Inc()
	}

	if !result.Success {
		m.stageFailuresTotal.WithLabelValues(m.service, string(result.FailedStage)).Inc()
		m.runsTotal.WithLabelValues(m.service, string(domain.DocumentTypeUnknown), "failed").Inc()
		return
	}

	docType := string(domain.DocumentTypeUnknown)
	if result.Document != nil {
		docType = string(result.Document.Metadata.DocumentType)
	}
	if result.Classification != nil {
		m.confidence.WithLabelValues(m.service, string(result.Classification.Method)).Observe(result.Classification.Confidence)
	}
	if result.Validation != nil {
		m.overallScore.WithLabelValues(m.service, docType).Observe(result.Validation.OverallScore)
	}

	verdict := "ready"
	if result.NeedsReview() {
		verdict = "review"
	}
	m.runsTotal.WithLabelValues(m.service, docType, verdict).Inc()
}

func (m *PipelineMetrics) ObserveRetry(operation string, _ int) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch strings.ToLower(state) {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
