package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
	"github.com/kirillkom/procurement-intake/internal/observability/metrics"
)

const (
	serviceName     = "api"
	multipartMemory = 8 << 20
)

type Router struct {
	ingest   ports.DocumentIngestor
	pipeline ports.BatchPipeline
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics

	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	pipeline ports.BatchPipeline,
	docs ports.DocumentReader,
) *Router {
	return &Router{
		ingest:           ingest,
		pipeline:         pipeline,
		docs:             docs,
		maxUploadBytes:   cfg.APIMaxUploadBytes,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/pipeline/process", rt.processDocument)
	api.HandleFunc("POST /v1/pipeline/batch", rt.processBatch)
	api.HandleFunc("POST /v1/documents", rt.uploadDocument)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)

	var onReject func(string)
	if rt.metrics != nil {
		onReject = func(reason string) { rt.metrics.RecordRejected(serviceName, reason) }
	}
	var limited http.Handler = api
	limited = backpressureMiddlewareWithReject(limited, rt.maxInFlight, rt.backpressureWait, onReject)
	limited = rateLimitMiddleware(limited, rt.rateLimitRPS, rt.rateLimitBurst, onReject)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("/v1/", limited)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type processRequest struct {
	Text     string     `json:"text" validate:"required_without=Tables"`
	Tables   [][]string `json:"tables,omitempty"`
	Filename string     `json:"filename,omitempty" validate:"max=512"`
	UserHint string     `json:"user_hint,omitempty" validate:"max=64"`
}

func (p processRequest) source() domain.DocumentTextSource {
	return domain.DocumentTextSource{
		Text:     p.Text,
		Tables:   p.Tables,
		Filename: strings.TrimSpace(p.Filename),
		UserHint: strings.TrimSpace(p.UserHint),
	}
}

type batchRequest struct {
	Documents []processRequest `json:"documents" validate:"required,min=1,max=50,dive"`
}

type processResponse struct {
	Summary        domain.Summary               `json:"summary"`
	Classification *domain.ClassificationResult `json:"classification,omitempty"`
	Document       *domain.CanonicalDocument    `json:"document,omitempty"`
	Validation     *domain.ValidationResult     `json:"validation,omitempty"`
	Inferences     []domain.InferenceSignal     `json:"inference_signals,omitempty"`
	Error          string                       `json:"error,omitempty"`
	FailedStage    domain.Stage                 `json:"failed_stage,omitempty"`
}

func newProcessResponse(result domain.PipelineResult) processResponse {
	if !result.Success {
		return processResponse{
			Summary:     result.Summary(),
			Error:       result.Error,
			FailedStage: result.FailedStage,
		}
	}
	return processResponse{
		Summary:        result.Summary(),
		Classification: result.Classification,
		Document:       result.Document,
		Validation:     result.Validation,
		Inferences:     result.Inferences,
	}
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[processRequest](w, r, rt.maxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := rt.pipeline.Process(req.source())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, newProcessResponse(result))
}

func (rt *Router) processBatch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[batchRequest](w, r, rt.maxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sources := make([]domain.DocumentTextSource, 0, len(req.Documents))
	for _, doc := range req.Documents {
		sources = append(sources, doc.source())
	}
	results, err := rt.pipeline.ProcessBatch(r.Context(), sources)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summaries := make([]domain.Summary, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, result.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": summaries})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("user_hint"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, fileHeader.Size)
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
