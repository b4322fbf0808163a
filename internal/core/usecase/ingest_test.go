package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

type ingestRepoFake struct {
	created      *domain.Document
	err          error
	statusCalls  []domain.DocumentStatus
	statusErrMsg string
	updateErr    error
}

func (f *ingestRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *ingestRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, status)
	f.statusErrMsg = errMessage
	return f.updateErr
}
func (f *ingestRepoFake) SaveOutcome(context.Context, string, domain.DocumentStatus, domain.ProcessingOutcome) error {
	return errors.New("not implemented")
}

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type ingestQueueFake struct {
	event domain.IngestedEvent
	err   error
}

func (f *ingestQueueFake) PublishDocumentIngested(_ context.Context, event domain.IngestedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.event = event
	return nil
}

func (f *ingestQueueFake) SubscribeDocumentIngested(context.Context, func(context.Context, domain.IngestedEvent) error) error {
	return errors.New("not implemented")
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "rfq 17.txt", "text/plain", " rfq ", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if repo.created == nil || repo.created.UserHint != "rfq" {
		t.Fatalf("expected repo.Create call with trimmed hint, got %+v", repo.created)
	}
	if queue.event.DocumentID != doc.ID || queue.event.UserHint != "rfq" {
		t.Fatalf("unexpected event %+v", queue.event)
	}
	if !strings.Contains(storage.savedKey, "_rfq_17.txt") {
		t.Fatalf("expected sanitized key suffix, got %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestIngestUploadStorageError(t *testing.T) {
	repo := &ingestRepoFake{}
	uc := NewIngestDocumentUseCase(repo, &ingestStorageFake{err: errors.New("disk full")}, &ingestQueueFake{})

	_, err := uc.Upload(context.Background(), "po.pdf", "application/pdf", "", bytes.NewBufferString("x"))
	if err == nil || !strings.Contains(err.Error(), "save to object storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
	if repo.created != nil {
		t.Fatalf("record must not be created when storage fails")
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{err: errors.New("queue down")}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	_, err := uc.Upload(context.Background(), "report.txt", "text/plain", "", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(repo.statusCalls) != 1 || repo.statusCalls[0] != domain.StatusFailed {
		t.Fatalf("expected record to be marked failed, got %v", repo.statusCalls)
	}
	if !strings.Contains(repo.statusErrMsg, "queue down") {
		t.Fatalf("expected stored error message, got %q", repo.statusErrMsg)
	}
}

func TestIngestUploadQueueAndMarkFailedError(t *testing.T) {
	repo := &ingestRepoFake{updateErr: errors.New("db down")}
	uc := NewIngestDocumentUseCase(repo, &ingestStorageFake{}, &ingestQueueFake{err: errors.New("queue down")})

	_, err := uc.Upload(context.Background(), "report.txt", "text/plain", "", bytes.NewBufferString("hello"))
	if err == nil || err.Error() != "publish ingestion event: queue down; mark failed status: db down" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestIngestUploadRejectsLongHint(t *testing.T) {
	storage := &ingestStorageFake{}
	uc := NewIngestDocumentUseCase(&ingestRepoFake{}, storage, &ingestQueueFake{})

	_, err := uc.Upload(context.Background(), "a.txt", "text/plain", strings.Repeat("x", 65), bytes.NewBufferString("hello"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if storage.savedKey != "" {
		t.Fatalf("nothing must be stored for a rejected upload")
	}
}

func TestDetectMimeType(t *testing.T) {
	cases := []struct {
		filename, mimeType, want string
	}{
		{"po.pdf", "", "application/pdf"},
		{"po.pdf", "application/octet-stream", "application/pdf"},
		{"notes.txt", "text/markdown", "text/markdown"},
		{"blob", "", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := detectMimeType(tc.filename, tc.mimeType); got != tc.want {
			t.Fatalf("detectMimeType(%q, %q) = %q, want %q", tc.filename, tc.mimeType, got, tc.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../etc/passwd":  "passwd",
		"Quote (v2).pdf": "Quote__v2_.pdf",
		"":               "document.bin",
		"صورة.png":       "____.png",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
