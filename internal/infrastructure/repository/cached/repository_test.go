package cached

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

type repoFake struct {
	docs    map[string]domain.Document
	gets    int
	saveErr error
}

func newRepoFake() *repoFake {
	return &repoFake{docs: map[string]domain.Document{}}
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.docs[doc.ID] = *doc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.gets++
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return &doc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	doc := f.docs[id]
	doc.Status = status
	doc.Error = errMessage
	f.docs[id] = doc
	return nil
}

func (f *repoFake) SaveOutcome(_ context.Context, id string, status domain.DocumentStatus, outcome domain.ProcessingOutcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	doc := f.docs[id]
	doc.Status = status
	doc.DocumentType = outcome.DocumentType
	f.docs[id] = doc
	return nil
}

func TestGetByIDServesFromCache(t *testing.T) {
	backing := newRepoFake()
	repo, err := New(backing, 8)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := repo.Create(ctx, &domain.Document{ID: "doc-1", Status: domain.StatusUploaded}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		doc, err := repo.GetByID(ctx, "doc-1")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		doc.Status = domain.StatusFailed
	}
	if backing.gets != 0 {
		t.Fatalf("expected cache hits only, got %d backing reads", backing.gets)
	}
	doc, _ := repo.GetByID(ctx, "doc-1")
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("callers must not mutate the cached copy, got %s", doc.Status)
	}
}

func TestWritesEvict(t *testing.T) {
	backing := newRepoFake()
	repo, err := New(backing, 8)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	_ = repo.Create(ctx, &domain.Document{ID: "doc-1", Status: domain.StatusUploaded})

	if err := repo.UpdateStatus(ctx, "doc-1", domain.StatusProcessing, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	doc, err := repo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusProcessing || backing.gets != 1 {
		t.Fatalf("expected fresh read after write, got %s after %d reads", doc.Status, backing.gets)
	}

	backing.saveErr = errors.New("db down")
	if err := repo.SaveOutcome(ctx, "doc-1", domain.StatusReady, domain.ProcessingOutcome{}); err == nil {
		t.Fatalf("expected save error")
	}
	if repo.Len() != 0 {
		t.Fatalf("failed write must still evict, cache len %d", repo.Len())
	}
}

func TestGetByIDPropagatesNotFound(t *testing.T) {
	repo, err := New(newRepoFake(), 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if repo.Len() != 0 {
		t.Fatalf("misses must not be cached")
	}
}
