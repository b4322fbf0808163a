// Package cached puts a bounded LRU in front of document reads. Every write
// goes to the backing repository first and then evicts the cached copy.
package cached

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
)

const DefaultSize = 1024

type Repository struct {
	next  ports.DocumentRepository
	cache *lru.Cache[string, domain.Document]
}

func New(next ports.DocumentRepository, size int) (*Repository, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, domain.Document](size)
	if err != nil {
		return nil, fmt.Errorf("init document cache: %w", err)
	}
	return &Repository{next: next, cache: cache}, nil
}

func (r *Repository) Create(ctx context.Context, doc *domain.Document) error {
	if err := r.next.Create(ctx, doc); err != nil {
		return err
	}
	r.cache.Add(doc.ID, cloneDocument(*doc))
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if doc, ok := r.cache.Get(id); ok {
		out := cloneDocument(doc)
		return &out, nil
	}
	doc, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, cloneDocument(*doc))
	return doc, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	defer r.cache.Remove(id)
	return r.next.UpdateStatus(ctx, id, status, errMessage)
}

func (r *Repository) SaveOutcome(ctx context.Context, id string, status domain.DocumentStatus, outcome domain.ProcessingOutcome) error {
	defer r.cache.Remove(id)
	return r.next.SaveOutcome(ctx, id, status, outcome)
}

// Len reports the number of cached documents.
func (r *Repository) Len() int { return r.cache.Len() }

func cloneDocument(doc domain.Document) domain.Document {
	if doc.Summary != nil {
		doc.Summary = append([]byte(nil), doc.Summary...)
	}
	return doc
}
