package usecase

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

const maxUserHintLength = 64

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType, userHint string,
	body io.Reader,
) (*domain.Document, error) {
	userHint = strings.TrimSpace(userHint)
	if len(userHint) > maxUserHintLength {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("user hint exceeds %d characters", maxUserHintLength))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    detectMimeType(filename, mimeType),
		StoragePath: storageKey,
		UserHint:    userHint,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.publish(ctx, doc); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, err.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	return doc, nil
}

func (uc *IngestDocumentUseCase) publish(ctx context.Context, doc *domain.Document) error {
	event := domain.IngestedEvent{DocumentID: doc.ID, UserHint: doc.UserHint}
	if err := uc.queue.PublishDocumentIngested(ctx, event); err != nil {
		return fmt.Errorf("publish ingestion event: %w", err)
	}
	return nil
}

// detectMimeType keeps a client-supplied type unless it is missing or the
// generic octet-stream, in which case the extension decides.
func detectMimeType(filename, mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
