package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/resilience"
)

type DocumentRepository struct {
	db       *sql.DB
	executor *resilience.Executor
	now      func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: time.Now}
}

// NewDocumentRepositoryWithExecutor routes writes through the executor's
// retry and circuit-breaker policy.
func NewDocumentRepositoryWithExecutor(db *sql.DB, executor *resilience.Executor) *DocumentRepository {
	repo := NewDocumentRepository(db)
	repo.executor = executor
	return repo
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	user_hint TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	ready_for_processing BOOLEAN NOT NULL DEFAULT FALSE,
	requires_manual_review BOOLEAN NOT NULL DEFAULT FALSE,
	summary JSONB,
	result JSONB,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_document_type ON documents(document_type);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Operation names reported to the resilience executor.
const (
	OperationCreate       = "postgres.documents.create"
	OperationUpdateStatus = "postgres.documents.update_status"
	OperationSaveOutcome  = "postgres.documents.save_outcome"
)

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.exec(ctx, OperationCreate, `
INSERT INTO documents (
	id, filename, mime_type, storage_path, user_hint, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, doc.UserHint,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, user_hint, document_type, confidence, overall_score,
	ready_for_processing, requires_manual_review, summary, status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var docType, status string
	var summary []byte

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.UserHint, &docType,
		&doc.Confidence, &doc.OverallScore, &doc.ReadyForProcessing, &doc.RequiresManualReview,
		&summary, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.DocumentType = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	if len(summary) > 0 {
		doc.Summary = summary
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.exec(ctx, OperationUpdateStatus, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return ensureAffected(res, "update document status", id)
}

func (r *DocumentRepository) SaveOutcome(ctx context.Context, id string, status domain.DocumentStatus, outcome domain.ProcessingOutcome) error {
	res, err := r.exec(ctx, OperationSaveOutcome, `
UPDATE documents
SET document_type = $2, confidence = $3, overall_score = $4, ready_for_processing = $5,
	requires_manual_review = $6, summary = $7, result = $8, status = $9, error_message = $10, updated_at = $11
WHERE id = $1
`,
		id, string(outcome.DocumentType), outcome.Confidence, outcome.OverallScore,
		outcome.ReadyForProcessing, outcome.RequiresManualReview,
		nullableJSON(outcome.Summary), nullableJSON(outcome.Result),
		string(status), "", r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return ensureAffected(res, "save outcome", id)
}

func (r *DocumentRepository) exec(ctx context.Context, operation, query string, args ...any) (sql.Result, error) {
	if r.executor == nil {
		return r.db.ExecContext(ctx, query, args...)
	}
	var res sql.Result
	err := r.executor.Execute(ctx, operation, func(ctx context.Context) error {
		var execErr error
		res, execErr = r.db.ExecContext(ctx, query, args...)
		return execErr
	}, classifyPostgresError)
	if err != nil {
		return nil, resilience.WrapTemporary(operation, err, classifyPostgresError)
	}
	return res, nil
}

func ensureAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
