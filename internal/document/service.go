// Package document manages knowledge-source records and their blobs. The
// relational record is authoritative; blob cleanup is compensating and
// best-effort, never transactional with the record.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/models"
	"github.com/chatflow/chatflow/internal/queue"
	"github.com/chatflow/chatflow/internal/storage"
)

const notFoundMsg = "Document not found or you do not have permission to access it."

const columns = `id, chatbot_id, user_id, source_type, source_name,
	COALESCE(storage_path, ''), status, created_at`

// Enqueuer hands a freshly created document to the ingestion worker.
type Enqueuer interface {
	EnqueueDocumentIngest(payload queue.DocumentIngestPayload) error
}

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Service struct {
	db      DB
	storage storage.Storage
	bucket  string
	queue   Enqueuer
}

// NewService builds the document service. queue may be nil (worker-side
// construction); ingestion is then simply not scheduled.
func NewService(db DB, store storage.Storage, bucket string, q Enqueuer) *Service {
	return &Service{db: db, storage: store, bucket: bucket, queue: q}
}

// ListForChatbot returns a chatbot's documents. Callers must have passed
// the chatbot ownership guard already; the owner predicate here is
// defense-in-depth, not the primary check.
func (s *Service) ListForChatbot(ctx context.Context, chatbotID, owner uuid.UUID) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+columns+` FROM documents
		 WHERE chatbot_id = $1 AND user_id = $2 ORDER BY created_at DESC`,
		chatbotID, owner,
	)
	if err != nil {
		return nil, apierr.Store("Could not list documents.", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.ChatbotID, &d.UserID, &d.SourceType,
			&d.SourceName, &d.StoragePath, &d.Status, &d.CreatedAt); err != nil {
			return nil, apierr.Store("Could not list documents.", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Store("Could not list documents.", err)
	}
	return docs, nil
}

type CreateFileRequest struct {
	ChatbotID   uuid.UUID
	FileName    string
	ContentType string
	Data        []byte
}

// CreateFromFile uploads the blob, then inserts the record. If the insert
// fails after a successful upload, the blob is removed again so it does not
// orphan; that compensation is attempted once and not retried.
func (s *Service) CreateFromFile(ctx context.Context, owner uuid.UUID, req CreateFileRequest) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(req.FileName))
	path := fmt.Sprintf("%s/%s/%s%s", owner, req.ChatbotID, uuid.New(), ext)

	if err := s.storage.Upload(ctx, s.bucket, path, bytes.NewReader(req.Data), req.ContentType); err != nil {
		return nil, apierr.Store("Failed to upload file to storage.", err)
	}

	doc, err := s.insert(ctx, owner, req.ChatbotID, models.SourceTypeFile, req.FileName, path)
	if err != nil {
		if rmErr := s.storage.Delete(ctx, s.bucket, path); rmErr != nil {
			slog.Warn("compensating blob removal failed", "path", path, "error", rmErr)
		}
		return nil, err
	}

	s.scheduleIngest(doc)
	return doc, nil
}

func (s *Service) CreateFromURL(ctx context.Context, owner, chatbotID uuid.UUID, sourceURL string) (*models.Document, error) {
	doc, err := s.insert(ctx, owner, chatbotID, models.SourceTypeURL, sourceURL, "")
	if err != nil {
		return nil, err
	}
	s.scheduleIngest(doc)
	return doc, nil
}

func (s *Service) insert(ctx context.Context, owner, chatbotID uuid.UUID, sourceType, sourceName, storagePath string) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (chatbot_id, user_id, source_type, source_name, storage_path, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+columns,
		chatbotID, owner, sourceType, sourceName, storagePath, models.DocStatusProcessing,
	).Scan(&d.ID, &d.ChatbotID, &d.UserID, &d.SourceType, &d.SourceName,
		&d.StoragePath, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, apierr.Store("Failed to create document record in database.", err)
	}
	return &d, nil
}

// Delete removes the record and, for file sources, the blob. The owner
// filter is part of the lookup itself, so someone else's document reads as
// missing. The blob removal is best-effort: a storage failure is logged
// and does not block the delete.
func (s *Service) Delete(ctx context.Context, id, owner uuid.UUID) error {
	var storagePath string
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(storage_path, '') FROM documents WHERE id = $1 AND user_id = $2`,
		id, owner,
	).Scan(&storagePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.NotFound(notFoundMsg)
	}
	if err != nil {
		return apierr.Store("Failed to delete document record.", err)
	}

	if storagePath != "" {
		if err := s.storage.Delete(ctx, s.bucket, storagePath); err != nil {
			slog.Warn("could not delete file from storage", "path", storagePath, "error", err)
		}
	}

	ct, err := s.db.Exec(ctx,
		"DELETE FROM documents WHERE id = $1 AND user_id = $2", id, owner,
	)
	if err != nil {
		return apierr.Store("Failed to delete document record.", err)
	}
	if ct.RowsAffected() == 0 {
		// Deleted concurrently between lookup and delete.
		return apierr.NotFound(notFoundMsg)
	}
	return nil
}

// RemoveBlobsForChatbot clears the blobs of a chatbot's file documents
// ahead of a chatbot delete (the records themselves cascade at the store).
// Individual blob failures are logged and skipped.
func (s *Service) RemoveBlobsForChatbot(ctx context.Context, chatbotID, owner uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT storage_path FROM documents
		 WHERE chatbot_id = $1 AND user_id = $2 AND storage_path IS NOT NULL AND storage_path <> ''`,
		chatbotID, owner,
	)
	if err != nil {
		return fmt.Errorf("list storage paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("scan storage path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list storage paths: %w", err)
	}

	for _, p := range paths {
		if err := s.storage.Delete(ctx, s.bucket, p); err != nil {
			slog.Warn("could not delete file from storage", "path", p, "error", err)
		}
	}
	return nil
}

// GetByID is worker-side: tasks carry only the document id, ownership was
// verified when the task was enqueued.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRow(ctx,
		`SELECT `+columns+` FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.ChatbotID, &d.UserID, &d.SourceType, &d.SourceName,
		&d.StoragePath, &d.Status, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierr.NotFound(notFoundMsg)
	}
	if err != nil {
		return nil, apierr.Store("Could not fetch document.", err)
	}
	return &d, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.Exec(ctx, "UPDATE documents SET status = $1 WHERE id = $2", status, id)
	return err
}

func (s *Service) scheduleIngest(doc *models.Document) {
	if s.queue == nil {
		return
	}
	err := s.queue.EnqueueDocumentIngest(queue.DocumentIngestPayload{DocumentID: doc.ID.String()})
	if err != nil {
		// The record exists and can be reprocessed later; creation still
		// succeeds.
		slog.Warn("failed to enqueue document ingestion", "document_id", doc.ID, "error", err)
	}
}
