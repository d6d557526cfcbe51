package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/document"
	"github.com/chatflow/chatflow/internal/models"
	"github.com/chatflow/chatflow/internal/queue"
	"github.com/chatflow/chatflow/internal/storage"
	"github.com/chatflow/chatflow/pkg/textextract"
)

// IngestWorker fetches a document's source (blob or URL), extracts its
// text, and settles the record's status. Authorization happened at enqueue
// time; tasks carry only the document id.
type IngestWorker struct {
	docs       *document.Service
	storage    storage.Storage
	bucket     string
	httpClient *http.Client
}

func NewIngestWorker(docs *document.Service, store storage.Storage, bucket string) *IngestWorker {
	return &IngestWorker{
		docs:       docs,
		storage:    store,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	doc, err := w.docs.GetByID(ctx, docID)
	if apierr.IsKind(err, apierr.KindNotFound) {
		// Deleted before the worker got to it; nothing to do.
		slog.Info("document gone before ingestion", "document_id", docID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	slog.Info("ingesting document", "document_id", docID, "source_type", doc.SourceType)

	data, err := w.fetchSource(ctx, doc)
	if err != nil {
		w.settle(ctx, docID, models.DocStatusFailed)
		return fmt.Errorf("fetch source: %w", err)
	}

	if doc.SourceType == models.SourceTypeFile {
		ext := strings.ToLower(filepath.Ext(doc.SourceName))
		extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), ext)
		switch {
		case err != nil && strings.Contains(err.Error(), "unsupported file type"):
			slog.Info("no text extraction for file type", "document_id", docID, "ext", ext)
		case err != nil:
			w.settle(ctx, docID, models.DocStatusFailed)
			return fmt.Errorf("extract text: %w", err)
		default:
			slog.Info("extracted document text",
				"document_id", docID, "pages", extracted.Pages, "chars", len(extracted.Content))
		}
	}

	w.settle(ctx, docID, models.DocStatusCompleted)
	slog.Info("document ingested", "document_id", docID, "bytes", len(data))
	return nil
}

func (w *IngestWorker) fetchSource(ctx context.Context, doc *models.Document) ([]byte, error) {
	switch doc.SourceType {
	case models.SourceTypeFile:
		rc, err := w.storage.Download(ctx, w.bucket, doc.StoragePath)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	case models.SourceTypeURL:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.SourceName, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := w.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch url: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("fetch url: status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	default:
		return nil, fmt.Errorf("unknown source type: %s", doc.SourceType)
	}
}

func (w *IngestWorker) settle(ctx context.Context, id uuid.UUID, status string) {
	if err := w.docs.UpdateStatus(ctx, id, status); err != nil {
		slog.Error("failed to update document status", "document_id", id, "status", status, "error", err)
	}
}
