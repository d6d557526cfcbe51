package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/models"
	"github.com/chatflow/chatflow/internal/queue"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	lastSQL  string
	lastArgs []any

	row     fakeRow
	execTag pgconn.CommandTag
	execErr error
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.lastSQL = sql
	db.lastArgs = args
	return db.row
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.lastSQL = sql
	db.lastArgs = args
	return nil, errors.New("unexpected Query call")
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.lastSQL = sql
	db.lastArgs = args
	return db.execTag, db.execErr
}

type fakeStorage struct {
	uploads   []string
	deletes   []string
	uploadErr error
	deleteErr error
}

func (s *fakeStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploads = append(s.uploads, path)
	return nil
}

func (s *fakeStorage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (s *fakeStorage) Delete(ctx context.Context, bucket, path string) error {
	s.deletes = append(s.deletes, path)
	return s.deleteErr
}

type fakeEnqueuer struct {
	payloads []queue.DocumentIngestPayload
}

func (f *fakeEnqueuer) EnqueueDocumentIngest(p queue.DocumentIngestPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func insertFailure(dest ...any) error { return errors.New("insert failed") }

func TestCreateFromFileRemovesBlobOnFailedInsert(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: insertFailure}}
	store := &fakeStorage{}
	svc := NewService(db, store, "documents-storage", nil)
	owner, botID := uuid.New(), uuid.New()

	_, err := svc.CreateFromFile(context.Background(), owner, CreateFileRequest{
		ChatbotID: botID,
		FileName:  "faq.pdf",
		Data:      []byte("%PDF"),
	})

	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindStore))

	// The blob went up before the record insert; the failed insert must
	// take it back down so it does not orphan.
	require.Len(t, store.uploads, 1)
	assert.Equal(t, store.uploads, store.deletes)
}

func TestCreateFromFileUploadFailureSkipsInsert(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: insertFailure}}
	store := &fakeStorage{uploadErr: errors.New("storage down")}
	svc := NewService(db, store, "documents-storage", nil)

	_, err := svc.CreateFromFile(context.Background(), uuid.New(), CreateFileRequest{
		ChatbotID: uuid.New(),
		FileName:  "faq.pdf",
		Data:      []byte("%PDF"),
	})

	require.Error(t, err)
	assert.Equal(t, "Failed to upload file to storage.", apierr.ClientMessage(err))
	assert.Empty(t, db.lastSQL, "no record insert after a failed upload")
	assert.Empty(t, store.deletes)
}

func TestCreateFromFilePathLayout(t *testing.T) {
	owner, botID := uuid.New(), uuid.New()
	db := &fakeDB{row: fakeRow{scan: insertFailure}}
	store := &fakeStorage{}
	svc := NewService(db, store, "documents-storage", nil)

	_, _ = svc.CreateFromFile(context.Background(), owner, CreateFileRequest{
		ChatbotID: botID,
		FileName:  "Guide.PDF",
		Data:      []byte("%PDF"),
	})

	require.Len(t, store.uploads, 1)
	path := store.uploads[0]
	assert.True(t, strings.HasPrefix(path, owner.String()+"/"+botID.String()+"/"), path)
	assert.True(t, strings.HasSuffix(path, ".pdf"), path)
}

func TestCreateFromURLSchedulesIngest(t *testing.T) {
	docID := uuid.New()
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		require.Len(t, dest, 8)
		*dest[0].(*uuid.UUID) = docID
		*dest[3].(*string) = models.SourceTypeURL
		*dest[4].(*string) = "https://example.com/docs"
		*dest[6].(*string) = models.DocStatusProcessing
		return nil
	}}}
	q := &fakeEnqueuer{}
	svc := NewService(db, &fakeStorage{}, "documents-storage", q)
	owner, botID := uuid.New(), uuid.New()

	doc, err := svc.CreateFromURL(context.Background(), owner, botID, "https://example.com/docs")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, doc.Status)

	require.Len(t, q.payloads, 1)
	assert.Equal(t, docID.String(), q.payloads[0].DocumentID)

	// Owner and chatbot ids are bound into the insert itself.
	require.GreaterOrEqual(t, len(db.lastArgs), 2)
	assert.Equal(t, botID, db.lastArgs[0])
	assert.Equal(t, owner, db.lastArgs[1])
}

func TestDeleteForeignDocumentReadsAsNotFound(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}}
	store := &fakeStorage{}
	svc := NewService(db, store, "documents-storage", nil)
	id, owner := uuid.New(), uuid.New()

	err := svc.Delete(context.Background(), id, owner)

	assert.True(t, apierr.IsKind(err, apierr.KindNotFound))
	assert.Equal(t, "Document not found or you do not have permission to access it.", apierr.ClientMessage(err))
	assert.Contains(t, db.lastSQL, "WHERE id = $1 AND user_id = $2")
	assert.Equal(t, []any{id, owner}, db.lastArgs)
	assert.Empty(t, store.deletes, "no blob access for a document the owner filter hides")
}

func TestDeleteBlobFailureDoesNotBlockRecordDelete(t *testing.T) {
	db := &fakeDB{
		row: fakeRow{scan: func(dest ...any) error {
			*dest[0].(*string) = "u/b/doc.pdf"
			return nil
		}},
		execTag: pgconn.NewCommandTag("DELETE 1"),
	}
	store := &fakeStorage{deleteErr: errors.New("storage down")}
	svc := NewService(db, store, "documents-storage", nil)

	err := svc.Delete(context.Background(), uuid.New(), uuid.New())

	require.NoError(t, err, "a failed blob delete is logged, not surfaced")
	assert.Equal(t, []string{"u/b/doc.pdf"}, store.deletes)
	assert.Contains(t, db.lastSQL, "DELETE FROM documents")
}

func TestDeleteConcurrentlyRemovedRow(t *testing.T) {
	db := &fakeDB{
		row: fakeRow{scan: func(dest ...any) error {
			*dest[0].(*string) = ""
			return nil
		}},
		execTag: pgconn.NewCommandTag("DELETE 0"),
	}
	svc := NewService(db, &fakeStorage{}, "documents-storage", nil)

	err := svc.Delete(context.Background(), uuid.New(), uuid.New())
	assert.True(t, apierr.IsKind(err, apierr.KindNotFound))
}

func TestGetByIDIsUnscoped(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}}
	svc := NewService(db, &fakeStorage{}, "documents-storage", nil)

	_, err := svc.GetByID(context.Background(), uuid.New())

	assert.True(t, apierr.IsKind(err, apierr.KindNotFound))
	assert.NotContains(t, db.lastSQL, "user_id = $", "worker lookups carry no owner predicate")
}
