package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/document"
	"github.com/chatflow/chatflow/internal/models"
)

const maxUploadBytes = 32 << 20

type DocumentService interface {
	ListForChatbot(ctx context.Context, chatbotID, owner uuid.UUID) ([]models.Document, error)
	CreateFromFile(ctx context.Context, owner uuid.UUID, req document.CreateFileRequest) (*models.Document, error)
	CreateFromURL(ctx context.Context, owner, chatbotID uuid.UUID, sourceURL string) (*models.Document, error)
	Delete(ctx context.Context, id, owner uuid.UUID) error
}

// OwnershipGuard verifies a resource exists and belongs to the caller
// before any document operation scoped under it.
type OwnershipGuard interface {
	Assert(ctx context.Context, table string, id, owner uuid.UUID) error
}

type DocumentHandler struct {
	svc   DocumentService
	guard OwnershipGuard
}

func NewDocumentHandler(svc DocumentService, guard OwnershipGuard) *DocumentHandler {
	return &DocumentHandler{svc: svc, guard: guard}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, chatbotID, ok := h.guardedChatbot(w, r)
	if !ok {
		return
	}

	docs, err := h.svc.ListForChatbot(r.Context(), chatbotID, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	owner, chatbotID, ok := h.guardedChatbot(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apierr.BadRequest("Invalid multipart form."))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierr.BadRequest("A file is required."))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apierr.BadRequest("Could not read uploaded file."))
		return
	}

	doc, err := h.svc.CreateFromFile(r.Context(), owner, document.CreateFileRequest{
		ChatbotID:   chatbotID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) AddURL(w http.ResponseWriter, r *http.Request) {
	owner, chatbotID, ok := h.guardedChatbot(w, r)
	if !ok {
		return
	}

	sourceURL := r.FormValue("url")
	if sourceURL == "" {
		writeError(w, apierr.BadRequest("A url is required."))
		return
	}

	doc, err := h.svc.CreateFromURL(r.Context(), owner, chatbotID, sourceURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierr.BadRequest("Invalid document ID."))
		return
	}

	// The guard settles ownership up front; the delete statement still
	// carries its own owner predicate for the concurrent-delete race.
	if err := h.guard.Assert(r.Context(), "documents", id, owner); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// guardedChatbot resolves the caller and asserts they own the chatbot in
// the route before any document operation under it.
func (h *DocumentHandler) guardedChatbot(w http.ResponseWriter, r *http.Request) (owner, chatbotID uuid.UUID, ok bool) {
	owner, ok = callerID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	chatbotID, err := chatbotIDParam(r)
	if err != nil {
		writeError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	if err := h.guard.Assert(r.Context(), "chatbots", chatbotID, owner); err != nil {
		writeError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return owner, chatbotID, true
}
