package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/chatbot"
	"github.com/chatflow/chatflow/internal/identity"
	"github.com/chatflow/chatflow/internal/models"
)

type ChatbotService interface {
	Create(ctx context.Context, owner uuid.UUID, req chatbot.CreateRequest) (*models.Chatbot, error)
	List(ctx context.Context, owner uuid.UUID) ([]models.Chatbot, error)
	Get(ctx context.Context, id, owner uuid.UUID) (*models.Chatbot, error)
	Update(ctx context.Context, id, owner uuid.UUID, req chatbot.UpdateRequest) (*models.Chatbot, error)
	Delete(ctx context.Context, id, owner uuid.UUID) error
	Stats(ctx context.Context, owner uuid.UUID) (*chatbot.Stats, error)
}

// BlobCleaner removes a chatbot's document blobs ahead of a cascade
// delete.
type BlobCleaner interface {
	RemoveBlobsForChatbot(ctx context.Context, chatbotID, owner uuid.UUID) error
}

type ChatbotHandler struct {
	svc   ChatbotService
	blobs BlobCleaner
}

func NewChatbotHandler(svc ChatbotService, blobs BlobCleaner) *ChatbotHandler {
	return &ChatbotHandler{svc: svc, blobs: blobs}
}

// Create stamps the resolved identity as owner; any owner value in the
// request body is never read.
func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}

	var req chatbot.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.BadRequest("Invalid request body."))
		return
	}
	if req.Name == "" {
		writeError(w, apierr.BadRequest("Name is required."))
		return
	}

	bot, err := h.svc.Create(r.Context(), owner, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bot)
}

func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}

	bots, err := h.svc.List(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bots)
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := chatbotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	bot, err := h.svc.Get(r.Context(), id, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := chatbotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req chatbot.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.BadRequest("Invalid request body."))
		return
	}

	bot, err := h.svc.Update(r.Context(), id, owner, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := chatbotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Blob removal first: the record delete cascades documents at the
	// store, which would strand their paths. Owner-filtered, so a foreign
	// chatbot yields no paths. Failures don't block the delete.
	if err := h.blobs.RemoveBlobsForChatbot(r.Context(), id, owner); err != nil {
		slog.Warn("blob cleanup before chatbot delete failed", "chatbot_id", id, "error", err)
	}

	if err := h.svc.Delete(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatbotHandler) Stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := callerID(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func chatbotIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apierr.BadRequest("Invalid chatbot ID.")
	}
	return id, nil
}

// callerID pulls the resolved identity off the context. The authenticate
// middleware guarantees it; a miss means the route is wired wrong.
func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ident := identity.FromContext(r.Context())
	if ident == nil {
		writeError(w, apierr.Unauthenticated("Authentication token is missing"))
		return uuid.Nil, false
	}
	return ident.ID, true
}
