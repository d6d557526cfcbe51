package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/models"
	"github.com/chatflow/chatflow/internal/widget"
)

// WidgetConfigSource fetches the public projection plus the configured
// allowed domain for an active chatbot.
type WidgetConfigSource interface {
	Config(ctx context.Context, botID uuid.UUID) (*models.WidgetConfig, string, error)
}

// WidgetHandler serves the unauthenticated widget endpoint. It never reads
// the Authorization header; a bearer token on this path is simply ignored.
type WidgetHandler struct {
	src WidgetConfigSource
}

func NewWidgetHandler(src WidgetConfigSource) *WidgetHandler {
	return &WidgetHandler{src: src}
}

func (h *WidgetHandler) Config(w http.ResponseWriter, r *http.Request) {
	domain, err := widget.SourceDomain(r.Header.Get("Origin"), r.Header.Get("Referer"))
	if err != nil {
		writeError(w, err)
		return
	}

	botID, err := uuid.Parse(chi.URLParam(r, "bot_id"))
	if err != nil {
		// A malformed id reads the same as a missing chatbot.
		writeError(w, apierr.NotFound("Active chatbot not found."))
		return
	}

	cfg, allowedDomain, err := h.src.Config(r.Context(), botID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := widget.Authorize(domain, allowedDomain); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}
