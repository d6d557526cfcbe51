package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/chatbot"
	"github.com/chatflow/chatflow/internal/identity"
	"github.com/chatflow/chatflow/internal/models"
)

// fakeChatbotService is an in-memory store that applies the same
// owner-filtered semantics as the real one: a foreign chatbot is
// indistinguishable from a missing one.
type fakeChatbotService struct {
	bots map[uuid.UUID]*models.Chatbot
}

func newFakeChatbotService() *fakeChatbotService {
	return &fakeChatbotService{bots: map[uuid.UUID]*models.Chatbot{}}
}

func (f *fakeChatbotService) notFound() error {
	return apierr.NotFound("Chatbot not found or you do not have permission to access it.")
}

func (f *fakeChatbotService) Create(ctx context.Context, owner uuid.UUID, req chatbot.CreateRequest) (*models.Chatbot, error) {
	bot := &models.Chatbot{
		ID:          uuid.New(),
		UserID:      owner,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.BotStatusDraft,
	}
	f.bots[bot.ID] = bot
	return bot, nil
}

func (f *fakeChatbotService) List(ctx context.Context, owner uuid.UUID) ([]models.Chatbot, error) {
	out := []models.Chatbot{}
	for _, b := range f.bots {
		if b.UserID == owner {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeChatbotService) Get(ctx context.Context, id, owner uuid.UUID) (*models.Chatbot, error) {
	b, ok := f.bots[id]
	if !ok || b.UserID != owner {
		return nil, f.notFound()
	}
	return b, nil
}

func (f *fakeChatbotService) Update(ctx context.Context, id, owner uuid.UUID, req chatbot.UpdateRequest) (*models.Chatbot, error) {
	b, ok := f.bots[id]
	if !ok || b.UserID != owner {
		return nil, f.notFound()
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	return b, nil
}

func (f *fakeChatbotService) Delete(ctx context.Context, id, owner uuid.UUID) error {
	b, ok := f.bots[id]
	if !ok || b.UserID != owner {
		return f.notFound()
	}
	delete(f.bots, id)
	return nil
}

func (f *fakeChatbotService) Stats(ctx context.Context, owner uuid.UUID) (*chatbot.Stats, error) {
	n := 0
	for _, b := range f.bots {
		if b.UserID == owner {
			n++
		}
	}
	return &chatbot.Stats{TotalChatbots: n, SatisfactionRate: 94}, nil
}

type fakeBlobCleaner struct {
	calls []uuid.UUID
}

func (f *fakeBlobCleaner) RemoveBlobsForChatbot(ctx context.Context, chatbotID, owner uuid.UUID) error {
	f.calls = append(f.calls, chatbotID)
	return nil
}

// chatbotRouter wires the handler behind a middleware that stamps the
// given identity, the way the authenticate middleware does in production.
func chatbotRouter(h *ChatbotHandler, caller *models.Identity) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if caller != nil {
				req = req.WithContext(identity.WithIdentity(req.Context(), caller))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/chatbots", h.Create)
	r.Get("/chatbots", h.List)
	r.Get("/chatbots/{id}", h.Get)
	r.Put("/chatbots/{id}", h.Update)
	r.Delete("/chatbots/{id}", h.Delete)
	r.Get("/dashboard/stats", h.Stats)
	return r
}

func ident(id uuid.UUID) *models.Identity {
	return &models.Identity{ID: id, Email: "user@example.com", Role: "user"}
}

func TestChatbotCreateStampsOwnerFromToken(t *testing.T) {
	svc := newFakeChatbotService()
	h := NewChatbotHandler(svc, &fakeBlobCleaner{})
	owner := uuid.New()
	intruder := uuid.New()

	// The body claims a different user_id; it must be ignored.
	body := `{"name": "Sales Bot", "user_id": "` + intruder.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/chatbots", strings.NewReader(body))
	rec := httptest.NewRecorder()
	chatbotRouter(h, ident(owner)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var bot models.Chatbot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bot))
	assert.Equal(t, owner, bot.UserID)
	assert.Equal(t, "Sales Bot", bot.Name)
}

func TestChatbotCreateRequiresName(t *testing.T) {
	h := NewChatbotHandler(newFakeChatbotService(), &fakeBlobCleaner{})
	req := httptest.NewRequest(http.MethodPost, "/chatbots", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	chatbotRouter(h, ident(uuid.New())).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatbotCrossTenantReadsAsNotFound(t *testing.T) {
	svc := newFakeChatbotService()
	h := NewChatbotHandler(svc, &fakeBlobCleaner{})
	owner := uuid.New()
	bot, err := svc.Create(context.Background(), owner, chatbot.CreateRequest{Name: "Private"})
	require.NoError(t, err)

	for _, tc := range []struct {
		method string
		body   string
	}{
		{http.MethodGet, ""},
		{http.MethodPut, `{"name": "hijacked"}`},
		{http.MethodDelete, ""},
	} {
		req := httptest.NewRequest(tc.method, "/chatbots/"+bot.ID.String(), strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		chatbotRouter(h, ident(uuid.New())).ServeHTTP(rec, req)

		// 404, never 403: a foreign chatbot must not leak its existence.
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s must not reveal a foreign chatbot", tc.method)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Chatbot not found or you do not have permission to access it.", resp["error"])
	}

	// The record is untouched.
	kept, err := svc.Get(context.Background(), bot.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Private", kept.Name)
}

func TestChatbotListScopedToOwner(t *testing.T) {
	svc := newFakeChatbotService()
	h := NewChatbotHandler(svc, &fakeBlobCleaner{})
	owner := uuid.New()
	other := uuid.New()
	_, _ = svc.Create(context.Background(), owner, chatbot.CreateRequest{Name: "Mine"})
	_, _ = svc.Create(context.Background(), other, chatbot.CreateRequest{Name: "Theirs"})

	req := httptest.NewRequest(http.MethodGet, "/chatbots", nil)
	rec := httptest.NewRecorder()
	chatbotRouter(h, ident(owner)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var bots []models.Chatbot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bots))
	require.Len(t, bots, 1)
	assert.Equal(t, "Mine", bots[0].Name)
}

func TestChatbotDeleteCleansBlobsThenRecord(t *testing.T) {
	svc := newFakeChatbotService()
	blobs := &fakeBlobCleaner{}
	h := NewChatbotHandler(svc, blobs)
	owner := uuid.New()
	bot, _ := svc.Create(context.Background(), owner, chatbot.CreateRequest{Name: "Doomed"})

	req := httptest.NewRequest(http.MethodDelete, "/chatbots/"+bot.ID.String(), nil)
	rec := httptest.NewRecorder()
	chatbotRouter(h, ident(owner)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{bot.ID}, blobs.calls)

	// Deleting again reads as missing.
	rec = httptest.NewRecorder()
	chatbotRouter(h, ident(owner)).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/chatbots/"+bot.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatbotInvalidIDParam(t *testing.T) {
	h := NewChatbotHandler(newFakeChatbotService(), &fakeBlobCleaner{})
	req := httptest.NewRequest(http.MethodGet, "/chatbots/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	chatbotRouter(h, ident(uuid.New())).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatbotMissingIdentity(t *testing.T) {
	h := NewChatbotHandler(newFakeChatbotService(), &fakeBlobCleaner{})
	req := httptest.NewRequest(http.MethodGet, "/chatbots", nil)
	rec := httptest.NewRecorder()
	chatbotRouter(h, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardStats(t *testing.T) {
	svc := newFakeChatbotService()
	h := NewChatbotHandler(svc, &fakeBlobCleaner{})
	owner := uuid.New()
	_, _ = svc.Create(context.Background(), owner, chatbot.CreateRequest{Name: "One"})
	_, _ = svc.Create(context.Background(), owner, chatbot.CreateRequest{Name: "Two"})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	chatbotRouter(h, ident(owner)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats chatbot.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalChatbots)
	assert.Equal(t, 94, stats.SatisfactionRate)
}
