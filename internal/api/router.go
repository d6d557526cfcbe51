package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chatflow/chatflow/internal/api/handlers"
	"github.com/chatflow/chatflow/internal/api/middleware"
	"github.com/chatflow/chatflow/internal/chatbot"
	"github.com/chatflow/chatflow/internal/config"
	"github.com/chatflow/chatflow/internal/document"
	"github.com/chatflow/chatflow/internal/identity"
	"github.com/chatflow/chatflow/internal/ownership"
	"github.com/chatflow/chatflow/internal/queue"
	"github.com/chatflow/chatflow/internal/storage"
	"github.com/chatflow/chatflow/internal/widget"
)

type Router struct {
	mux      *chi.Mux
	db       *pgxpool.Pool
	publicDB *pgxpool.Pool
	redis    *redis.Client
	cfg      *config.Config
}

// NewRouter wires the route table. publicDB is the minimal-privilege pool
// for the widget path; db is the service pool for everything else.
func NewRouter(db, publicDB *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		db:       db,
		publicDB: publicDB,
		redis:    rdb,
		cfg:      cfg,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.AllowedOrigins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	store := storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.ServiceKey)
	queueClient := queue.NewClient(rt.cfg.Redis)
	docSvc := document.NewService(rt.db, store, rt.cfg.Storage.Bucket, queueClient)
	botSvc := chatbot.NewService(rt.db)
	guard := ownership.NewGuard(rt.db)

	gotrue := identity.NewGoTrueClient(rt.cfg.Auth.SupabaseURL, rt.cfg.Auth.SupabaseAnonKey)
	var resolver identity.Resolver
	if rt.cfg.Auth.TokenVerifier == "jwt" {
		resolver = identity.NewJWTResolver(rt.cfg.Auth.JWTSecret)
	} else {
		resolver = identity.NewGoTrueResolver(gotrue)
	}
	authn := identity.NewMiddleware(resolver)

	// The widget service only ever sees the anonymous pool.
	widgetSvc := widget.NewService(rt.publicDB)

	r.Route("/api", func(r chi.Router) {
		// Public routes: no bearer token is required or accepted.
		widgetH := handlers.NewWidgetHandler(widgetSvc)
		r.Get("/widget/{bot_id}/config", widgetH.Config)

		authH := handlers.NewAuthHandler(gotrue)
		r.Post("/auth/signup", authH.Signup)
		r.Post("/auth/signin", authH.Signin)

		// Everything below resolves an Identity first.
		r.Group(func(r chi.Router) {
			r.Use(authn.Authenticate)

			botH := handlers.NewChatbotHandler(botSvc, docSvc)
			docH := handlers.NewDocumentHandler(docSvc, guard)

			r.Route("/chatbots", func(r chi.Router) {
				r.Post("/", botH.Create)
				r.Get("/", botH.List)
				r.Get("/{id}", botH.Get)
				r.Put("/{id}", botH.Update)
				r.Delete("/{id}", botH.Delete)

				r.Get("/{id}/documents", docH.List)
				r.Post("/{id}/documents/file", docH.UploadFile)
				r.Post("/{id}/documents/url", docH.AddURL)
			})
			r.Delete("/documents/{id}", docH.Delete)

			r.Get("/dashboard/stats", botH.Stats)
		})
	})

	return r
}
