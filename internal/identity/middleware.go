package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chatflow/chatflow/internal/apierr"
)

type Middleware struct {
	resolver Resolver
}

func NewMiddleware(resolver Resolver) *Middleware {
	return &Middleware{resolver: resolver}
}

// Authenticate resolves the request's bearer token into an Identity and
// stores it on the context. It runs before any ownership check; the widget
// path must never be routed through it.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, apierr.Unauthenticated("Authentication token is missing"))
			return
		}

		ident, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apierr.StatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": apierr.ClientMessage(err)})
}
