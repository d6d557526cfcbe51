package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/identity"
	"github.com/chatflow/chatflow/internal/models"
)

// IdentityProvider is the external signup/signin collaborator. Credentials
// pass straight through; no password ever touches local storage.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, name string) (*models.Identity, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
}

type AuthHandler struct {
	provider IdentityProvider
}

func NewAuthHandler(provider IdentityProvider) *AuthHandler {
	return &AuthHandler{provider: provider}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Plan  string `json:"plan"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.BadRequest("Invalid request body."))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, apierr.BadRequest("Email and password are required."))
		return
	}

	ident, err := h.provider.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, providerFailure(err, http.StatusBadRequest, "Could not create user account."))
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(ident))
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.BadRequest("Invalid request body."))
		return
	}

	session, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, providerFailure(err, http.StatusUnauthorized, "Invalid credentials"))
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         toUserResponse(&session.User),
	})
}

func toUserResponse(ident *models.Identity) userResponse {
	role := ident.Role
	if role == "" {
		role = "user"
	}
	return userResponse{
		ID:    ident.ID.String(),
		Name:  ident.Name,
		Email: ident.Email,
		Role:  role,
		Plan:  "free",
	}
}

// providerFailure relays the provider's own message for signup/signin
// rejections (these are the caller's credentials, not another tenant's
// data). A provider rejection with an unparseable body still keeps its
// client status; only transport failures and provider outages become
// internal errors.
func providerFailure(err error, status int, fallback string) error {
	var pe *identity.ProviderError
	if errors.As(err, &pe) && pe.StatusCode < 500 {
		msg := pe.Message
		if msg == "" {
			msg = fallback
		}
		if status == http.StatusUnauthorized {
			return apierr.Unauthenticated(msg)
		}
		return apierr.BadRequest(msg)
	}
	return apierr.Store("Authentication service unavailable.", err)
}
