package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chatflow/chatflow/internal/apierr"
	"github.com/chatflow/chatflow/internal/models"
)

// GoTrueClient talks to the Supabase auth service. Signup and signin are
// pure pass-throughs: password handling and session issuance stay entirely
// with the provider.
type GoTrueClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewGoTrueClient(supabaseURL, anonKey string) *GoTrueClient {
	return &GoTrueClient{
		baseURL:    supabaseURL + "/auth/v1",
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ProviderError carries the provider's own status and message. It is only
// surfaced for signup/signin, never for token resolution.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider rejected request (%d): %s", e.StatusCode, e.Message)
}

type gotrueUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	} `json:"user_metadata"`
}

func (u *gotrueUser) identity() (*models.Identity, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	role := u.UserMetadata.Role
	if role == "" {
		role = "user"
	}
	return &models.Identity{
		ID:    id,
		Email: u.Email,
		Name:  u.UserMetadata.FullName,
		Role:  role,
	}, nil
}

// GetUser exchanges an end-user bearer token for the user it belongs to.
func (c *GoTrueClient) GetUser(ctx context.Context, token string) (*models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create user request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.providerError(resp)
	}

	var u gotrueUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user response: %w", err)
	}
	return u.identity()
}

// Session is the provider-issued token pair returned from a signin.
type Session struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         models.Identity `json:"user"`
}

func (c *GoTrueClient) SignUp(ctx context.Context, email, password, name string) (*models.Identity, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"full_name": name},
	}
	var u gotrueUser
	if err := c.post(ctx, "/signup", payload, &u); err != nil {
		return nil, err
	}
	return u.identity()
}

func (c *GoTrueClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]any{"email": email, "password": password}
	var out struct {
		AccessToken  string     `json:"access_token"`
		RefreshToken string     `json:"refresh_token"`
		User         gotrueUser `json:"user"`
	}
	if err := c.post(ctx, "/token?grant_type=password", payload, &out); err != nil {
		return nil, err
	}
	ident, err := out.User.identity()
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		User:         *ident,
	}, nil
}

func (c *GoTrueClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.providerError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func (c *GoTrueClient) providerError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Msg
	if msg == "" {
		msg = parsed.Message
	}
	if msg == "" {
		msg = parsed.ErrorDescription
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: msg}
}

// GoTrueResolver verifies tokens by forwarding them to the provider. Every
// provider rejection collapses to the same generic message; transport
// failures and provider outages are not token problems and surface as
// internal errors instead.
type GoTrueResolver struct {
	client *GoTrueClient
}

func NewGoTrueResolver(client *GoTrueClient) *GoTrueResolver {
	return &GoTrueResolver{client: client}
}

func (r *GoTrueResolver) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	ident, err := r.client.GetUser(ctx, token)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode < 500 {
			return nil, apierr.Unauthenticated("Invalid or expired token")
		}
		return nil, apierr.Store("Could not verify authentication token.", err)
	}
	return ident, nil
}
