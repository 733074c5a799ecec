package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
)

// GoTrue is a Provider backed by a GoTrue (Supabase auth) compatible HTTP
// API.
type GoTrue struct {
	baseURL    string
	publicKey  string
	serviceKey string
	httpClient *http.Client
}

// NewGoTrue returns a GoTrue client. serviceKey may be empty when the
// caller never deletes users.
func NewGoTrue(baseURL, publicKey, serviceKey string) *GoTrue {
	return &GoTrue{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		publicKey:  publicKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignUp registers email with the provider.
func (g *GoTrue) SignUp(ctx context.Context, email, password string, meta map[string]any) (*Identity, error) {
	body := map[string]any{
		"email":    normalize.Email(email),
		"password": password,
	}
	if len(meta) > 0 {
		body["data"] = meta
	}

	var out struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	status, err := g.do(ctx, http.MethodPost, "/auth/v1/signup", g.publicKey, body, &out)
	if err != nil {
		if status == http.StatusUnprocessableEntity || (status == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Error()), "registered")) {
			return nil, fmt.Errorf("%w: %v", ErrUserExists, err)
		}
		return nil, err
	}

	// autoconfirm returns a session wrapping the user; otherwise the user is
	// the top-level object
	u := out.gotrueUser
	if out.User != nil {
		u = *out.User
	}
	if u.ID == "" {
		return nil, fmt.Errorf("provider sign-up returned no user id")
	}
	return &Identity{ID: u.ID, Email: u.Email}, nil
}

// SignIn exchanges email and password for a provider session.
func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]any{
		"email":    normalize.Email(email),
		"password": password,
	}
	var out struct {
		AccessToken  string     `json:"access_token"`
		RefreshToken string     `json:"refresh_token"`
		ExpiresIn    int64      `json:"expires_in"`
		User         gotrueUser `json:"user"`
	}
	status, err := g.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", g.publicKey, body, &out)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
		User:         Identity{ID: out.User.ID, Email: out.User.Email},
	}, nil
}

// VerifyToken resolves a provider access token to its account.
func (g *GoTrue) VerifyToken(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}
	var u gotrueUser
	status, err := g.doAuth(ctx, http.MethodGet, "/auth/v1/user", g.publicKey, accessToken, nil, &u)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if u.ID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{ID: u.ID, Email: u.Email}, nil
}

// DeleteUser removes a provider account using the service key.
func (g *GoTrue) DeleteUser(ctx context.Context, id string) error {
	if g.serviceKey == "" {
		return fmt.Errorf("delete provider user %s: no service key configured", id)
	}
	_, err := g.doAuth(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), g.serviceKey, g.serviceKey, nil, nil)
	if err != nil {
		return fmt.Errorf("delete provider user %s: %w", id, err)
	}
	return nil
}

func (g *GoTrue) do(ctx context.Context, method, path, apiKey string, in, out any) (int, error) {
	return g.doAuth(ctx, method, path, apiKey, apiKey, in, out)
}

// doAuth sends one request and decodes a 2xx JSON body into out. On a
// non-2xx answer it returns the status and the provider's message.
func (g *GoTrue) doAuth(ctx context.Context, method, path, apiKey, bearer string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gotrueError
		_ = json.Unmarshal(raw, &ge)
		msg := ge.text()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return resp.StatusCode, fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, msg)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
