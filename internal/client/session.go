package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/identity"
)

// TokenStore persists the local bearer token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in a file readable only by its owner.
type FileTokenStore struct {
	Path string
}

// Load returns the saved token, or "" when none is saved.
func (f FileTokenStore) Load() (string, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (f FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	return os.WriteFile(f.Path, []byte(token+"\n"), 0o600)
}

func (f FileTokenStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Session is the signed-in state shared by every view of one process. It
// is created once at start-up, restored explicitly and passed around by
// reference.
type Session struct {
	client   *Client
	provider identity.Provider
	tokens   TokenStore

	mu   sync.RWMutex
	user *data.User
}

// NewSession binds a client, an optional identity provider and a token
// store. Without a provider, sign-in uses local credentials only.
func NewSession(c *Client, provider identity.Provider, tokens TokenStore) *Session {
	return &Session{client: c, provider: provider, tokens: tokens}
}

// Client returns the API client of the session.
func (s *Session) Client() *Client { return s.client }

// User returns the signed-in user, or nil.
func (s *Session) User() *data.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Role returns the role of the signed-in user.
func (s *Session) Role() (data.Role, error) {
	u := s.User()
	if u == nil {
		return "", ErrNoSession
	}
	return u.Role, nil
}

func (s *Session) setUser(u *data.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Restore loads a saved token and checks it against the API. It reports
// whether a session is active. A token the API no longer accepts is
// discarded.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	token, err := s.tokens.Load()
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}
	s.client.SetToken(token)
	s.client.Cache().Clear()
	me, err := s.client.Me(ctx)
	if err != nil {
		if IsUnauthorized(err) {
			s.reset()
			return false, s.tokens.Clear()
		}
		return false, err
	}
	s.setUser(me)
	return true, nil
}

// SignUpInput is what a new account needs.
type SignUpInput struct {
	Email    string
	Password string
	Username string
	FullName string
	Role     data.Role
}

// SignUp registers at the identity provider, mirrors the account into the
// API and signs in. If the local account cannot be created the provider
// account is deleted again; when that fails too both errors are returned
// and the provider keeps an orphaned account.
func (s *Session) SignUp(ctx context.Context, in SignUpInput) (*data.User, error) {
	nu := NewUser{
		Email:    in.Email,
		Username: in.Username,
		FullName: in.FullName,
		Password: in.Password,
		Role:     in.Role,
	}
	if err := nu.Validate(); err != nil {
		return nil, err
	}

	if s.provider != nil {
		ident, err := s.provider.SignUp(ctx, in.Email, in.Password, map[string]any{
			"username":  in.Username,
			"full_name": in.FullName,
			"role":      string(in.Role),
		})
		if err != nil {
			return nil, fmt.Errorf("provider sign-up: %w", err)
		}
		nu.ProviderID = ident.ID

		if _, err := s.client.CreateUser(ctx, nu); err != nil {
			if derr := s.provider.DeleteUser(ctx, ident.ID); derr != nil {
				slog.Error("sign-up left an orphaned provider account",
					"provider_id", ident.ID, "create_error", err, "delete_error", derr)
				return nil, errors.Join(
					fmt.Errorf("create local account: %w", err),
					fmt.Errorf("remove provider account %s: %w", ident.ID, derr),
				)
			}
			return nil, fmt.Errorf("create local account: %w", err)
		}
	} else if _, err := s.client.CreateUser(ctx, nu); err != nil {
		return nil, fmt.Errorf("create local account: %w", err)
	}

	return s.SignIn(ctx, in.Email, in.Password)
}

// SignIn authenticates and loads the local user. With a provider the
// provider token is exchanged for a local token; when the API has no
// account for it, one local login with the same credentials is tried
// before ErrAccountSetupIncomplete is returned.
func (s *Session) SignIn(ctx context.Context, email, password string) (*data.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	var resp *AuthResponse
	if s.provider == nil {
		r, err := s.client.Login(ctx, email, password)
		if err != nil {
			if IsUnauthorized(err) {
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		resp = r
	} else {
		sess, err := s.provider.SignIn(ctx, email, password)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				return nil, ErrInvalidCredentials
			}
			return nil, fmt.Errorf("provider sign-in: %w", err)
		}
		r, err := s.client.Exchange(ctx, sess.AccessToken)
		switch {
		case err == nil:
			resp = r
		case IsNotFound(err):
			slog.Warn("no local account for provider user, trying local login", "provider_id", sess.User.ID)
			r, lerr := s.client.Login(ctx, email, password)
			if lerr != nil {
				return nil, fmt.Errorf("%w: %v", ErrAccountSetupIncomplete, lerr)
			}
			resp = r
		default:
			return nil, err
		}
	}

	s.client.Cache().Clear()
	if err := s.tokens.Save(resp.Token); err != nil {
		return nil, err
	}
	u := resp.User
	s.setUser(&u)
	return &u, nil
}

// SignOut forgets the token, the user and every cached read.
func (s *Session) SignOut() error {
	s.reset()
	return s.tokens.Clear()
}

func (s *Session) reset() {
	s.client.SetToken("")
	s.client.Cache().Clear()
	s.setUser(nil)
}
