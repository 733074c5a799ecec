// Package identity talks to the external identity provider that owns
// passwords for browser and CLI sign-in.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid provider token")
	ErrUserExists         = errors.New("user already registered")
)

// Identity is an account as the provider knows it.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the result of a successful provider sign-in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Provider is the identity provider contract.
type Provider interface {
	SignUp(ctx context.Context, email, password string, meta map[string]any) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	VerifyToken(ctx context.Context, accessToken string) (*Identity, error)
	// DeleteUser needs service credentials. It compensates a sign-up whose
	// local account could not be created.
	DeleteUser(ctx context.Context, id string) error
}
