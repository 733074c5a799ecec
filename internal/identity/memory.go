package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
)

// Memory is an in-process Provider for tests and local runs without an
// external provider. Tokens are opaque random strings.
type Memory struct {
	mu       sync.Mutex
	byEmail  map[string]*memoryAccount
	byToken  map[string]string // access token -> account id
	FailNext error             // returned once by the next DeleteUser
}

type memoryAccount struct {
	id       string
	email    string
	password string
}

func NewMemory() *Memory {
	return &Memory{
		byEmail: map[string]*memoryAccount{},
		byToken: map[string]string{},
	}
}

func (m *Memory) SignUp(_ context.Context, email, password string, _ map[string]any) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = normalize.Email(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrUserExists
	}
	acc := &memoryAccount{id: uuid.NewString(), email: email, password: password}
	m.byEmail[email] = acc
	return &Identity{ID: acc.id, Email: email}, nil
}

func (m *Memory) SignIn(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byEmail[normalize.Email(email)]
	if !ok || acc.password != password {
		return nil, ErrInvalidCredentials
	}
	token := uuid.NewString()
	m.byToken[token] = acc.id
	return &Session{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        Identity{ID: acc.id, Email: acc.email},
	}, nil
}

func (m *Memory) VerifyToken(_ context.Context, accessToken string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[accessToken]
	if !ok {
		return nil, ErrInvalidToken
	}
	for _, acc := range m.byEmail {
		if acc.id == id {
			return &Identity{ID: acc.id, Email: acc.email}, nil
		}
	}
	return nil, ErrInvalidToken
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return err
	}
	for email, acc := range m.byEmail {
		if acc.id == id {
			delete(m.byEmail, email)
		}
	}
	for tok, accID := range m.byToken {
		if accID == id {
			delete(m.byToken, tok)
		}
	}
	return nil
}

// Has reports whether an account exists for email.
func (m *Memory) Has(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[normalize.Email(email)]
	return ok
}
