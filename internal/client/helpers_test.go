package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/identity"
)

// fakeAPI is a minimal in-memory stand-in for the REST API.
type fakeAPI struct {
	mu        sync.Mutex
	users     map[int64]*data.User
	passwords map[int64]string
	messages  []data.Message
	jobs      []data.Job
	hits      map[string]int
	provider  *identity.Memory

	failCreateUser atomic.Bool
	failSend       atomic.Bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	a := &fakeAPI{
		users:     map[int64]*data.User{},
		passwords: map[int64]string{},
		hits:      map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", a.login)
	mux.HandleFunc("POST /api/auth/exchange", a.exchange)
	mux.HandleFunc("GET /api/auth/me", a.authed(a.me))
	mux.HandleFunc("POST /api/users", a.createUser)
	mux.HandleFunc("GET /api/jobs", a.authed(a.listJobs))
	mux.HandleFunc("GET /api/messages", a.authed(a.inbox))
	mux.HandleFunc("GET /api/messages/{id}", a.authed(a.thread))
	mux.HandleFunc("POST /api/messages", a.authed(a.send))
	mux.HandleFunc("GET /api/forbidden", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "access denied"})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.hits[r.Method+" "+r.URL.Path]++
		a.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return a, srv
}

func (a *fakeAPI) hitCount(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[key]
}

func (a *fakeAPI) addUser(u data.User, password string) *data.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	u.ID = int64(len(a.users) + 1)
	u.Active = true
	a.users[u.ID] = &u
	a.passwords[u.ID] = password
	return &u
}

func (a *fakeAPI) addMessage(m data.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m.ID = int64(len(a.messages) + 1)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	a.messages = append(a.messages, m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenFor(id int64) string { return "tok-" + strconv.FormatInt(id, 10) }

func (a *fakeAPI) authResponse(u *data.User) AuthResponse {
	return AuthResponse{Token: tokenFor(u.ID), ExpiresAt: time.Now().Add(time.Hour), User: *u}
}

func (a *fakeAPI) authed(next func(http.ResponseWriter, *http.Request, *data.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		id, err := strconv.ParseInt(strings.TrimPrefix(tok, "tok-"), 10, 64)
		a.mu.Lock()
		u, ok := a.users[id]
		a.mu.Unlock()
		if err != nil || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next(w, r, u)
	}
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	_ = json.NewDecoder(r.Body).Decode(&in)
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, u := range a.users {
		if u.Email == in.Email && a.passwords[id] == in.Password {
			writeJSON(w, http.StatusOK, a.authResponse(u))
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
}

func (a *fakeAPI) exchange(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccessToken string `json:"accessToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	ident, err := a.provider.VerifyToken(r.Context(), in.AccessToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid provider token"})
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if (u.ProviderID != nil && *u.ProviderID == ident.ID) || u.Email == ident.Email {
			writeJSON(w, http.StatusOK, a.authResponse(u))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "no local account"})
}

func (a *fakeAPI) me(w http.ResponseWriter, _ *http.Request, u *data.User) {
	writeJSON(w, http.StatusOK, u)
}

func (a *fakeAPI) createUser(w http.ResponseWriter, r *http.Request) {
	if a.failCreateUser.Load() {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "record already exists"})
		return
	}
	var in NewUser
	_ = json.NewDecoder(r.Body).Decode(&in)
	u := data.User{Email: in.Email, Username: in.Username, FullName: in.FullName, Role: in.Role}
	if in.ProviderID != "" {
		pid := in.ProviderID
		u.ProviderID = &pid
	}
	writeJSON(w, http.StatusCreated, a.addUser(u, in.Password))
}

func (a *fakeAPI) listJobs(w http.ResponseWriter, _ *http.Request, _ *data.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.jobs)
}

func (a *fakeAPI) inbox(w http.ResponseWriter, _ *http.Request, u *data.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []data.Message{}
	for _, m := range a.messages {
		if m.SenderID == u.ID || m.ReceiverID == u.ID {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *fakeAPI) thread(w http.ResponseWriter, r *http.Request, u *data.User) {
	other, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad id"})
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []data.Message{}
	for _, m := range a.messages {
		if (m.SenderID == u.ID && m.ReceiverID == other) || (m.SenderID == other && m.ReceiverID == u.ID) {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *fakeAPI) send(w http.ResponseWriter, r *http.Request, u *data.User) {
	if a.failSend.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to save message"})
		return
	}
	var in MessageInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	a.addMessage(data.Message{SenderID: u.ID, ReceiverID: in.ReceiverID, Content: in.Content})
	a.mu.Lock()
	m := a.messages[len(a.messages)-1]
	a.mu.Unlock()
	writeJSON(w, http.StatusCreated, m)
}
