package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Gee2424/HubFreelance-sub001/internal/auth"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/db"
	"github.com/Gee2424/HubFreelance-sub001/internal/metrics"
	"github.com/Gee2424/HubFreelance-sub001/internal/middleware"
	"github.com/Gee2424/HubFreelance-sub001/internal/policy"
	"github.com/Gee2424/HubFreelance-sub001/internal/realtime"
)

const testPassword = "password123"

type testServer struct {
	srv     *Server
	e       *echo.Echo
	limiter *middleware.LimiterStore
	broker  *realtime.LocalBroker
}

// newTestServer wires a Server over an in-memory database and a local
// broker.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := data.Migrate(gdb); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	pol, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	m := metrics.New()
	broker := realtime.NewLocalBroker(m)
	limiter := middleware.NewLimiterStore(1000, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	srv := newServer(data.NewStores(gdb), auth.NewJWTManager("test-secret", time.Hour), pol, broker, m)
	return &testServer{srv: srv, e: srv.newEcho(limiter), limiter: limiter, broker: broker}
}

func (ts *testServer) seedUser(t *testing.T, email string, role data.Role) *data.User {
	t.Helper()
	hashed, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	u := &data.User{Email: email, Username: email, Password: hashed, Role: role, Active: true}
	if err := ts.srv.stores.Users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", email, err)
	}
	return u
}

func (ts *testServer) tokenFor(t *testing.T, u *data.User) string {
	t.Helper()
	tok, _, err := ts.srv.auth.GenerateToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	return tok
}

// do sends a JSON request through the echo router. token may be empty.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

