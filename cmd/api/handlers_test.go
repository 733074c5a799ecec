package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/conversation"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/jobs", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = ts.do(t, http.MethodGet, "/api/jobs", "not-a-jwt", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestErrorHandlerMapsNotFound(t *testing.T) {
	ts := newTestServer(t)
	u := ts.seedUser(t, "client@example.com", data.RoleClient)

	rec := ts.do(t, http.MethodGet, "/api/jobs/999", ts.tokenFor(t, u), nil)
	expectStatus(t, rec, http.StatusNotFound)
	if body := decode[map[string]string](t, rec); body["message"] != "not found" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs/abc", ts.tokenFor(t, u), nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestPermissionDenied(t *testing.T) {
	ts := newTestServer(t)
	fl := ts.seedUser(t, "free@example.com", data.RoleFreelancer)
	tok := ts.tokenFor(t, fl)

	rec := ts.do(t, http.MethodPost, "/api/jobs", tok, map[string]any{"title": "Logo"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = ts.do(t, http.MethodGet, "/api/users", tok, nil)
	expectStatus(t, rec, http.StatusForbidden)
}

func TestCreateUser(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"email": "new@example.com", "username": "newbie", "password": testPassword,
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[data.User](t, rec)
	if created.Role != data.RoleClient || !created.Active {
		t.Fatalf("expected active client, got %+v", created)
	}

	rec = ts.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"email": "new@example.com", "username": "other", "password": testPassword,
	})
	expectStatus(t, rec, http.StatusConflict)

	// "@" normalizes to an empty handle
	rec = ts.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"email": "at@example.com", "username": "@", "password": testPassword,
	})
	expectStatus(t, rec, http.StatusBadRequest)

	// staff accounts need an admin caller
	staff := map[string]any{"email": "qa@example.com", "username": "qa", "password": testPassword, "role": "qa"}
	rec = ts.do(t, http.MethodPost, "/api/users", "", staff)
	expectStatus(t, rec, http.StatusForbidden)

	admin := ts.seedUser(t, "admin@example.com", data.RoleAdmin)
	rec = ts.do(t, http.MethodPost, "/api/users", ts.tokenFor(t, admin), staff)
	expectStatus(t, rec, http.StatusCreated)
}

func TestUpdateUserRoleIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	u := ts.seedUser(t, "client@example.com", data.RoleClient)
	other := ts.seedUser(t, "other@example.com", data.RoleClient)
	tok := ts.tokenFor(t, u)

	rec := ts.do(t, http.MethodPatch, fmt.Sprintf("/api/users/%d", u.ID), tok, map[string]any{"fullName": "Casey"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[data.User](t, rec); got.FullName != "Casey" {
		t.Fatalf("fullName not updated: %+v", got)
	}

	rec = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/users/%d", u.ID), tok, map[string]any{"username": " @ "})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/users/%d", u.ID), tok, map[string]any{"role": "admin"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/users/%d", other.ID), tok, map[string]any{"fullName": "x"})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestProposalFlow(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.seedUser(t, "owner@example.com", data.RoleClient)
	rival := ts.seedUser(t, "rival@example.com", data.RoleClient)
	fl := ts.seedUser(t, "free@example.com", data.RoleFreelancer)

	mkJob := func(u *data.User, title string) data.Job {
		rec := ts.do(t, http.MethodPost, "/api/jobs", ts.tokenFor(t, u), map[string]any{"title": title, "budget": 500})
		expectStatus(t, rec, http.StatusCreated)
		return decode[data.Job](t, rec)
	}
	job := mkJob(owner, "Landing page")
	other := mkJob(rival, "Mobile app")

	var ownProposal data.Proposal
	for _, j := range []data.Job{job, other} {
		rec := ts.do(t, http.MethodPost, "/api/proposals", ts.tokenFor(t, fl), map[string]any{"jobId": j.ID, "bidAmount": 400})
		expectStatus(t, rec, http.StatusCreated)
		if j.ID == job.ID {
			ownProposal = decode[data.Proposal](t, rec)
		}
	}

	// clients only see bids on their own jobs
	rec := ts.do(t, http.MethodGet, "/api/proposals", ts.tokenFor(t, owner), nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]data.Proposal](t, rec); len(got) != 1 || got[0].JobID != job.ID {
		t.Fatalf("owner sees %+v", got)
	}
	rec = ts.do(t, http.MethodGet, "/api/proposals", ts.tokenFor(t, fl), nil)
	if got := decode[[]data.Proposal](t, rec); len(got) != 2 {
		t.Fatalf("freelancer should see both bids, got %d", len(got))
	}

	// only the owner decides
	path := fmt.Sprintf("/api/proposals/%d", ownProposal.ID)
	rec = ts.do(t, http.MethodPatch, path, ts.tokenFor(t, rival), map[string]any{"status": "accepted"})
	expectStatus(t, rec, http.StatusForbidden)
	rec = ts.do(t, http.MethodPatch, path, ts.tokenFor(t, owner), map[string]any{"status": "accepted"})
	expectStatus(t, rec, http.StatusOK)
	rec = ts.do(t, http.MethodPatch, path, ts.tokenFor(t, owner), map[string]any{"status": "rejected"})
	expectStatus(t, rec, http.StatusConflict)

	acts, err := ts.srv.stores.Activities.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(acts) == 0 || acts[0].Type != data.ActivityContractCreated {
		t.Fatalf("expected contract activity first, got %+v", acts)
	}
}

func TestSendMessagePublishes(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice@example.com", data.RoleClient)
	bob := ts.seedUser(t, "bob@example.com", data.RoleFreelancer)

	sub, err := ts.broker.Subscribe(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	rec := ts.do(t, http.MethodPost, "/api/messages", ts.tokenFor(t, alice), map[string]any{
		"receiverId": bob.ID, "content": "  hello bob  ",
	})
	expectStatus(t, rec, http.StatusCreated)
	sent := decode[data.Message](t, rec)
	if sent.Content != "hello bob" || sent.SenderID != alice.ID {
		t.Fatalf("unexpected message %+v", sent)
	}

	select {
	case got := <-sub.C:
		if got.ID != sent.ID {
			t.Fatalf("published %+v, want id %d", got, sent.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no realtime event for the receiver")
	}
}

func TestSendMessageValidation(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice@example.com", data.RoleClient)
	tok := ts.tokenFor(t, alice)

	rec := ts.do(t, http.MethodPost, "/api/messages", tok, map[string]any{"receiverId": 999, "content": "hi"})
	expectStatus(t, rec, http.StatusNotFound)

	rec = ts.do(t, http.MethodPost, "/api/messages", tok, map[string]any{"receiverId": alice.ID, "content": "   "})
	expectStatus(t, rec, http.StatusBadRequest)

	// length is counted in runes: 2500 two-byte runes fit
	rec = ts.do(t, http.MethodPost, "/api/messages", tok, map[string]any{"receiverId": alice.ID, "content": strings.Repeat("é", 2500)})
	expectStatus(t, rec, http.StatusCreated)

	rec = ts.do(t, http.MethodPost, "/api/messages", tok, map[string]any{"receiverId": alice.ID, "content": strings.Repeat("é", data.MaxMessageLength+1)})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ts.do(t, http.MethodPost, "/api/messages", tok, map[string]any{"receiverId": alice.ID, "content": "  " + strings.Repeat("a", data.MaxMessageLength) + "  "})
	expectStatus(t, rec, http.StatusCreated)
}

func TestDeactivatedAccountIsRejected(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice@example.com", data.RoleClient)
	bob := ts.seedUser(t, "bob@example.com", data.RoleFreelancer)
	tok := ts.tokenFor(t, alice)

	inactive := false
	if _, err := ts.srv.stores.Users.UpdateUser(context.Background(), alice.ID, data.UserUpdate{Active: &inactive}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/api/messages", tok, map[string]any{"receiverId": bob.ID, "content": "still here?"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = ts.do(t, http.MethodGet, "/api/auth/me", tok, nil)
	expectStatus(t, rec, http.StatusForbidden)

	msgs, err := ts.srv.stores.Messages.GetMessageHistory(context.Background(), alice.ID, bob.ID, 10)
	if err != nil {
		t.Fatalf("GetMessageHistory failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("disabled account stored %d messages", len(msgs))
	}
}

func TestRoleChangeAppliesToIssuedTokens(t *testing.T) {
	ts := newTestServer(t)
	u := ts.seedUser(t, "client@example.com", data.RoleClient)
	tok := ts.tokenFor(t, u)

	rec := ts.do(t, http.MethodPost, "/api/jobs", tok, map[string]any{"title": "Logo"})
	expectStatus(t, rec, http.StatusCreated)

	role := data.RoleFreelancer
	if _, err := ts.srv.stores.Users.UpdateUser(context.Background(), u.ID, data.UserUpdate{Role: &role}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	// the token still says client
	rec = ts.do(t, http.MethodPost, "/api/jobs", tok, map[string]any{"title": "Banner"})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestTokenForMissingAccount(t *testing.T) {
	ts := newTestServer(t)
	tok, _, err := ts.srv.auth.GenerateToken(4242, "ghost@example.com", string(data.RoleAdmin))
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	rec := ts.do(t, http.MethodGet, "/api/users", tok, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestMarkRead(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice@example.com", data.RoleClient)
	bob := ts.seedUser(t, "bob@example.com", data.RoleFreelancer)

	rec := ts.do(t, http.MethodPost, "/api/messages", ts.tokenFor(t, alice), map[string]any{"receiverId": bob.ID, "content": "ping"})
	expectStatus(t, rec, http.StatusCreated)
	msg := decode[data.Message](t, rec)
	path := fmt.Sprintf("/api/messages/%d/read", msg.ID)

	// the sender is not the receiver, so the message is invisible to them
	rec = ts.do(t, http.MethodPatch, path, ts.tokenFor(t, alice), nil)
	expectStatus(t, rec, http.StatusNotFound)

	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPatch, path, ts.tokenFor(t, bob), nil)
		expectStatus(t, rec, http.StatusOK)
		if got := decode[data.Message](t, rec); !got.Read {
			t.Fatalf("message not marked read: %+v", got)
		}
	}
}

func TestConversationsAndHistory(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.seedUser(t, "alice@example.com", data.RoleClient)
	bob := ts.seedUser(t, "bob@example.com", data.RoleFreelancer)
	carol := ts.seedUser(t, "carol@example.com", data.RoleFreelancer)

	send := func(from, to *data.User, content string) {
		rec := ts.do(t, http.MethodPost, "/api/messages", ts.tokenFor(t, from), map[string]any{"receiverId": to.ID, "content": content})
		expectStatus(t, rec, http.StatusCreated)
	}
	send(bob, alice, "first")
	send(alice, bob, "second")
	send(carol, alice, "third")

	rec := ts.do(t, http.MethodGet, "/api/conversations", ts.tokenFor(t, alice), nil)
	expectStatus(t, rec, http.StatusOK)
	convs := decode[[]conversation.Conversation](t, rec)
	if len(convs) != 2 || convs[0].CounterpartID != carol.ID || convs[1].CounterpartID != bob.ID {
		t.Fatalf("unexpected conversations %+v", convs)
	}

	rec = ts.do(t, http.MethodGet, "/api/conversations?limit=1", ts.tokenFor(t, alice), nil)
	if got := decode[[]conversation.Conversation](t, rec); len(got) != 1 {
		t.Fatalf("limit ignored: %+v", got)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", bob.ID), ts.tokenFor(t, alice), nil)
	expectStatus(t, rec, http.StatusOK)
	hist := decode[[]data.Message](t, rec)
	if len(hist) != 2 || hist[0].Content != "first" || hist[1].Content != "second" {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestTicketsAndActivities(t *testing.T) {
	ts := newTestServer(t)
	client := ts.seedUser(t, "client@example.com", data.RoleClient)
	support := ts.seedUser(t, "support@example.com", data.RoleSupport)

	rec := ts.do(t, http.MethodPost, "/api/tickets", ts.tokenFor(t, client), map[string]any{"subject": "Payout missing", "priority": "high"})
	expectStatus(t, rec, http.StatusCreated)

	rec = ts.do(t, http.MethodGet, "/api/tickets", ts.tokenFor(t, client), nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = ts.do(t, http.MethodGet, "/api/tickets", ts.tokenFor(t, support), nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]data.Ticket](t, rec); len(got) != 1 {
		t.Fatalf("expected one ticket, got %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/api/activities", ts.tokenFor(t, client), nil)
	expectStatus(t, rec, http.StatusOK)
}
