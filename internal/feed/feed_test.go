package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

func mustActivity(t *testing.T, p data.ActivityPayload, at time.Time) data.Activity {
	t.Helper()
	a, err := data.NewActivity(1, p)
	if err != nil {
		t.Fatalf("NewActivity failed: %v", err)
	}
	a.CreatedAt = at
	return *a
}

func TestRenderEveryType(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		payload data.ActivityPayload
		icon    string
		contain string
	}{
		{data.JobPosted{JobID: 1, JobTitle: "Logo"}, "briefcase", `"Logo"`},
		{data.ProposalSubmitted{JobID: 1, JobTitle: "Logo", BidAmount: 1250.5}, "file-text", "$1,250.5"},
		{data.MessageSent{CounterpartID: 2, Preview: "hello"}, "message-circle", `"hello"`},
		{data.ContractCreated{JobID: 1, JobTitle: "Logo", FreelancerID: 2}, "handshake", "contract"},
		{data.PaymentReleased{Amount: 300, JobTitle: "Logo"}, "dollar-sign", "$300"},
		{data.ReviewSubmitted{Rating: 5, JobTitle: "Logo"}, "star", "5-star"},
	}
	seen := map[string]bool{}
	for _, tc := range cases {
		item := Render(mustActivity(t, tc.payload, now.Add(-3*time.Minute)), now)
		if item.Icon != tc.icon {
			t.Fatalf("%s: icon = %q, want %q", tc.payload.ActivityType(), item.Icon, tc.icon)
		}
		if !strings.Contains(item.Message, tc.contain) {
			t.Fatalf("%s: message %q does not contain %q", tc.payload.ActivityType(), item.Message, tc.contain)
		}
		if item.Ago != "3 minutes ago" {
			t.Fatalf("%s: ago = %q", tc.payload.ActivityType(), item.Ago)
		}
		if seen[item.Color] {
			t.Fatalf("color %q used twice", item.Color)
		}
		seen[item.Color] = true
	}
}

func TestRenderUnknownType(t *testing.T) {
	item := Render(data.Activity{Type: "invoice_sent"}, time.Now())
	if item.Icon != "activity" || item.Message != "invoice_sent" || item.Ago != "" {
		t.Fatalf("unexpected fallback item %+v", item)
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := preview(long)
	if n := len([]rune(got)); n != previewLen {
		t.Fatalf("preview has %d runes, want %d", n, previewLen)
	}
	if preview("short") != "short" {
		t.Fatalf("short preview changed")
	}
}
