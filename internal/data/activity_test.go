package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/db"
)

func TestActivityPayloadRoundTrip(t *testing.T) {
	payloads := []ActivityPayload{
		JobPosted{JobID: 1, JobTitle: "Logo"},
		ProposalSubmitted{JobID: 2, JobTitle: "API", BidAmount: 250.5},
		MessageSent{CounterpartID: 7, Preview: "hey"},
		ContractCreated{JobID: 3, JobTitle: "App", FreelancerID: 9},
		PaymentReleased{Amount: 1200, JobTitle: "App"},
		ReviewSubmitted{Rating: 5, JobTitle: "App"},
	}
	for _, p := range payloads {
		a, err := NewActivity(42, p)
		if err != nil {
			t.Fatalf("NewActivity(%T) failed: %v", p, err)
		}
		if a.Type != p.ActivityType() || a.ActorID != 42 {
			t.Fatalf("unexpected activity header: %+v", a)
		}
		got, err := a.Payload()
		if err != nil {
			t.Fatalf("Payload(%s) failed: %v", a.Type, err)
		}
		if got != p {
			t.Fatalf("payload mismatch: got %#v want %#v", got, p)
		}
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	if _, err := DecodePayload("dance_party", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown activity type")
	}
	if _, err := DecodePayload(ActivityJobPosted, []byte(`{"jobId":"nope"}`)); err == nil {
		t.Fatalf("expected error for malformed metadata")
	}
}

func TestGormActivityStoreRecent(t *testing.T) {
	store := NewGormActivityStore(setupDB(t))
	testActivityStoreRecent(t, store)
}

// This test is an integration test and requires a running MongoDB instance.
// Set MONGODB_URI in the environment before running it.
func TestMongoActivityStoreRecent(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.NewMongo(ctx, uri)
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.ActivitiesCollection().Drop(context.Background())
		_ = c.CountersCollection().Drop(context.Background())
		_ = c.Close(context.Background())
	}()
	_ = c.ActivitiesCollection().Drop(ctx)
	_ = c.CountersCollection().Drop(ctx)

	testActivityStoreRecent(t, NewMongoActivityStore(c.ActivitiesCollection(), c.CountersCollection()))
}

func testActivityStoreRecent(t *testing.T, store ActivityStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	titles := []string{"first", "second", "third"}
	for i, title := range titles {
		a, err := NewActivity(1, JobPosted{JobID: int64(i + 1), JobTitle: title})
		if err != nil {
			t.Fatalf("NewActivity failed: %v", err)
		}
		// second and third share a timestamp; the later insert must win
		a.CreatedAt = base.Add(time.Duration(min(i, 1)) * time.Second)
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if a.ID == 0 {
			t.Fatalf("Record did not assign an id")
		}
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(recent))
	}
	want := []string{"third", "second", "first"}
	for i, a := range recent {
		p, err := a.Payload()
		if err != nil {
			t.Fatalf("Payload failed: %v", err)
		}
		if got := p.(JobPosted).JobTitle; got != want[i] {
			t.Fatalf("position %d: got %q want %q", i, got, want[i])
		}
	}
}
