package conversation

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to int64, content string, at time.Duration) data.Message {
	return data.Message{ID: id, SenderID: from, ReceiverID: to, Content: content, CreatedAt: t0.Add(at)}
}

func TestAggregateScenario(t *testing.T) {
	for _, tc := range []struct {
		name  string
		t3    time.Duration
		order []int64
	}{
		{"yo newer than hey", time.Minute, []int64{2, 3}},
		{"hey newer than yo", 3 * time.Minute, []int64{3, 2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			msgs := []data.Message{
				msg(1, 2, 1, "hi", 0),
				msg(2, 1, 2, "yo", 2*time.Minute),
				msg(3, 3, 1, "hey", tc.t3),
			}
			got := Aggregate(msgs, 1)
			if len(got) != 2 {
				t.Fatalf("expected 2 conversations, got %d", len(got))
			}
			for i, cp := range tc.order {
				if got[i].CounterpartID != cp {
					t.Fatalf("position %d: got counterpart %d want %d", i, got[i].CounterpartID, cp)
				}
			}
			for _, c := range got {
				if c.CounterpartID == 2 && c.LatestMessage.Content != "yo" {
					t.Fatalf("counterpart 2 latest = %q", c.LatestMessage.Content)
				}
				if c.CounterpartID == 3 && c.LatestMessage.Content != "hey" {
					t.Fatalf("counterpart 3 latest = %q", c.LatestMessage.Content)
				}
			}
		})
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil, 1)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const user = int64(1)

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		msgs := make([]data.Message, 0, n)
		for i := 0; i < n; i++ {
			other := int64(2 + rng.Intn(6))
			from, to := user, other
			if rng.Intn(2) == 0 {
				from, to = other, user
			}
			// coarse timestamps so ties happen
			msgs = append(msgs, msg(int64(i+1), from, to, "m", time.Duration(rng.Intn(5))*time.Minute))
		}

		got := Aggregate(msgs, user)

		want := map[int64]bool{}
		for _, m := range msgs {
			want[m.Counterpart(user)] = true
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: %d conversations for %d counterparts", round, len(got), len(want))
		}
		for i, c := range got {
			if !want[c.CounterpartID] {
				t.Fatalf("round %d: unexpected counterpart %d", round, c.CounterpartID)
			}
			for _, m := range msgs {
				if m.Counterpart(user) == c.CounterpartID && m.CreatedAt.After(c.LatestMessage.CreatedAt) {
					t.Fatalf("round %d: message %d newer than latest of %d", round, m.ID, c.CounterpartID)
				}
			}
			if i > 0 && c.LatestMessage.CreatedAt.After(got[i-1].LatestMessage.CreatedAt) {
				t.Fatalf("round %d: output not sorted by recency", round)
			}
		}

		// same input in a different order gives the same output
		shuffled := append([]data.Message(nil), msgs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if again := Aggregate(shuffled, user); !reflect.DeepEqual(got, again) {
			t.Fatalf("round %d: aggregation is not deterministic", round)
		}
	}
}

func TestAggregateTieBreakHighestID(t *testing.T) {
	msgs := []data.Message{
		msg(8, 2, 1, "later id", 0),
		msg(5, 1, 2, "earlier id", 0),
		msg(9, 3, 1, "other thread", 0),
	}
	got := Aggregate(msgs, 1)
	if got[0].CounterpartID != 3 || got[1].LatestMessage.ID != 8 {
		t.Fatalf("unexpected tie-break result: %+v", got)
	}
}

func TestAggregateSelfMessageAndUnread(t *testing.T) {
	msgs := []data.Message{
		msg(1, 1, 1, "note to self", 0),
		msg(2, 2, 1, "unread one", time.Minute),
		msg(3, 2, 1, "unread two", 2*time.Minute),
		{ID: 4, SenderID: 2, ReceiverID: 1, Content: "seen", CreatedAt: t0, Read: true},
		msg(5, 1, 2, "mine", 3*time.Minute),
	}
	got := Aggregate(msgs, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}
	if got[1].CounterpartID != 1 {
		t.Fatalf("self message should group under the user id, got %+v", got[1])
	}
	if got[0].CounterpartID != 2 || got[0].Unread != 2 {
		t.Fatalf("expected 2 unread from counterpart 2, got %+v", got[0])
	}
}

func TestTop(t *testing.T) {
	convs := Aggregate([]data.Message{
		msg(1, 2, 1, "a", 0),
		msg(2, 3, 1, "b", time.Minute),
		msg(3, 4, 1, "c", 2*time.Minute),
	}, 1)
	if got := Top(convs, 2); len(got) != 2 || got[0].CounterpartID != 4 {
		t.Fatalf("Top(2) = %+v", got)
	}
	if got := Top(convs, 0); len(got) != 3 {
		t.Fatalf("Top(0) should keep all, got %d", len(got))
	}
	if got := Top(convs, 10); len(got) != 3 {
		t.Fatalf("Top(10) should keep all, got %d", len(got))
	}
}
