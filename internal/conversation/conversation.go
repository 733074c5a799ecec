// Package conversation groups a flat list of directed messages into one
// thread per counterpart.
package conversation

import (
	"sort"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// Conversation is the derived thread between a user and one counterpart.
type Conversation struct {
	CounterpartID int64        `json:"counterpartId"`
	LatestMessage data.Message `json:"latestMessage"`
	// Unread counts messages from the counterpart the user has not read.
	Unread int `json:"unread"`
}

// newer reports whether a is more recent than b. Equal timestamps are
// decided by the higher message id.
func newer(a, b data.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Aggregate returns one Conversation per counterpart of userID in msgs,
// most recent first. The input order does not matter and the output is
// fully determined by the input.
//
// A message sent by userID to itself groups under counterpart userID.
func Aggregate(msgs []data.Message, userID int64) []Conversation {
	byCounterpart := make(map[int64]*Conversation)
	for _, m := range msgs {
		cp := m.Counterpart(userID)
		c, ok := byCounterpart[cp]
		if !ok {
			c = &Conversation{CounterpartID: cp, LatestMessage: m}
			byCounterpart[cp] = c
		} else if newer(m, c.LatestMessage) {
			c.LatestMessage = m
		}
		if m.ReceiverID == userID && m.SenderID == cp && !m.Read {
			c.Unread++
		}
	}

	out := make([]Conversation, 0, len(byCounterpart))
	for _, c := range byCounterpart {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].LatestMessage, out[j].LatestMessage)
	})
	return out
}

// Top returns at most n of the most recent conversations. n <= 0 returns
// convs unchanged.
func Top(convs []Conversation, n int) []Conversation {
	if n <= 0 || n >= len(convs) {
		return convs
	}
	return convs[:n]
}
