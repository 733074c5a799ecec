package realtime

import (
	"errors"
	"testing"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

type fakeSink struct {
	last *data.Message
	fail bool
}

func (f *fakeSink) Send(m data.Message) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.last = &m
	return nil
}

func TestHub_RegisterAndSend(t *testing.T) {
	hub := NewHub()

	sinkA := &fakeSink{}
	sinkB := &fakeSink{}

	idA := hub.Register(1, sinkA)
	_ = hub.Register(1, sinkB) // second connection

	if err := hub.SendToUser(1, data.Message{ID: 10, SenderID: 2, ReceiverID: 1, Content: "hello"}); err != nil {
		t.Fatalf("expected send success, got error: %v", err)
	}

	if sinkA.last == nil || sinkA.last.ID != 10 || sinkB.last == nil {
		t.Fatalf("both sinks should receive the message")
	}

	hub.Unregister(1, idA)
	if hub.Connections(1) != 1 {
		t.Fatalf("expected 1 connection after unregister, got %d", hub.Connections(1))
	}

	if err := hub.SendToUser(1, data.Message{ID: 11, SenderID: 3, ReceiverID: 1}); err != nil {
		t.Fatalf("expected send success after unregistering one connection: %v", err)
	}

	if sinkA.last.ID == 11 {
		t.Fatalf("sink A should not have received second message after unregister")
	}
}

func TestHub_SendToOffline(t *testing.T) {
	hub := NewHub()

	if err := hub.SendToUser(99, data.Message{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestHub_SendPartialFailure(t *testing.T) {
	hub := NewHub()

	ok := &fakeSink{}
	bad := &fakeSink{fail: true}

	_ = hub.Register(4, ok)
	_ = hub.Register(4, bad)

	if err := hub.SendToUser(4, data.Message{ID: 1}); err == nil {
		t.Fatalf("expected error due to partial sink failure")
	}

	// the failing sink was dropped; the next send only reaches the healthy one
	if err := hub.SendToUser(4, data.Message{ID: 2}); err != nil {
		t.Fatalf("expected send to succeed after cleanup of failed connections: %v", err)
	}

	if ok.last == nil || ok.last.ID != 2 {
		t.Fatalf("healthy sink did not receive message after cleanup")
	}
}
