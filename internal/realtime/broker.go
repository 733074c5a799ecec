// Package realtime fans "message inserted" events out to the receiver's
// open connections, in process or through Redis pub/sub, and carries them
// over a gRPC server stream or a WebSocket.
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// subscriberBuffer bounds how far a subscriber may fall behind before it is
// dropped.
const subscriberBuffer = 64

// ErrSlowConsumer is returned by a subscription sink whose buffer is full.
var ErrSlowConsumer = errors.New("subscriber buffer full")

// Broker publishes message-inserted events and hands out per-receiver
// subscriptions.
type Broker interface {
	Publish(ctx context.Context, msg data.Message) error
	Subscribe(ctx context.Context, userID int64) (*Subscription, error)
	Close() error
}

// Observer is notified of broker traffic. metrics.Metrics satisfies it.
type Observer interface {
	Published()
	Dropped()
}

type nopObserver struct{}

func (nopObserver) Published() {}
func (nopObserver) Dropped()   {}

// Subscription delivers events for one receiver on C until Close is
// called or the broker drops it. C is closed in both cases.
type Subscription struct {
	C <-chan data.Message

	once   sync.Once
	cancel func()
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// chanSink buffers events for one subscription. A full buffer closes the
// channel so the reader sees the subscription end instead of stalling the
// publisher.
type chanSink struct {
	mu     sync.Mutex
	ch     chan data.Message
	closed bool
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan data.Message, subscriberBuffer)}
}

func (c *chanSink) Send(msg data.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("subscription closed")
	}
	select {
	case c.ch <- msg:
		return nil
	default:
		c.closed = true
		close(c.ch)
		return ErrSlowConsumer
	}
}

func (c *chanSink) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// LocalBroker delivers events within a single process through a Hub.
type LocalBroker struct {
	hub *Hub
	obs Observer
}

// NewLocalBroker returns a LocalBroker. obs may be nil.
func NewLocalBroker(obs Observer) *LocalBroker {
	if obs == nil {
		obs = nopObserver{}
	}
	return &LocalBroker{hub: NewHub(), obs: obs}
}

// Publish sends msg to the receiver's subscriptions. A receiver with no
// open subscription is not an error.
func (b *LocalBroker) Publish(_ context.Context, msg data.Message) error {
	b.obs.Published()
	if err := b.hub.SendToUser(msg.ReceiverID, msg); err != nil && !errors.Is(err, ErrNotConnected) {
		b.obs.Dropped()
	}
	return nil
}

// Subscribe opens a subscription for userID. It ends when ctx is done or
// Close is called.
func (b *LocalBroker) Subscribe(ctx context.Context, userID int64) (*Subscription, error) {
	sink := newChanSink()
	id := b.hub.Register(userID, sink)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{C: sink.ch}
	sub.cancel = func() {
		cancel()
		b.hub.Unregister(userID, id)
		sink.close()
	}
	go func() {
		<-subCtx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Close is a no-op; subscriptions end with their contexts.
func (b *LocalBroker) Close() error { return nil }
