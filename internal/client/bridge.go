package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gee2424/HubFreelance-sub001/internal/cache"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/realtime"
)

// Bridge modes.
const (
	ModeStream = "stream"
	ModePoll   = "poll"
)

// Bridge keeps the open conversation with one counterpart fresh. It
// listens to message-inserted events for the signed-in user and
// invalidates the thread when an event concerns the counterpart. Without a
// working stream it polls the thread instead.
type Bridge struct {
	client       *Client
	counterpart  int64
	view         *cache.View
	pollInterval time.Duration

	mode    atomic.Value // string
	changes chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithPollInterval replaces cache.ChatPollInterval for the fallback.
func WithPollInterval(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.pollInterval = d }
}

// OpenBridge starts watching the conversation with counterpartID. It never
// fails; a stream that cannot be opened turns into polling. Close releases
// the subscription.
func OpenBridge(ctx context.Context, c *Client, counterpartID int64, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client:       c,
		counterpart:  counterpartID,
		view:         c.cache.NewView(ctx),
		pollInterval: cache.ChatPollInterval,
		changes:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	if c.realtime != nil {
		b.mode.Store(ModeStream)
	} else {
		b.mode.Store(ModePoll)
	}

	b.wg.Add(1)
	go b.run()
	return b
}

// Mode reports whether the bridge is streaming or polling.
func (b *Bridge) Mode() string {
	m, _ := b.mode.Load().(string)
	return m
}

// Changes receives a value whenever the thread was invalidated or a poll
// produced a new snapshot. Signals are coalesced.
func (b *Bridge) Changes() <-chan struct{} { return b.changes }

// Close unsubscribes and waits for the bridge goroutine. It is safe to call
// more than once.
func (b *Bridge) Close() {
	b.once.Do(func() {
		b.view.Close()
		b.wg.Wait()
	})
}

func (b *Bridge) notify() {
	select {
	case b.changes <- struct{}{}:
	default:
	}
}

func (b *Bridge) run() {
	defer b.wg.Done()
	if b.client.realtime != nil {
		err := b.stream()
		if b.view.Context().Err() != nil {
			return
		}
		slog.Debug("realtime stream unavailable, polling", "counterpart", b.counterpart, "err", err)
	}
	b.mode.Store(ModePoll)
	b.view.Poll(ThreadKey(b.counterpart), b.pollInterval, fetcher[[]data.Message](b.client, ThreadKey(b.counterpart)), func(cache.Snapshot) {
		b.notify()
	})
}

// stream consumes the subscription until it fails or the view closes.
func (b *Bridge) stream() error {
	ctx := b.client.streamContext(b.view.Context())
	st, err := realtime.SubscribeMessages(ctx, b.client.realtime)
	if err != nil {
		return err
	}
	for {
		ev, err := st.Recv()
		if err != nil {
			return err
		}
		msg, err := realtime.FromStruct(ev)
		if err != nil {
			slog.Debug("skipping malformed message event", "err", err)
			continue
		}
		if msg.SenderID != b.counterpart && msg.ReceiverID != b.counterpart {
			continue
		}
		b.client.cache.Invalidate(ThreadKey(b.counterpart), InboxKey())
		b.notify()
	}
}
