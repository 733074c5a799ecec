package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// RedisBroker fans events out through Redis pub/sub so every API replica
// can deliver to its own connections. Each receiver has its own channel.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
	obs    Observer
}

type RedisBrokerOption func(*RedisBroker)

// WithChannelPrefix sets the channel prefix; the default is
// "messages:inserted".
func WithChannelPrefix(prefix string) RedisBrokerOption {
	return func(b *RedisBroker) { b.prefix = strings.Trim(prefix, ":") }
}

func WithObserver(obs Observer) RedisBrokerOption {
	return func(b *RedisBroker) {
		if obs != nil {
			b.obs = obs
		}
	}
}

func NewRedisBroker(rdb *redis.Client, opts ...RedisBrokerOption) *RedisBroker {
	b := &RedisBroker{
		rdb:    rdb,
		prefix: "messages:inserted",
		obs:    nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBroker) channel(userID int64) string {
	return fmt.Sprintf("%s:%d", b.prefix, userID)
}

// Publish sends msg on the receiver's channel.
func (b *RedisBroker) Publish(ctx context.Context, msg data.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel(msg.ReceiverID), payload).Err(); err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}
	b.obs.Published()
	return nil
}

// Subscribe listens on userID's channel. The subscription is confirmed
// with Redis before it is returned.
func (b *RedisBroker) Subscribe(ctx context.Context, userID int64) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, b.channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", b.channel(userID), err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan data.Message, subscriberBuffer)
	sub := &Subscription{C: out}
	sub.cancel = func() {
		cancel()
		_ = ps.Close()
	}

	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg data.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					slog.Warn("dropping malformed message event", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- msg:
				default:
					// slow reader: end the subscription like the local hub does
					b.obs.Dropped()
					sub.Close()
					return
				}
			}
		}
	}()
	return sub, nil
}

// Close closes the Redis client.
func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}
