package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/realtime"
)

// pushServer streams whatever is sent on events to every subscriber.
type pushServer struct {
	events chan data.Message
	reject bool

	mu   sync.Mutex
	auth []string
	subs chan struct{}
}

func (p *pushServer) SubscribeMessages(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	md, _ := metadata.FromIncomingContext(stream.Context())
	p.mu.Lock()
	p.auth = append(p.auth, md.Get("authorization")...)
	p.mu.Unlock()
	if p.reject {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	p.subs <- struct{}{}
	for {
		select {
		case <-stream.Context().Done():
			return nil
		case m := <-p.events:
			st, err := realtime.ToStruct(m)
			if err != nil {
				return err
			}
			if err := stream.Send(st); err != nil {
				return err
			}
		}
	}
}

func startPushServer(t *testing.T, p *pushServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	realtime.RegisterRealtimeServer(gs, p)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for signal")
	}
}

func TestBridgeInvalidatesOnlyMatchingConversation(t *testing.T) {
	api, srv := newFakeAPI(t)
	alice := api.addUser(data.User{Email: "alice@example.com", Username: "alice"}, "password123")
	bob := api.addUser(data.User{Email: "bob@example.com", Username: "bob"}, "password123")
	carol := api.addUser(data.User{Email: "carol@example.com", Username: "carol"}, "password123")
	api.addMessage(data.Message{SenderID: bob.ID, ReceiverID: alice.ID, Content: "hi"})

	push := &pushServer{events: make(chan data.Message), subs: make(chan struct{}, 1)}
	conn := startPushServer(t, push)

	c := New(srv.URL, WithRealtime(conn))
	defer c.Close()
	c.SetToken(tokenFor(alice.ID))
	ctx := context.Background()

	_, err := c.Thread(ctx, bob.ID)
	require.NoError(t, err)

	b := OpenBridge(ctx, c, bob.ID)
	defer b.Close()
	assert.Equal(t, ModeStream, b.Mode())
	waitSignal(t, push.subs)

	push.events <- data.Message{ID: 10, SenderID: carol.ID, ReceiverID: alice.ID, Content: "unrelated", CreatedAt: time.Now()}
	select {
	case <-b.Changes():
		t.Fatalf("an unrelated message must not touch the open conversation")
	case <-time.After(100 * time.Millisecond):
	}
	snap, _ := c.Cache().Peek(ThreadKey(bob.ID))
	assert.False(t, snap.Stale)

	push.events <- data.Message{ID: 11, SenderID: bob.ID, ReceiverID: alice.ID, Content: "again", CreatedAt: time.Now()}
	waitSignal(t, b.Changes())
	snap, _ = c.Cache().Peek(ThreadKey(bob.ID))
	assert.True(t, snap.Stale, "matching message must invalidate the thread")

	push.mu.Lock()
	assert.Equal(t, []string{"Bearer " + tokenFor(alice.ID)}, push.auth)
	push.mu.Unlock()
}

func TestBridgePollsWithoutRealtime(t *testing.T) {
	api, srv := newFakeAPI(t)
	alice := api.addUser(data.User{Email: "alice@example.com", Username: "alice"}, "password123")
	bob := api.addUser(data.User{Email: "bob@example.com", Username: "bob"}, "password123")

	c := New(srv.URL)
	defer c.Close()
	c.SetToken(tokenFor(alice.ID))

	b := OpenBridge(context.Background(), c, bob.ID, WithPollInterval(20*time.Millisecond))
	assert.Equal(t, ModePoll, b.Mode())

	waitSignal(t, b.Changes())
	waitSignal(t, b.Changes())
	b.Close()
	b.Close()

	after := api.hitCount("GET /api/messages/2")
	assert.GreaterOrEqual(t, after, 2)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, api.hitCount("GET /api/messages/2"), "closing the bridge stops polling")
}

func TestBridgeFallsBackWhenStreamRejected(t *testing.T) {
	api, srv := newFakeAPI(t)
	alice := api.addUser(data.User{Email: "alice@example.com", Username: "alice"}, "password123")
	bob := api.addUser(data.User{Email: "bob@example.com", Username: "bob"}, "password123")

	conn := startPushServer(t, &pushServer{reject: true, subs: make(chan struct{}, 1)})
	c := New(srv.URL, WithRealtime(conn))
	defer c.Close()
	c.SetToken(tokenFor(alice.ID))

	b := OpenBridge(context.Background(), c, bob.ID, WithPollInterval(20*time.Millisecond))
	defer b.Close()

	waitSignal(t, b.Changes())
	assert.Equal(t, ModePoll, b.Mode())
	assert.GreaterOrEqual(t, api.hitCount("GET /api/messages/2"), 1)
}
