package main

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Gee2424/HubFreelance-sub001/internal/metrics"
	"github.com/Gee2424/HubFreelance-sub001/internal/realtime"
)

// realtimeServer streams message-inserted events to the authenticated
// receiver.
type realtimeServer struct {
	broker  realtime.Broker
	metrics *metrics.Metrics
	// quit is closed when the server shuts down
	quit <-chan struct{}
}

// SubscribeMessages streams every message inserted for the caller until the
// client goes away or the server shuts down.
func (r *realtimeServer) SubscribeMessages(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	// Get claims from context (injected by interceptor)
	claims, ok := getClaimsFromContext(stream.Context())
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	sub, err := r.broker.Subscribe(stream.Context(), claims.UserID)
	if err != nil {
		return status.Errorf(codes.Unavailable, "failed to subscribe: %v", err)
	}
	defer sub.Close()

	r.metrics.StreamOpened("grpc")
	defer r.metrics.StreamClosed("grpc")

	for {
		select {
		case <-r.quit:
			return status.Errorf(codes.Unavailable, "server shutting down")
		case msg, ok := <-sub.C:
			if !ok {
				if stream.Context().Err() != nil {
					return nil
				}
				// the broker closed the subscription, which happens to slow readers
				return status.Errorf(codes.ResourceExhausted, "subscription dropped")
			}
			ev, err := realtime.ToStruct(msg)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode event: %v", err)
			}
			if err := stream.Send(ev); err != nil {
				return status.Errorf(codes.Internal, "failed to send event: %v", err)
			}
		}
	}
}

// websocket upgrades the request and forwards the caller's events as JSON
// frames.
func (s *Server) websocket(c echo.Context) error {
	claims := claimsOf(c)
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.Debug("websocket upgrade failed", "err", err)
		return nil
	}

	sub, err := s.broker.Subscribe(c.Request().Context(), claims.UserID)
	if err != nil {
		// the connection is hijacked, so the failure goes out as a close frame
		slog.Warn("websocket subscribe failed", "user", claims.UserID, "err", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "realtime unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	}

	// hijacked connections outlive echo's Shutdown; ending the subscription
	// sends the client a going-away frame
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.quit:
			sub.Close()
		case <-done:
		}
	}()

	s.metrics.StreamOpened("websocket")
	defer s.metrics.StreamClosed("websocket")
	realtime.ServeWebSocket(conn, sub)
	return nil
}
