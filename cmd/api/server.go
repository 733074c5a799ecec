package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"google.golang.org/grpc"

	"github.com/Gee2424/HubFreelance-sub001/internal/auth"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/identity"
	"github.com/Gee2424/HubFreelance-sub001/internal/metrics"
	"github.com/Gee2424/HubFreelance-sub001/internal/middleware"
	"github.com/Gee2424/HubFreelance-sub001/internal/policy"
	"github.com/Gee2424/HubFreelance-sub001/internal/realtime"
)

// Server implements the REST API and the realtime service and contains
// references to stores, auth and the message broker.
type Server struct {
	stores  *data.Stores
	auth    *auth.JWTManager
	policy  *policy.Engine
	broker  realtime.Broker
	metrics *metrics.Metrics

	// identity verifies provider tokens for /api/auth/exchange; nil
	// disables the exchange
	identity identity.Provider
	upgrader websocket.Upgrader

	quit     chan struct{}
	quitOnce sync.Once
}

// newServer returns a ready-to-use Server wired with stores, auth, policy
// and broker.
func newServer(stores *data.Stores, authMgr *auth.JWTManager, pol *policy.Engine, broker realtime.Broker, m *metrics.Metrics) *Server {
	return &Server{
		stores:  stores,
		auth:    authMgr,
		policy:  pol,
		broker:  broker,
		metrics: m,
		quit:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// stopStreams ends every open realtime stream, gRPC and WebSocket alike.
// Call it before shutdownGRPC: GracefulStop waits for open streams.
func (s *Server) stopStreams() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// shutdownGRPC drains gs, falling back to a hard stop when ctx expires
// first.
func shutdownGRPC(ctx context.Context, gs *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		slog.Warn("gRPC graceful stop timed out, closing remaining streams")
		gs.Stop()
		<-stopped
	}
}

// newEcho builds the HTTP server with middleware and every route.
func (s *Server) newEcho(limiter *middleware.LimiterStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(echomw.Recover())
	e.Use(s.metrics.Middleware())

	s.registerRoutes(e, limiter)
	return e
}

// registerRoutes registers the REST routes.
func (s *Server) registerRoutes(e *echo.Echo, limiter *middleware.LimiterStore) {
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	limited := middleware.RateLimit(limiter, middleware.KeyByIP)
	api.POST("/auth/login", s.login, limited)
	api.POST("/auth/exchange", s.exchange, limited)
	api.POST("/users", s.createUser, s.optionalAuth)

	authed := api.Group("", s.requireAuth)
	authed.GET("/auth/me", s.me)

	authed.GET("/users", s.listUsers, s.requirePermission(policy.ActionUsersList))
	authed.GET("/users/:id", s.getUser)
	authed.PATCH("/users/:id", s.updateUser)

	authed.GET("/jobs", s.listJobs)
	authed.POST("/jobs", s.createJob, s.requirePermission(policy.ActionJobsCreate))
	authed.GET("/jobs/:id", s.getJob)

	authed.GET("/proposals", s.listProposals)
	authed.POST("/proposals", s.createProposal, s.requirePermission(policy.ActionProposalsCreate))
	authed.PATCH("/proposals/:id", s.decideProposal, s.requirePermission(policy.ActionProposalsDecide))

	authed.GET("/messages", s.listMessages)
	authed.GET("/messages/:id", s.messageHistory)
	authed.POST("/messages", s.sendMessage, s.requirePermission(policy.ActionMessagesSend))
	authed.PATCH("/messages/:id/read", s.markRead)
	authed.GET("/conversations", s.listConversations)

	authed.POST("/tickets", s.createTicket, s.requirePermission(policy.ActionTicketsCreate))
	authed.GET("/tickets", s.listTickets, s.requirePermission(policy.ActionTicketsList))

	authed.GET("/activities", s.listActivities, s.requirePermission(policy.ActionActivitiesList))

	authed.GET("/realtime/ws", s.websocket)
}

// newGRPC builds the realtime gRPC server. Opening a stream is rate limited
// per peer and requires a bearer token.
func (s *Server) newGRPC(limiter *middleware.LimiterStore, opts ...grpc.ServerOption) *grpc.Server {
	limitedStreams := map[string]bool{realtime.SubscribeMethod: true}
	opts = append(opts, grpc.ChainStreamInterceptor(
		middleware.RateLimitStreamInterceptor(limiter, limitedStreams),
		authStreamInterceptor(s.auth, s.stores.Users),
	))
	gs := grpc.NewServer(opts...)
	realtime.RegisterRealtimeServer(gs, &realtimeServer{broker: s.broker, metrics: s.metrics, quit: s.quit})
	return gs
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// errorHandler writes every error as {"message": ...}. Store sentinels map
// onto their HTTP codes; anything unexpected is logged and hidden.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := http.StatusInternalServerError, "internal server error"
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.Is(err, data.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, data.ErrConflict):
		code, msg = http.StatusConflict, "record already exists"
	case errors.Is(err, data.ErrInvalidTransition):
		code, msg = http.StatusConflict, err.Error()
	default:
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"message": msg})
	}
	if err != nil {
		slog.Warn("failed to write error response", "err", err)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}

// paramID parses a positive integer path parameter.
func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}
