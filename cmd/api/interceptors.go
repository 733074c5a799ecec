package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Gee2424/HubFreelance-sub001/internal/auth"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

func bearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer"))
}

var (
	errAccountGone     = errors.New("account no longer exists")
	errAccountDisabled = errors.New("account disabled")
)

// currentClaims checks the account behind claims on every request, so a
// deactivation or role change applies before the token expires. The role
// is taken from the stored user.
func currentClaims(ctx context.Context, users *data.UsersStore, claims *auth.Claims) (*auth.Claims, error) {
	user, err := users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, errAccountGone
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, errAccountDisabled
	}
	fresh := *claims
	fresh.Role = string(user.Role)
	return &fresh, nil
}

// authStreamInterceptor enforces JWT authentication on every stream and
// stores the claims in the stream context.
func authStreamInterceptor(j *auth.JWTManager, users *data.UsersStore) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		md, ok := metadata.FromIncomingContext(ss.Context())
		if !ok {
			return status.Errorf(codes.Unauthenticated, "missing metadata")
		}
		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return status.Errorf(codes.Unauthenticated, "missing authorization header")
		}

		token := bearerToken(authHeaders[0])
		if token == "" {
			return status.Errorf(codes.Unauthenticated, "invalid token")
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			return status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
		}
		claims, err = currentClaims(ss.Context(), users, claims)
		switch {
		case errors.Is(err, errAccountGone):
			return status.Errorf(codes.Unauthenticated, "%v", err)
		case errors.Is(err, errAccountDisabled):
			return status.Errorf(codes.PermissionDenied, "%v", err)
		case err != nil:
			return status.Errorf(codes.Internal, "failed to load account: %v", err)
		}

		// wrap stream context with claims
		newCtx := context.WithValue(ss.Context(), authContextKey{}, claims)
		wrapped := grpcmiddlewareServerStream{ServerStream: ss, ctx: newCtx}
		return handler(srv, wrapped)
	}
}

// grpcmiddlewareServerStream wraps grpc.ServerStream to override Context()
type grpcmiddlewareServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with claims)
func (g grpcmiddlewareServerStream) Context() context.Context { return g.ctx }

// requestToken reads the bearer token from the Authorization header or,
// for browser WebSocket upgrades, the token query parameter.
func requestToken(c echo.Context) string {
	if tok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); tok != "" {
		return tok
	}
	if c.Request().Header.Get("Upgrade") != "" {
		return c.QueryParam("token")
	}
	return ""
}

// requireAuth is the REST counterpart of authStreamInterceptor.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := requestToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}
		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		req := c.Request()
		claims, err = currentClaims(req.Context(), s.stores.Users, claims)
		switch {
		case errors.Is(err, errAccountGone):
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		case errors.Is(err, errAccountDisabled):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case err != nil:
			return err
		}
		c.SetRequest(req.WithContext(context.WithValue(req.Context(), authContextKey{}, claims)))
		return next(c)
	}
}

// optionalAuth attaches claims when a valid token is present and lets
// anonymous requests through.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := requestToken(c); token != "" {
			if claims, err := s.auth.VerifyToken(token); err == nil {
				req := c.Request()
				if claims, err = currentClaims(req.Context(), s.stores.Users, claims); err == nil {
					c.SetRequest(req.WithContext(context.WithValue(req.Context(), authContextKey{}, claims)))
				}
			}
		}
		return next(c)
	}
}

// requirePermission checks the caller's role against the policy for
// action. It must run after requireAuth.
func (s *Server) requirePermission(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := getClaimsFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing auth claims")
			}
			allowed, err := s.policy.Allow(c.Request().Context(), claims.Role, action)
			if err != nil {
				return err
			}
			if !allowed {
				return echo.NewHTTPError(http.StatusForbidden, "access denied")
			}
			return next(c)
		}
	}
}

// claimsOf returns the caller's claims. Routes behind requireAuth always
// have them.
func claimsOf(c echo.Context) *auth.Claims {
	claims, _ := getClaimsFromContext(c.Request().Context())
	return claims
}
